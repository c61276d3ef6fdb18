package config

import "sort"

func preset(problem, scheme string, edit func(*Config)) *Config {
	cfg := DefaultConfig()
	cfg.Problem = problem
	cfg.Scheme = scheme
	if edit != nil {
		edit(cfg)
	}
	return cfg
}

var Presets = map[string]map[string]*Config{
	"decay": {
		"small-step": preset("decay", "rk4", func(c *Config) { c.Step = 4 * 0.001 }),
		"big-step":   preset("decay", "rk4", func(c *Config) { c.Step = 4 * 0.2 }),
		"midpoint":   preset("decay", "midpoint", func(c *Config) { c.Step = 4 * 0.001 }),
		"adaptive": preset("decay", "dopri54", func(c *Config) {
			c.AbsTolerance, c.RelTolerance = 1e-10, 1e-10
		}),
	},
	"oscillator": {
		"euler": preset("oscillator", "euler", func(c *Config) { c.Step = 1e-3 }),
		"rk4":   preset("oscillator", "rk4", func(c *Config) { c.Step = 0.05 }),
	},
	"kepler": {
		"eccentric": preset("kepler", "dopri54", func(c *Config) {
			c.Eccentricity = 0.9
			c.AbsTolerance, c.RelTolerance = 1e-8, 1e-8
		}),
		"circular": preset("kepler", "rk4", func(c *Config) {
			c.Eccentricity = 0
			c.Step = 0.01
		}),
		"regression": preset("kepler", "rk4", func(c *Config) {
			c.Eccentricity = 0.9
			c.Step = 0.0003 * 20
		}),
	},
	"ball": {
		"bounce": preset("ball", "dopri54", func(c *Config) {
			c.MaxStep = 1
			c.AbsTolerance, c.RelTolerance = 1e-10, 1e-10
			c.Events.MaxCheckInterval = 0.1
			c.Events.Threshold = 1e-10
		}),
		"three-bounces": preset("ball", "rk4", func(c *Config) {
			c.Step = 0.05
			c.MaxBounces = 3
		}),
	},
}

// GetPreset returns a copy of the named preset, nil when it does not exist.
func GetPreset(problem, name string) *Config {
	problemPresets, ok := Presets[problem]
	if !ok {
		return nil
	}
	cfg, ok := problemPresets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets(problem string) []string {
	problemPresets, ok := Presets[problem]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(problemPresets))
	for name := range problemPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
