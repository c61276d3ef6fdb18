package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/odestep/internal/integrators"
)

const (
	DefaultStep         = 0.01
	DefaultTolerance    = 1e-8
	DefaultEccentricity = 0.9
	DefaultMaxCheck     = 0.1
	DefaultThreshold    = 1e-10
	DefaultSampleStep   = 0.05
)

// Config describes one integration run. Zero T0 and TEnd select the span
// of the problem.
type Config struct {
	Problem string `yaml:"problem"`
	Scheme  string `yaml:"scheme"`

	// Step is used by the fixed step schemes.
	Step float64 `yaml:"step"`

	MinStep      float64 `yaml:"min_step"`
	MaxStep      float64 `yaml:"max_step"`
	AbsTolerance float64 `yaml:"abs_tolerance"`
	RelTolerance float64 `yaml:"rel_tolerance"`
	Safety       float64 `yaml:"safety"`
	MinShrink    float64 `yaml:"min_shrink"`
	MaxGrowth    float64 `yaml:"max_growth"`
	MaxRetries   int     `yaml:"max_retries"`

	T0   float64 `yaml:"t0"`
	TEnd float64 `yaml:"t_end"`

	Eccentricity float64      `yaml:"eccentricity"`
	MaxBounces   int          `yaml:"max_bounces"`
	Events       EventsConfig `yaml:"events"`

	// SampleStep spaces the rows of the exported trajectory.
	SampleStep float64 `yaml:"sample_step"`
}

type EventsConfig struct {
	MaxCheckInterval float64 `yaml:"max_check_interval"`
	Threshold        float64 `yaml:"threshold"`
	MaxIterations    int     `yaml:"max_iterations"`
}

func DefaultConfig() *Config {
	control := integrators.DefaultAdaptiveControl()
	return &Config{
		Problem:      "kepler",
		Scheme:       "dopri54",
		Step:         DefaultStep,
		MinStep:      control.MinStep,
		AbsTolerance: DefaultTolerance,
		RelTolerance: DefaultTolerance,
		Safety:       control.Safety,
		MinShrink:    control.MinShrink,
		MaxGrowth:    control.MaxGrowth,
		MaxRetries:   control.MaxRetries,
		Eccentricity: DefaultEccentricity,
		Events: EventsConfig{
			MaxCheckInterval: DefaultMaxCheck,
			Threshold:        DefaultThreshold,
			MaxIterations:    100,
		},
		SampleStep: DefaultSampleStep,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the fields the selected scheme uses.
func (c *Config) Validate() error {
	scheme, ok := integrators.SchemeByName(c.Scheme)
	if !ok {
		return fmt.Errorf("config: unknown scheme %q", c.Scheme)
	}
	if c.Problem == "" {
		return fmt.Errorf("config: problem is required")
	}
	if c.HasSpan() && c.T0 == c.TEnd {
		return fmt.Errorf("config: t0 and t_end are both %g", c.T0)
	}
	if !finite(c.T0) || !finite(c.TEnd) {
		return fmt.Errorf("config: integration span [%g, %g] must be finite", c.T0, c.TEnd)
	}
	if c.Adaptive(scheme) {
		control := c.Control()
		if err := control.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	} else if !(c.Step > 0) || !finite(c.Step) {
		return fmt.Errorf("config: step must be positive, got %g", c.Step)
	}
	if !(c.Events.MaxCheckInterval > 0) {
		return fmt.Errorf("config: events.max_check_interval must be positive, got %g", c.Events.MaxCheckInterval)
	}
	if !(c.Events.Threshold > 0) || !finite(c.Events.Threshold) {
		return fmt.Errorf("config: events.threshold must be positive, got %g", c.Events.Threshold)
	}
	if c.Events.MaxIterations < 0 {
		return fmt.Errorf("config: events.max_iterations must not be negative, got %d", c.Events.MaxIterations)
	}
	if c.SampleStep < 0 || !finite(c.SampleStep) {
		return fmt.Errorf("config: sample_step must not be negative, got %g", c.SampleStep)
	}
	if c.Eccentricity < 0 || c.Eccentricity >= 1 {
		return fmt.Errorf("config: eccentricity must be in [0, 1), got %g", c.Eccentricity)
	}
	return nil
}

// HasSpan reports whether the config overrides the problem span.
func (c *Config) HasSpan() bool { return c.T0 != 0 || c.TEnd != 0 }

// Adaptive reports whether scheme runs with step size control.
func (c *Config) Adaptive(scheme integrators.Scheme) bool {
	return integrators.HasErrorEstimate(scheme)
}

// Control maps the step size fields to integrator settings. A zero MaxStep
// leaves the step unbounded.
func (c *Config) Control() integrators.AdaptiveControl {
	control := integrators.DefaultAdaptiveControl()
	control.MinStep = c.MinStep
	if c.MaxStep > 0 {
		control.MaxStep = c.MaxStep
	}
	control.AbsTolerance = c.AbsTolerance
	control.RelTolerance = c.RelTolerance
	if c.Safety != 0 {
		control.Safety = c.Safety
	}
	if c.MinShrink != 0 {
		control.MinShrink = c.MinShrink
	}
	if c.MaxGrowth != 0 {
		control.MaxGrowth = c.MaxGrowth
	}
	if c.MaxRetries != 0 {
		control.MaxRetries = c.MaxRetries
	}
	return control
}

// NewStepper builds the stepper the config describes.
func (c *Config) NewStepper(opts ...integrators.Option) (*integrators.Stepper, error) {
	scheme, ok := integrators.SchemeByName(c.Scheme)
	if !ok {
		return nil, fmt.Errorf("config: unknown scheme %q", c.Scheme)
	}
	if c.Events.MaxIterations > 0 {
		opts = append(opts, integrators.WithMaxEventIterations(c.Events.MaxIterations))
	}
	if c.Adaptive(scheme) {
		return integrators.NewAdaptive(scheme, c.Control(), opts...), nil
	}
	return integrators.NewFixedStep(scheme, c.Step, opts...), nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
