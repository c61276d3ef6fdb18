package integrators

import (
	"fmt"
	"math"
)

// AdaptiveControl holds the step size control parameters of embedded
// schemes.
type AdaptiveControl struct {
	MinStep      float64
	MaxStep      float64
	AbsTolerance float64
	RelTolerance float64

	Safety    float64
	MinShrink float64
	MaxGrowth float64
	// MaxRetries bounds the rejections of a single step.
	MaxRetries int
	// InitialStep is estimated from the problem when zero.
	InitialStep float64
}

func DefaultAdaptiveControl() AdaptiveControl {
	return AdaptiveControl{
		MinStep:      0,
		MaxStep:      math.Inf(1),
		AbsTolerance: 1e-6,
		RelTolerance: 1e-6,
		Safety:       0.9,
		MinShrink:    0.2,
		MaxGrowth:    10.0,
		MaxRetries:   50,
	}
}

// Validate checks that the parameters describe a usable controller.
func (c *AdaptiveControl) Validate() error {
	if c.MinStep < 0 || math.IsNaN(c.MinStep) {
		return fmt.Errorf("integrators: min step must be non-negative, got %g", c.MinStep)
	}
	if !(c.MaxStep > 0) {
		return fmt.Errorf("integrators: max step must be positive, got %g", c.MaxStep)
	}
	if c.MinStep > c.MaxStep {
		return fmt.Errorf("integrators: min step %g exceeds max step %g", c.MinStep, c.MaxStep)
	}
	if !(c.AbsTolerance > 0) {
		return fmt.Errorf("integrators: absolute tolerance must be positive, got %g", c.AbsTolerance)
	}
	if c.RelTolerance < 0 || math.IsNaN(c.RelTolerance) {
		return fmt.Errorf("integrators: relative tolerance must be non-negative, got %g", c.RelTolerance)
	}
	if !(c.Safety > 0 && c.Safety <= 1) {
		return fmt.Errorf("integrators: safety factor must be in (0, 1], got %g", c.Safety)
	}
	if !(c.MinShrink > 0 && c.MinShrink < 1) {
		return fmt.Errorf("integrators: min shrink must be in (0, 1), got %g", c.MinShrink)
	}
	if !(c.MaxGrowth > 1) {
		return fmt.Errorf("integrators: max growth must exceed 1, got %g", c.MaxGrowth)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("integrators: max retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.InitialStep < 0 || math.IsNaN(c.InitialStep) {
		return fmt.Errorf("integrators: initial step must be non-negative, got %g", c.InitialStep)
	}
	return nil
}

func (c *AdaptiveControl) tolerance(scale float64) float64 {
	return c.AbsTolerance + c.RelTolerance*scale
}

// factor is the step size ratio suggested by a normalized error.
func (c *AdaptiveControl) factor(err float64, order int) float64 {
	if err == 0 {
		return c.MaxGrowth
	}
	f := c.Safety * math.Pow(err, -1.0/float64(order))
	return math.Min(c.MaxGrowth, math.Max(c.MinShrink, f))
}

// filter clamps the magnitude of h to [MinStep, MaxStep] keeping its sign.
// clamped reports whether h was raised to MinStep.
func (c *AdaptiveControl) filter(h float64) (filtered float64, clamped bool) {
	abs := math.Abs(h)
	sign := math.Copysign(1, h)
	if abs < c.MinStep {
		return sign * c.MinStep, true
	}
	if abs > c.MaxStep {
		return sign * c.MaxStep, false
	}
	return h, false
}
