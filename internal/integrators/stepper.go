package integrators

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/events"
)

// maxTruncations bounds how often one step may be cut back to an event.
const maxTruncations = 100

type Option func(*Stepper)

func WithLogger(l *slog.Logger) Option {
	return func(s *Stepper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxEventIterations caps the refinement of every event root.
func WithMaxEventIterations(n int) Option {
	return func(s *Stepper) { s.events.SetMaxIterations(n) }
}

// Stepper drives one Runge-Kutta scheme over an interval, feeding accepted
// steps to a StepHandler and truncating steps at switching function roots.
// A Stepper keeps working buffers between calls and must not be shared by
// concurrent integrations.
type Stepper struct {
	scheme   Scheme
	step     float64
	adaptive bool
	control  AdaptiveControl

	handler dynamo.StepHandler
	events  *events.Coordinator
	logger  *slog.Logger
	stats   dynamo.Stats
}

func newStepper(scheme Scheme, opts []Option) *Stepper {
	s := &Stepper{
		scheme:  scheme,
		handler: noopHandler{},
		events:  events.NewCoordinator(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFixedStep returns a stepper advancing by step in the direction of
// integration. The last step is shortened to land on the target time.
func NewFixedStep(scheme Scheme, step float64, opts ...Option) *Stepper {
	s := newStepper(scheme, opts)
	s.step = math.Abs(step)
	return s
}

// NewAdaptive returns a stepper adjusting its step to the error estimate of
// an embedded scheme.
func NewAdaptive(scheme Scheme, control AdaptiveControl, opts ...Option) *Stepper {
	s := newStepper(scheme, opts)
	s.adaptive = true
	s.control = control
	return s
}

func (s *Stepper) Name() string             { return s.scheme.Name() }
func (s *Stepper) Scheme() Scheme           { return s.scheme }
func (s *Stepper) Adaptive() bool           { return s.adaptive }
func (s *Stepper) Control() AdaptiveControl { return s.control }
func (s *Stepper) Stats() dynamo.Stats      { return s.stats }

func (s *Stepper) StepHandler() dynamo.StepHandler {
	if _, ok := s.handler.(noopHandler); ok {
		return nil
	}
	return s.handler
}

// SetStepHandler installs h. A nil handler discards steps.
func (s *Stepper) SetStepHandler(h dynamo.StepHandler) {
	if h == nil {
		s.handler = noopHandler{}
		return
	}
	s.handler = h
}

func (s *Stepper) AddSwitchingFunction(fn events.SwitchingFunction, maxCheckInterval, threshold float64) error {
	return s.events.Add(fn, maxCheckInterval, threshold)
}

func (s *Stepper) ClearSwitchingFunctions() { s.events.Clear() }

func (s *Stepper) SwitchingFunctions() []events.SwitchingFunction { return s.events.Functions() }

// Events lists the events fired by the last integration.
func (s *Stepper) Events() []events.Occurrence { return s.events.Fired() }

// Integrate advances y0 from t0 to tEnd and returns the final state, which
// is the state at the event time when a switching function stops the
// integration. y0 is not modified.
func (s *Stepper) Integrate(ctx context.Context, sys dynamo.System, t0 float64, y0 dynamo.State, tEnd float64) (dynamo.State, error) {
	if err := s.sanityChecks(sys, t0, y0, tEnd); err != nil {
		return nil, err
	}
	s.stats = dynamo.Stats{}

	forward := tEnd > t0
	y := y0.Clone()
	yTmp := y0.Clone()
	tb := s.scheme.coefficients()
	k := make([]dynamo.State, tb.stages())
	for i := range k {
		k[i] = make(dynamo.State, len(y0))
	}

	var interp interpolator
	if s.handler.RequiresDenseOutput() || !s.events.IsEmpty() {
		interp = s.scheme.newInterpolator()
	} else {
		interp = newDummyInterpolator()
	}
	b := interp.base()
	b.reinitialize(yTmp, k, forward)
	b.storeTime(t0)

	s.handler.Reset()
	f := s.derivatives(sys)
	if err := s.events.Init(t0, y); err != nil {
		return nil, dynamo.NewIntegrationError(dynamo.ErrEventLocalization, 0, t0, err)
	}
	if err := f(t0, y, k[0]); err != nil {
		return nil, err
	}

	var h float64
	if s.adaptive {
		h = s.control.InitialStep
		if h == 0 {
			var err error
			if h, err = s.initialStep(f, t0, y, k[0], forward); err != nil {
				return nil, err
			}
		}
		h, _ = s.control.filter(math.Copysign(h, tEnd-t0))
	} else {
		h = math.Copysign(s.step, tEnd-t0)
	}

	est, _ := s.scheme.(errorEstimator)
	t := t0
	for {
		select {
		case <-ctx.Done():
			return y, ctx.Err()
		default:
		}

		b.shift()
		pinned := math.NaN()
		truncations, retries := 0, 0
		zeroStep := false
		errNorm := 0.0
		var tNext, stepH float64

		for {
			tNext = s.nextTime(t, h, tEnd, forward)
			if !math.IsNaN(pinned) {
				tNext = pinned
			}
			stepH = tNext - t

			if err := tb.step(f, t, y, stepH, k, yTmp); err != nil {
				return nil, err
			}

			if s.adaptive {
				errNorm = est.estimateError(k, y, yTmp, stepH, &s.control)
				if !(errNorm <= 1) {
					s.stats.Rejected++
					retries++
					factor := s.control.MinShrink
					if !math.IsNaN(errNorm) {
						factor = s.control.factor(errNorm, s.scheme.Order())
					}
					next := stepH * factor
					s.logger.Debug("step rejected", "t", t, "h", stepH, "error", errNorm, "next", next)
					if err := s.checkShrink(t, next, retries); err != nil {
						return nil, err
					}
					h = next
					pinned = math.NaN()
					continue
				}
			}

			b.storeTime(tNext)
			if s.events.IsEmpty() {
				break
			}
			found, err := s.events.EvaluateStep(interp)
			if err != nil {
				return nil, dynamo.NewIntegrationError(dynamo.ErrEventLocalization, s.stats.Steps, t, err)
			}
			if !found {
				break
			}

			tEvent := s.events.EventTime()
			truncations++
			if truncations > maxTruncations {
				return nil, dynamo.NewIntegrationError(dynamo.ErrEventLocalization, s.stats.Steps, t,
					fmt.Errorf("step truncated %d times without reaching event at t=%g", maxTruncations, tEvent))
			}
			s.logger.Debug("step truncated at event", "t", t, "h", stepH, "event", tEvent)
			if math.Abs(tEvent-t) <= math.Abs(ulp(t)) {
				// the event sits on the step start, commit a zero length step
				copy(yTmp, y)
				tNext, stepH = t, 0
				b.storeTime(t)
				zeroStep = true
				break
			}
			pinned = tEvent
		}

		t = tNext
		copy(y, yTmp)
		s.stats.Steps++
		s.stats.LastStep = stepH

		if err := s.events.StepAccepted(t, y, forward); err != nil {
			return nil, dynamo.NewIntegrationError(dynamo.ErrEventLocalization, s.stats.Steps, t, err)
		}
		s.stats.Events = len(s.events.Fired())
		stop := s.events.Stopped()
		last := stop || t == tEnd

		interp.SetInterpolatedTime(t)
		if err := s.handler.HandleStep(interp, last); err != nil {
			return nil, fmt.Errorf("integrators: step handler at t=%g: %w", t, err)
		}
		if last {
			return y, nil
		}

		reset, err := s.events.Reset(t, y)
		if err != nil {
			return nil, fmt.Errorf("integrators: at t=%g: %w", t, err)
		}
		switch {
		case reset:
			s.logger.Debug("state reset", "t", t)
			copy(yTmp, y)
			if err := f(t, y, k[0]); err != nil {
				return nil, err
			}
		case zeroStep:
		case tb.fsal:
			copy(k[0], k[len(k)-1])
		default:
			if err := f(t, y, k[0]); err != nil {
				return nil, err
			}
		}

		if !s.adaptive {
			h = math.Copysign(s.step, tEnd-t0)
			continue
		}
		if stepH == 0 {
			continue
		}
		next, clamped := s.control.filter(stepH * s.control.factor(errNorm, s.scheme.Order()))
		if clamped {
			s.logger.Warn("step size clamped to minimum", "t", t, "h", next)
		}
		h = next
	}
}

// nextTime returns the end of a step of size h from t, landing on tEnd when
// the step would reach or nearly reach it.
func (s *Stepper) nextTime(t, h, tEnd float64, forward bool) float64 {
	tNext := t + h
	if (forward && tNext >= tEnd) || (!forward && tNext <= tEnd) {
		return tEnd
	}
	if math.Abs(tEnd-tNext) <= 1e-10*math.Abs(h) {
		return tEnd
	}
	return tNext
}

func (s *Stepper) checkShrink(t, next float64, retries int) error {
	switch {
	case retries > s.control.MaxRetries:
		return dynamo.NewIntegrationError(dynamo.ErrStepSizeUnderflow, s.stats.Steps, t,
			fmt.Errorf("%d rejections in a row", retries))
	case math.Abs(next) < s.control.MinStep:
		return dynamo.NewIntegrationError(dynamo.ErrStepSizeUnderflow, s.stats.Steps, t,
			fmt.Errorf("step %g below minimum %g", math.Abs(next), s.control.MinStep))
	case t+next == t:
		return dynamo.NewIntegrationError(dynamo.ErrStepSizeUnderflow, s.stats.Steps, t,
			fmt.Errorf("step %g vanishes at this time", math.Abs(next)))
	}
	return nil
}

func (s *Stepper) sanityChecks(sys dynamo.System, t0 float64, y0 dynamo.State, tEnd float64) error {
	if sys == nil {
		return fmt.Errorf("integrators: nil system")
	}
	if n := sys.Dimension(); len(y0) != n {
		return fmt.Errorf("integrators: initial state has %d components, system has %d: %w",
			len(y0), n, dynamo.ErrDimensionMismatch)
	}
	if t0 == tEnd {
		return fmt.Errorf("integrators: t0 = tEnd = %g: %w", t0, dynamo.ErrZeroInterval)
	}
	if math.IsNaN(t0) || math.IsNaN(tEnd) || math.IsInf(t0, 0) || math.IsInf(tEnd, 0) {
		return fmt.Errorf("integrators: integration bounds must be finite, got [%g, %g]", t0, tEnd)
	}
	if !y0.IsValid() {
		return fmt.Errorf("integrators: initial state contains NaN or Inf")
	}
	if s.adaptive {
		if _, ok := s.scheme.(errorEstimator); !ok {
			return fmt.Errorf("integrators: scheme %s has no embedded error estimate", s.scheme.Name())
		}
		return s.control.Validate()
	}
	if !(s.step > 0) || math.IsInf(s.step, 0) {
		return fmt.Errorf("integrators: step must be positive and finite, got %g", s.step)
	}
	return nil
}

// derivatives wraps the system so that every evaluation is counted and
// failures carry the integration context.
func (s *Stepper) derivatives(sys dynamo.System) derivativeFunc {
	return func(t float64, y, yDot dynamo.State) error {
		s.stats.Evaluations++
		if err := sys.ComputeDerivatives(t, y, yDot); err != nil {
			return dynamo.NewIntegrationError(dynamo.ErrDerivativeEvaluation, s.stats.Steps, t, err)
		}
		return nil
	}
}

// initialStep guesses a first step size from the derivatives at t0.
func (s *Stepper) initialStep(f derivativeFunc, t0 float64, y0, f0 dynamo.State, forward bool) (float64, error) {
	n := len(y0)
	y1, f1 := make(dynamo.State, n), make(dynamo.State, n)

	dnf, dny := 0.0, 0.0
	for i := range y0 {
		sc := s.control.tolerance(math.Abs(y0[i]))
		dnf += (f0[i] / sc) * (f0[i] / sc)
		dny += (y0[i] / sc) * (y0[i] / sc)
	}

	h := 1e-6
	if math.Min(dnf, dny) >= 1e-10 {
		h = 1e-2 * math.Sqrt(dny/dnf)
	}
	h = math.Min(h, s.control.MaxStep)
	if !forward {
		h = -h
	}

	for i := range y0 {
		y1[i] = y0[i] + h*f0[i]
	}
	if err := f(t0+h, y1, f1); err != nil {
		return 0, err
	}

	der2 := 0.0
	for i := range y0 {
		sc := s.control.tolerance(math.Abs(y0[i]))
		d := (f1[i] - f0[i]) / sc
		der2 += d * d
	}
	der2 = math.Sqrt(der2) / math.Abs(h)
	der12 := math.Max(der2, math.Sqrt(dnf))

	var h1 float64
	if der12 <= 1e-15 {
		h1 = math.Max(1e-6, math.Abs(h)*1e-3)
	} else {
		h1 = math.Pow(1e-2/der12, 1.0/float64(s.scheme.Order()))
	}
	return math.Min(1e2*math.Abs(h), math.Min(h1, s.control.MaxStep)), nil
}

func ulp(t float64) float64 {
	return math.Nextafter(math.Abs(t), math.Inf(1)) - math.Abs(t)
}

type noopHandler struct{}

func (noopHandler) RequiresDenseOutput() bool                      { return false }
func (noopHandler) Reset()                                         {}
func (noopHandler) HandleStep(dynamo.StepInterpolator, bool) error { return nil }
