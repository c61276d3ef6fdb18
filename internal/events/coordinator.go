package events

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/odestep/internal/dynamo"
)

// DefaultMaxIterations bounds the bracket refinement of one root.
const DefaultMaxIterations = 100

// SwitchingFunction is a scalar observable g(t, y) whose sign changes mark
// discrete events along the trajectory.
type SwitchingFunction interface {
	G(t float64, y dynamo.State) (float64, error)
	// EventOccurred is called once per located root with a copy of the state.
	// increasing reports whether g goes from negative to positive in time.
	EventOccurred(t float64, y dynamo.State, increasing bool) dynamo.EventAction
	// ResetState may modify y in place when EventOccurred asked for it.
	ResetState(t float64, y dynamo.State) error
}

// Initializer is implemented by switching functions holding state of their
// own. Init is called at the start of every integration, before the first
// evaluation of G.
type Initializer interface {
	Init(t0 float64, y0 dynamo.State)
}

// Func builds a SwitchingFunction from plain functions. A nil OnEvent stops
// the integration, a nil Reset leaves the state untouched.
type Func struct {
	GFunc   func(t float64, y dynamo.State) (float64, error)
	OnEvent func(t float64, y dynamo.State, increasing bool) dynamo.EventAction
	Reset   func(t float64, y dynamo.State) error
}

func (f Func) G(t float64, y dynamo.State) (float64, error) { return f.GFunc(t, y) }

func (f Func) EventOccurred(t float64, y dynamo.State, increasing bool) dynamo.EventAction {
	if f.OnEvent == nil {
		return dynamo.Stop
	}
	return f.OnEvent(t, y, increasing)
}

func (f Func) ResetState(t float64, y dynamo.State) error {
	if f.Reset == nil {
		return nil
	}
	return f.Reset(t, y)
}

// Occurrence records one fired event.
type Occurrence struct {
	Index      int                `json:"index"`
	Time       float64            `json:"time"`
	Increasing bool               `json:"increasing"`
	Action     dynamo.EventAction `json:"action"`
}

// switchState tracks one registered function between steps.
type switchState struct {
	fn            SwitchingFunction
	index         int
	maxCheck      float64
	threshold     float64
	maxIterations int

	t0         float64
	g0         float64
	g0Positive bool

	pendingEvent      bool
	pendingEventTime  float64
	previousEventTime float64
	increasing        bool
	nextAction        dynamo.EventAction
}

// Coordinator watches every registered switching function during an
// integration. It only reads states through the step interpolator, so
// locating a root costs no derivative evaluations.
type Coordinator struct {
	states        []*switchState
	maxIterations int

	first    *switchState
	fired    []Occurrence
	stop     bool
	needsSet bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{maxIterations: DefaultMaxIterations}
}

// SetMaxIterations changes the refinement cap for functions added later.
func (c *Coordinator) SetMaxIterations(n int) {
	if n > 0 {
		c.maxIterations = n
	}
}

// Add registers fn. maxCheckInterval is the largest gap between two samples
// of g, +Inf samples once per step. threshold is the accepted width of the
// final root bracket.
func (c *Coordinator) Add(fn SwitchingFunction, maxCheckInterval, threshold float64) error {
	if fn == nil {
		return errors.New("events: nil switching function")
	}
	if !(maxCheckInterval > 0) {
		return fmt.Errorf("events: max check interval must be positive, got %g", maxCheckInterval)
	}
	if !(threshold > 0) || math.IsInf(threshold, 0) {
		return fmt.Errorf("events: convergence threshold must be positive and finite, got %g", threshold)
	}
	c.states = append(c.states, &switchState{
		fn:            fn,
		index:         len(c.states),
		maxCheck:      maxCheckInterval,
		threshold:     threshold,
		maxIterations: c.maxIterations,
	})
	return nil
}

func (c *Coordinator) Clear() {
	c.states = nil
	c.first = nil
	c.fired = nil
}

func (c *Coordinator) Len() int      { return len(c.states) }
func (c *Coordinator) IsEmpty() bool { return len(c.states) == 0 }
func (c *Coordinator) Stopped() bool { return c.stop }

func (c *Coordinator) Fired() []Occurrence {
	out := make([]Occurrence, len(c.fired))
	copy(out, c.fired)
	return out
}

// Functions returns the registered switching functions in registration order.
func (c *Coordinator) Functions() []SwitchingFunction {
	out := make([]SwitchingFunction, len(c.states))
	for i, s := range c.states {
		out[i] = s.fn
	}
	return out
}

// Init evaluates every function at the start of an integration, after
// resetting those implementing Initializer.
func (c *Coordinator) Init(t0 float64, y0 dynamo.State) error {
	c.first = nil
	c.fired = c.fired[:0]
	c.stop = false
	c.needsSet = false
	for _, s := range c.states {
		s.pendingEvent = false
		s.pendingEventTime = math.NaN()
		s.previousEventTime = math.NaN()
		s.nextAction = dynamo.Continue
		if in, ok := s.fn.(Initializer); ok {
			in.Init(t0, y0.Clone())
		}
		if err := s.reinit(t0, y0); err != nil {
			return err
		}
	}
	return nil
}

// EvaluateStep checks the step held by interp. It reports true when an
// event lies inside the step, in which case the step has to be truncated at
// EventTime. Ties between functions go to the earliest registered one.
func (c *Coordinator) EvaluateStep(interp dynamo.StepInterpolator) (bool, error) {
	c.first = nil
	forward := interp.IsForward()
	for _, s := range c.states {
		found, err := s.evaluateStep(interp)
		if err != nil {
			return false, err
		}
		if !found {
			continue
		}
		if c.first == nil {
			c.first = s
			continue
		}
		if forward {
			if s.pendingEventTime < c.first.pendingEventTime {
				c.first = s
			}
		} else if s.pendingEventTime > c.first.pendingEventTime {
			c.first = s
		}
	}
	return c.first != nil, nil
}

// EventTime is the time of the earliest event found by the last EvaluateStep.
func (c *Coordinator) EventTime() float64 {
	if c.first == nil {
		return math.NaN()
	}
	return c.first.pendingEventTime
}

// StepAccepted fires the events pending at t, the end of the accepted step.
// Handlers receive copies of y.
func (c *Coordinator) StepAccepted(t float64, y dynamo.State, forward bool) error {
	for _, s := range c.states {
		occurred, err := s.stepAccepted(t, y, forward)
		if err != nil {
			return err
		}
		if !occurred {
			continue
		}
		c.fired = append(c.fired, Occurrence{
			Index:      s.index,
			Time:       t,
			Increasing: s.increasing == forward,
			Action:     s.nextAction,
		})
		switch s.nextAction {
		case dynamo.Stop:
			c.stop = true
		case dynamo.ResetState:
			c.needsSet = true
		}
	}
	return nil
}

// Reset applies the state resets requested at t. It reports whether y was
// handed to a ResetState call; in that case every function is re-evaluated
// at the new state.
func (c *Coordinator) Reset(t float64, y dynamo.State) (bool, error) {
	if !c.needsSet {
		return false, nil
	}
	c.needsSet = false
	for _, s := range c.states {
		if s.nextAction != dynamo.ResetState {
			continue
		}
		s.nextAction = dynamo.Continue
		if err := s.fn.ResetState(t, y); err != nil {
			return true, fmt.Errorf("events: reset state of switching function %d: %w", s.index, err)
		}
	}
	for _, s := range c.states {
		if err := s.reinit(t, y); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (s *switchState) g(t float64, y dynamo.State) (float64, error) {
	v, err := s.fn.G(t, y)
	if err != nil {
		if errors.Is(err, dynamo.ErrEventLocalization) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: switching function %d at t=%g: %w", dynamo.ErrEventLocalization, s.index, t, err)
	}
	return v, nil
}

func (s *switchState) reinit(t float64, y dynamo.State) error {
	g0, err := s.g(t, y)
	if err != nil {
		return err
	}
	s.t0 = t
	s.g0 = g0
	s.g0Positive = g0 >= 0
	return nil
}

func (s *switchState) evaluateStep(interp dynamo.StepInterpolator) (bool, error) {
	t1 := interp.CurrentTime()
	dt := t1 - s.t0
	if math.Abs(dt) < s.threshold {
		// too small to hold a root distinct from the step start
		return false, nil
	}

	n := int(math.Max(1, math.Ceil(math.Abs(dt)/s.maxCheck)))
	h := dt / float64(n)

	ta, ga := s.t0, s.g0
	for i := 0; i < n; i++ {
		tb := s.t0 + float64(i+1)*h
		if i == n-1 {
			tb = t1
		}
		interp.SetInterpolatedTime(tb)
		gb, err := s.g(tb, interp.InterpolatedState())
		if err != nil {
			return false, err
		}

		if s.g0Positive == (gb >= 0) {
			ta, ga = tb, gb
			continue
		}

		s.increasing = gb >= ga
		root, err := s.refine(interp, ta, ga, tb, gb)
		if err != nil {
			return false, err
		}

		if !math.IsNaN(s.previousEventTime) && math.Abs(root-s.previousEventTime) <= s.threshold {
			// the event handled at the end of the previous step
			ta, ga = tb, gb
			continue
		}

		if s.pendingEvent && math.Abs(t1-root) <= s.threshold {
			// this step already ends at the root found for a longer one
			s.pendingEventTime = root
			return false, nil
		}
		s.pendingEvent = true
		s.pendingEventTime = root
		return true, nil
	}

	s.pendingEvent = false
	s.pendingEventTime = math.NaN()
	return false, nil
}

// refine shrinks [ta, tb] around the sign change, alternating bisection and
// regula falsi. ta keeps the sign of g at the step start.
func (s *switchState) refine(interp dynamo.StepInterpolator, ta, ga, tb, gb float64) (float64, error) {
	for i := 0; i < s.maxIterations; i++ {
		if math.Abs(tb-ta) <= s.threshold {
			return tb, nil
		}

		tm := ta + 0.5*(tb-ta)
		if i%2 == 1 && gb != ga {
			if rf := ta - ga*(tb-ta)/(gb-ga); rf > math.Min(ta, tb) && rf < math.Max(ta, tb) {
				tm = rf
			}
		}
		if tm == ta || tm == tb {
			return 0, fmt.Errorf("events: switching function %d bracket [%g, %g] cannot shrink below %g: %w",
				s.index, ta, tb, s.threshold, dynamo.ErrEventLocalization)
		}

		interp.SetInterpolatedTime(tm)
		gm, err := s.g(tm, interp.InterpolatedState())
		if err != nil {
			return 0, err
		}
		if s.g0Positive == (gm >= 0) {
			ta, ga = tm, gm
		} else {
			tb, gb = tm, gm
		}
	}
	if math.Abs(tb-ta) <= s.threshold {
		return tb, nil
	}
	return 0, fmt.Errorf("events: switching function %d not localized after %d iterations: %w",
		s.index, s.maxIterations, dynamo.ErrEventLocalization)
}

func (s *switchState) stepAccepted(t float64, y dynamo.State, forward bool) (bool, error) {
	g0, err := s.g(t, y)
	if err != nil {
		return false, err
	}
	s.t0 = t
	s.g0 = g0

	if s.pendingEvent && math.Abs(s.pendingEventTime-t) <= s.threshold {
		s.previousEventTime = t
		s.g0Positive = s.increasing
		s.nextAction = s.fn.EventOccurred(t, y.Clone(), s.increasing == forward)
		s.pendingEvent = false
		s.pendingEventTime = math.NaN()
		return true, nil
	}

	s.g0Positive = g0 >= 0
	s.nextAction = dynamo.Continue
	return false, nil
}
