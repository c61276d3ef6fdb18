package integrators

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/san-kum/odestep/internal/dynamo"
)

// interpolator is the working view the Stepper keeps on a dense output
// implementation. The Stepper owns the buffers behind currentState and
// yDotK and shifts the instance in place from one step to the next.
type interpolator interface {
	dynamo.StepInterpolator
	base() *baseInterpolator
}

// baseInterpolator holds the step data shared by every scheme.
type baseInterpolator struct {
	previousTime     float64
	currentTime      float64
	h                float64
	interpolatedTime float64

	previousState     dynamo.State
	currentState      dynamo.State
	interpolatedState dynamo.State
	yDotK             []dynamo.State
	forward           bool

	dirty      bool
	generation uint64

	// scheme specific vectors derived from yDotK, valid for cacheGen
	cache    []dynamo.State
	cacheGen uint64
}

func (b *baseInterpolator) base() *baseInterpolator { return b }

// reinitialize binds the interpolator to the stepper buffers. y is aliased
// as the step end state and yDotK as the stage derivatives.
func (b *baseInterpolator) reinitialize(y dynamo.State, yDotK []dynamo.State, forward bool) {
	b.previousTime = math.NaN()
	b.currentTime = math.NaN()
	b.h = math.NaN()
	b.interpolatedTime = math.NaN()
	b.currentState = y
	b.previousState = make(dynamo.State, len(y))
	b.interpolatedState = make(dynamo.State, len(y))
	b.yDotK = yDotK
	b.forward = forward
	b.dirty = true
	b.cache = nil
	b.generation++
}

// storeTime sets the end of the step and moves the query cursor there.
func (b *baseInterpolator) storeTime(t float64) {
	b.currentTime = t
	b.h = b.currentTime - b.previousTime
	b.interpolatedTime = t
	b.dirty = true
	b.generation++
}

// shift makes the end of the current step the start of the next one.
func (b *baseInterpolator) shift() {
	b.previousTime = b.currentTime
	copy(b.previousState, b.currentState)
}

func (b *baseInterpolator) PreviousTime() float64     { return b.previousTime }
func (b *baseInterpolator) CurrentTime() float64      { return b.currentTime }
func (b *baseInterpolator) InterpolatedTime() float64 { return b.interpolatedTime }
func (b *baseInterpolator) IsForward() bool           { return b.forward }

func (b *baseInterpolator) SetInterpolatedTime(t float64) {
	b.interpolatedTime = t
	b.dirty = true
}

// state evaluates the dense output at the cursor. Endpoints are copied from
// the stored states so they are reproduced exactly.
func (b *baseInterpolator) state(compute func(theta, oneMinusThetaH float64)) dynamo.State {
	if b.dirty {
		switch {
		case b.interpolatedTime == b.currentTime:
			copy(b.interpolatedState, b.currentState)
		case b.interpolatedTime == b.previousTime:
			copy(b.interpolatedState, b.previousState)
		case b.h == 0 || math.IsNaN(b.h):
			copy(b.interpolatedState, b.currentState)
		default:
			theta := (b.interpolatedTime - b.previousTime) / b.h
			compute(theta, b.currentTime-b.interpolatedTime)
		}
		b.dirty = false
	}
	return b.interpolatedState.Clone()
}

func (b *baseInterpolator) clone() baseInterpolator {
	c := *b
	c.previousState = b.previousState.Clone()
	c.currentState = b.currentState.Clone()
	c.interpolatedState = b.interpolatedState.Clone()
	c.yDotK = cloneStates(b.yDotK)
	c.cache = cloneStates(b.cache)
	return c
}

func cloneStates(src []dynamo.State) []dynamo.State {
	if src == nil {
		return nil
	}
	dst := make([]dynamo.State, len(src))
	for i, s := range src {
		dst[i] = s.Clone()
	}
	return dst
}

// snapshot is the persisted form of one frozen interpolator.
type snapshot struct {
	Scheme       string         `json:"scheme"`
	Forward      bool           `json:"forward"`
	PreviousTime float64        `json:"previous_time"`
	CurrentTime  float64        `json:"current_time"`
	Previous     dynamo.State   `json:"previous_state"`
	Current      dynamo.State   `json:"current_state"`
	YDotK        []dynamo.State `json:"ydot_k,omitempty"`
}

func (b *baseInterpolator) marshal(scheme string) ([]byte, error) {
	return json.Marshal(snapshot{
		Scheme:       scheme,
		Forward:      b.forward,
		PreviousTime: b.previousTime,
		CurrentTime:  b.currentTime,
		Previous:     b.previousState,
		Current:      b.currentState,
		YDotK:        b.yDotK,
	})
}

func (b *baseInterpolator) restore(s snapshot, stages int) error {
	n := len(s.Current)
	if len(s.Previous) != n {
		return fmt.Errorf("integrators: %s step has %d previous and %d current components", s.Scheme, len(s.Previous), n)
	}
	if len(s.YDotK) != stages {
		return fmt.Errorf("integrators: %s step has %d stage derivatives, want %d", s.Scheme, len(s.YDotK), stages)
	}
	for i, k := range s.YDotK {
		if len(k) != n {
			return fmt.Errorf("integrators: %s stage %d has %d components, want %d", s.Scheme, i, len(k), n)
		}
	}
	b.forward = s.Forward
	b.previousTime = s.PreviousTime
	b.currentTime = s.CurrentTime
	b.h = s.CurrentTime - s.PreviousTime
	b.interpolatedTime = s.CurrentTime
	b.previousState = s.Previous
	b.currentState = s.Current
	b.interpolatedState = make(dynamo.State, n)
	b.yDotK = s.YDotK
	b.dirty = true
	b.generation++
	return nil
}

// DummyInterpolator only knows the step end state. It is used when neither
// the step handler nor any switching function queries inside steps.
type DummyInterpolator struct {
	baseInterpolator
}

func newDummyInterpolator() *DummyInterpolator { return &DummyInterpolator{} }

func (d *DummyInterpolator) InterpolatedState() dynamo.State {
	return d.state(func(float64, float64) {
		copy(d.interpolatedState, d.currentState)
	})
}

func (d *DummyInterpolator) Copy() dynamo.StepInterpolator {
	return &DummyInterpolator{baseInterpolator: d.clone()}
}

func (d *DummyInterpolator) MarshalJSON() ([]byte, error) {
	c := d.clone()
	c.yDotK = nil
	return c.marshal(schemeDummy)
}

// UnmarshalInterpolator rebuilds a frozen interpolator from its JSON form.
func UnmarshalInterpolator(data []byte) (dynamo.StepInterpolator, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("integrators: decode step: %w", err)
	}

	var interp interpolator
	var stages int
	switch s.Scheme {
	case schemeEuler:
		interp, stages = &EulerInterpolator{}, 1
	case schemeMidpoint:
		interp, stages = &MidpointInterpolator{}, 2
	case schemeClassical:
		interp, stages = &ClassicalInterpolator{}, 4
	case schemeDormandPrince:
		interp, stages = &DormandPrinceInterpolator{}, 7
	case schemeDummy:
		interp, stages = &DummyInterpolator{}, 0
	default:
		return nil, fmt.Errorf("integrators: unknown step scheme %q", s.Scheme)
	}

	if err := interp.base().restore(s, stages); err != nil {
		return nil, err
	}
	return interp, nil
}
