package dynamo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

type State []float64

func (s State) Clone() State {
	if s == nil {
		return nil
	}
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	if len(s) == 0 {
		return 0
	}
	return floats.Norm(s, 2)
}

// MaxAbsDiff returns the largest componentwise difference between s and other.
// States of different lengths are infinitely far apart.
func (s State) MaxAbsDiff(other State) float64 {
	if len(s) != len(other) {
		return math.Inf(1)
	}
	if len(s) == 0 {
		return 0
	}
	return floats.Distance(s, other, math.Inf(1))
}

// System is a first-order differential equation y' = f(t, y) of fixed dimension.
// ComputeDerivatives writes f(t, y) into yDot and must not retain y or yDot.
type System interface {
	Dimension() int
	ComputeDerivatives(t float64, y, yDot State) error
}

// SystemFunc adapts a plain function to the System interface.
type SystemFunc struct {
	Dim int
	F   func(t float64, y, yDot State) error
}

func (f SystemFunc) Dimension() int { return f.Dim }

func (f SystemFunc) ComputeDerivatives(t float64, y, yDot State) error {
	return f.F(t, y, yDot)
}

// StepInterpolator gives dense output over one step [PreviousTime, CurrentTime].
//
// SetInterpolatedTime moves the query cursor; InterpolatedState returns a new
// slice holding the state at the cursor. Querying exactly PreviousTime or
// CurrentTime returns the stored endpoint states unchanged. Copy returns an
// independent snapshot which is unaffected by later changes to the receiver.
type StepInterpolator interface {
	PreviousTime() float64
	CurrentTime() float64
	InterpolatedTime() float64
	SetInterpolatedTime(t float64)
	InterpolatedState() State
	IsForward() bool
	Copy() StepInterpolator
}

// StepHandler is called once per accepted step, in step order.
type StepHandler interface {
	// RequiresDenseOutput reports whether the handler queries times inside steps.
	RequiresDenseOutput() bool
	// Reset is called before the first step of every integration.
	Reset()
	// HandleStep receives the working interpolator of the step just accepted.
	// It must call Copy to keep the interpolator past the call.
	HandleStep(interp StepInterpolator, isLast bool) error
}

// EventAction tells the stepper how to continue after an event.
type EventAction int

const (
	Stop EventAction = iota
	Continue
	ResetState
)

func (a EventAction) String() string {
	switch a {
	case Stop:
		return "stop"
	case Continue:
		return "continue"
	case ResetState:
		return "reset_state"
	default:
		return fmt.Sprintf("EventAction(%d)", int(a))
	}
}

func (a EventAction) MarshalText() ([]byte, error) {
	switch a {
	case Stop, Continue, ResetState:
		return []byte(a.String()), nil
	}
	return nil, fmt.Errorf("dynamo: unknown event action %d", int(a))
}

func (a *EventAction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "stop":
		*a = Stop
	case "continue":
		*a = Continue
	case "reset_state":
		*a = ResetState
	default:
		return fmt.Errorf("dynamo: unknown event action %q", text)
	}
	return nil
}

// Stats counts the work performed by one integration.
type Stats struct {
	Steps       int     `json:"steps"`
	Rejected    int     `json:"rejected"`
	Evaluations int     `json:"evaluations"`
	Events      int     `json:"events"`
	LastStep    float64 `json:"last_step"`
}
