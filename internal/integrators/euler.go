package integrators

import "github.com/san-kum/odestep/internal/dynamo"

var eulerTableau = &tableau{
	c: []float64{0},
	a: [][]float64{{}},
	b: []float64{1},
}

type eulerScheme struct{}

func (eulerScheme) Name() string                  { return schemeEuler }
func (eulerScheme) Order() int                    { return 1 }
func (eulerScheme) Stages() int                   { return 1 }
func (eulerScheme) coefficients() *tableau        { return eulerTableau }
func (eulerScheme) newInterpolator() interpolator { return &EulerInterpolator{} }

// NewEuler returns a fixed-step explicit Euler stepper.
func NewEuler(step float64, opts ...Option) *Stepper {
	return NewFixedStep(eulerScheme{}, step, opts...)
}

// EulerInterpolator is linear between the step ends.
type EulerInterpolator struct {
	baseInterpolator
}

func (e *EulerInterpolator) InterpolatedState() dynamo.State {
	return e.state(func(_, oneMinusThetaH float64) {
		for i := range e.interpolatedState {
			e.interpolatedState[i] = e.currentState[i] - oneMinusThetaH*e.yDotK[0][i]
		}
	})
}

func (e *EulerInterpolator) Copy() dynamo.StepInterpolator {
	return &EulerInterpolator{baseInterpolator: e.clone()}
}

func (e *EulerInterpolator) MarshalJSON() ([]byte, error) { return e.marshal(schemeEuler) }
