package integrators

import "github.com/san-kum/odestep/internal/dynamo"

var midpointTableau = &tableau{
	c: []float64{0, 0.5},
	a: [][]float64{{}, {0.5}},
	b: []float64{0, 1},
}

type midpointScheme struct{}

func (midpointScheme) Name() string                  { return schemeMidpoint }
func (midpointScheme) Order() int                    { return 2 }
func (midpointScheme) Stages() int                   { return 2 }
func (midpointScheme) coefficients() *tableau        { return midpointTableau }
func (midpointScheme) newInterpolator() interpolator { return &MidpointInterpolator{} }

// NewMidpoint returns a fixed-step explicit midpoint stepper.
func NewMidpoint(step float64, opts ...Option) *Stepper {
	return NewFixedStep(midpointScheme{}, step, opts...)
}

// MidpointInterpolator is the quadratic
// y(θ) = y0 + θh((1-θ)k1 + θk2), written from the step end.
type MidpointInterpolator struct {
	baseInterpolator
}

func (m *MidpointInterpolator) InterpolatedState() dynamo.State {
	return m.state(func(theta, oneMinusThetaH float64) {
		coeff1 := oneMinusThetaH * theta
		coeff2 := oneMinusThetaH * (1.0 + theta)
		for i := range m.interpolatedState {
			m.interpolatedState[i] = m.currentState[i] + coeff1*m.yDotK[0][i] - coeff2*m.yDotK[1][i]
		}
	})
}

func (m *MidpointInterpolator) Copy() dynamo.StepInterpolator {
	return &MidpointInterpolator{baseInterpolator: m.clone()}
}

func (m *MidpointInterpolator) MarshalJSON() ([]byte, error) { return m.marshal(schemeMidpoint) }
