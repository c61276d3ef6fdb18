package integrators

import "github.com/san-kum/odestep/internal/dynamo"

var classicalTableau = &tableau{
	c: []float64{0, 0.5, 0.5, 1},
	a: [][]float64{
		{},
		{0.5},
		{0, 0.5},
		{0, 0, 1},
	},
	b: []float64{1.0 / 6.0, 1.0 / 3.0, 1.0 / 3.0, 1.0 / 6.0},
}

type classicalScheme struct{}

func (classicalScheme) Name() string                  { return schemeClassical }
func (classicalScheme) Order() int                    { return 4 }
func (classicalScheme) Stages() int                   { return 4 }
func (classicalScheme) coefficients() *tableau        { return classicalTableau }
func (classicalScheme) newInterpolator() interpolator { return &ClassicalInterpolator{} }

// NewClassicalRK4 returns a fixed-step classical Runge-Kutta stepper.
func NewClassicalRK4(step float64, opts ...Option) *Stepper {
	return NewFixedStep(classicalScheme{}, step, opts...)
}

// ClassicalInterpolator is the cubic Hermite-like dense output of the
// classical Runge-Kutta method.
type ClassicalInterpolator struct {
	baseInterpolator
}

func (r *ClassicalInterpolator) InterpolatedState() dynamo.State {
	return r.state(func(theta, oneMinusThetaH float64) {
		fourTheta := 4 * theta
		s := oneMinusThetaH / 6.0
		coeff1 := s * ((-fourTheta+5)*theta - 1)
		coeff23 := s * ((fourTheta-2)*theta - 2)
		coeff4 := s * ((-fourTheta-1)*theta - 1)

		k1, k2, k3, k4 := r.yDotK[0], r.yDotK[1], r.yDotK[2], r.yDotK[3]
		for i := range r.interpolatedState {
			r.interpolatedState[i] = r.currentState[i] + coeff1*k1[i] + coeff23*(k2[i]+k3[i]) + coeff4*k4[i]
		}
	})
}

func (r *ClassicalInterpolator) Copy() dynamo.StepInterpolator {
	return &ClassicalInterpolator{baseInterpolator: r.clone()}
}

func (r *ClassicalInterpolator) MarshalJSON() ([]byte, error) { return r.marshal(schemeClassical) }
