package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/odestep/internal/dynamo"
)

const (
	schemeEuler         = "euler"
	schemeMidpoint      = "midpoint"
	schemeClassical     = "rk4"
	schemeDormandPrince = "dopri54"
	schemeDummy         = "dummy"
)

// Scheme is one explicit Runge-Kutta method. The set of schemes is closed:
// they differ in coefficients and dense output, the control loop is shared.
type Scheme interface {
	Name() string
	Order() int
	Stages() int
	coefficients() *tableau
	newInterpolator() interpolator
}

// errorEstimator is implemented by embedded schemes.
type errorEstimator interface {
	estimateError(k []dynamo.State, y0, y1 dynamo.State, h float64, c *AdaptiveControl) float64
}

type derivativeFunc func(t float64, y, yDot dynamo.State) error

// tableau is an explicit Butcher tableau. With fsal set the last stage is
// evaluated at the new state and reused as the first stage of the next step.
type tableau struct {
	c    []float64
	a    [][]float64
	b    []float64
	fsal bool
}

func (tb *tableau) stages() int { return len(tb.c) }

// step fills k[1:] and writes the state after a step of size h into yTmp.
// k[0] must already hold f(t, y).
func (tb *tableau) step(f derivativeFunc, t float64, y dynamo.State, h float64, k []dynamo.State, yTmp dynamo.State) error {
	s := tb.stages()
	explicit := s
	if tb.fsal {
		explicit = s - 1
	}

	for i := 1; i < explicit; i++ {
		copy(yTmp, y)
		for j, aij := range tb.a[i] {
			if aij != 0 {
				floats.AddScaled(yTmp, h*aij, k[j])
			}
		}
		if err := f(t+tb.c[i]*h, yTmp, k[i]); err != nil {
			return err
		}
	}

	copy(yTmp, y)
	for j := 0; j < explicit; j++ {
		if tb.b[j] != 0 {
			floats.AddScaled(yTmp, h*tb.b[j], k[j])
		}
	}

	if tb.fsal {
		return f(t+h, yTmp, k[s-1])
	}
	return nil
}

// HasErrorEstimate reports whether scheme embeds a lower order solution and
// can run under step size control.
func HasErrorEstimate(scheme Scheme) bool {
	_, ok := scheme.(errorEstimator)
	return ok
}

// SchemeNames lists the registered schemes.
func SchemeNames() []string {
	return []string{schemeEuler, schemeMidpoint, schemeClassical, schemeDormandPrince}
}

// SchemeByName returns the scheme registered under name.
func SchemeByName(name string) (Scheme, bool) {
	switch name {
	case schemeEuler:
		return eulerScheme{}, true
	case schemeMidpoint:
		return midpointScheme{}, true
	case schemeClassical:
		return classicalScheme{}, true
	case schemeDormandPrince:
		return dormandPrinceScheme{}, true
	}
	return nil, false
}
