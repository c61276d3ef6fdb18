package models

import (
	"fmt"
	"math"

	"github.com/san-kum/odestep/internal/dynamo"
)

// Kepler is the two-body problem in reduced units, starting at the
// periapsis of an orbit of semi-major axis 1. The period is 2π.
// State is (x, y, vx, vy).
type Kepler struct {
	E        float64
	T0, TEnd float64
}

func NewKepler(eccentricity float64) (*Kepler, error) {
	if eccentricity < 0 || eccentricity >= 1 || math.IsNaN(eccentricity) {
		return nil, fmt.Errorf("models: eccentricity must be in [0, 1), got %g", eccentricity)
	}
	return &Kepler{E: eccentricity, T0: 0, TEnd: 20}, nil
}

func (k *Kepler) Name() string             { return "kepler" }
func (k *Kepler) Dimension() int           { return 4 }
func (k *Kepler) InitialTime() float64     { return k.T0 }
func (k *Kepler) FinalTime() float64       { return k.TEnd }
func (k *Kepler) ErrorScale() dynamo.State { return ones(4) }

func (k *Kepler) InitialState() dynamo.State {
	return dynamo.State{1 - k.E, 0, 0, math.Sqrt((1 + k.E) / (1 - k.E))}
}

func (k *Kepler) ComputeDerivatives(t float64, y, yDot dynamo.State) error {
	r2 := y[0]*y[0] + y[1]*y[1]
	if r2 == 0 {
		return fmt.Errorf("models: collision at t=%g", t)
	}
	invR3 := 1 / (r2 * math.Sqrt(r2))
	yDot[0] = y[2]
	yDot[1] = y[3]
	yDot[2] = -invR3 * y[0]
	yDot[3] = -invR3 * y[1]
	return nil
}

// TheoreticalState solves Kepler's equation E - e sin E = t - t0 with a
// Halley iteration.
func (k *Kepler) TheoreticalState(t float64) dynamo.State {
	m := t - k.T0
	e := k.E
	ea, d := m, 0.0
	corr := math.Inf(1)
	for i := 0; i < 50 && math.Abs(corr) > 1e-12; i++ {
		f2 := e * math.Sin(ea)
		f0 := d - f2
		f1 := 1 - e*math.Cos(ea)
		f12 := f1 + f1
		corr = f0 * f12 / (f1*f12 - f0*f2)
		d -= corr
		ea = m + d
	}

	sinE, cosE := math.Sincos(ea)
	b := math.Sqrt(1 - e*e)
	den := 1 - e*cosE
	return dynamo.State{
		cosE - e,
		b * sinE,
		-sinE / den,
		b * cosE / den,
	}
}

func (k *Kepler) Energy(y dynamo.State) float64 {
	return 0.5*(y[2]*y[2]+y[3]*y[3]) - 1/math.Hypot(y[0], y[1])
}
