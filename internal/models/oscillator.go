package models

import (
	"math"

	"github.com/san-kum/odestep/internal/dynamo"
)

// Oscillator is the undamped harmonic oscillator x'' = -ω²x with state (x, v).
type Oscillator struct {
	Omega    float64
	X0, V0   float64
	T0, TEnd float64
}

func NewOscillator() *Oscillator {
	return &Oscillator{Omega: 1.0, X0: 1.0, V0: 0.0, T0: 0, TEnd: 4 * math.Pi}
}

func (o *Oscillator) Name() string               { return "oscillator" }
func (o *Oscillator) Dimension() int             { return 2 }
func (o *Oscillator) InitialTime() float64       { return o.T0 }
func (o *Oscillator) FinalTime() float64         { return o.TEnd }
func (o *Oscillator) InitialState() dynamo.State { return dynamo.State{o.X0, o.V0} }
func (o *Oscillator) ErrorScale() dynamo.State   { return dynamo.State{1, 1 / o.Omega} }

func (o *Oscillator) ComputeDerivatives(t float64, y, yDot dynamo.State) error {
	yDot[0] = y[1]
	yDot[1] = -o.Omega * o.Omega * y[0]
	return nil
}

func (o *Oscillator) TheoreticalState(t float64) dynamo.State {
	s, c := math.Sincos(o.Omega * (t - o.T0))
	return dynamo.State{
		o.X0*c + o.V0/o.Omega*s,
		-o.X0*o.Omega*s + o.V0*c,
	}
}

func (o *Oscillator) Energy(y dynamo.State) float64 {
	return 0.5 * (y[1]*y[1] + o.Omega*o.Omega*y[0]*y[0])
}
