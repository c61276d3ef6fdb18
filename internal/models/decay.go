package models

import (
	"math"

	"github.com/san-kum/odestep/internal/dynamo"
)

// Decay is y' = -y on [0, 4] from y(0) = (1, 0.1).
type Decay struct {
	T0, TEnd float64
	Y0       dynamo.State
}

func NewDecay() *Decay {
	return &Decay{T0: 0, TEnd: 4, Y0: dynamo.State{1.0, 0.1}}
}

func (d *Decay) Name() string               { return "decay" }
func (d *Decay) Dimension() int             { return len(d.Y0) }
func (d *Decay) InitialTime() float64       { return d.T0 }
func (d *Decay) FinalTime() float64         { return d.TEnd }
func (d *Decay) InitialState() dynamo.State { return d.Y0.Clone() }
func (d *Decay) ErrorScale() dynamo.State   { return ones(len(d.Y0)) }

func (d *Decay) ComputeDerivatives(t float64, y, yDot dynamo.State) error {
	for i := range y {
		yDot[i] = -y[i]
	}
	return nil
}

func (d *Decay) TheoreticalState(t float64) dynamo.State {
	c := math.Exp(d.T0 - t)
	y := d.Y0.Clone()
	for i := range y {
		y[i] *= c
	}
	return y
}
