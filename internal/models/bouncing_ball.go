package models

import (
	"math"

	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/events"
)

// BouncingBall falls from Height under Gravity and bounces on the ground,
// losing speed by the Restitution factor at every impact. State is
// (height, velocity). The impacts are handled by a switching function on
// the height.
type BouncingBall struct {
	Gravity     float64
	Restitution float64
	Height      float64
	TEnd        float64
	// MaxBounces stops the integration at that impact when positive.
	MaxBounces int
}

func NewBouncingBall() *BouncingBall {
	return &BouncingBall{Gravity: 9.81, Restitution: 0.8, Height: 10, TEnd: 10}
}

func (b *BouncingBall) Name() string               { return "ball" }
func (b *BouncingBall) Dimension() int             { return 2 }
func (b *BouncingBall) InitialTime() float64       { return 0 }
func (b *BouncingBall) FinalTime() float64         { return b.TEnd }
func (b *BouncingBall) InitialState() dynamo.State { return dynamo.State{b.Height, 0} }
func (b *BouncingBall) ErrorScale() dynamo.State   { return dynamo.State{1, 1 / b.Gravity} }

func (b *BouncingBall) ComputeDerivatives(t float64, y, yDot dynamo.State) error {
	yDot[0] = y[1]
	yDot[1] = -b.Gravity
	return nil
}

// Impacts returns the first n impact times.
func (b *BouncingBall) Impacts(n int) []float64 {
	out := make([]float64, 0, n)
	first := math.Sqrt(2 * b.Height / b.Gravity)
	t, flight := first, 2*first*b.Restitution
	for i := 0; i < n; i++ {
		out = append(out, t)
		t += flight
		flight *= b.Restitution
	}
	return out
}

func (b *BouncingBall) TheoreticalState(t float64) dynamo.State {
	first := math.Sqrt(2 * b.Height / b.Gravity)
	if t <= first {
		return dynamo.State{b.Height - 0.5*b.Gravity*t*t, -b.Gravity * t}
	}
	start, v := first, b.Gravity*first*b.Restitution
	for {
		flight := 2 * v / b.Gravity
		if flight < 1e-12 {
			return dynamo.State{0, 0}
		}
		if t <= start+flight {
			dt := t - start
			return dynamo.State{v*dt - 0.5*b.Gravity*dt*dt, v - b.Gravity*dt}
		}
		start += flight
		v *= b.Restitution
	}
}

func (b *BouncingBall) SwitchingFunctions() []events.SwitchingFunction {
	return []events.SwitchingFunction{&ground{ball: b}}
}

type ground struct {
	ball    *BouncingBall
	bounces int
}

func (g *ground) Init(t0 float64, y0 dynamo.State) { g.bounces = 0 }

func (g *ground) G(t float64, y dynamo.State) (float64, error) { return y[0], nil }

func (g *ground) EventOccurred(t float64, y dynamo.State, increasing bool) dynamo.EventAction {
	if increasing {
		return dynamo.Continue
	}
	g.bounces++
	if g.ball.MaxBounces > 0 && g.bounces >= g.ball.MaxBounces {
		return dynamo.Stop
	}
	return dynamo.ResetState
}

func (g *ground) ResetState(t float64, y dynamo.State) error {
	y[0] = 0
	y[1] = -g.ball.Restitution * y[1]
	return nil
}
