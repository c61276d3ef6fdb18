package handlers

import (
	"fmt"
	"math"

	"github.com/san-kum/odestep/internal/dynamo"
)

// SampleHandler receives the trajectory at regularly spaced times.
type SampleHandler interface {
	HandleSample(t float64, y dynamo.State, isLast bool) error
}

type SampleFunc func(t float64, y dynamo.State, isLast bool) error

func (f SampleFunc) HandleSample(t float64, y dynamo.State, isLast bool) error { return f(t, y, isLast) }

// Normalizer turns the variable steps of an integration into samples spaced
// by a fixed interval, starting at the initial time. The final time is
// always sampled, even off the grid.
type Normalizer struct {
	step    float64
	handler SampleHandler

	t0   float64
	n    int
	last float64
}

func NewNormalizer(step float64, handler SampleHandler) (*Normalizer, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("handlers: sample interval must be positive and finite, got %g", step)
	}
	if handler == nil {
		return nil, fmt.Errorf("handlers: nil sample handler")
	}
	n := &Normalizer{step: step, handler: handler}
	n.Reset()
	return n, nil
}

func (n *Normalizer) RequiresDenseOutput() bool { return true }

func (n *Normalizer) Reset() {
	n.t0 = math.NaN()
	n.last = math.NaN()
	n.n = 0
}

func (n *Normalizer) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	end := interp.CurrentTime()
	dir := 1.0
	if !interp.IsForward() {
		dir = -1
	}

	if math.IsNaN(n.t0) {
		n.t0 = interp.PreviousTime()
		if err := n.emit(interp, n.t0, isLast && n.t0 == end); err != nil {
			return err
		}
	}

	for {
		next := n.t0 + dir*float64(n.n+1)*n.step
		if dir*(next-end) > 0 {
			break
		}
		n.n++
		if err := n.emit(interp, next, isLast && next == end); err != nil {
			return err
		}
	}

	if isLast && n.last != end {
		return n.emit(interp, end, true)
	}
	return nil
}

func (n *Normalizer) emit(interp dynamo.StepInterpolator, t float64, isLast bool) error {
	interp.SetInterpolatedTime(t)
	n.last = t
	return n.handler.HandleSample(t, interp.InterpolatedState(), isLast)
}
