package models

import (
	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/events"
)

// Problem is a reference system with a known solution.
type Problem interface {
	dynamo.System
	Name() string
	InitialTime() float64
	FinalTime() float64
	InitialState() dynamo.State
	TheoreticalState(t float64) dynamo.State
	// ErrorScale weights the componentwise errors against the solution.
	ErrorScale() dynamo.State
}

// Switched is implemented by problems carrying their own switching functions.
type Switched interface {
	SwitchingFunctions() []events.SwitchingFunction
}

func ones(n int) dynamo.State {
	s := make(dynamo.State, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
