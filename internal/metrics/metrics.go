package metrics

import "github.com/san-kum/odestep/internal/dynamo"

// Metric is a step handler reducing a trajectory to one number.
type Metric interface {
	dynamo.StepHandler
	Name() string
	Value() float64
}

// Reference is a problem whose exact solution is known.
type Reference interface {
	TheoreticalState(t float64) dynamo.State
	ErrorScale() dynamo.State
}
