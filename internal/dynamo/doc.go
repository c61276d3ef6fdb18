// Package dynamo provides the core contracts shared by the integration engine.
//
// The package defines the fundamental types for numerical integration of
// first-order ordinary differential equations y' = f(t, y):
//
//   - [State]: vector representing the system state
//   - [System]: interface for derivative systems (the caller-supplied f)
//   - [StepInterpolator]: dense output over one completed step
//   - [StepHandler]: callback invoked once per accepted step
//   - [EventAction]: what an event handler asks the stepper to do next
//
// # Example
//
//	stepper := integrators.NewClassicalRK4(0.01)
//	output := continuous.New()
//	stepper.SetStepHandler(output)
//	yEnd, err := stepper.Integrate(ctx, models.NewDecay(), 0, y0, 4)
//
// # Errors
//
// Every failure surfaced by the engine wraps one of the sentinel errors in
// errors.go and can be tested with [errors.Is].
//
// # Thread Safety
//
// Nothing in this package holds state. Implementations built on these
// contracts (steppers, interpolators, accumulators) are NOT thread-safe.
package dynamo
