package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration operations.
var (
	// ErrDimensionMismatch indicates state arrays whose length differs from the system dimension.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrZeroInterval indicates an integration whose start and target times are equal.
	ErrZeroInterval = errors.New("dynamo: integration interval has zero length")

	// ErrDerivativeEvaluation indicates the derivative system failed to evaluate f(t, y).
	ErrDerivativeEvaluation = errors.New("dynamo: derivative evaluation failed")

	// ErrStepSizeUnderflow indicates adaptive step size control could not meet the tolerance.
	ErrStepSizeUnderflow = errors.New("dynamo: adaptive step size below minimum")

	// ErrEventLocalization indicates a switching function root could not be bracketed to the threshold.
	ErrEventLocalization = errors.New("dynamo: event localization did not converge")

	// ErrContinuity indicates steps that do not join in time or direction.
	ErrContinuity = errors.New("dynamo: continuous output is not contiguous")
)

// IntegrationError wraps an error with integration context.
type IntegrationError struct {
	Kind  error
	Step  int
	Time  float64
	Cause error
}

// NewIntegrationError builds an IntegrationError of the given kind.
func NewIntegrationError(kind error, step int, t float64, cause error) *IntegrationError {
	return &IntegrationError{Kind: kind, Step: step, Time: t, Cause: cause}
}

func (e *IntegrationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("step %d (t=%g): %v", e.Step, e.Time, e.Kind)
	}
	if errors.Is(e.Cause, e.Kind) {
		return fmt.Sprintf("step %d (t=%g): %v", e.Step, e.Time, e.Cause)
	}
	return fmt.Sprintf("step %d (t=%g): %v: %v", e.Step, e.Time, e.Kind, e.Cause)
}

func (e *IntegrationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}
