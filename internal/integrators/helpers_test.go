package integrators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/metrics"
	"github.com/san-kum/odestep/internal/models"
)

// track integrates pb with s while an ErrorTracker watches the dense output.
func track(t *testing.T, s *Stepper, pb models.Problem) *metrics.ErrorTracker {
	t.Helper()
	tracker := metrics.NewErrorTracker(pb)
	s.SetStepHandler(tracker)
	_, err := s.Integrate(context.Background(), pb, pb.InitialTime(), pb.InitialState(), pb.FinalTime())
	require.NoError(t, err)
	return tracker
}

// recorder keeps a frozen copy of every step.
type recorder struct {
	dense bool
	steps []dynamo.StepInterpolator
	last  []bool
	kinds []dynamo.StepInterpolator
}

func (r *recorder) RequiresDenseOutput() bool { return r.dense }

func (r *recorder) Reset() {
	r.steps = nil
	r.last = nil
	r.kinds = nil
}

func (r *recorder) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	r.kinds = append(r.kinds, interp)
	r.steps = append(r.steps, interp.Copy())
	r.last = append(r.last, isLast)
	return nil
}

// counting wraps a system and counts derivative evaluations.
type counting struct {
	dynamo.System
	calls int
}

func (c *counting) ComputeDerivatives(t float64, y, yDot dynamo.State) error {
	c.calls++
	return c.System.ComputeDerivatives(t, y, yDot)
}
