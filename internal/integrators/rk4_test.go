package integrators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/models"
)

func TestRK4Accuracy(t *testing.T) {
	osc := models.NewOscillator()
	osc.TEnd = 1.0

	s := NewClassicalRK4(0.01)
	rec := &recorder{}
	s.SetStepHandler(rec)
	final, err := s.Integrate(t.Context(), osc, 0, osc.InitialState(), osc.TEnd)
	require.NoError(t, err)

	expectedX := math.Cos(1.0)
	expectedV := -math.Sin(1.0)

	if math.Abs(final[0]-expectedX) > 1e-8 {
		t.Errorf("position error too large: got %.10f, expected %.10f", final[0], expectedX)
	}
	if math.Abs(final[1]-expectedV) > 1e-8 {
		t.Errorf("velocity error too large: got %.10f, expected %.10f", final[1], expectedV)
	}
	assert.Len(t, rec.steps, 100)
}

func TestRK4SmallStep(t *testing.T) {
	pb := models.NewDecay()
	step := (pb.FinalTime() - pb.InitialTime()) * 0.001

	tracker := track(t, NewClassicalRK4(step), pb)

	assert.Less(t, tracker.LastError(), 2e-13)
	assert.Less(t, tracker.MaxError(), 4e-12)
}

func TestRK4BigStep(t *testing.T) {
	pb := models.NewDecay()
	step := (pb.FinalTime() - pb.InitialTime()) * 0.2

	tracker := track(t, NewClassicalRK4(step), pb)

	assert.Greater(t, tracker.LastError(), 4e-4)
	assert.Greater(t, tracker.MaxError(), 0.005)
}

// keplerHandler keeps the largest squared position error at step ends.
type keplerHandler struct {
	pb       *models.Kepler
	maxError float64
	done     bool
}

func (k *keplerHandler) RequiresDenseOutput() bool { return false }
func (k *keplerHandler) Reset()                    { k.maxError = 0 }

func (k *keplerHandler) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	y := interp.InterpolatedState()
	exact := k.pb.TheoreticalState(interp.CurrentTime())
	dx, dy := y[0]-exact[0], y[1]-exact[1]
	k.maxError = math.Max(k.maxError, dx*dx+dy*dy)
	k.done = isLast
	return nil
}

func TestRK4Kepler(t *testing.T) {
	pb, err := models.NewKepler(0.9)
	require.NoError(t, err)
	step := (pb.FinalTime() - pb.InitialTime()) * 0.0003

	h := &keplerHandler{pb: pb}
	s := NewClassicalRK4(step)
	s.SetStepHandler(h)
	_, err = s.Integrate(t.Context(), pb, pb.InitialTime(), pb.InitialState(), pb.FinalTime())
	require.NoError(t, err)

	require.True(t, h.done)
	// even with over 1000 steps per period such an eccentric orbit is
	// out of reach of a fixed step
	assert.Greater(t, h.maxError, 0.005)
}

func TestRK4Evaluations(t *testing.T) {
	pb := &counting{System: models.NewDecay()}
	s := NewClassicalRK4(0.4)

	_, err := s.Integrate(t.Context(), pb, 0, dynamo.State{1, 0.1}, 4)
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, 10, stats.Steps)
	assert.Equal(t, 0, stats.Rejected)
	// three new stages per step, one start derivative per step but the last
	assert.Equal(t, 1+3*10+9, stats.Evaluations)
	assert.Equal(t, pb.calls, stats.Evaluations)
}
