package continuous

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/integrators"
	"github.com/san-kum/odestep/internal/models"
)

func keplerRun(t *testing.T) (*Model, *models.Kepler) {
	t.Helper()
	pb, err := models.NewKepler(0.9)
	require.NoError(t, err)

	s := integrators.NewDormandPrince54(0, pb.FinalTime()-pb.InitialTime(), 1e-8, 1e-8)
	m := New()
	s.SetStepHandler(m)
	_, err = s.Integrate(context.Background(), pb, pb.InitialTime(), pb.InitialState(), pb.FinalTime())
	require.NoError(t, err)
	return m, pb
}

func positionError(y, want dynamo.State) float64 {
	dx, dy := y[0]-want[0], y[1]-want[1]
	return dx*dx + dy*dy
}

func TestModelRandomAccess(t *testing.T) {
	m, pb := keplerRun(t)
	require.Greater(t, m.Len(), 100)
	assert.Equal(t, pb.InitialTime(), m.InitialTime())
	assert.Equal(t, pb.FinalTime(), m.FinalTime())

	rng := rand.New(rand.NewSource(347588535632))
	span := pb.FinalTime() - pb.InitialTime()
	maxError := 0.0
	for i := 0; i < 1000; i++ {
		tq := pb.InitialTime() + rng.Float64()*span
		m.SetInterpolatedTime(tq)
		maxError = math.Max(maxError, positionError(m.InterpolatedState(), pb.TheoreticalState(tq)))
	}
	assert.Less(t, maxError, 1e-9)
}

func TestModelSequentialAccess(t *testing.T) {
	m, pb := keplerRun(t)

	maxError := 0.0
	for i := 0; i <= 2000; i++ {
		tq := pb.InitialTime() + float64(i)*(pb.FinalTime()-pb.InitialTime())/2000
		m.SetInterpolatedTime(tq)
		assert.Equal(t, tq, m.InterpolatedTime())
		maxError = math.Max(maxError, positionError(m.InterpolatedState(), pb.TheoreticalState(tq)))
	}
	assert.Less(t, maxError, 1e-9)

	// walking back must give the same answers
	for i := 2000; i >= 0; i -= 7 {
		tq := pb.InitialTime() + float64(i)*(pb.FinalTime()-pb.InitialTime())/2000
		m.SetInterpolatedTime(tq)
		assert.Less(t, positionError(m.InterpolatedState(), pb.TheoreticalState(tq)), 1e-9)
	}
}

func TestModelBoundaries(t *testing.T) {
	m, pb := keplerRun(t)

	m.SetInterpolatedTime(m.InitialTime())
	assert.Equal(t, pb.InitialState(), m.InterpolatedState())

	for _, tq := range []float64{m.InitialTime() - 0.5, m.FinalTime() + 1} {
		m.SetInterpolatedTime(tq)
		y := m.InterpolatedState()
		require.Len(t, y, 4)
		assert.True(t, y.IsValid(), "extrapolation at %g", tq)
	}
}

func TestModelEmpty(t *testing.T) {
	m := New()
	assert.Zero(t, m.Len())
	assert.True(t, math.IsNaN(m.InitialTime()))
	assert.True(t, math.IsNaN(m.FinalTime()))

	m.SetInterpolatedTime(1)
	assert.Nil(t, m.InterpolatedState())

	_, err := m.Sample([]float64{0})
	assert.Error(t, err)
}

func TestModelJSONRoundTrip(t *testing.T) {
	m, pb := keplerRun(t)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	restored := New()
	require.NoError(t, json.Unmarshal(data, restored))
	assert.Equal(t, m.Len(), restored.Len())
	assert.Equal(t, m.IsForward(), restored.IsForward())

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		tq := pb.InitialTime() + rng.Float64()*(pb.FinalTime()-pb.InitialTime())
		m.SetInterpolatedTime(tq)
		restored.SetInterpolatedTime(tq)
		assert.Equal(t, m.InterpolatedState(), restored.InterpolatedState())
	}
}

func TestModelUnmarshalErrors(t *testing.T) {
	m := New()
	assert.Error(t, m.UnmarshalJSON([]byte(`{"forward":`)))
	assert.Error(t, m.UnmarshalJSON([]byte(`{"forward":true,"steps":[{"scheme":"leapfrog"}]}`)))
}

func integrate(t *testing.T, s *integrators.Stepper, t0, y0, tEnd float64) *Model {
	t.Helper()
	m := New()
	s.SetStepHandler(m)
	decay := dynamo.SystemFunc{Dim: 1, F: func(_ float64, y, yDot dynamo.State) error {
		yDot[0] = -y[0]
		return nil
	}}
	_, err := s.Integrate(context.Background(), decay, t0, dynamo.State{y0}, tEnd)
	require.NoError(t, err)
	return m
}

func TestModelBackward(t *testing.T) {
	m := integrate(t, integrators.NewClassicalRK4(0.01), 1, math.Exp(-1), 0)
	assert.False(t, m.IsForward())
	assert.Equal(t, 1.0, m.InitialTime())
	assert.Equal(t, 0.0, m.FinalTime())

	for _, tq := range []float64{0.95, 0.5, 0.123, 0.75, 0} {
		m.SetInterpolatedTime(tq)
		assert.InDelta(t, math.Exp(-tq), m.InterpolatedState()[0], 1e-9, "t=%g", tq)
	}
}

func TestModelAppend(t *testing.T) {
	first := integrate(t, integrators.NewClassicalRK4(0.01), 0, 1, 1)
	second := integrate(t, integrators.NewClassicalRK4(0.01), 1, math.Exp(-1), 2)
	n1, n2 := first.Len(), second.Len()

	require.NoError(t, first.Append(second))
	assert.Equal(t, n1+n2, first.Len())
	assert.Equal(t, n2, second.Len())
	assert.Equal(t, 2.0, first.FinalTime())

	first.SetInterpolatedTime(1.5)
	assert.InDelta(t, math.Exp(-1.5), first.InterpolatedState()[0], 1e-9)

	empty := New()
	require.NoError(t, empty.Append(second))
	assert.Equal(t, n2, empty.Len())
	require.NoError(t, empty.Append(nil))
}

func TestModelAppendRejectsGaps(t *testing.T) {
	first := integrate(t, integrators.NewClassicalRK4(0.01), 0, 1, 1)

	gap := integrate(t, integrators.NewClassicalRK4(0.01), 1.5, 1, 2)
	assert.True(t, errors.Is(first.Append(gap), dynamo.ErrContinuity))

	backward := integrate(t, integrators.NewClassicalRK4(0.01), 1, 1, 0)
	assert.True(t, errors.Is(first.Append(backward), dynamo.ErrContinuity))

	wide := New()
	s := integrators.NewEuler(0.1)
	s.SetStepHandler(wide)
	plane := dynamo.SystemFunc{Dim: 2, F: func(_ float64, y, yDot dynamo.State) error {
		yDot[0], yDot[1] = y[1], -y[0]
		return nil
	}}
	_, err := s.Integrate(context.Background(), plane, 1, dynamo.State{1, 0}, 2)
	require.NoError(t, err)
	assert.True(t, errors.Is(first.Append(wide), dynamo.ErrDimensionMismatch))
}

func TestModelHandleStepContinuity(t *testing.T) {
	m := integrate(t, integrators.NewEuler(0.25), 0, 1, 1)

	other := New()
	s := integrators.NewEuler(0.25)
	s.SetStepHandler(other)
	decay := dynamo.SystemFunc{Dim: 1, F: func(_ float64, y, yDot dynamo.State) error {
		yDot[0] = -y[0]
		return nil
	}}
	_, err := s.Integrate(context.Background(), decay, 3, dynamo.State{1}, 4)
	require.NoError(t, err)

	err = m.HandleStep(other.steps[1], false)
	assert.True(t, errors.Is(err, dynamo.ErrContinuity))

	m.Reset()
	assert.Zero(t, m.Len())
	require.NoError(t, m.HandleStep(other.steps[0], false))
	assert.Equal(t, 1, m.Len())
}
