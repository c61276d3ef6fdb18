package integrators

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/models"
)

func allSteppers() map[string]func() *Stepper {
	return map[string]func() *Stepper{
		"euler":    func() *Stepper { return NewEuler(0.05) },
		"midpoint": func() *Stepper { return NewMidpoint(0.05) },
		"rk4":      func() *Stepper { return NewClassicalRK4(0.05) },
		"dopri54":  func() *Stepper { return NewDormandPrince54(0, 4, 1e-8, 1e-8) },
	}
}

func recordSteps(t *testing.T, s *Stepper, pb models.Problem) *recorder {
	t.Helper()
	rec := &recorder{dense: true}
	s.SetStepHandler(rec)
	_, err := s.Integrate(t.Context(), pb, pb.InitialTime(), pb.InitialState(), pb.FinalTime())
	require.NoError(t, err)
	require.NotEmpty(t, rec.steps)
	return rec
}

func TestInterpolatorEndpointsAreExact(t *testing.T) {
	for name, mk := range allSteppers() {
		t.Run(name, func(t *testing.T) {
			pb := models.NewOscillator()
			rec := recordSteps(t, mk(), pb)

			first := rec.steps[0]
			first.SetInterpolatedTime(first.PreviousTime())
			assert.Equal(t, pb.InitialState(), first.InterpolatedState())

			for i := 1; i < len(rec.steps); i++ {
				prev, cur := rec.steps[i-1], rec.steps[i]
				require.Equal(t, prev.CurrentTime(), cur.PreviousTime())

				prev.SetInterpolatedTime(prev.CurrentTime())
				cur.SetInterpolatedTime(cur.PreviousTime())
				require.Equal(t, prev.InterpolatedState(), cur.InterpolatedState(), "step %d", i)
			}
			assert.True(t, rec.last[len(rec.last)-1])
		})
	}
}

func TestInterpolatorSchemes(t *testing.T) {
	want := map[string]any{
		"euler":    &EulerInterpolator{},
		"midpoint": &MidpointInterpolator{},
		"rk4":      &ClassicalInterpolator{},
		"dopri54":  &DormandPrinceInterpolator{},
	}
	for name, mk := range allSteppers() {
		rec := recordSteps(t, mk(), models.NewDecay())
		assert.IsType(t, want[name], rec.kinds[0], name)
		assert.IsType(t, want[name], rec.steps[0], name)
	}
}

func TestDummyInterpolatorWithoutDenseOutput(t *testing.T) {
	rec := &recorder{}
	s := NewClassicalRK4(0.1)
	s.SetStepHandler(rec)
	final, err := s.Integrate(t.Context(), models.NewDecay(), 0, dynamo.State{1, 0.1}, 1)
	require.NoError(t, err)

	require.Len(t, rec.steps, 10)
	assert.IsType(t, &DummyInterpolator{}, rec.kinds[0])

	last := rec.steps[len(rec.steps)-1]
	last.SetInterpolatedTime(0.95)
	assert.Equal(t, final, last.InterpolatedState())
}

func TestInterpolatorCopyIsIndependent(t *testing.T) {
	y := dynamo.State{1.0, 3.0, -4.0}
	e := newEulerStep(y, []dynamo.State{{1.0, 2.0, -2.0}}, 0, 1)

	c := e.Copy()
	c.SetInterpolatedTime(0.5)
	before := c.InterpolatedState()

	// the stepper reuses its buffers for the next step
	e.shift()
	y[0], y[1], y[2] = 7, 7, 7
	e.yDotK[0][0] = 100
	e.storeTime(2)
	e.SetInterpolatedTime(0.5)

	c.SetInterpolatedTime(0.5)
	assert.Equal(t, before, c.InterpolatedState())
	assert.Equal(t, 0.0, c.PreviousTime())
	assert.Equal(t, 1.0, c.CurrentTime())
	assert.Equal(t, 0.5, c.InterpolatedTime())
}

func TestInterpolatedStateIsFresh(t *testing.T) {
	e := newEulerStep(dynamo.State{1.0, 3.0, -4.0}, []dynamo.State{{1.0, 2.0, -2.0}}, 0, 1)
	e.SetInterpolatedTime(0.5)

	a := e.InterpolatedState()
	a[0] = 42
	assert.InDelta(t, 0.5, e.InterpolatedState()[0], 1e-15)
}

func TestInterpolatorJSONRoundTrip(t *testing.T) {
	for name, mk := range allSteppers() {
		t.Run(name, func(t *testing.T) {
			rec := recordSteps(t, mk(), models.NewDecay())
			orig := rec.steps[len(rec.steps)/2]

			data, err := json.Marshal(orig)
			require.NoError(t, err)
			restored, err := UnmarshalInterpolator(data)
			require.NoError(t, err)

			assert.Equal(t, orig.PreviousTime(), restored.PreviousTime())
			assert.Equal(t, orig.CurrentTime(), restored.CurrentTime())
			assert.Equal(t, orig.IsForward(), restored.IsForward())

			for _, theta := range []float64{0, 0.1, 0.5, 0.9, 1} {
				at := orig.PreviousTime() + theta*(orig.CurrentTime()-orig.PreviousTime())
				orig.SetInterpolatedTime(at)
				restored.SetInterpolatedTime(at)
				assert.Equal(t, orig.InterpolatedState(), restored.InterpolatedState(), "theta=%g", theta)
			}
		})
	}
}

func TestUnmarshalInterpolatorErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"scheme":`},
		{"unknown scheme", `{"scheme":"leapfrog","previous_state":[1],"current_state":[1]}`},
		{"stage count", `{"scheme":"rk4","previous_state":[1],"current_state":[1],"ydot_k":[[1]]}`},
		{"state length", `{"scheme":"euler","previous_state":[1,2],"current_state":[1],"ydot_k":[[1]]}`},
		{"stage length", `{"scheme":"euler","previous_state":[1],"current_state":[1],"ydot_k":[[1,2]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalInterpolator([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
