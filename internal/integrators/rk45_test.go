package integrators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/models"
)

func TestDormandPrinceTolerance(t *testing.T) {
	tests := []struct {
		name    string
		pb      models.Problem
		tol     float64
		maxLast float64
		maxDev  float64
	}{
		{"decay", models.NewDecay(), 1e-10, 1e-9, 1e-9},
		{"oscillator", models.NewOscillator(), 1e-10, 1e-8, 1e-8},
		{"decay loose", models.NewDecay(), 1e-6, 1e-5, 1e-5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span := tt.pb.FinalTime() - tt.pb.InitialTime()
			s := NewDormandPrince54(0, span, tt.tol, tt.tol)
			tracker := track(t, s, tt.pb)

			assert.Less(t, tracker.LastError(), tt.maxLast)
			assert.Less(t, tracker.MaxError(), tt.maxDev)
			assert.Equal(t, tt.pb.FinalTime(), tracker.LastTime())
		})
	}
}

func TestDormandPrinceStepsFollowTolerance(t *testing.T) {
	pb := models.NewDecay()

	loose := NewDormandPrince54(0, 4, 1e-6, 1e-6)
	track(t, loose, pb)
	tight := NewDormandPrince54(0, 4, 1e-10, 1e-10)
	track(t, tight, pb)

	assert.Less(t, loose.Stats().Steps, tight.Stats().Steps)
}

func TestDormandPrinceReusesLastStage(t *testing.T) {
	pb, err := models.NewKepler(0.9)
	require.NoError(t, err)
	sys := &counting{System: pb}

	s := NewDormandPrince54(0, 20, 1e-8, 1e-8)
	_, err = s.Integrate(t.Context(), sys, 0, pb.InitialState(), 20)
	require.NoError(t, err)

	stats := s.Stats()
	assert.Positive(t, stats.Rejected)
	// start derivative, initial step probe, then six per attempt
	assert.Equal(t, 2+6*(stats.Steps+stats.Rejected), stats.Evaluations)
	assert.Equal(t, sys.calls, stats.Evaluations)
}

func TestDormandPrinceUnderflow(t *testing.T) {
	pb, err := models.NewKepler(0.9)
	require.NoError(t, err)

	t.Run("min step", func(t *testing.T) {
		s := NewDormandPrince54(0.5, 20, 1e-10, 1e-10)
		_, err := s.Integrate(t.Context(), pb, 0, pb.InitialState(), 20)
		require.Error(t, err)
		assert.ErrorIs(t, err, dynamo.ErrStepSizeUnderflow)

		var ie *dynamo.IntegrationError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, 0, ie.Step)
	})

	t.Run("retries", func(t *testing.T) {
		control := DefaultAdaptiveControl()
		control.MaxStep = 20
		control.AbsTolerance = 1e-12
		control.RelTolerance = 1e-12
		control.MaxRetries = 1
		control.InitialStep = 1
		s := NewAdaptive(dormandPrinceScheme{}, control)

		_, err := s.Integrate(t.Context(), pb, 0, pb.InitialState(), 20)
		assert.ErrorIs(t, err, dynamo.ErrStepSizeUnderflow)
		assert.Equal(t, 2, s.Stats().Rejected)
	})
}

func TestDormandPrinceInvalidControl(t *testing.T) {
	pb := &counting{System: models.NewDecay()}

	tests := []struct {
		name    string
		stepper *Stepper
	}{
		{"zero absolute tolerance", NewDormandPrince54(0, 1, 0, 1e-6)},
		{"negative relative tolerance", NewDormandPrince54(0, 1, 1e-6, -1)},
		{"min above max", NewDormandPrince54(2, 1, 1e-6, 1e-6)},
		{"fixed scheme made adaptive", NewAdaptive(classicalScheme{}, DefaultAdaptiveControl())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.stepper.Integrate(t.Context(), pb, 0, dynamo.State{1, 0.1}, 1)
			assert.Error(t, err)
			assert.Zero(t, pb.calls)
		})
	}
}
