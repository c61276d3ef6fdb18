package integrators

import (
	"context"
	"testing"

	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/models"
)

type benchNBody struct{}

func (b *benchNBody) Dimension() int { return 20 }

func (b *benchNBody) ComputeDerivatives(t float64, x, dx dynamo.State) error {
	for i := 0; i < 5; i++ {
		dx[i*4] = x[i*4+2]
		dx[i*4+1] = x[i*4+3]
		dx[i*4+2] = -x[i*4] * 0.1
		dx[i*4+3] = -x[i*4+1] * 0.1
	}
	return nil
}

func benchmarkStepper(b *testing.B, s *Stepper, sys dynamo.System, y0 dynamo.State, tEnd float64) {
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Integrate(ctx, sys, 0, y0, tEnd); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEuler(b *testing.B) {
	benchmarkStepper(b, NewEuler(0.01), models.NewOscillator(), dynamo.State{1.0, 0.0}, 1)
}

func BenchmarkMidpoint(b *testing.B) {
	benchmarkStepper(b, NewMidpoint(0.01), models.NewOscillator(), dynamo.State{1.0, 0.0}, 1)
}

func BenchmarkRK4(b *testing.B) {
	benchmarkStepper(b, NewClassicalRK4(0.01), models.NewOscillator(), dynamo.State{1.0, 0.0}, 1)
}

func BenchmarkDormandPrince54(b *testing.B) {
	benchmarkStepper(b, NewDormandPrince54(0, 1, 1e-8, 1e-8), models.NewOscillator(), dynamo.State{1.0, 0.0}, 1)
}

func BenchmarkRK4_NBody5(b *testing.B) {
	x := make(dynamo.State, 20)
	for i := range x {
		x[i] = float64(i) * 0.1
	}
	benchmarkStepper(b, NewClassicalRK4(0.001), &benchNBody{}, x, 0.1)
}

func BenchmarkRK4_DenseOutput(b *testing.B) {
	s := NewClassicalRK4(0.01)
	s.SetStepHandler(&recorder{dense: true})
	benchmarkStepper(b, s, models.NewOscillator(), dynamo.State{1.0, 0.0}, 1)
}

func BenchmarkDormandPrince54_Events(b *testing.B) {
	ball := models.NewBouncingBall()
	s := NewDormandPrince54(0, 1, 1e-8, 1e-8)
	for _, fn := range ball.SwitchingFunctions() {
		if err := s.AddSwitchingFunction(fn, 0.1, 1e-10); err != nil {
			b.Fatal(err)
		}
	}
	benchmarkStepper(b, s, ball, ball.InitialState(), ball.FinalTime())
}
