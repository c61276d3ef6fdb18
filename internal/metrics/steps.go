package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/odestep/internal/dynamo"
)

// StepSizes records the length of every accepted step.
type StepSizes struct {
	sizes []float64
}

func NewStepSizes() *StepSizes { return &StepSizes{} }

func (s *StepSizes) Name() string              { return "mean_step" }
func (s *StepSizes) RequiresDenseOutput() bool { return false }
func (s *StepSizes) Reset()                    { s.sizes = s.sizes[:0] }
func (s *StepSizes) Count() int                { return len(s.sizes) }

func (s *StepSizes) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	s.sizes = append(s.sizes, math.Abs(interp.CurrentTime()-interp.PreviousTime()))
	return nil
}

// Sizes returns a copy of the recorded step lengths.
func (s *StepSizes) Sizes() []float64 {
	out := make([]float64, len(s.sizes))
	copy(out, s.sizes)
	return out
}

func (s *StepSizes) Value() float64 {
	if len(s.sizes) == 0 {
		return 0
	}
	return stat.Mean(s.sizes, nil)
}

// Range returns the smallest and largest step lengths.
func (s *StepSizes) Range() (lo, hi float64) {
	if len(s.sizes) == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), 0
	for _, h := range s.sizes {
		lo = math.Min(lo, h)
		hi = math.Max(hi, h)
	}
	return lo, hi
}
