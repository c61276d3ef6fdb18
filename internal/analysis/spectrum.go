package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/odestep/internal/handlers"
)

// gridTolerance is the relative spacing deviation accepted on a uniform grid.
const gridTolerance = 1e-6

// Spectrum is the one-sided power spectrum of a uniformly sampled signal.
// Power[k] belongs to frequency Freqs[k] = k / (n·dt); the mean is removed
// first, so bin 0 carries no power.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

func NewSpectrum(values []float64, dt float64) (*Spectrum, error) {
	if len(values) < 4 {
		return nil, fmt.Errorf("analysis: need at least 4 samples, got %d", len(values))
	}
	if !(dt > 0) {
		return nil, fmt.Errorf("analysis: sample interval must be positive, got %g", dt)
	}

	mean := stat.Mean(values, nil)
	centered := make([]float64, len(values))
	for i, v := range values {
		centered[i] = v - mean
	}
	coeffs := fft.FFTReal(centered)

	n := len(values)
	s := &Spectrum{
		Freqs: make([]float64, n/2+1),
		Power: make([]float64, n/2+1),
	}
	for k := range s.Power {
		a := cmplx.Abs(coeffs[k])
		s.Freqs[k] = float64(k) / (float64(n) * dt)
		s.Power[k] = a * a
	}
	return s, nil
}

// Peak returns the frequency holding the most power, or 0 for a constant
// signal.
func (s *Spectrum) Peak() float64 {
	best := 0
	for k := 1; k < len(s.Power); k++ {
		if s.Power[k] > s.Power[best] {
			best = k
		}
	}
	return s.Freqs[best]
}

// Uniform returns the grid spacing of tr. A final sample off the grid, as
// left by a run ending between two grid points, is dropped from the count.
func Uniform(tr *handlers.Trajectory) (dt float64, n int, err error) {
	n = tr.Len()
	if n < 2 {
		return 0, 0, errors.New("analysis: need at least two samples")
	}
	dt = tr.Times[1] - tr.Times[0]
	if dt == 0 {
		return 0, 0, errors.New("analysis: repeated sample time")
	}
	for i := 2; i < n; i++ {
		if math.Abs(tr.Times[i]-tr.Times[i-1]-dt) > gridTolerance*math.Abs(dt) {
			if i == n-1 {
				return math.Abs(dt), n - 1, nil
			}
			return 0, 0, fmt.Errorf("analysis: samples are not uniform at t=%g", tr.Times[i])
		}
	}
	return math.Abs(dt), n, nil
}

// ComponentSpectrum is the spectrum of component i of a uniform trajectory.
func ComponentSpectrum(tr *handlers.Trajectory, i int) (*Spectrum, error) {
	dt, n, err := Uniform(tr)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(tr.States[0]) {
		return nil, fmt.Errorf("analysis: component %d outside dimension %d", i, len(tr.States[0]))
	}
	return NewSpectrum(tr.Component(i)[:n], dt)
}

// DominantPeriod is the period of the strongest oscillation of component i.
// Its resolution is limited by the span of the samples.
func DominantPeriod(tr *handlers.Trajectory, i int) (float64, error) {
	s, err := ComponentSpectrum(tr, i)
	if err != nil {
		return 0, err
	}
	f := s.Peak()
	if f == 0 {
		return 0, errors.New("analysis: signal has no oscillation")
	}
	return 1 / f, nil
}
