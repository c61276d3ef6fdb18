package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ConvergenceOrder fits log(error) = intercept + order·log(step) by least
// squares and returns the slope.
func ConvergenceOrder(steps, errs []float64) (float64, error) {
	if len(steps) != len(errs) {
		return 0, fmt.Errorf("metrics: %d steps for %d errors", len(steps), len(errs))
	}
	if len(steps) < 2 {
		return 0, fmt.Errorf("metrics: need at least two samples, got %d", len(steps))
	}
	xs := make([]float64, len(steps))
	ys := make([]float64, len(errs))
	for i := range steps {
		if !(steps[i] != 0) || !(errs[i] > 0) {
			return 0, fmt.Errorf("metrics: sample %d has step %g and error %g", i, steps[i], errs[i])
		}
		xs[i] = math.Log(math.Abs(steps[i]))
		ys[i] = math.Log(errs[i])
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope, nil
}
