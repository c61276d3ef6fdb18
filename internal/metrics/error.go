package metrics

import (
	"math"

	"github.com/san-kum/odestep/internal/dynamo"
)

// DefaultSamples is the number of sub-intervals checked inside each step.
const DefaultSamples = 20

// ErrorTracker compares the dense output with a reference solution. It
// walks every step at Samples+1 evenly spaced times and keeps the largest
// scaled componentwise error, plus the unscaled error at the end of the
// last step.
type ErrorTracker struct {
	ref     Reference
	Samples int

	maxError  float64
	lastError float64
	lastTime  float64
}

func NewErrorTracker(ref Reference) *ErrorTracker {
	return &ErrorTracker{ref: ref, Samples: DefaultSamples}
}

func (e *ErrorTracker) Name() string              { return "max_error" }
func (e *ErrorTracker) Value() float64            { return e.maxError }
func (e *ErrorTracker) RequiresDenseOutput() bool { return true }
func (e *ErrorTracker) MaxError() float64         { return e.maxError }
func (e *ErrorTracker) LastError() float64        { return e.lastError }
func (e *ErrorTracker) LastTime() float64         { return e.lastTime }

func (e *ErrorTracker) Reset() {
	e.maxError = 0
	e.lastError = 0
	e.lastTime = math.NaN()
}

func (e *ErrorTracker) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	pT := interp.PreviousTime()
	cT := interp.CurrentTime()
	scale := e.ref.ErrorScale()

	if isLast {
		interp.SetInterpolatedTime(cT)
		y := interp.InterpolatedState()
		exact := e.ref.TheoreticalState(cT)
		for i := range y {
			e.lastError = math.Max(e.lastError, math.Abs(y[i]-exact[i]))
		}
		e.lastTime = cT
	}

	n := e.Samples
	if n < 1 {
		n = 1
	}
	for k := 0; k <= n; k++ {
		interp.SetInterpolatedTime(pT + float64(k)*(cT-pT)/float64(n))
		y := interp.InterpolatedState()
		exact := e.ref.TheoreticalState(interp.InterpolatedTime())
		for i := range y {
			e.maxError = math.Max(e.maxError, scale[i]*math.Abs(y[i]-exact[i]))
		}
	}
	return nil
}
