package integrators

import (
	"math"

	"github.com/san-kum/odestep/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	dpA2 = 1.0 / 5.0
	dpA3 = 3.0 / 10.0
	dpA4 = 4.0 / 5.0
	dpA5 = 8.0 / 9.0

	dpB21 = 1.0 / 5.0
	dpB31 = 3.0 / 40.0
	dpB32 = 9.0 / 40.0
	dpB41 = 44.0 / 45.0
	dpB42 = -56.0 / 15.0
	dpB43 = 32.0 / 9.0
	dpB51 = 19372.0 / 6561.0
	dpB52 = -25360.0 / 2187.0
	dpB53 = 64448.0 / 6561.0
	dpB54 = -212.0 / 729.0
	dpB61 = 9017.0 / 3168.0
	dpB62 = -355.0 / 33.0
	dpB63 = 46732.0 / 5247.0
	dpB64 = 49.0 / 176.0
	dpB65 = -5103.0 / 18656.0

	dpC1 = 35.0 / 384.0
	dpC3 = 500.0 / 1113.0
	dpC4 = 125.0 / 192.0
	dpC5 = -2187.0 / 6784.0
	dpC6 = 11.0 / 84.0

	// difference between the 5th and the embedded 4th order weights
	dpE1 = dpC1 - 5179.0/57600.0
	dpE3 = dpC3 - 7571.0/16695.0
	dpE4 = dpC4 - 393.0/640.0
	dpE5 = dpC5 - -92097.0/339200.0
	dpE6 = dpC6 - 187.0/2100.0
	dpE7 = -1.0 / 40.0

	// continuous extension
	dpD1 = -12715105075.0 / 11282082432.0
	dpD3 = 87487479700.0 / 32700410799.0
	dpD4 = -10690763975.0 / 1880347072.0
	dpD5 = 701980252875.0 / 199316789632.0
	dpD6 = -1453857185.0 / 822651844.0
	dpD7 = 69997945.0 / 29380423.0
)

var dormandPrinceTableau = &tableau{
	c: []float64{0, dpA2, dpA3, dpA4, dpA5, 1, 1},
	a: [][]float64{
		{},
		{dpB21},
		{dpB31, dpB32},
		{dpB41, dpB42, dpB43},
		{dpB51, dpB52, dpB53, dpB54},
		{dpB61, dpB62, dpB63, dpB64, dpB65},
		{dpC1, 0, dpC3, dpC4, dpC5, dpC6},
	},
	b:    []float64{dpC1, 0, dpC3, dpC4, dpC5, dpC6, 0},
	fsal: true,
}

type dormandPrinceScheme struct{}

func (dormandPrinceScheme) Name() string                  { return schemeDormandPrince }
func (dormandPrinceScheme) Order() int                    { return 5 }
func (dormandPrinceScheme) Stages() int                   { return 7 }
func (dormandPrinceScheme) coefficients() *tableau        { return dormandPrinceTableau }
func (dormandPrinceScheme) newInterpolator() interpolator { return &DormandPrinceInterpolator{} }

// estimateError returns the RMS of the scaled difference between the 5th and
// 4th order solutions. Values above 1 mean the step must be rejected.
func (dormandPrinceScheme) estimateError(k []dynamo.State, y0, y1 dynamo.State, h float64, c *AdaptiveControl) float64 {
	if len(y0) == 0 {
		return 0
	}
	sum := 0.0
	for j := range y0 {
		errSum := dpE1*k[0][j] + dpE3*k[2][j] + dpE4*k[3][j] + dpE5*k[4][j] + dpE6*k[5][j] + dpE7*k[6][j]
		tol := c.tolerance(math.Max(math.Abs(y0[j]), math.Abs(y1[j])))
		ratio := h * errSum / tol
		sum += ratio * ratio
	}
	return math.Sqrt(sum / float64(len(y0)))
}

// NewDormandPrince54 returns an adaptive Dormand-Prince 5(4) stepper.
func NewDormandPrince54(minStep, maxStep, absTol, relTol float64, opts ...Option) *Stepper {
	control := DefaultAdaptiveControl()
	control.MinStep = minStep
	control.MaxStep = maxStep
	control.AbsTolerance = absTol
	control.RelTolerance = relTol
	return NewAdaptive(dormandPrinceScheme{}, control, opts...)
}

// DormandPrinceInterpolator is the 4th degree continuous extension of the
// Dormand-Prince pair. It needs the FSAL stage, so the step end derivative
// is part of yDotK.
type DormandPrinceInterpolator struct {
	baseInterpolator
}

// vectors derives the polynomial coefficients from the stage derivatives
// once per step.
func (d *DormandPrinceInterpolator) vectors() []dynamo.State {
	if d.cache != nil && d.cacheGen == d.generation {
		return d.cache
	}
	n := len(d.currentState)
	if len(d.cache) != 4 || len(d.cache[0]) != n {
		d.cache = make([]dynamo.State, 4)
		for i := range d.cache {
			d.cache[i] = make(dynamo.State, n)
		}
	}
	v1, v2, v3, v4 := d.cache[0], d.cache[1], d.cache[2], d.cache[3]
	k := d.yDotK
	for i := 0; i < n; i++ {
		v1[i] = dpC1*k[0][i] + dpC3*k[2][i] + dpC4*k[3][i] + dpC5*k[4][i] + dpC6*k[5][i]
		v2[i] = k[0][i] - v1[i]
		v3[i] = v1[i] - v2[i] - k[6][i]
		v4[i] = dpD1*k[0][i] + dpD3*k[2][i] + dpD4*k[3][i] + dpD5*k[4][i] + dpD6*k[5][i] + dpD7*k[6][i]
	}
	d.cacheGen = d.generation
	return d.cache
}

func (d *DormandPrinceInterpolator) InterpolatedState() dynamo.State {
	return d.state(func(theta, oneMinusThetaH float64) {
		v := d.vectors()
		eta := 1 - theta
		for i := range d.interpolatedState {
			d.interpolatedState[i] = d.currentState[i] -
				oneMinusThetaH*(v[0][i]-theta*(v[1][i]+theta*(v[2][i]+eta*v[3][i])))
		}
	})
}

func (d *DormandPrinceInterpolator) Copy() dynamo.StepInterpolator {
	return &DormandPrinceInterpolator{baseInterpolator: d.clone()}
}

func (d *DormandPrinceInterpolator) MarshalJSON() ([]byte, error) {
	return d.marshal(schemeDormandPrince)
}
