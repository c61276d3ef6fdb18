package metrics

import (
	"math"

	"github.com/san-kum/odestep/internal/dynamo"
)

// Hamiltonian systems conserve Energy along exact trajectories.
type Hamiltonian interface {
	Energy(y dynamo.State) float64
}

// EnergyDrift tracks the largest relative change of a conserved energy at
// step ends.
type EnergyDrift struct {
	name          string
	sys           Hamiltonian
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(sys Hamiltonian) *EnergyDrift {
	return &EnergyDrift{
		name: "energy_drift",
		sys:  sys,
	}
}

func (e *EnergyDrift) Name() string              { return e.name }
func (e *EnergyDrift) Value() float64            { return e.maxDrift }
func (e *EnergyDrift) RequiresDenseOutput() bool { return false }

func (e *EnergyDrift) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	if e.samples == 0 {
		interp.SetInterpolatedTime(interp.PreviousTime())
		e.observe(interp.InterpolatedState())
	}
	interp.SetInterpolatedTime(interp.CurrentTime())
	e.observe(interp.InterpolatedState())
	return nil
}

func (e *EnergyDrift) observe(y dynamo.State) {
	energy := e.sys.Energy(y)
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
