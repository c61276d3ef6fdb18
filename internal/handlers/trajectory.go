package handlers

import "github.com/san-kum/odestep/internal/dynamo"

// Trajectory records every sample it receives.
type Trajectory struct {
	Times  []float64
	States []dynamo.State
}

func (tr *Trajectory) HandleSample(t float64, y dynamo.State, isLast bool) error {
	tr.Times = append(tr.Times, t)
	tr.States = append(tr.States, y)
	return nil
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

// Component returns the values of component i across samples.
func (tr *Trajectory) Component(i int) []float64 {
	out := make([]float64, 0, len(tr.States))
	for _, y := range tr.States {
		if i < len(y) {
			out = append(out, y[i])
		}
	}
	return out
}

func (tr *Trajectory) Clear() {
	tr.Times = tr.Times[:0]
	tr.States = tr.States[:0]
}
