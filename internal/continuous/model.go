package continuous

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/integrators"
)

// joinTolerance is the gap allowed between two consecutive steps, relative
// to the length of the later one.
const joinTolerance = 1e-3

// Model stores the frozen interpolators of every accepted step so that the
// trajectory can be evaluated at any time once the integration is over.
//
// Register a Model as the step handler of a Stepper, then query it with
// SetInterpolatedTime and InterpolatedState. Times outside the recorded
// range are extrapolated from the nearest boundary step.
type Model struct {
	steps   []dynamo.StepInterpolator
	forward bool

	// index caches the step used by the last query
	index int
	t     float64
}

func New() *Model {
	return &Model{forward: true, t: math.NaN()}
}

func (m *Model) RequiresDenseOutput() bool { return true }

func (m *Model) Reset() {
	m.steps = nil
	m.forward = true
	m.index = 0
	m.t = math.NaN()
}

func (m *Model) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	if len(m.steps) == 0 {
		m.forward = interp.IsForward()
		m.index = 0
	} else if err := m.joins(interp); err != nil {
		return err
	}
	m.steps = append(m.steps, interp.Copy())
	return nil
}

// joins checks that interp starts where the stored steps end.
func (m *Model) joins(interp dynamo.StepInterpolator) error {
	if interp.IsForward() != m.forward {
		return fmt.Errorf("continuous: step [%g, %g] reverses the direction of integration: %w",
			interp.PreviousTime(), interp.CurrentTime(), dynamo.ErrContinuity)
	}
	end := m.FinalTime()
	start := interp.PreviousTime()
	h := math.Abs(interp.CurrentTime() - start)
	if math.Abs(start-end) > joinTolerance*h && start != end {
		return fmt.Errorf("continuous: step starting at %g does not join the model ending at %g: %w",
			start, end, dynamo.ErrContinuity)
	}
	return nil
}

// Append adds the steps of other after the steps of m. other must continue
// m in time, direction and dimension. other is left unchanged.
func (m *Model) Append(other *Model) error {
	if other == nil || len(other.steps) == 0 {
		return nil
	}
	if len(m.steps) > 0 {
		first := other.steps[0]
		if other.forward != m.forward {
			return fmt.Errorf("continuous: appended model runs in the opposite direction: %w", dynamo.ErrContinuity)
		}
		if got, want := dimension(first, first.PreviousTime()), m.dimension(); got != want {
			return fmt.Errorf("continuous: appended model has %d components, want %d: %w",
				got, want, dynamo.ErrDimensionMismatch)
		}
		if err := m.joins(first); err != nil {
			return err
		}
	} else {
		m.forward = other.forward
	}
	for _, s := range other.steps {
		m.steps = append(m.steps, s.Copy())
	}
	return nil
}

func (m *Model) dimension() int {
	last := m.steps[len(m.steps)-1]
	return dimension(last, last.CurrentTime())
}

func dimension(interp dynamo.StepInterpolator, t float64) int {
	interp.SetInterpolatedTime(t)
	return len(interp.InterpolatedState())
}

func (m *Model) Len() int { return len(m.steps) }

// InitialTime is the start of the first step, NaN for an empty model.
func (m *Model) InitialTime() float64 {
	if len(m.steps) == 0 {
		return math.NaN()
	}
	return m.steps[0].PreviousTime()
}

// FinalTime is the end of the last step, NaN for an empty model.
func (m *Model) FinalTime() float64 {
	if len(m.steps) == 0 {
		return math.NaN()
	}
	return m.steps[len(m.steps)-1].CurrentTime()
}

func (m *Model) IsForward() bool           { return m.forward }
func (m *Model) InterpolatedTime() float64 { return m.t }

// SetInterpolatedTime moves the query cursor to t.
func (m *Model) SetInterpolatedTime(t float64) {
	m.t = t
	if len(m.steps) == 0 {
		return
	}
	m.index = m.locate(t)
}

// InterpolatedState returns the state at the cursor, or nil when the model
// holds no step.
func (m *Model) InterpolatedState() dynamo.State {
	if len(m.steps) == 0 {
		return nil
	}
	s := m.steps[m.index]
	s.SetInterpolatedTime(m.t)
	return s.InterpolatedState()
}

// locate returns the index of the step covering t. Consecutive queries
// usually fall in the same step, so the cached index is tried first.
func (m *Model) locate(t float64) int {
	if m.index < len(m.steps) && m.covers(m.steps[m.index], t) {
		return m.index
	}
	i := sort.Search(len(m.steps), func(i int) bool {
		return m.reached(m.steps[i].CurrentTime(), t)
	})
	if i == len(m.steps) {
		// past the final time
		return len(m.steps) - 1
	}
	return i
}

func (m *Model) covers(s dynamo.StepInterpolator, t float64) bool {
	lo, hi := s.PreviousTime(), s.CurrentTime()
	if !m.forward {
		lo, hi = hi, lo
	}
	return lo <= t && t <= hi
}

// reached reports whether end lies at or after t in the direction of
// integration.
func (m *Model) reached(end, t float64) bool {
	if m.forward {
		return end >= t
	}
	return end <= t
}

type document struct {
	Forward bool              `json:"forward"`
	Steps   []json.RawMessage `json:"steps"`
}

func (m *Model) MarshalJSON() ([]byte, error) {
	doc := document{Forward: m.forward, Steps: make([]json.RawMessage, len(m.steps))}
	for i, s := range m.steps {
		enc, ok := s.(json.Marshaler)
		if !ok {
			return nil, fmt.Errorf("continuous: step %d of type %T cannot be persisted", i, s)
		}
		data, err := enc.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("continuous: encode step %d: %w", i, err)
		}
		doc.Steps[i] = data
	}
	return json.Marshal(doc)
}

func (m *Model) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("continuous: decode model: %w", err)
	}
	steps := make([]dynamo.StepInterpolator, len(doc.Steps))
	for i, raw := range doc.Steps {
		s, err := integrators.UnmarshalInterpolator(raw)
		if err != nil {
			return fmt.Errorf("continuous: step %d: %w", i, err)
		}
		if s.IsForward() != doc.Forward {
			return fmt.Errorf("continuous: step %d direction disagrees with the model: %w", i, dynamo.ErrContinuity)
		}
		steps[i] = s
	}
	m.steps = steps
	m.forward = doc.Forward
	m.index = 0
	m.t = math.NaN()
	return nil
}

// Sample evaluates the model at each of times.
func (m *Model) Sample(times []float64) ([]dynamo.State, error) {
	if len(m.steps) == 0 {
		return nil, errors.New("continuous: empty model")
	}
	out := make([]dynamo.State, len(times))
	for i, t := range times {
		m.SetInterpolatedTime(t)
		out[i] = m.InterpolatedState()
	}
	return out, nil
}
