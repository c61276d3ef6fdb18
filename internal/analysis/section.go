package analysis

import (
	"fmt"

	"github.com/san-kum/odestep/internal/dynamo"
)

// Section records a Poincaré section: the points where component Cross
// goes up through Level. It is a switching function, so each crossing is
// located by the event coordinator to its convergence threshold, and it
// never alters the integration.
type Section struct {
	Cross  int
	Level  float64
	XIndex int
	YIndex int

	Times  []float64
	Points []Point
}

func NewSection(cross int, level float64, x, y int) *Section {
	return &Section{Cross: cross, Level: level, XIndex: x, YIndex: y}
}

func (s *Section) G(t float64, y dynamo.State) (float64, error) {
	if s.Cross >= len(y) || s.XIndex >= len(y) || s.YIndex >= len(y) {
		return 0, fmt.Errorf("analysis: section components outside dimension %d", len(y))
	}
	return y[s.Cross] - s.Level, nil
}

func (s *Section) EventOccurred(t float64, y dynamo.State, increasing bool) dynamo.EventAction {
	if increasing {
		s.Times = append(s.Times, t)
		s.Points = append(s.Points, Point{X: y[s.XIndex], Y: y[s.YIndex]})
	}
	return dynamo.Continue
}

func (s *Section) ResetState(t float64, y dynamo.State) error { return nil }

// Init drops the crossings of a previous integration.
func (s *Section) Init(t0 float64, y0 dynamo.State) { s.Reset() }

func (s *Section) Reset() {
	s.Times = nil
	s.Points = nil
}

func (s *Section) ASCII(width, height int) string {
	if len(s.Points) == 0 {
		return "no crossings detected\n"
	}
	return scatter(s.Points, width, height)
}
