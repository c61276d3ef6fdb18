package tui

import (
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/odestep/internal/dynamo"
)

// recentSteps is the number of step sizes kept for the sparkline.
const recentSteps = 64

// stepMsg reports the end of an accepted step.
type stepMsg struct {
	t      float64
	y      dynamo.State
	steps  int
	sizes  []float64
	isLast bool
}

// Progress is a step handler forwarding the integration state to a running
// program, at most frameRate times per second. The last step is always sent.
type Progress struct {
	send     func(tea.Msg)
	interval time.Duration

	lastFrame time.Time
	steps     int
	sizes     []float64
}

func NewProgress(send func(tea.Msg), frameRate int) *Progress {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &Progress{
		send:     send,
		interval: time.Second / time.Duration(frameRate),
	}
}

func (p *Progress) RequiresDenseOutput() bool { return false }

func (p *Progress) Reset() {
	p.lastFrame = time.Time{}
	p.steps = 0
	p.sizes = p.sizes[:0]
}

func (p *Progress) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	p.steps++
	p.sizes = append(p.sizes, math.Abs(interp.CurrentTime()-interp.PreviousTime()))
	if len(p.sizes) > recentSteps {
		p.sizes = p.sizes[len(p.sizes)-recentSteps:]
	}

	if !isLast && time.Since(p.lastFrame) < p.interval {
		return nil
	}
	p.lastFrame = time.Now()

	interp.SetInterpolatedTime(interp.CurrentTime())
	p.send(stepMsg{
		t:      interp.CurrentTime(),
		y:      interp.InterpolatedState(),
		steps:  p.steps,
		sizes:  append([]float64(nil), p.sizes...),
		isLast: isLast,
	})
	return nil
}
