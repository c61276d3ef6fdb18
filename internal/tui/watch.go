package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/odestep/internal/experiment"
	"github.com/san-kum/odestep/internal/viz"
)

const (
	barWidth   = 40
	maxShown   = 4
	frameRate  = 30
	sparkWidth = 40
)

type doneMsg struct {
	res *experiment.Result
	err error
}

type model struct {
	styles  viz.Styles
	problem string
	scheme  string
	t0      float64
	tEnd    float64

	last    stepMsg
	started bool
	done    bool
	res     *experiment.Result
	err     error
	cancel  context.CancelFunc
}

func newModel(exp *experiment.Experiment, styles viz.Styles, cancel context.CancelFunc) model {
	t0, tEnd := exp.Span()
	return model{
		styles:  styles,
		problem: exp.Problem().Name(),
		scheme:  exp.Stepper().Name(),
		t0:      t0,
		tEnd:    tEnd,
		cancel:  cancel,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			// the run returns the cancellation and doneMsg quits
			m.cancel()
		}
	case stepMsg:
		m.last = msg
		m.started = true
	case doneMsg:
		m.done = true
		m.res = msg.res
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

// fraction is the share of the interval covered so far.
func (m model) fraction() float64 {
	if !m.started || m.tEnd == m.t0 {
		return 0
	}
	f := (m.last.t - m.t0) / (m.tEnd - m.t0)
	return math.Max(0, math.Min(1, f))
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(fmt.Sprintf("%s / %s", m.problem, m.scheme)))
	b.WriteString("\n\n")

	filled := int(math.Round(m.fraction() * barWidth))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	fmt.Fprintf(&b, "  %s %5.1f%%\n", m.styles.MetricValue.Render(bar), 100*m.fraction())

	if m.started {
		fmt.Fprintf(&b, "  %s %-14.8g %s %d\n",
			m.styles.MetricLabel.Render("t"), m.last.t,
			m.styles.MetricLabel.Render("steps"), m.last.steps)
		if len(m.last.sizes) > 0 {
			fmt.Fprintf(&b, "  %s %s\n",
				m.styles.MetricLabel.Render("h"),
				m.styles.SparklineChart(m.last.sizes, sparkWidth))
		}
		var state []string
		for i, v := range m.last.y {
			if i >= maxShown {
				state = append(state, "...")
				break
			}
			state = append(state, fmt.Sprintf("y%d=%.6g", i, v))
		}
		b.WriteString("  " + strings.Join(state, " ") + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.done && m.err != nil:
		b.WriteString(m.styles.StatusError.Render("failed"))
	case m.done:
		b.WriteString(m.styles.StatusDone.Render("done"))
	default:
		b.WriteString(m.styles.Subtle.Render("q to abort"))
	}
	b.WriteString("\n")
	return b.String()
}

// Watch runs exp while drawing its progress. It returns once the
// integration is over and the program has exited.
func Watch(ctx context.Context, exp *experiment.Experiment, styles viz.Styles) (*experiment.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(exp, styles, cancel))
	exp.Observe(NewProgress(p.Send, frameRate))

	go func() {
		res, err := exp.Run(ctx)
		p.Send(doneMsg{res: res, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	m := final.(model)
	return m.res, m.err
}
