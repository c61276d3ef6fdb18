package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/events"
)

// RunSummary is the part of a run shown by Summary.
type RunSummary struct {
	ID        string
	Problem   string
	Scheme    string
	T0, TEnd  float64
	FinalTime float64
	Final     dynamo.State
	Stats     dynamo.Stats
	Events    []events.Occurrence
	Metrics   map[string]float64
	StepSizes []float64
}

// Summary lays out a run as a titled panel.
func (s Styles) Summary(r RunSummary) string {
	var b strings.Builder

	title := fmt.Sprintf("%s / %s", r.Problem, r.Scheme)
	b.WriteString(s.Title.Render(title))
	if r.ID != "" {
		b.WriteString("  " + s.Subtle.Render(r.ID))
	}
	b.WriteString("\n")

	status := s.StatusDone.Render("reached t_end")
	if r.FinalTime != r.TEnd {
		status = s.StatusStop.Render(fmt.Sprintf("stopped by event at t=%.10g", r.FinalTime))
	}
	b.WriteString(fmt.Sprintf("span [%g, %g]  %s\n\n", r.T0, r.TEnd, status))

	rows := [][2]string{
		{"steps", fmt.Sprintf("%d", r.Stats.Steps)},
		{"rejected", fmt.Sprintf("%d", r.Stats.Rejected)},
		{"evaluations", fmt.Sprintf("%d", r.Stats.Evaluations)},
		{"events", fmt.Sprintf("%d", r.Stats.Events)},
		{"last step", fmt.Sprintf("%.4g", r.Stats.LastStep)},
	}
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, [2]string{name, fmt.Sprintf("%.6g", r.Metrics[name])})
	}
	b.WriteString(s.table(rows))

	if len(r.Final) > 0 {
		b.WriteString("\n" + s.MetricLabel.Render("final state") + "\n")
		for i, v := range r.Final {
			b.WriteString(fmt.Sprintf("  y%d = %s\n", i, s.MetricValue.Render(fmt.Sprintf("%.12g", v))))
		}
	}

	if len(r.Events) > 0 {
		b.WriteString("\n" + s.MetricLabel.Render("events") + "\n")
		for _, ev := range r.Events {
			dir := "decreasing"
			if ev.Increasing {
				dir = "increasing"
			}
			b.WriteString(fmt.Sprintf("  #%d t=%.10g %s %s\n", ev.Index, ev.Time, dir, ev.Action))
		}
	}

	if len(r.StepSizes) > 1 {
		b.WriteString("\n" + s.MetricLabel.Render("step sizes") + "\n  ")
		b.WriteString(s.SparklineChart(r.StepSizes, 60) + "\n")
	}

	return s.Panel.Render(strings.TrimRight(b.String(), "\n"))
}

func (s Styles) table(rows [][2]string) string {
	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r[0]))
	}
	var b strings.Builder
	for _, r := range rows {
		label := s.MetricLabel.Render(r[0] + strings.Repeat(" ", width-lipgloss.Width(r[0])))
		b.WriteString(label + "  " + s.MetricValue.Render(r[1]) + "\n")
	}
	return b.String()
}
