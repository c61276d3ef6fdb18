package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"
)

const (
	DefaultPlotWidth  = 80
	DefaultPlotHeight = 12
)

// PlotOptions selects what PlotTrajectory draws.
type PlotOptions struct {
	Width, Height int
	// Components are the state indices to draw, all of them when empty.
	Components []int
	Labels     []string
	Caption    string
	Theme      Theme
}

// PlotTrajectory draws the selected components of states on one chart.
func PlotTrajectory(times []float64, states [][]float64, opts PlotOptions) (string, error) {
	if len(states) == 0 || len(states[0]) == 0 {
		return "", fmt.Errorf("viz: no data to plot")
	}
	if len(times) != len(states) {
		return "", fmt.Errorf("viz: %d times for %d states", len(times), len(states))
	}
	dim := len(states[0])

	components := opts.Components
	if len(components) == 0 {
		for i := 0; i < dim; i++ {
			components = append(components, i)
		}
	}

	series := make([][]float64, 0, len(components))
	for _, c := range components {
		if c < 0 || c >= dim {
			return "", fmt.Errorf("viz: component %d out of range [0, %d)", c, dim)
		}
		data := make([]float64, len(states))
		for i, y := range states {
			data[i] = y[c]
		}
		series = append(series, data)
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = DefaultPlotWidth
	}
	if height <= 0 {
		height = DefaultPlotHeight
	}

	caption := opts.Caption
	if caption == "" {
		caption = fmt.Sprintf("t in [%g, %g]", times[0], times[len(times)-1])
	}

	plotOpts := []asciigraph.Option{
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption(caption),
	}
	if colors := opts.colors(len(series)); colors != nil {
		plotOpts = append(plotOpts, asciigraph.SeriesColors(colors...))
	}
	if labels := opts.legends(components); labels != nil {
		plotOpts = append(plotOpts, asciigraph.SeriesLegends(labels...))
	}
	return asciigraph.PlotMany(series, plotOpts...), nil
}

func (o PlotOptions) colors(n int) []asciigraph.AnsiColor {
	if len(o.Theme.Series) == 0 {
		return nil
	}
	out := make([]asciigraph.AnsiColor, n)
	for i := range out {
		c, ok := asciigraph.ColorNames[o.Theme.Series[i%len(o.Theme.Series)]]
		if !ok {
			c = asciigraph.Default
		}
		out[i] = c
	}
	return out
}

func (o PlotOptions) legends(components []int) []string {
	if len(components) < 2 {
		return nil
	}
	out := make([]string, len(components))
	for i, c := range components {
		if c < len(o.Labels) && o.Labels[c] != "" {
			out[i] = o.Labels[c]
		} else {
			out[i] = fmt.Sprintf("y%d", c)
		}
	}
	return out
}

// PlotSeries draws one series with a caption.
func PlotSeries(values []float64, caption string, width, height int) string {
	if len(values) == 0 {
		return ""
	}
	if width <= 0 {
		width = DefaultPlotWidth
	}
	if height <= 0 {
		height = DefaultPlotHeight
	}
	return asciigraph.Plot(values,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption(caption),
	)
}

// ComponentLabels names the state components of the known problems.
func ComponentLabels(problem string) []string {
	switch strings.ToLower(problem) {
	case "kepler":
		return []string{"x", "y", "vx", "vy"}
	case "oscillator":
		return []string{"x", "v"}
	case "ball":
		return []string{"height", "velocity"}
	}
	return nil
}
