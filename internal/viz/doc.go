// Package viz renders integration results in the terminal.
//
// Summaries of a run are laid out with lipgloss using one of the built-in
// themes, trajectories and step sizes are drawn as line charts with
// asciigraph:
//
//   - [Styles.Summary]: statistics, metrics and fired events of a run
//   - [PlotTrajectory]: selected state components against time
//   - [Styles.SparklineChart]: compact step size history
package viz
