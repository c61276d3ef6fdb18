package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/odestep/internal/analysis"
	"github.com/san-kum/odestep/internal/config"
	"github.com/san-kum/odestep/internal/experiment"
	"github.com/san-kum/odestep/internal/export"
	"github.com/san-kum/odestep/internal/storage"
	"github.com/san-kum/odestep/internal/tui"
	"github.com/san-kum/odestep/internal/viz"
)

var (
	dataDir   string
	verbose   bool
	themeName string

	// run flags
	scheme       string
	step         float64
	minStep      float64
	maxStep      float64
	absTol       float64
	relTol       float64
	t0           float64
	tEnd         float64
	eccentricity float64
	maxBounces   int
	maxCheck     float64
	threshold    float64
	sampleStep   float64
	configFile   string
	preset       string
	noSave       bool
	showPlot     bool
	live         bool

	// plot flags
	components []int
	width      int
	height     int

	// order flags
	orderScheme string
	orderSteps  []float64

	// phase, spectrum and section flags
	xIndex       int
	yIndex       int
	component    int
	cross        int
	level        float64
	svgFile      string
	canvasWidth  int
	canvasHeight int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "odestep",
		Short:         "explicit ODE integration with dense output and events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".odestep", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log rejected steps and events")
	rootCmd.PersistentFlags().StringVar(&themeName, "theme", "ocean", "color theme")

	runCmd := &cobra.Command{
		Use:   "run [problem]",
		Short: "integrate a reference problem and store the run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIntegration,
	}
	defaults := config.DefaultConfig()
	runCmd.Flags().StringVar(&scheme, "scheme", defaults.Scheme, "euler, midpoint, rk4 or dopri54")
	runCmd.Flags().Float64Var(&step, "step", defaults.Step, "step size of fixed step schemes")
	runCmd.Flags().Float64Var(&minStep, "min-step", defaults.MinStep, "smallest adaptive step")
	runCmd.Flags().Float64Var(&maxStep, "max-step", defaults.MaxStep, "largest adaptive step, 0 for unbounded")
	runCmd.Flags().Float64Var(&absTol, "atol", defaults.AbsTolerance, "absolute tolerance")
	runCmd.Flags().Float64Var(&relTol, "rtol", defaults.RelTolerance, "relative tolerance")
	runCmd.Flags().Float64Var(&t0, "t0", 0, "start time, problem default when t0 and t-end are 0")
	runCmd.Flags().Float64Var(&tEnd, "t-end", 0, "target time")
	runCmd.Flags().Float64Var(&eccentricity, "eccentricity", defaults.Eccentricity, "orbit eccentricity (kepler)")
	runCmd.Flags().IntVar(&maxBounces, "bounces", 0, "stop after this many impacts (ball)")
	runCmd.Flags().Float64Var(&maxCheck, "max-check", defaults.Events.MaxCheckInterval, "largest gap between switching function samples")
	runCmd.Flags().Float64Var(&threshold, "threshold", defaults.Events.Threshold, "event location accuracy")
	runCmd.Flags().Float64Var(&sampleStep, "sample", defaults.SampleStep, "interval of the exported samples, 0 to disable")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot the sampled trajectory")
	runCmd.Flags().BoolVar(&live, "live", false, "show the integration progress")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "summarize a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	queryCmd := &cobra.Command{
		Use:   "query [run_id] [t...]",
		Short: "evaluate the continuous output of a run",
		Args:  cobra.MinimumNArgs(2),
		RunE:  queryRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the sampled trajectory of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntSliceVar(&components, "components", nil, "state components to draw")
	plotCmd.Flags().IntVar(&width, "width", viz.DefaultPlotWidth, "plot width")
	plotCmd.Flags().IntVar(&height, "height", viz.DefaultPlotHeight, "plot height")

	orderCmd := &cobra.Command{
		Use:   "order [problem]",
		Short: "measure the order of accuracy of a fixed step scheme",
		Args:  cobra.ExactArgs(1),
		RunE:  studyOrder,
	}
	orderCmd.Flags().StringVar(&orderScheme, "scheme", "rk4", "euler, midpoint or rk4")
	orderCmd.Flags().Float64SliceVar(&orderSteps, "steps", []float64{0.4, 0.2, 0.1, 0.05, 0.025}, "step sizes")

	presetsCmd := &cobra.Command{
		Use:   "presets [problem]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "draw two components of a run against each other",
		Args:  cobra.ExactArgs(1),
		RunE:  phaseRun,
	}
	phaseCmd.Flags().IntVar(&xIndex, "x", 0, "horizontal component")
	phaseCmd.Flags().IntVar(&yIndex, "y", 1, "vertical component")
	phaseCmd.Flags().IntVar(&canvasWidth, "width", 60, "plot width")
	phaseCmd.Flags().IntVar(&canvasHeight, "height", 20, "plot height")
	phaseCmd.Flags().StringVar(&svgFile, "svg", "", "also write the portrait to this SVG file")

	spectrumCmd := &cobra.Command{
		Use:   "spectrum [run_id]",
		Short: "estimate the dominant period of a component",
		Args:  cobra.ExactArgs(1),
		RunE:  spectrumRun,
	}
	spectrumCmd.Flags().IntVar(&component, "component", 0, "state component")
	spectrumCmd.Flags().IntVar(&width, "width", viz.DefaultPlotWidth, "plot width")
	spectrumCmd.Flags().IntVar(&height, "height", viz.DefaultPlotHeight, "plot height")

	sectionCmd := &cobra.Command{
		Use:   "section [problem]",
		Short: "integrate a problem and draw a Poincaré section",
		Args:  cobra.ExactArgs(1),
		RunE:  sectionRun,
	}
	sectionCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	sectionCmd.Flags().Float64Var(&tEnd, "t-end", 0, "target time")
	sectionCmd.Flags().IntVar(&cross, "cross", 1, "component whose upward crossings are recorded")
	sectionCmd.Flags().Float64Var(&level, "level", 0, "crossing level")
	sectionCmd.Flags().IntVar(&xIndex, "x", 0, "horizontal component")
	sectionCmd.Flags().IntVar(&yIndex, "y", 1, "vertical component")
	sectionCmd.Flags().IntVar(&canvasWidth, "width", 60, "plot width")
	sectionCmd.Flags().IntVar(&canvasHeight, "height", 20, "plot height")
	sectionCmd.Flags().StringVar(&svgFile, "svg", "", "also write the section to this SVG file")

	rootCmd.AddCommand(runCmd, listCmd, showCmd, queryCmd, plotCmd, orderCmd, presetsCmd,
		phaseCmd, spectrumCmd, sectionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveConfig layers the preset, the config file and the changed flags,
// later sources overriding earlier ones.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Problem = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Problem, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Problem))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if len(args) > 0 {
			cfg.Problem = args[0]
		}
	}

	flags := cmd.Flags()
	if flags.Changed("scheme") {
		cfg.Scheme = scheme
	}
	if flags.Changed("step") {
		cfg.Step = step
	}
	if flags.Changed("min-step") {
		cfg.MinStep = minStep
	}
	if flags.Changed("max-step") {
		cfg.MaxStep = maxStep
	}
	if flags.Changed("atol") {
		cfg.AbsTolerance = absTol
	}
	if flags.Changed("rtol") {
		cfg.RelTolerance = relTol
	}
	if flags.Changed("t0") {
		cfg.T0 = t0
	}
	if flags.Changed("t-end") {
		cfg.TEnd = tEnd
	}
	if flags.Changed("eccentricity") {
		cfg.Eccentricity = eccentricity
	}
	if flags.Changed("bounces") {
		cfg.MaxBounces = maxBounces
	}
	if flags.Changed("max-check") {
		cfg.Events.MaxCheckInterval = maxCheck
	}
	if flags.Changed("threshold") {
		cfg.Events.Threshold = threshold
	}
	if flags.Changed("sample") {
		cfg.SampleStep = sampleStep
	}
	return cfg, cfg.Validate()
}

func runIntegration(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := newLogger()
	exp, err := experiment.New(cfg, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	styles := viz.NewStyles(viz.ThemeByName(themeName))
	var res *experiment.Result
	if live {
		res, err = tui.Watch(cmd.Context(), exp, styles)
	} else {
		fmt.Printf("integrating %s with %s...\n", cfg.Problem, cfg.Scheme)
		res, err = exp.Run(cmd.Context())
	}
	if err != nil {
		return err
	}

	var runID string
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		if runID, err = st.Save(cfg, res); err != nil {
			return err
		}
	}

	fmt.Println(styles.Summary(viz.RunSummary{
		ID:        runID,
		Problem:   res.Problem,
		Scheme:    res.Scheme,
		T0:        res.T0,
		TEnd:      res.TEnd,
		FinalTime: res.FinalTime,
		Final:     res.Final,
		Stats:     res.Stats,
		Events:    res.Events,
		Metrics:   res.Metrics,
		StepSizes: res.StepSizes,
	}))
	fmt.Printf("completed in %v\n", res.Elapsed)

	if showPlot && res.Samples.Len() > 0 {
		states := make([][]float64, res.Samples.Len())
		for i, y := range res.Samples.States {
			states[i] = y
		}
		graph, err := viz.PlotTrajectory(res.Samples.Times, states, viz.PlotOptions{
			Labels: viz.ComponentLabels(res.Problem),
			Theme:  viz.ThemeByName(themeName),
		})
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(graph)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROBLEM\tSCHEME\tTIME\tSPAN\tSTEPS\tEVENTS\tMAX ERROR")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t[%g, %g]\t%d\t%d\t%.3g\n",
			run.ID,
			run.Problem,
			run.Scheme,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.T0,
			run.FinalTime,
			run.Stats.Steps,
			run.Stats.Events,
			run.Metrics["max_error"],
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	styles := viz.NewStyles(viz.ThemeByName(themeName))
	fmt.Println(styles.Summary(viz.RunSummary{
		ID:        meta.ID,
		Problem:   meta.Problem,
		Scheme:    meta.Scheme,
		T0:        meta.T0,
		TEnd:      meta.TEnd,
		FinalTime: meta.FinalTime,
		Final:     meta.Final,
		Stats:     meta.Stats,
		Events:    meta.Events,
		Metrics:   meta.Metrics,
	}))
	return nil
}

func queryRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	model, err := st.LoadModel(args[0])
	if err != nil {
		return err
	}

	times := make([]float64, 0, len(args)-1)
	for _, arg := range args[1:] {
		t, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid time %q: %w", arg, err)
		}
		times = append(times, t)
	}

	states, err := model.Sample(times)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for i, t := range times {
		note := ""
		if outside(t, model.InitialTime(), model.FinalTime()) {
			note = "\t(extrapolated)"
		}
		fmt.Fprintf(w, "t=%.10g", t)
		for _, v := range states[i] {
			fmt.Fprintf(w, "\t%.15g", v)
		}
		fmt.Fprintln(w, note)
	}
	return w.Flush()
}

func outside(t, a, b float64) bool {
	lo, hi := min(a, b), max(a, b)
	return t < lo || t > hi
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(runID)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("run %s has no samples, rerun with --sample > 0", runID)
	}
	if err != nil {
		return err
	}

	states := make([][]float64, samples.Len())
	for i, y := range samples.States {
		states[i] = y
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("problem: %s (%s)\n", meta.Problem, meta.Scheme)
	fmt.Printf("samples: %d\n\n", samples.Len())

	graph, err := viz.PlotTrajectory(samples.Times, states, viz.PlotOptions{
		Width:      width,
		Height:     height,
		Components: components,
		Labels:     viz.ComponentLabels(meta.Problem),
		Theme:      viz.ThemeByName(themeName),
	})
	if err != nil {
		return err
	}
	fmt.Println(graph)
	return nil
}

func studyOrder(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	cfg.Problem = args[0]
	cfg.Scheme = orderScheme
	cfg.SampleStep = 0

	study, err := experiment.StudyOrder(cmd.Context(), cfg, experiment.NewRegistry(), orderSteps)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tFINAL ERROR")
	for i, h := range study.Steps {
		fmt.Fprintf(w, "%g\t%.6e\n", h, study.Errors[i])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nobserved order of %s: %.3f\n", study.Scheme, study.Slope)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	problems := experiment.NewRegistry().ListProblems()
	if len(args) > 0 {
		problems = args[:1]
	}
	for _, problem := range problems {
		presets := config.ListPresets(problem)
		if len(presets) == 0 {
			fmt.Printf("no presets for problem: %s\n", problem)
			continue
		}
		fmt.Printf("presets for %s:\n", problem)
		for _, p := range presets {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}

func phaseRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	samples, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	phase, err := analysis.NewPhase(samples, xIndex, yIndex)
	if err != nil {
		return err
	}

	labels := viz.ComponentLabels("")
	if meta, err := st.Load(args[0]); err == nil {
		labels = viz.ComponentLabels(meta.Problem)
	}
	fmt.Printf("%s against %s\n\n", label(labels, yIndex), label(labels, xIndex))
	fmt.Print(phase.ASCII(canvasWidth, canvasHeight))

	if svgFile != "" {
		return writeSVG(svgFile, phase.Points, false)
	}
	return nil
}

func label(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return fmt.Sprintf("y%d", i)
}

func writeSVG(path string, points []analysis.Point, markers bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	opts := export.DefaultSVGOptions()
	opts.Stroke = string(viz.ThemeByName(themeName).Accent)
	opts.Markers = markers
	if err := export.SVG(f, points, opts); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return f.Close()
}

func spectrumRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	samples, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	spectrum, err := analysis.ComponentSpectrum(samples, component)
	if err != nil {
		return err
	}
	period, err := analysis.DominantPeriod(samples, component)
	if err != nil {
		return err
	}

	fmt.Println(viz.PlotSeries(spectrum.Power, fmt.Sprintf("power spectrum of y%d", component), width, height))
	fmt.Printf("\ndominant frequency: %.6g\n", 1/period)
	fmt.Printf("dominant period:    %.6g\n", period)
	return nil
}

func sectionRun(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if preset != "" {
		p := config.GetPreset(args[0], preset)
		if p == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(args[0]))
		}
		cfg = p
	}
	cfg.Problem = args[0]
	cfg.SampleStep = 0
	if cmd.Flags().Changed("t-end") {
		cfg.TEnd = tEnd
	}

	exp, err := experiment.New(cfg, experiment.NewRegistry(), newLogger())
	if err != nil {
		return err
	}
	section := analysis.NewSection(cross, level, xIndex, yIndex)
	if err := exp.Stepper().AddSwitchingFunction(section, cfg.Events.MaxCheckInterval, cfg.Events.Threshold); err != nil {
		return err
	}
	if _, err := exp.Run(cmd.Context()); err != nil {
		return err
	}

	fmt.Printf("%d crossings of y%d = %g\n\n", len(section.Points), cross, level)
	fmt.Print(section.ASCII(canvasWidth, canvasHeight))
	if svgFile != "" && len(section.Points) > 0 {
		return writeSVG(svgFile, section.Points, true)
	}
	return nil
}
