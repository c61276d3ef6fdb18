package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/odestep/internal/config"
	"github.com/san-kum/odestep/internal/continuous"
	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/events"
	"github.com/san-kum/odestep/internal/handlers"
	"github.com/san-kum/odestep/internal/integrators"
	"github.com/san-kum/odestep/internal/metrics"
	"github.com/san-kum/odestep/internal/models"
)

// Result is the outcome of one run.
type Result struct {
	Problem  string
	Scheme   string
	T0, TEnd float64
	Final    dynamo.State
	// FinalTime differs from TEnd when an event stopped the run.
	FinalTime float64
	Stats     dynamo.Stats
	Events    []events.Occurrence
	Metrics   map[string]float64
	Model     *continuous.Model
	Samples   *handlers.Trajectory
	StepSizes []float64
	Elapsed   time.Duration
}

type Experiment struct {
	cfg     *config.Config
	problem models.Problem
	stepper *integrators.Stepper
	logger  *slog.Logger

	t0, tEnd float64
	y0       dynamo.State

	observers []dynamo.StepHandler
}

// New resolves the problem and the stepper named by cfg.
func New(cfg *config.Config, reg *Registry, logger *slog.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	problem, err := reg.GetProblem(cfg.Problem, cfg)
	if err != nil {
		return nil, err
	}
	stepper, err := cfg.NewStepper(integrators.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	e := &Experiment{cfg: cfg, problem: problem, stepper: stepper, logger: logger}
	e.t0, e.tEnd = problem.InitialTime(), problem.FinalTime()
	e.y0 = problem.InitialState()
	if cfg.HasSpan() {
		// start on the exact solution so the error metrics stay meaningful
		e.t0, e.tEnd = cfg.T0, cfg.TEnd
		e.y0 = problem.TheoreticalState(cfg.T0)
	}

	if sw, ok := problem.(models.Switched); ok {
		for _, fn := range sw.SwitchingFunctions() {
			if err := stepper.AddSwitchingFunction(fn, cfg.Events.MaxCheckInterval, cfg.Events.Threshold); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

func (e *Experiment) Problem() models.Problem       { return e.problem }
func (e *Experiment) Stepper() *integrators.Stepper { return e.stepper }

// Span returns the integration interval of Run.
func (e *Experiment) Span() (t0, tEnd float64) { return e.t0, e.tEnd }

// Observe adds h to the handlers of every later Run.
func (e *Experiment) Observe(h dynamo.StepHandler) {
	e.observers = append(e.observers, h)
}

func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	model := continuous.New()
	errTracker := metrics.NewErrorTracker(e.problem)
	stepSizes := metrics.NewStepSizes()
	tracked := []metrics.Metric{errTracker, stepSizes}
	if h, ok := e.problem.(metrics.Hamiltonian); ok {
		tracked = append(tracked, metrics.NewEnergyDrift(h))
	}

	mux := handlers.NewMultiplexer(model)
	for _, m := range tracked {
		mux.Add(m)
	}
	for _, h := range e.observers {
		mux.Add(h)
	}
	samples := &handlers.Trajectory{}
	if e.cfg.SampleStep > 0 {
		normalizer, err := handlers.NewNormalizer(e.cfg.SampleStep, samples)
		if err != nil {
			return nil, err
		}
		mux.Add(normalizer)
	}
	e.stepper.SetStepHandler(mux)

	e.logger.Info("integrating", "problem", e.problem.Name(), "scheme", e.stepper.Name(),
		"t0", e.t0, "t_end", e.tEnd)
	start := time.Now()
	final, err := e.stepper.Integrate(ctx, e.problem, e.t0, e.y0, e.tEnd)
	if err != nil {
		return nil, fmt.Errorf("experiment %s/%s: %w", e.problem.Name(), e.stepper.Name(), err)
	}

	res := &Result{
		Problem:   e.problem.Name(),
		Scheme:    e.stepper.Name(),
		T0:        e.t0,
		TEnd:      e.tEnd,
		Final:     final,
		FinalTime: model.FinalTime(),
		Stats:     e.stepper.Stats(),
		Events:    e.stepper.Events(),
		Metrics:   make(map[string]float64),
		Model:     model,
		Samples:   samples,
		StepSizes: stepSizes.Sizes(),
		Elapsed:   time.Since(start),
	}
	for _, m := range tracked {
		res.Metrics[m.Name()] = m.Value()
	}
	res.Metrics["last_error"] = errTracker.LastError()
	lo, hi := stepSizes.Range()
	res.Metrics["min_step"] = lo
	res.Metrics["max_step"] = hi

	e.logger.Info("integration done", "steps", res.Stats.Steps, "rejected", res.Stats.Rejected,
		"evaluations", res.Stats.Evaluations, "events", res.Stats.Events, "elapsed", res.Elapsed)
	return res, nil
}
