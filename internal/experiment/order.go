package experiment

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/odestep/internal/config"
	"github.com/san-kum/odestep/internal/integrators"
	"github.com/san-kum/odestep/internal/metrics"
)

// OrderStudy holds the errors of one scheme across step sizes.
type OrderStudy struct {
	Scheme string
	Steps  []float64
	Errors []float64
	Slope  float64
}

// StudyOrder integrates cfg once per step size and fits the observed order
// of accuracy to the final errors. The runs are independent and execute
// concurrently.
func StudyOrder(ctx context.Context, cfg *config.Config, reg *Registry, steps []float64) (*OrderStudy, error) {
	if scheme, ok := integrators.SchemeByName(cfg.Scheme); ok && integrators.HasErrorEstimate(scheme) {
		return nil, fmt.Errorf("order study needs a fixed step scheme, got %s", cfg.Scheme)
	}

	study := &OrderStudy{
		Scheme: cfg.Scheme,
		Steps:  append([]float64(nil), steps...),
		Errors: make([]float64, len(steps)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, h := range steps {
		g.Go(func() error {
			run := *cfg
			run.Step = h
			run.SampleStep = 0
			e, err := New(&run, reg, nil)
			if err != nil {
				return err
			}
			res, err := e.Run(gctx)
			if err != nil {
				return fmt.Errorf("step %g: %w", h, err)
			}
			study.Errors[i] = res.Metrics["last_error"]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slope, err := metrics.ConvergenceOrder(study.Steps, study.Errors)
	if err != nil {
		return nil, err
	}
	study.Slope = slope
	return study, nil
}
