package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/odestep/internal/config"
	"github.com/san-kum/odestep/internal/integrators"
	"github.com/san-kum/odestep/internal/models"
)

// ProblemFactory builds a reference problem from the run configuration.
type ProblemFactory func(cfg *config.Config) (models.Problem, error)

type Registry struct {
	problems map[string]ProblemFactory
}

func NewRegistry() *Registry {
	r := &Registry{problems: make(map[string]ProblemFactory)}

	r.problems["decay"] = func(*config.Config) (models.Problem, error) { return models.NewDecay(), nil }
	r.problems["oscillator"] = func(*config.Config) (models.Problem, error) { return models.NewOscillator(), nil }
	r.problems["kepler"] = func(cfg *config.Config) (models.Problem, error) {
		return models.NewKepler(cfg.Eccentricity)
	}
	r.problems["ball"] = func(cfg *config.Config) (models.Problem, error) {
		b := models.NewBouncingBall()
		b.MaxBounces = cfg.MaxBounces
		return b, nil
	}

	return r
}

// Register adds or replaces a problem.
func (r *Registry) Register(name string, factory ProblemFactory) {
	r.problems[name] = factory
}

func (r *Registry) GetProblem(name string, cfg *config.Config) (models.Problem, error) {
	fn, ok := r.problems[name]
	if !ok {
		return nil, fmt.Errorf("unknown problem: %s", name)
	}
	return fn(cfg)
}

func (r *Registry) ListProblems() []string {
	names := make([]string, 0, len(r.problems))
	for name := range r.problems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListSchemes() []string {
	return integrators.SchemeNames()
}
