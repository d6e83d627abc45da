package rootfinder

import (
	"context"

	"github.com/roach88/rootsolve/internal/plugin"
	"github.com/roach88/rootsolve/internal/variant"
)

const (
	// armijo is the sufficient decrease factor of the backtracking search.
	armijo = 1e-4
	// minAlpha ends backtracking; the shortest step is taken regardless.
	minAlpha = 1.0 / 1024
)

var newtonOptions = Common.With(
	plugin.Option{Name: "line_search", Type: variant.TypeBool, Default: variant.NewBool(true),
		Description: "Backtrack along the Newton direction until max(|F|) decreases sufficiently."},
)

func init() {
	Algorithms.MustRegister(plugin.Plugin[Algorithm, Args]{
		Name: "newton",
		Doc: "Full Newton method: the Jacobian is refactorized at every iterate " +
			"and the Newton step is optionally damped by backtracking. Converges " +
			"quadratically near a regular root.",
		Options: newtonOptions,
		Factory: newNewton,
	})
}

// Newton takes full Newton steps with a fresh factorization at every
// iterate.
type Newton struct {
	lineSearch bool
}

func newNewton(args Args) (Algorithm, error) {
	ls, err := args.Options["line_search"].ToBool()
	if err != nil {
		return nil, err
	}
	return &Newton{lineSearch: ls}, nil
}

// SolveNonlinear implements Algorithm.
func (a *Newton) SolveNonlinear(ctx context.Context, s *Session) error {
	for !s.Done() {
		dz, err := s.Direction(true)
		if err != nil {
			return err
		}
		alpha := 1.0
		if a.lineSearch {
			if alpha, err = backtrack(s, dz); err != nil {
				return err
			}
		}
		if _, err := s.Step(dz, alpha); err != nil {
			return err
		}
	}
	return nil
}

// backtrack halves alpha until z + alpha*dz decreases max(|F|) by the
// Armijo factor.
func backtrack(s *Session, dz []float64) (float64, error) {
	f0 := s.Norm()
	alpha := 1.0
	for alpha > minAlpha {
		norm, err := s.TryStep(dz, alpha)
		if err != nil {
			return 0, err
		}
		if norm <= (1-armijo*alpha)*f0 {
			break
		}
		alpha /= 2
	}
	return alpha, nil
}
