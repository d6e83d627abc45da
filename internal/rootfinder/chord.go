package rootfinder

import (
	"context"
	"fmt"

	"github.com/roach88/rootsolve/internal/plugin"
	"github.com/roach88/rootsolve/internal/variant"
)

var chordOptions = Common.With(
	plugin.Option{Name: "refresh_ratio", Type: variant.TypeDouble, Default: variant.NewDouble(0.5),
		Description: "Refactorize the Jacobian when a step reduces max(|F|) by less than this factor."},
)

func init() {
	Algorithms.MustRegister(plugin.Plugin[Algorithm, Args]{
		Name: "chord",
		Doc: "Chord method: Newton steps against a retained Jacobian factorization, " +
			"refreshed only when convergence stagnates. Trades iterations for " +
			"factorizations.",
		Options: chordOptions,
		Factory: newChord,
	})
}

// Chord reuses one factorization across iterates.
type Chord struct {
	refreshRatio float64
}

func newChord(args Args) (Algorithm, error) {
	ratio, err := args.Options["refresh_ratio"].ToDouble()
	if err != nil {
		return nil, err
	}
	if ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("refresh_ratio must be in (0, 1], got %g", ratio)
	}
	return &Chord{refreshRatio: ratio}, nil
}

// SolveNonlinear implements Algorithm.
func (a *Chord) SolveNonlinear(ctx context.Context, s *Session) error {
	fresh := false
	for !s.Done() {
		dz, err := s.Direction(fresh)
		if err != nil {
			return err
		}
		prev := s.Norm()
		if _, err := s.Step(dz, 1); err != nil {
			return err
		}
		fresh = s.Norm() > a.refreshRatio*prev
	}
	return nil
}
