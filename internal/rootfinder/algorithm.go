package rootfinder

import (
	"context"

	"github.com/roach88/rootsolve/internal/plugin"
	"github.com/roach88/rootsolve/internal/variant"
)

// Algorithm is the iterative part of a solve. SolveNonlinear moves the
// session's iterate until Session.Done reports convergence and returns nil,
// or returns an error. The surrounding bookkeeping belongs to the
// Rootfinder.
type Algorithm interface {
	SolveNonlinear(ctx context.Context, s *Session) error
}

// Args are the construction arguments of an algorithm plugin. Options are
// already resolved against the plugin's option table.
type Args struct {
	// N is the number of unknowns.
	N       int
	Options variant.Dict
}

// Algorithms is the registry of rootfinder algorithm plugins.
var Algorithms = plugin.NewRegistry[Algorithm, Args]("rootfinder", "newton")
