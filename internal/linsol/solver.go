package linsol

import (
	"errors"
	"fmt"

	"github.com/roach88/rootsolve/internal/plugin"
	"github.com/roach88/rootsolve/internal/sparsity"
	"github.com/roach88/rootsolve/internal/variant"
)

var (
	// ErrSingular is returned by Factorize for a numerically singular matrix.
	ErrSingular = errors.New("linsol: singular matrix")

	// ErrNonFinite is returned by Factorize when an entry is NaN or infinite.
	ErrNonFinite = errors.New("linsol: non-finite matrix entry")

	// ErrNotFactorized is returned by Solve before a successful Factorize.
	ErrNotFactorized = errors.New("linsol: no factorization")
)

// Solver factorizes square matrices with a fixed sparsity pattern.
type Solver interface {
	// Name returns the plugin name the solver was created from.
	Name() string

	// Sparsity returns the pattern the solver was created for.
	Sparsity() sparsity.Pattern

	// Factorize factorizes the matrix with the given nonzeros. A failed
	// factorization discards any previous one.
	Factorize(nz []float64) error

	// Solve overwrites rhs, holding nrhs column-major right-hand sides, with
	// the solutions of A x = b, or A' x = b when transpose is set.
	Solve(rhs []float64, nrhs int, transpose bool) error

	// SpSolve ORs into dst the seeds of the entries of src each solution
	// entry may depend on.
	SpSolve(dst, src []sparsity.Word, transpose bool)
}

// Args are the construction arguments handed to a solver factory. Options
// are already resolved against the plugin's option table.
type Args struct {
	Pattern sparsity.Pattern
	Options variant.Dict
}

// Solvers is the registry of linear solver plugins.
var Solvers = plugin.NewRegistry[Solver, Args]("linsol", "lu")

// New creates the solver plugin name for matrices with the given pattern.
// An empty name selects the default solver.
func New(name string, pattern sparsity.Pattern, opts variant.Dict) (Solver, error) {
	if pattern.Rows() != pattern.Cols() {
		return nil, fmt.Errorf("linsol: matrix must be square, got %s", pattern.Shape())
	}
	p, err := Solvers.Load(name)
	if err != nil {
		return nil, err
	}
	resolved, err := p.Options.Resolve(opts)
	if err != nil {
		return nil, fmt.Errorf("linsol %q: %w", p.Name, err)
	}
	return Solvers.Instantiate(p.Name, Args{Pattern: pattern, Options: resolved})
}

// DenseSpSolve is the structural solve of a matrix without exploitable
// structure: every solution entry may depend on every right-hand side entry.
func DenseSpSolve(dst, src []sparsity.Word) {
	sparsity.Fill(dst, sparsity.Reduce(src))
}
