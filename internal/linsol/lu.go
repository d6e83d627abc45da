package linsol

import (
	"gonum.org/v1/gonum/mat"

	"github.com/roach88/rootsolve/internal/plugin"
	"github.com/roach88/rootsolve/internal/variant"
)

var luOptions = plugin.OptionTable{
	{Name: "pivot_tol", Type: variant.TypeDouble, Default: variant.NewDouble(1e-14),
		Description: "Pivots smaller than pivot_tol times the largest matrix entry are treated as zero."},
}

func init() {
	Solvers.MustRegister(plugin.Plugin[Solver, Args]{
		Name: "lu",
		Doc: "Dense LU factorization with partial pivoting (P A = L U). " +
			"Supports transposed solves against the same factorization.",
		Options: luOptions,
		Factory: newLU,
	})
}

// LU factorizes P A = L U with L unit lower triangular.
type LU struct {
	dense
	tol float64
	lu  mat.LU
}

func newLU(args Args) (Solver, error) {
	tol, err := args.Options["pivot_tol"].ToDouble()
	if err != nil {
		return nil, err
	}
	return &LU{dense: newDense("lu", args.Pattern), tol: tol}, nil
}

// Factorize implements Solver.
func (s *LU) Factorize(nz []float64) error {
	a, scale, err := s.load(nz)
	if err != nil {
		return err
	}
	s.lu.Factorize(a)
	var u mat.TriDense
	s.lu.UTo(&u)
	if err := checkDiagonal(s.n, u.At, s.tol, scale, "zero pivot"); err != nil {
		return err
	}
	s.factorized = true
	return nil
}

// Solve implements Solver.
func (s *LU) Solve(rhs []float64, nrhs int, transpose bool) error {
	return s.solve(s.lu.SolveTo, rhs, nrhs, transpose)
}
