package linsol

import (
	"gonum.org/v1/gonum/mat"

	"github.com/roach88/rootsolve/internal/plugin"
	"github.com/roach88/rootsolve/internal/variant"
)

var qrOptions = plugin.OptionTable{
	{Name: "rank_tol", Type: variant.TypeDouble, Default: variant.NewDouble(1e-12),
		Description: "Diagonal entries of R smaller than rank_tol times the largest matrix entry mark the matrix singular."},
}

func init() {
	Solvers.MustRegister(plugin.Plugin[Solver, Args]{
		Name: "qr",
		Doc: "Dense QR factorization with Householder reflections (A = Q R). " +
			"Slower than lu but more robust on badly scaled Jacobians.",
		Options: qrOptions,
		Factory: newQR,
	})
}

// QR factorizes A = Q R with Q orthogonal and R upper triangular.
type QR struct {
	dense
	tol float64
	qr  mat.QR
}

func newQR(args Args) (Solver, error) {
	tol, err := args.Options["rank_tol"].ToDouble()
	if err != nil {
		return nil, err
	}
	return &QR{dense: newDense("qr", args.Pattern), tol: tol}, nil
}

// Factorize implements Solver.
func (s *QR) Factorize(nz []float64) error {
	a, scale, err := s.load(nz)
	if err != nil {
		return err
	}
	s.qr.Factorize(a)
	var r mat.Dense
	s.qr.RTo(&r)
	if err := checkDiagonal(s.n, r.At, s.tol, scale, "rank deficient"); err != nil {
		return err
	}
	s.factorized = true
	return nil
}

// Solve implements Solver.
func (s *QR) Solve(rhs []float64, nrhs int, transpose bool) error {
	return s.solve(s.qr.SolveTo, rhs, nrhs, transpose)
}
