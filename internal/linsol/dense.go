package linsol

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/rootsolve/internal/sparsity"
)

// dense holds the column-major working copy shared by the built-in
// factorizations.
type dense struct {
	name       string
	pattern    sparsity.Pattern
	n          int
	a          []float64
	factorized bool
}

func newDense(name string, pattern sparsity.Pattern) dense {
	n := pattern.Rows()
	return dense{name: name, pattern: pattern, n: n, a: make([]float64, n*n)}
}

func (d *dense) Name() string               { return d.name }
func (d *dense) Sparsity() sparsity.Pattern { return d.pattern }

func (d *dense) SpSolve(dst, src []sparsity.Word, _ bool) {
	DenseSpSolve(dst, src)
}

// load scatters nz into the working copy and returns it as a matrix along
// with its largest magnitude.
func (d *dense) load(nz []float64) (mat.Matrix, float64, error) {
	d.factorized = false
	if len(nz) != d.pattern.Nnz() {
		return nil, 0, fmt.Errorf("linsol %s: got %d nonzeros, want %d", d.name, len(nz), d.pattern.Nnz())
	}
	scale := 0.0
	for _, v := range nz {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, ErrNonFinite
		}
		scale = math.Max(scale, math.Abs(v))
	}
	if scale == 0 {
		return nil, 0, fmt.Errorf("%w: zero matrix", ErrSingular)
	}
	copy(d.a, d.pattern.Densify(nz))
	return colMajor(d.n, d.n, d.a), scale, nil
}

// colMajor views column-major data as an r x c matrix without copying.
func colMajor(r, c int, data []float64) mat.Matrix {
	return mat.NewDense(c, r, data).T()
}

// checkDiagonal fails when a diagonal entry of a triangular factor is
// not above tol times scale.
func checkDiagonal(n int, at func(i, j int) float64, tol, scale float64, what string) error {
	for k := 0; k < n; k++ {
		if math.Abs(at(k, k)) <= tol*scale {
			return fmt.Errorf("%w: %s in column %d", ErrSingular, what, k)
		}
	}
	return nil
}

// solveFunc is the SolveTo method of a gonum factorization.
type solveFunc func(dst *mat.Dense, trans bool, b mat.Matrix) error

// solve overwrites the column-major right-hand sides in rhs with the
// solutions computed by f.
func (d *dense) solve(f solveFunc, rhs []float64, nrhs int, transpose bool) error {
	if !d.factorized {
		return ErrNotFactorized
	}
	if nrhs < 0 || len(rhs) != d.n*nrhs {
		return fmt.Errorf("linsol %s: rhs has %d entries, want %d x %d", d.name, len(rhs), d.n, nrhs)
	}
	if nrhs == 0 {
		return nil
	}
	var x mat.Dense
	if err := f(&x, transpose, colMajor(d.n, nrhs, rhs)); err != nil {
		// A finite condition number only warns: the solution was computed
		// and the factorization already passed the tolerance checks.
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return fmt.Errorf("%w: %v", ErrSingular, err)
		}
	}
	for c := 0; c < nrhs; c++ {
		for i := 0; i < d.n; i++ {
			rhs[c*d.n+i] = x.At(i, c)
		}
	}
	return nil
}
