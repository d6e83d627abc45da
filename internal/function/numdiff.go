package function

import (
	"context"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/roach88/rootsolve/internal/sparsity"
)

var (
	sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
	cubeEps = math.Pow(math.Nextafter(1, 2)-1, 1.0/3)
)

// Method selects the finite-difference scheme.
type Method int

const (
	// Forward uses first order forward differences.
	Forward Method = iota
	// Central uses second order central differences.
	Central
)

func (m Method) String() string {
	if m == Central {
		return "central"
	}
	return "forward"
}

// formula is the difference stencil of m. Only the stencil is used; steps
// are scaled per entry.
func (m Method) formula() fd.Formula {
	if m == Central {
		return fd.Central
	}
	return fd.Forward
}

// FiniteDifference approximates one Jacobian block of a function. Its
// output pattern is the structural Jacobian pattern of the block, found by
// sparsity propagation, so structurally zero entries are never estimated.
type FiniteDifference struct {
	f       Function
	iin     int
	iout    int
	method  Method
	pattern sparsity.Pattern
}

// NewFiniteDifference creates the finite-difference Jacobian of output iout
// with respect to input iin.
func NewFiniteDifference(f Function, iin, iout int, method Method) (*FiniteDifference, error) {
	pattern, err := JacobianSparsity(f, iin, iout)
	if err != nil {
		return nil, err
	}
	return &FiniteDifference{f: f, iin: iin, iout: iout, method: method, pattern: pattern}, nil
}

func (d *FiniteDifference) Name() string                      { return "jac_" + d.f.Name() }
func (d *FiniteDifference) NIn() int                          { return d.f.NIn() }
func (d *FiniteDifference) NOut() int                         { return 1 }
func (d *FiniteDifference) SparsityIn(i int) sparsity.Pattern { return d.f.SparsityIn(i) }
func (d *FiniteDifference) SparsityOut(int) sparsity.Pattern  { return d.pattern }

// step returns the absolute step for x: h = rel * sign(x) * max(1, |x|).
func (d *FiniteDifference) step(x float64) float64 {
	rel := sqrtEps
	if d.method == Central {
		rel = cubeEps
	}
	sign := 1.0
	if x < 0 {
		sign = -1
	}
	h := rel * sign * math.Max(1, math.Abs(x))
	// round so that x+h is exactly representable
	return (x + h) - x
}

// Eval implements Function.
func (d *FiniteDifference) Eval(ctx context.Context, args [][]float64) ([][]float64, error) {
	if err := CheckArgs(d, args); err != nil {
		return nil, err
	}
	nz := make([]float64, d.pattern.Nnz())
	colind, row := d.pattern.ColInd(), d.pattern.RowInd()

	perturbed := slices.Clone(args)
	x0 := args[d.iin]
	x := slices.Clone(x0)
	perturbed[d.iin] = x

	stencil := d.method.formula().Stencil
	var f0 []float64
	for _, p := range stencil {
		if p.Loc != 0 {
			continue
		}
		res, err := d.f.Eval(ctx, args)
		if err != nil {
			return nil, err
		}
		f0 = res[d.iout]
		break
	}

	for col := 0; col < d.pattern.Cols(); col++ {
		if colind[col] == colind[col+1] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h := d.step(x0[col])

		for _, p := range stencil {
			fx := f0
			if p.Loc != 0 {
				x[col] = x0[col] + p.Loc*h
				res, err := d.f.Eval(ctx, perturbed)
				if err != nil {
					return nil, fmt.Errorf("%s: column %d: %w", d.Name(), col, err)
				}
				fx = res[d.iout]
			}
			for k := colind[col]; k < colind[col+1]; k++ {
				nz[k] += p.Coeff * fx[row[k]]
			}
		}
		x[col] = x0[col]

		for k := colind[col]; k < colind[col+1]; k++ {
			nz[k] /= h
		}
	}
	return [][]float64{nz}, nil
}

// SpForward implements Function. Every Jacobian entry may depend on every
// input of the underlying function.
func (d *FiniteDifference) SpForward(arg, res [][]sparsity.Word) error {
	if err := CheckSeeds(d, arg, res); err != nil {
		return err
	}
	DenseSpForward(arg, res)
	return nil
}

// SpAdjoint implements Function.
func (d *FiniteDifference) SpAdjoint(arg, res [][]sparsity.Word) error {
	if err := CheckSeeds(d, arg, res); err != nil {
		return err
	}
	DenseSpAdjoint(arg, res)
	return nil
}
