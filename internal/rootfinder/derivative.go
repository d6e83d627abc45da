package rootfinder

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/rootsolve/internal/function"
	"github.com/roach88/rootsolve/internal/sparsity"
)

// NumDerForward is the number of forward directions computed per batched
// solve. Larger requests are split into batches of this size.
func (r *Rootfinder) NumDerForward() int { return sparsity.WordBits }

// NumDerReverse is the number of adjoint directions computed per batched
// solve.
func (r *Rootfinder) NumDerReverse() int { return sparsity.WordBits }

// ForwardFunction returns a function computing k forward directional
// derivatives of the root. Its inputs are the rootfinder's inputs, the
// root, and k groups of seeds, one seed per rootfinder input; its outputs
// are the k sensitivities of the root:
//
//	dz = -J^-1 sum_i (dF/dp_i) dp_i
//
// Seeds on the guess are ignored. The result reuses the factorization left
// by the last successful Eval and fails with ErrNoFactorization when none
// matches the given point. Functions are cached per k.
func (r *Rootfinder) ForwardFunction(k int) (function.Function, error) {
	return r.derivativeFunction(k, false)
}

// ReverseFunction returns a function computing k adjoint sensitivities.
// Its inputs are the rootfinder's inputs, the root, and k adjoint seeds on
// the root; its outputs are k groups of adjoint sensitivities, one per
// rootfinder input:
//
//	pbar_i = -(dF/dp_i)' J^-T zbar
//
// The guess's adjoint sensitivity is always zero.
func (r *Rootfinder) ReverseFunction(k int) (function.Function, error) {
	return r.derivativeFunction(k, true)
}

func (r *Rootfinder) derivativeFunction(k int, reverse bool) (function.Function, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.state == Uninitialized {
		return nil, ErrNotInitialized
	}
	if k < 1 {
		return nil, fmt.Errorf("rootfinder %s: need at least one direction, got %d", r.name, k)
	}
	cache := r.fwd
	if reverse {
		cache = r.rev
	}
	if d, ok := cache[k]; ok {
		return d, nil
	}
	for i := 0; i < r.f.NIn(); i++ {
		if i == r.iin {
			continue
		}
		if _, err := r.paramJacobian(i); err != nil {
			return nil, err
		}
	}
	d := newDerivative(r, k, reverse)
	cache[k] = d
	return d, nil
}

func (r *Rootfinder) paramJacobian(i int) (function.Function, error) {
	if j, ok := r.jacP[i]; ok {
		return j, nil
	}
	j, err := function.Jacobian(r.f, i, 0)
	if err != nil {
		return nil, fmt.Errorf("rootfinder %s: jacobian wrt input %d: %w", r.name, i, err)
	}
	r.jacP[i] = j
	return j, nil
}

// derivative is a forward or reverse sensitivity function of a rootfinder.
type derivative struct {
	rf      *Rootfinder
	k       int
	reverse bool
	name    string
	in      []sparsity.Pattern
	out     []sparsity.Pattern
}

func newDerivative(rf *Rootfinder, k int, reverse bool) *derivative {
	nIn := rf.f.NIn()
	root := sparsity.DenseColumn(rf.n)
	d := &derivative{rf: rf, k: k, reverse: reverse}

	for i := 0; i < nIn; i++ {
		d.in = append(d.in, rf.f.SparsityIn(i))
	}
	d.in = append(d.in, root)

	if reverse {
		d.name = fmt.Sprintf("adj%d_%s", k, rf.name)
		for dir := 0; dir < k; dir++ {
			d.in = append(d.in, root)
			for i := 0; i < nIn; i++ {
				d.out = append(d.out, rf.f.SparsityIn(i))
			}
		}
		return d
	}

	d.name = fmt.Sprintf("fwd%d_%s", k, rf.name)
	for dir := 0; dir < k; dir++ {
		for i := 0; i < nIn; i++ {
			d.in = append(d.in, rf.f.SparsityIn(i))
		}
		d.out = append(d.out, root)
	}
	return d
}

func (d *derivative) Name() string                       { return d.name }
func (d *derivative) NIn() int                           { return len(d.in) }
func (d *derivative) NOut() int                          { return len(d.out) }
func (d *derivative) SparsityIn(i int) sparsity.Pattern  { return d.in[i] }
func (d *derivative) SparsityOut(i int) sparsity.Pattern { return d.out[i] }
func (d *derivative) Close() error                       { return nil }

// SpForward implements function.Function conservatively.
func (d *derivative) SpForward(arg, res [][]sparsity.Word) error {
	if err := function.CheckSeeds(d, arg, res); err != nil {
		return err
	}
	function.DenseSpForward(arg, res)
	return nil
}

// SpAdjoint implements function.Function conservatively.
func (d *derivative) SpAdjoint(arg, res [][]sparsity.Word) error {
	if err := function.CheckSeeds(d, arg, res); err != nil {
		return err
	}
	function.DenseSpAdjoint(arg, res)
	return nil
}

// paramBlock is dF/dp_i evaluated at the root, as coordinate lists.
type paramBlock struct {
	input int
	rows  []int
	cols  []int
	nz    []float64
}

// prepare checks the factorization against the point and evaluates the
// parameter Jacobians there.
func (d *derivative) prepare(ctx context.Context, args [][]float64) ([]paramBlock, error) {
	rf := d.rf
	if rf.closed {
		return nil, ErrClosed
	}
	if err := function.CheckArgs(d, args); err != nil {
		return nil, err
	}
	nIn := rf.f.NIn()
	point := slices.Clone(args[:nIn])
	point[rf.iin] = args[nIn]

	if rf.state != Factorized {
		return nil, ErrNoFactorization
	}
	if !sameArgs(rf.factorizedAt, point) {
		return nil, fmt.Errorf("%w: factorized at a different point", ErrNoFactorization)
	}

	blocks := make([]paramBlock, 0, nIn-1)
	for i := 0; i < nIn; i++ {
		if i == rf.iin {
			continue
		}
		jac, err := rf.paramJacobian(i)
		if err != nil {
			return nil, err
		}
		res, err := function.Call(ctx, jac, point)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.name, err)
		}
		rows, cols := jac.SparsityOut(0).Find()
		blocks = append(blocks, paramBlock{input: i, rows: rows, cols: cols, nz: res[0]})
	}
	return blocks, nil
}

// Eval implements function.Function.
func (d *derivative) Eval(ctx context.Context, args [][]float64) ([][]float64, error) {
	blocks, err := d.prepare(ctx, args)
	if err != nil {
		return nil, err
	}
	if d.reverse {
		return d.evalReverse(ctx, args, blocks)
	}
	return d.evalForward(ctx, args, blocks)
}

func (d *derivative) evalForward(ctx context.Context, args [][]float64, blocks []paramBlock) ([][]float64, error) {
	rf := d.rf
	n, nIn := rf.n, rf.f.NIn()
	out := make([][]float64, d.k)

	err := sparsity.Batch(d.k, func(off, width int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rhs := make([]float64, n*width)
		for dir := 0; dir < width; dir++ {
			col := rhs[dir*n : (dir+1)*n]
			seeds := args[nIn+1+(off+dir)*nIn:]
			for _, b := range blocks {
				dp := seeds[b.input]
				for k, v := range b.nz {
					col[b.rows[k]] -= v * dp[b.cols[k]]
				}
			}
		}
		if err := rf.linsol.Solve(rhs, width, false); err != nil {
			return &NumericError{Code: ErrCodeSingular, Message: "forward sensitivity solve failed", Err: err}
		}
		for dir := 0; dir < width; dir++ {
			out[off+dir] = rhs[dir*n : (dir+1)*n]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *derivative) evalReverse(ctx context.Context, args [][]float64, blocks []paramBlock) ([][]float64, error) {
	rf := d.rf
	n, nIn := rf.n, rf.f.NIn()
	out := make([][]float64, len(d.out))
	for i := range out {
		out[i] = make([]float64, d.out[i].Nnz())
	}

	err := sparsity.Batch(d.k, func(off, width int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		lambda := make([]float64, n*width)
		for dir := 0; dir < width; dir++ {
			copy(lambda[dir*n:(dir+1)*n], args[nIn+1+off+dir])
		}
		if err := rf.linsol.Solve(lambda, width, true); err != nil {
			return &NumericError{Code: ErrCodeSingular, Message: "adjoint sensitivity solve failed", Err: err}
		}
		for dir := 0; dir < width; dir++ {
			l := lambda[dir*n : (dir+1)*n]
			group := out[(off+dir)*nIn:]
			for _, b := range blocks {
				pbar := group[b.input]
				for k, v := range b.nz {
					pbar[b.cols[k]] -= v * l[b.rows[k]]
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sameArgs(a, b [][]float64) bool {
	return slices.EqualFunc(a, b, func(x, y []float64) bool { return slices.Equal(x, y) })
}
