package function

import (
	"context"
	"fmt"
	"io"

	"github.com/roach88/rootsolve/internal/sparsity"
)

// Function is an immutable evaluator with a fixed number of matrix-valued
// inputs and outputs.
//
// SpForward overwrites every non-nil res[j] with the union of seeds of the
// inputs that output j structurally depends on; nil arg entries carry no
// seeds. SpAdjoint ORs the seeds of every non-nil res[j] into the non-nil
// arg entries it depends on and never clears anything, so repeated calls
// accumulate. Seed slices hold one word per structural nonzero.
type Function interface {
	Name() string
	NIn() int
	NOut() int
	SparsityIn(i int) sparsity.Pattern
	SparsityOut(i int) sparsity.Pattern
	Eval(ctx context.Context, args [][]float64) ([][]float64, error)
	SpForward(arg, res [][]sparsity.Word) error
	SpAdjoint(arg, res [][]sparsity.Word) error
}

// Differentiable is implemented by functions that provide their own
// Jacobian blocks.
type Differentiable interface {
	Function
	// Jacobian returns a function with the same inputs and one output: the
	// derivative of output iout with respect to input iin, laid out with one
	// row per output nonzero and one column per input nonzero.
	Jacobian(iin, iout int) (Function, error)
}

// Jacobian returns the derivative of output iout with respect to input iin.
// Functions that do not implement Differentiable get a finite-difference
// approximation.
func Jacobian(f Function, iin, iout int) (Function, error) {
	if err := checkIndex(f, iin, iout); err != nil {
		return nil, err
	}
	if d, ok := f.(Differentiable); ok {
		return d.Jacobian(iin, iout)
	}
	return NewFiniteDifference(f, iin, iout, Central)
}

// Release closes f if it holds resources.
func Release(f Function) error {
	if c, ok := f.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Call validates args against f's input patterns, evaluates, and validates
// the results.
func Call(ctx context.Context, f Function, args [][]float64) ([][]float64, error) {
	if err := CheckArgs(f, args); err != nil {
		return nil, err
	}
	res, err := f.Eval(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(res) != f.NOut() {
		return nil, &DimensionError{Func: f.Name(), Kind: "outputs", Index: -1, Want: f.NOut(), Got: len(res)}
	}
	for j, r := range res {
		if want := f.SparsityOut(j).Nnz(); len(r) != want {
			return nil, &DimensionError{Func: f.Name(), Kind: "output", Index: j, Want: want, Got: len(r)}
		}
	}
	return res, nil
}

// CheckArgs validates the number and length of numeric arguments.
func CheckArgs(f Function, args [][]float64) error {
	if len(args) != f.NIn() {
		return &DimensionError{Func: f.Name(), Kind: "inputs", Index: -1, Want: f.NIn(), Got: len(args)}
	}
	for i, a := range args {
		if want := f.SparsityIn(i).Nnz(); len(a) != want {
			return &DimensionError{Func: f.Name(), Kind: "input", Index: i, Want: want, Got: len(a)}
		}
	}
	return nil
}

// CheckSeeds validates seed slices for sparsity propagation. nil entries
// are allowed.
func CheckSeeds(f Function, arg, res [][]sparsity.Word) error {
	if len(arg) != f.NIn() {
		return &DimensionError{Func: f.Name(), Kind: "input seeds", Index: -1, Want: f.NIn(), Got: len(arg)}
	}
	if len(res) != f.NOut() {
		return &DimensionError{Func: f.Name(), Kind: "output seeds", Index: -1, Want: f.NOut(), Got: len(res)}
	}
	for i, a := range arg {
		if want := f.SparsityIn(i).Nnz(); a != nil && len(a) != want {
			return &DimensionError{Func: f.Name(), Kind: "input seed", Index: i, Want: want, Got: len(a)}
		}
	}
	for j, r := range res {
		if want := f.SparsityOut(j).Nnz(); r != nil && len(r) != want {
			return &DimensionError{Func: f.Name(), Kind: "output seed", Index: j, Want: want, Got: len(r)}
		}
	}
	return nil
}

func checkIndex(f Function, iin, iout int) error {
	if iin < 0 || iin >= f.NIn() {
		return fmt.Errorf("function %s: input index %d out of range [0, %d)", f.Name(), iin, f.NIn())
	}
	if iout < 0 || iout >= f.NOut() {
		return fmt.Errorf("function %s: output index %d out of range [0, %d)", f.Name(), iout, f.NOut())
	}
	return nil
}

// DenseSpForward propagates as if every output depended on every input.
func DenseSpForward(arg, res [][]sparsity.Word) {
	var w sparsity.Word
	for _, a := range arg {
		w |= sparsity.Reduce(a)
	}
	for _, r := range res {
		if r != nil {
			sparsity.Clear(r)
			sparsity.Fill(r, w)
		}
	}
}

// DenseSpAdjoint is the adjoint of DenseSpForward.
func DenseSpAdjoint(arg, res [][]sparsity.Word) {
	var w sparsity.Word
	for _, r := range res {
		w |= sparsity.Reduce(r)
	}
	for _, a := range arg {
		if a != nil {
			sparsity.Fill(a, w)
		}
	}
}

// JacobianSparsity computes the structural pattern of d(output iout)/d(input
// iin) by forward propagation, WordBits input directions per pass.
func JacobianSparsity(f Function, iin, iout int) (sparsity.Pattern, error) {
	if err := checkIndex(f, iin, iout); err != nil {
		return sparsity.Pattern{}, err
	}
	nIn := f.SparsityIn(iin).Nnz()
	nOut := f.SparsityOut(iout).Nnz()

	var rows, cols []int
	arg := make([][]sparsity.Word, f.NIn())
	res := make([][]sparsity.Word, f.NOut())
	arg[iin] = make([]sparsity.Word, nIn)
	res[iout] = make([]sparsity.Word, nOut)

	err := sparsity.Batch(nIn, func(off, width int) error {
		sparsity.Clear(arg[iin])
		for b := 0; b < width; b++ {
			arg[iin][off+b] = sparsity.Word(0).Set(b)
		}
		if err := f.SpForward(arg, res); err != nil {
			return err
		}
		for r, w := range res[iout] {
			for b := 0; b < width; b++ {
				if w.Has(b) {
					rows = append(rows, r)
					cols = append(cols, off+b)
				}
			}
		}
		return nil
	})
	if err != nil {
		return sparsity.Pattern{}, fmt.Errorf("function %s: jacobian sparsity: %w", f.Name(), err)
	}
	return sparsity.FromTriplets(nOut, nIn, rows, cols)
}
