package function

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/rootsolve/internal/sparsity"
)

// EvalFunc computes output nonzeros from input nonzeros.
type EvalFunc func(ctx context.Context, args [][]float64) ([][]float64, error)

type block struct{ iout, iin int }

// Callback is a Function backed by a Go closure. Structural dependencies
// default to dense; declare finer ones with WithDependency.
type Callback struct {
	name string
	in   []sparsity.Pattern
	out  []sparsity.Pattern
	eval EvalFunc
	deps map[block]sparsity.Pattern
	jacs map[block]Function
}

// Option configures a Callback.
type Option func(*Callback)

// WithDependency declares the structural dependency of output iout on
// input iin: one row per output nonzero, one column per input nonzero.
func WithDependency(iout, iin int, p sparsity.Pattern) Option {
	return func(c *Callback) {
		c.deps[block{iout, iin}] = p
	}
}

// WithJacobian supplies an analytic Jacobian of output iout with respect to
// input iin.
func WithJacobian(iin, iout int, jac Function) Option {
	return func(c *Callback) {
		c.jacs[block{iout, iin}] = jac
	}
}

// New creates a callback function.
func New(name string, in, out []sparsity.Pattern, eval EvalFunc, opts ...Option) (*Callback, error) {
	if name == "" {
		return nil, errors.New("function: empty name")
	}
	if eval == nil {
		return nil, fmt.Errorf("function %s: nil evaluator", name)
	}
	c := &Callback{
		name: name,
		in:   slices.Clone(in),
		out:  slices.Clone(out),
		eval: eval,
		deps: make(map[block]sparsity.Pattern),
		jacs: make(map[block]Function),
	}
	for _, opt := range opts {
		opt(c)
	}
	for b, p := range c.deps {
		if err := c.checkBlock(b); err != nil {
			return nil, err
		}
		if p.Rows() != c.out[b.iout].Nnz() || p.Cols() != c.in[b.iin].Nnz() {
			return nil, fmt.Errorf("function %s: dependency of output %d on input %d is %s, want %dx%d",
				name, b.iout, b.iin, p.Shape(), c.out[b.iout].Nnz(), c.in[b.iin].Nnz())
		}
	}
	for b, jac := range c.jacs {
		if err := c.checkBlock(b); err != nil {
			return nil, err
		}
		if jac.NIn() != len(c.in) || jac.NOut() != 1 {
			return nil, fmt.Errorf("function %s: jacobian %s must take the same inputs and have one output", name, jac.Name())
		}
	}
	return c, nil
}

func (c *Callback) checkBlock(b block) error {
	if b.iout < 0 || b.iout >= len(c.out) || b.iin < 0 || b.iin >= len(c.in) {
		return fmt.Errorf("function %s: block (%d, %d) out of range", c.name, b.iout, b.iin)
	}
	return nil
}

func (c *Callback) Name() string                       { return c.name }
func (c *Callback) NIn() int                           { return len(c.in) }
func (c *Callback) NOut() int                          { return len(c.out) }
func (c *Callback) SparsityIn(i int) sparsity.Pattern  { return c.in[i] }
func (c *Callback) SparsityOut(i int) sparsity.Pattern { return c.out[i] }

// Dependency returns the structural dependency of output iout on input iin.
func (c *Callback) Dependency(iout, iin int) sparsity.Pattern {
	if p, ok := c.deps[block{iout, iin}]; ok {
		return p
	}
	return sparsity.Dense(c.out[iout].Nnz(), c.in[iin].Nnz())
}

// Eval implements Function.
func (c *Callback) Eval(ctx context.Context, args [][]float64) ([][]float64, error) {
	if err := CheckArgs(c, args); err != nil {
		return nil, err
	}
	return c.eval(ctx, args)
}

// SpForward implements Function.
func (c *Callback) SpForward(arg, res [][]sparsity.Word) error {
	if err := CheckSeeds(c, arg, res); err != nil {
		return err
	}
	for j, r := range res {
		if r == nil {
			continue
		}
		sparsity.Clear(r)
		for i, a := range arg {
			if a != nil {
				sparsity.Forward(c.Dependency(j, i), r, a)
			}
		}
	}
	return nil
}

// SpAdjoint implements Function.
func (c *Callback) SpAdjoint(arg, res [][]sparsity.Word) error {
	if err := CheckSeeds(c, arg, res); err != nil {
		return err
	}
	for j, r := range res {
		if r == nil {
			continue
		}
		for i, a := range arg {
			if a != nil {
				sparsity.Adjoint(c.Dependency(j, i), a, r)
			}
		}
	}
	return nil
}

// Jacobian implements Differentiable. Blocks without an analytic Jacobian
// fall back to central finite differences.
func (c *Callback) Jacobian(iin, iout int) (Function, error) {
	if err := checkIndex(c, iin, iout); err != nil {
		return nil, err
	}
	if jac, ok := c.jacs[block{iout, iin}]; ok {
		return jac, nil
	}
	return NewFiniteDifference(c, iin, iout, Central)
}
