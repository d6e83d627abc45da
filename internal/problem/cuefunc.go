package problem

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/rootsolve/internal/function"
	"github.com/roach88/rootsolve/internal/sparsity"
)

// ResidualField is the CUE field holding the residual vector.
const ResidualField = "r"

// cueResidual evaluates CUE source with the inputs in scope.
type cueResidual struct {
	mu    sync.Mutex
	ctx   *cue.Context
	src   string
	names []string
	n     int
}

// NewResidual compiles src into a function with inputs of the given names
// and sizes and one output of size n. The source is opaque: every output
// entry depends on every input entry, and Jacobians are taken by finite
// differences.
func NewResidual(name, src string, names []string, sizes []int, n int) (*function.Callback, error) {
	if len(names) != len(sizes) {
		return nil, fmt.Errorf("residual %s: %d names for %d inputs", name, len(names), len(sizes))
	}
	r := &cueResidual{ctx: cuecontext.New(), src: src, names: names, n: n}

	in := make([]sparsity.Pattern, len(sizes))
	zero := make([][]float64, len(sizes))
	for i, size := range sizes {
		in[i] = sparsity.DenseColumn(size)
		zero[i] = make([]float64, size)
	}

	// Compile once against zero inputs so that syntax errors, unknown
	// references and a missing r surface at load time. r itself may fail to
	// evaluate at zero and is not decoded here.
	if _, err := r.compile(zero); err != nil {
		return nil, &LoadError{Code: ErrCodeResidual, Message: "residual " + name, Err: err}
	}

	f, err := function.New(name, in, []sparsity.Pattern{sparsity.DenseColumn(n)}, r.eval)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeResidual, Message: "residual " + name, Err: err}
	}
	return f, nil
}

func (r *cueResidual) compile(args [][]float64) (cue.Value, error) {
	scope := make(map[string][]float64, len(r.names))
	for i, name := range r.names {
		scope[name] = args[i]
	}
	v := r.ctx.CompileString(r.src, cue.Scope(r.ctx.Encode(scope)), cue.Filename("residual.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, &cueError{op: "compile", err: err}
	}
	out := v.LookupPath(cue.ParsePath(ResidualField))
	if !out.Exists() {
		return cue.Value{}, fmt.Errorf("field %q is not defined", ResidualField)
	}
	return out, nil
}

func (r *cueResidual) eval(_ context.Context, args [][]float64) ([][]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out, err := r.compile(args)
	if err != nil {
		return nil, err
	}
	var res []float64
	if err := out.Decode(&res); err != nil {
		return nil, &cueError{op: "evaluate " + ResidualField, err: err}
	}
	if len(res) != r.n {
		return nil, fmt.Errorf("%s has %d entries, want %d", ResidualField, len(res), r.n)
	}
	return [][]float64{res}, nil
}

// cueError reports a CUE failure with its full details. It unwraps to the
// CUE error so that positions stay available to cueerrors.Positions.
type cueError struct {
	op  string
	err error
}

func (e *cueError) Error() string { return e.op + ": " + cueerrors.Details(e.err, nil) }
func (e *cueError) Unwrap() error { return e.err }
