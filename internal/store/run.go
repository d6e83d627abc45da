package store

import (
	"errors"

	"github.com/roach88/rootsolve/internal/rootfinder"
	"github.com/roach88/rootsolve/internal/variant"
)

// Run status values.
const (
	StatusConverged = "converged"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned by ReadRun for an unknown ID.
var ErrRunNotFound = errors.New("store: run not found")

// Run is one recorded rootfinder evaluation.
type Run struct {
	ID          string
	Seq         int64 // assigned by WriteRun
	Problem     string
	Solver      string
	Options     variant.Dict
	OptionsHash string
	Args        [][]float64

	Root           []float64 // nil unless converged
	Status         string
	ErrorCode      string
	ErrorMessage   string
	Iterations     int
	Factorizations int
	Norm           float64

	Trace []rootfinder.Iteration
}

// NewRun starts a record for a solve about to happen. Record iterations
// with Observe and the outcome with Finish.
func NewRun(id, problem, solver string, opts variant.Dict, args [][]float64) (*Run, error) {
	hash, err := variant.Hash(opts)
	if err != nil {
		return nil, err
	}
	return &Run{
		ID:          id,
		Problem:     problem,
		Solver:      solver,
		Options:     opts.Clone(),
		OptionsHash: hash,
		Args:        cloneVectors(args),
	}, nil
}

// Observe appends an iteration to the trace. It matches the signature of
// rootfinder.WithTrace.
func (r *Run) Observe(it rootfinder.Iteration) {
	it.Z = append([]float64(nil), it.Z...)
	r.Trace = append(r.Trace, it)
}

// Finish records the outcome of the solve.
func (r *Run) Finish(root []float64, stats rootfinder.Stats, err error) {
	r.Iterations = stats.Iterations
	r.Factorizations = stats.Factorizations
	r.Norm = stats.Norm
	if err == nil {
		r.Status = StatusConverged
		r.Root = append([]float64(nil), root...)
		return
	}
	r.Status = StatusFailed
	r.Root = nil
	r.ErrorMessage = err.Error()
	var ne *rootfinder.NumericError
	if errors.As(err, &ne) {
		r.ErrorCode = string(ne.Code)
	}
}

func cloneVectors(v [][]float64) [][]float64 {
	out := make([][]float64, len(v))
	for i, x := range v {
		out[i] = append([]float64(nil), x...)
	}
	return out
}
