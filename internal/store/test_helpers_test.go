package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/rootsolve/internal/rootfinder"
	"github.com/roach88/rootsolve/internal/variant"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a converged run with a two-iteration trace.
func createTestRun(t *testing.T, id, problem string) *Run {
	t.Helper()
	opts := variant.Dict{"abstol": variant.NewDouble(1e-12), "constraints": variant.NewIntList([]int{1})}
	run, err := NewRun(id, problem, "newton", opts, [][]float64{{2.1}, {4}})
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}
	run.Observe(rootfinder.Iteration{Iter: 0, Z: []float64{2.1}, Norm: 0.41})
	run.Observe(rootfinder.Iteration{Iter: 1, Z: []float64{2.0024}, Norm: 0.0096, StepNorm: 0.0976, Alpha: 1, Factorizations: 1})
	run.Finish([]float64{2}, rootfinder.Stats{Iterations: 1, Factorizations: 2, Norm: 0.0096, Converged: true}, nil)
	return run
}
