package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rootsolve/internal/rootfinder"
	"github.com/roach88/rootsolve/internal/store"
	"github.com/roach88/rootsolve/internal/variant"
)

func sampleResult() *Result {
	r := NewResult()
	r.AddRun(RunTrace{
		Name: "a", Solver: "newton", Outcome: OutcomeConverged, Root: []float64{1, 2}, Iterations: 3,
		Trace: []rootfinder.Iteration{{Iter: 0, Norm: 1}, {Iter: 1, Norm: 0.1}, {Iter: 2, Norm: 0.01}, {Iter: 3, Norm: 0}},
	})
	r.AddRun(RunTrace{
		Name: "b", Solver: "chord", Outcome: OutcomeConverged, Root: []float64{1, 2 + 1e-12}, Iterations: 7,
		Trace: []rootfinder.Iteration{{Iter: 0, Norm: 1}, {Iter: 1, Norm: 2}},
	})
	r.AddRun(RunTrace{Name: "c", Solver: "newton", Outcome: "SINGULAR"})
	return r
}

func TestAssertRootsAgree(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertRootsAgree(r, Assertion{Type: AssertRootsAgree, Runs: []string{"a", "b"}}))

	err := assertRootsAgree(r, Assertion{Type: AssertRootsAgree, Runs: []string{"a", "b"}, Tol: 1e-13})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertRootsAgree, ae.Type)
	assert.Contains(t, ae.Actual, "max difference")

	err = assertRootsAgree(r, Assertion{Type: AssertRootsAgree, Runs: []string{"a", "c"}})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "SINGULAR", ae.Actual)
	assert.Contains(t, err.Error(), "c (newton): SINGULAR after 0 iterations")
}

func TestAssertNormDecreasing(t *testing.T) {
	r := sampleResult()
	assert.NoError(t, assertNormDecreasing(r, Assertion{Run: "a"}))

	err := assertNormDecreasing(r, Assertion{Run: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "norm at iteration 1 <= 1")
}

func TestAssertIterationsAtMost(t *testing.T) {
	r := sampleResult()
	assert.NoError(t, assertIterationsAtMost(r, Assertion{Run: "a", Count: 3}))
	assert.Error(t, assertIterationsAtMost(r, Assertion{Run: "b", Count: 3}))
	assert.Error(t, assertIterationsAtMost(r, Assertion{Run: "zzz", Count: 3}))
}

func TestAssertStoredRuns(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	defer st.Close()

	for i, status := range []string{store.StatusConverged, store.StatusFailed, store.StatusConverged} {
		run, err := store.NewRun(string(rune('a'+i)), "square", "newton", variant.Dict{}, [][]float64{{1}})
		require.NoError(t, err)
		run.Status = status
		_, err = st.WriteRun(ctx, run)
		require.NoError(t, err)
	}

	assert.NoError(t, assertStoredRuns(ctx, st, Assertion{Count: 3}))
	assert.NoError(t, assertStoredRuns(ctx, st, Assertion{Count: 2, Status: store.StatusConverged}))

	err = assertStoredRuns(ctx, st, Assertion{Count: 2, Status: store.StatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 stored runs with status failed")
}

func TestEvaluateAssertionsWithoutContext(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertStoredRuns, Count: 1},
		{Type: AssertSensitivities, Run: "a"},
		{Type: "bogus"},
		{Type: AssertIterationsAtMost, Run: "a", Count: 10},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "requires database context")
	assert.Contains(t, errs[1], "requires solved runs")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}
