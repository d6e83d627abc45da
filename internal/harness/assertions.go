package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/rootsolve/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string     // Assertion type for categorization
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Runs     []RunTrace // Runs involved, for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Runs) > 0 {
		fmt.Fprintf(&buf, "\nRuns:\n")
		for _, run := range e.Runs {
			fmt.Fprintf(&buf, "  %s (%s): %s after %d iterations", run.Name, run.Solver, run.Outcome, run.Iterations)
			if run.Root != nil {
				fmt.Fprintf(&buf, ", root %v", run.Root)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// assertRootsAgree checks that every listed run converged and that their
// roots match the first one within tol.
func assertRootsAgree(result *Result, assertion Assertion) error {
	tol := assertion.Tol
	if tol == 0 {
		tol = defaultTolerance
	}

	runs := make([]RunTrace, 0, len(assertion.Runs))
	for _, name := range assertion.Runs {
		run, ok := result.Run(name)
		if !ok {
			return fmt.Errorf("roots_agree: unknown run %q", name)
		}
		runs = append(runs, run)
	}

	for _, run := range runs {
		if run.Outcome != OutcomeConverged {
			return &AssertionError{
				Type:     AssertRootsAgree,
				Expected: fmt.Sprintf("run %s converged", run.Name),
				Actual:   run.Outcome,
				Runs:     runs,
			}
		}
	}
	ref := runs[0]
	for _, run := range runs[1:] {
		if d := maxAbsDiff(ref.Root, run.Root); !(d <= tol) {
			return &AssertionError{
				Type:     AssertRootsAgree,
				Expected: fmt.Sprintf("roots of %s and %s within %g", ref.Name, run.Name, tol),
				Actual:   fmt.Sprintf("max difference %g", d),
				Runs:     runs,
			}
		}
	}
	return nil
}

// assertNormDecreasing checks that the residual norm of a run never
// increased from one iteration to the next.
func assertNormDecreasing(result *Result, assertion Assertion) error {
	run, ok := result.Run(assertion.Run)
	if !ok {
		return fmt.Errorf("norm_decreasing: unknown run %q", assertion.Run)
	}
	for i := 1; i < len(run.Trace); i++ {
		prev, cur := run.Trace[i-1].Norm, run.Trace[i].Norm
		if cur > prev {
			return &AssertionError{
				Type:     AssertNormDecreasing,
				Expected: fmt.Sprintf("norm at iteration %d <= %g", run.Trace[i].Iter, prev),
				Actual:   fmt.Sprintf("%g", cur),
				Runs:     []RunTrace{run},
			}
		}
	}
	return nil
}

// assertIterationsAtMost checks a run's iteration count.
func assertIterationsAtMost(result *Result, assertion Assertion) error {
	run, ok := result.Run(assertion.Run)
	if !ok {
		return fmt.Errorf("iterations_at_most: unknown run %q", assertion.Run)
	}
	if run.Iterations > assertion.Count {
		return &AssertionError{
			Type:     AssertIterationsAtMost,
			Expected: fmt.Sprintf("at most %d iterations", assertion.Count),
			Actual:   fmt.Sprintf("%d iterations", run.Iterations),
			Runs:     []RunTrace{run},
		}
	}
	return nil
}

// assertSensitivities differentiates a converged run's root with
// CheckSensitivities.
func assertSensitivities(ctx context.Context, result *Result, solved map[string]*solvedRun, assertion Assertion) error {
	run, ok := result.Run(assertion.Run)
	if !ok {
		return fmt.Errorf("sensitivities: unknown run %q", assertion.Run)
	}
	s, ok := solved[assertion.Run]
	if !ok {
		return &AssertionError{
			Type:     AssertSensitivities,
			Expected: fmt.Sprintf("run %s converged", run.Name),
			Actual:   run.Outcome,
			Runs:     []RunTrace{run},
		}
	}
	tol := assertion.Tol
	if tol == 0 {
		tol = DefaultSensitivityTol
	}
	if err := CheckSensitivities(ctx, s.rf, s.args, s.root, tol); err != nil {
		return &AssertionError{
			Type:     AssertSensitivities,
			Expected: fmt.Sprintf("forward, reverse and finite-difference sensitivities within %g", tol),
			Actual:   err.Error(),
			Runs:     []RunTrace{run},
		}
	}
	return nil
}

// assertStoredRuns counts the runs recorded in the store.
func assertStoredRuns(ctx context.Context, st *store.Store, assertion Assertion) error {
	runs, err := st.ListRuns(ctx, store.RunFilter{Status: assertion.Status})
	if err != nil {
		return fmt.Errorf("stored_runs: %w", err)
	}
	if len(runs) != assertion.Count {
		expected := fmt.Sprintf("%d stored runs", assertion.Count)
		if assertion.Status != "" {
			expected = fmt.Sprintf("%d stored runs with status %s", assertion.Count, assertion.Status)
		}
		return &AssertionError{
			Type:     AssertStoredRuns,
			Expected: expected,
			Actual:   fmt.Sprintf("%d", len(runs)),
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context

	// solved maps converged run names to their factorized rootfinders.
	solved map[string]*solvedRun
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for stored_runs and the
// solved rootfinders for sensitivities.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRootsAgree:
			err = assertRootsAgree(result, assertion)
		case AssertNormDecreasing:
			err = assertNormDecreasing(result, assertion)
		case AssertIterationsAtMost:
			err = assertIterationsAtMost(result, assertion)
		case AssertSensitivities:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: sensitivities requires solved runs", i)
			} else {
				err = assertSensitivities(actx.Ctx, result, actx.solved, assertion)
			}
		case AssertStoredRuns:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: stored_runs requires database context", i)
			} else {
				err = assertStoredRuns(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
