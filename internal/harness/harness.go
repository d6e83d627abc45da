package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/rootsolve/internal/problem"
	"github.com/roach88/rootsolve/internal/rootfinder"
	"github.com/roach88/rootsolve/internal/store"
	"github.com/roach88/rootsolve/internal/testutil"
	"github.com/roach88/rootsolve/internal/variant"
)

// Harness is the test execution engine.
// It runs the steps of one scenario against a fresh store with
// deterministic run IDs.
type Harness struct {
	store   *store.Store
	problem *problem.Problem
	ids     *testutil.SequenceGenerator
	logger  *slog.Logger

	// solved holds the rootfinder of every converged run, factorized at
	// its root, for assertions that differentiate it.
	solved map[string]*solvedRun
}

type solvedRun struct {
	rf   *rootfinder.Rootfinder
	args [][]float64
	root []float64
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic run IDs ("run-1", "run-2", ...) keep traces reproducible.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load the problem and build its residual
// 3. Solve each run step and record it in the store
// 4. Evaluate expect clauses and assertions
// 5. Return result with pass/fail, traces, and errors
//
// Numeric failures of a run are outcomes, not errors. An error is returned
// only when the scenario cannot be executed at all.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	p, err := problem.Load(scenario.Problem)
	if err != nil {
		return nil, fmt.Errorf("failed to load problem: %w", err)
	}

	h := &Harness{
		store:   st,
		problem: p,
		ids:     testutil.NewSequenceGenerator("run"),
		logger:  testutil.DiscardLogger(),
		solved:  make(map[string]*solvedRun),
	}
	defer h.close()

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Runs {
		trace, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("run %d (%s): %w", i, step.Name, err)
		}
		result.AddRun(trace)

		for _, msg := range checkExpect(trace, h.expectFor(step)) {
			result.AddError(fmt.Sprintf("run %q: %s", step.Name, msg))
		}
	}

	actx := &AssertionContext{
		Store:  st,
		Ctx:    ctx,
		solved: h.solved,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// execute solves one run step, records it in the store and returns its
// trace.
func (h *Harness) execute(ctx context.Context, step RunStep) (RunTrace, error) {
	f, err := h.problem.Function()
	if err != nil {
		return RunTrace{}, err
	}

	opts, err := h.options(step)
	if err != nil {
		return RunTrace{}, err
	}
	args, err := h.args(step)
	if err != nil {
		return RunTrace{}, err
	}

	solver := step.Solver
	if solver == "" {
		solver = h.problem.Solver
	}

	run, err := store.NewRun(h.ids.Generate(), h.problem.Name, solver, opts, args)
	if err != nil {
		return RunTrace{}, err
	}

	rf, err := rootfinder.New(step.Name, solver, f, opts,
		rootfinder.WithLogger(h.logger),
		rootfinder.WithTrace(run.Observe),
	)
	if err != nil {
		return RunTrace{}, fmt.Errorf("failed to create rootfinder: %w", err)
	}
	run.Solver = rf.Algorithm()
	if err := rf.Init(); err != nil {
		_ = rf.Close()
		return RunTrace{}, fmt.Errorf("failed to initialize rootfinder: %w", err)
	}

	var root []float64
	out, solveErr := rf.Eval(ctx, args)
	if solveErr == nil {
		root = out[0]
	}
	run.Finish(root, rf.Stats(), solveErr)

	if _, err := h.store.WriteRun(ctx, run); err != nil {
		_ = rf.Close()
		return RunTrace{}, fmt.Errorf("failed to write run: %w", err)
	}

	if solveErr == nil {
		h.solved[step.Name] = &solvedRun{rf: rf, args: args, root: root}
	} else {
		_ = rf.Close()
	}

	h.logger.Info("run completed",
		"run", step.Name,
		"id", run.ID,
		"solver", run.Solver,
		"status", run.Status,
		"iterations", run.Iterations,
	)

	return traceOf(step.Name, run, solveErr), nil
}

// options merges the step's option overrides over the problem's options.
func (h *Harness) options(step RunStep) (variant.Dict, error) {
	opts, err := h.problem.OptionDict()
	if err != nil {
		return nil, err
	}
	for k, raw := range step.Options {
		v, err := variant.Of(raw)
		if err != nil {
			return nil, fmt.Errorf("options[%q]: %w", k, err)
		}
		opts[k] = v
	}
	return opts, nil
}

// args returns the problem's input values with the step's overrides.
func (h *Harness) args(step RunStep) ([][]float64, error) {
	args := h.problem.Args()
	for name, value := range step.Inputs {
		i := h.inputIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("unknown input %q", name)
		}
		if len(value) != len(args[i]) {
			return nil, fmt.Errorf("input %q: expected %d values, got %d", name, len(args[i]), len(value))
		}
		args[i] = append([]float64(nil), value...)
	}
	return args, nil
}

func (h *Harness) inputIndex(name string) int {
	for i, in := range h.problem.Inputs {
		if in.Name == name {
			return i
		}
	}
	return -1
}

// expectFor returns the step's expect clause. A step that solves the
// problem as written inherits the problem's own expectation.
func (h *Harness) expectFor(step RunStep) *ExpectClause {
	if step.Expect != nil {
		return step.Expect
	}
	pe := h.problem.Expect
	if pe == nil || len(step.Inputs) > 0 {
		return nil
	}
	e := &ExpectClause{Outcome: OutcomeConverged, Root: pe.Root, Tol: pe.Tol}
	if pe.Error != "" {
		e = &ExpectClause{Outcome: pe.Error}
	}
	return e
}

func (h *Harness) close() {
	for _, s := range h.solved {
		_ = s.rf.Close()
	}
}

func traceOf(name string, run *store.Run, err error) RunTrace {
	t := RunTrace{
		Name:           name,
		ID:             run.ID,
		Solver:         run.Solver,
		Outcome:        OutcomeConverged,
		Root:           run.Root,
		Iterations:     run.Iterations,
		Factorizations: run.Factorizations,
		Trace:          run.Trace,
	}
	if err != nil {
		t.Outcome = OutcomeError
		var ne *rootfinder.NumericError
		if errors.As(err, &ne) {
			t.Outcome = string(ne.Code)
		}
		t.Error = err.Error()
	}
	return t
}

// checkExpect compares a run against its expect clause and returns one
// message per mismatch.
func checkExpect(run RunTrace, e *ExpectClause) []string {
	if e == nil {
		return nil
	}
	var msgs []string
	if run.Outcome != e.Outcome {
		msg := fmt.Sprintf("expected outcome %s, got %s", e.Outcome, run.Outcome)
		if run.Error != "" {
			msg += " (" + run.Error + ")"
		}
		msgs = append(msgs, msg)
	}
	if e.Root != nil && run.Outcome == OutcomeConverged {
		tol := e.Tol
		if tol == 0 {
			tol = defaultTolerance
		}
		if d := maxAbsDiff(run.Root, e.Root); !(d <= tol) {
			msgs = append(msgs, fmt.Sprintf("expected root %v within %g, got %v", e.Root, tol, run.Root))
		}
	}
	if e.MaxIterations > 0 && run.Iterations > e.MaxIterations {
		msgs = append(msgs, fmt.Sprintf("expected at most %d iterations, got %d", e.MaxIterations, run.Iterations))
	}
	return msgs
}

// maxAbsDiff is max|a-b|, or +Inf when the lengths differ.
func maxAbsDiff(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	m := 0.0
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return m
}
