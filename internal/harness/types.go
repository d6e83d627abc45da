package harness

import (
	"github.com/roach88/rootsolve/internal/rootfinder"
)

// OutcomeConverged is the outcome of a run that found a root. Failed runs
// carry their NumericError code, or OutcomeError for anything else.
const (
	OutcomeConverged = "converged"
	OutcomeError     = "ERROR"
)

// RunTrace is the recorded outcome of one run.
type RunTrace struct {
	Name           string                 `json:"name"`
	ID             string                 `json:"id"`
	Solver         string                 `json:"solver"`
	Outcome        string                 `json:"outcome"`
	Root           []float64              `json:"root,omitempty"`
	Iterations     int                    `json:"iterations"`
	Factorizations int                    `json:"factorizations"`
	Error          string                 `json:"error,omitempty"`
	Trace          []rootfinder.Iteration `json:"trace"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Runs holds every run in scenario order.
	Runs []RunTrace `json:"runs"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Runs:   []RunTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddRun appends a run.
func (r *Result) AddRun(run RunTrace) {
	r.Runs = append(r.Runs, run)
}

// Run returns the run called name.
func (r *Result) Run(name string) (RunTrace, bool) {
	for _, run := range r.Runs {
		if run.Name == name {
			return run, true
		}
	}
	return RunTrace{}, false
}
