package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rootsolve/internal/rootfinder"
	"github.com/roach88/rootsolve/internal/store"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	*RootOptions
	ProblemFlags
	Trace bool

	// IDs allows overriding the run ID generator (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	IDs store.IDGenerator
}

// SolveResult is the outcome of a solve.
type SolveResult struct {
	Problem        string                 `json:"problem"`
	Solver         string                 `json:"solver"`
	Status         string                 `json:"status"`
	Root           []float64              `json:"root,omitempty"`
	Iterations     int                    `json:"iterations"`
	Factorizations int                    `json:"factorizations"`
	Norm           float64                `json:"norm"`
	RunID          string                 `json:"run_id,omitempty"`
	Trace          []rootfinder.Iteration `json:"trace,omitempty"`
}

// Text implements textRenderer.
func (r SolveResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "problem: %s\n", r.Problem)
	fmt.Fprintf(&b, "solver: %s\n", r.Solver)
	fmt.Fprintf(&b, "status: %s\n", r.Status)
	if r.Root != nil {
		fmt.Fprintf(&b, "root: %v\n", r.Root)
	}
	fmt.Fprintf(&b, "iterations: %d\n", r.Iterations)
	fmt.Fprintf(&b, "factorizations: %d\n", r.Factorizations)
	fmt.Fprintf(&b, "norm: %g\n", r.Norm)
	if r.RunID != "" {
		fmt.Fprintf(&b, "run: %s\n", r.RunID)
	}
	if len(r.Trace) > 0 {
		b.WriteString(renderIterations(r.Trace))
	}
	return b.String()
}

// renderIterations renders a trace as a table.
func renderIterations(trace []rootfinder.Iteration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%4s  %-24s %-12s %-12s %-8s %s\n", "iter", "z", "norm", "step", "alpha", "fact")
	for _, it := range trace {
		fmt.Fprintf(&b, "%4d  %-24s %-12.6g %-12.6g %-8.4g %d\n",
			it.Iter, fmt.Sprintf("%.6g", it.Z), it.Norm, it.StepNorm, it.Alpha, it.Factorizations)
	}
	return b.String()
}

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "solve <problem.yaml>",
		Short: "Solve a problem file",
		Long: `Solve F(z, p) = 0 for the unknown of a problem file.

Options and input values can be overridden on the command line. With --db
the run and its iteration trace are recorded in the solve history.

Exit codes:
  0 - Converged
  1 - Numeric failure (SINGULAR, NOT_CONVERGED, NON_FINITE, CANCELLED)
  2 - Command error (bad problem file, unknown plugin, bad option, etc.)

Examples:
  rootsolve solve square.yaml
  rootsolve solve square.yaml --solver chord --set abstol=1e-10
  rootsolve solve square.yaml --input p=9 --trace
  rootsolve solve square.yaml --db ./history.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(opts, args[0], cmd)
		},
	}

	addProblemFlags(cmd, &opts.ProblemFlags)
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the iteration trace")

	return cmd
}

func addProblemFlags(cmd *cobra.Command, flags *ProblemFlags) {
	cmd.Flags().StringVar(&flags.Solver, "solver", "", "rootfinder plugin (overrides the problem file)")
	cmd.Flags().StringArrayVar(&flags.Set, "set", nil, "option override key=value (repeatable)")
	cmd.Flags().StringArrayVar(&flags.Inputs, "input", nil, "input override name=v1,v2,... (repeatable)")
}

func runSolve(opts *SolveOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd.Context())

	setup, err := loadProblem(path, opts.ProblemFlags)
	if err != nil {
		return formatter.Fail("failed to load problem", err)
	}

	ids := opts.IDs
	if ids == nil {
		ids = store.UUIDv7Generator{}
	}
	run, err := store.NewRun(ids.Generate(), setup.problem.Name, setup.solver, setup.opts, setup.args)
	if err != nil {
		return formatter.Fail("failed to record run", err)
	}

	rf, err := setup.rootfinder(rootfinder.WithTrace(run.Observe))
	if err != nil {
		return formatter.Fail("failed to create rootfinder", err)
	}
	defer rf.Close()
	run.Solver = rf.Algorithm()

	formatter.VerboseLog("Solving %s with %s", setup.problem.Name, run.Solver)
	root, solveErr := setup.solve(ctx, rf)
	run.Finish(root, rf.Stats(), solveErr)

	result := SolveResult{
		Problem:        run.Problem,
		Solver:         run.Solver,
		Status:         run.Status,
		Root:           run.Root,
		Iterations:     run.Iterations,
		Factorizations: run.Factorizations,
		Norm:           run.Norm,
	}
	if opts.Trace {
		result.Trace = run.Trace
	}

	if opts.Database != "" {
		if err := recordRun(cmd, opts.Database, run); err != nil {
			return formatter.Fail("failed to record run", err)
		}
		result.RunID = run.ID
	}

	if solveErr != nil {
		if opts.Format != "json" && opts.Trace {
			fmt.Fprint(formatter.Writer, result.Text())
		}
		return formatter.Fail("solve failed", solveErr)
	}
	return formatter.Success(result)
}

// recordRun writes run to the history database at path.
func recordRun(cmd *cobra.Command, path string, run *store.Run) error {
	st, err := openHistory(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	seq, err := st.WriteRun(commandContext(cmd.Context()), run)
	if err != nil {
		return &storeError{err}
	}
	slog.Debug("run recorded", "id", run.ID, "seq", seq, "db", path)
	return nil
}

// openHistory opens the solve history database.
func openHistory(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, &storeError{err}
	}
	return st, nil
}
