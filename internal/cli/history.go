package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rootsolve/internal/rootfinder"
	"github.com/roach88/rootsolve/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Problem string
	Status  string
	Limit   int
}

// RunSummary is one row of the history listing.
type RunSummary struct {
	ID             string    `json:"id"`
	Seq            int64     `json:"seq"`
	Problem        string    `json:"problem"`
	Solver         string    `json:"solver"`
	Status         string    `json:"status"`
	ErrorCode      string    `json:"error_code,omitempty"`
	Root           []float64 `json:"root,omitempty"`
	Iterations     int       `json:"iterations"`
	Factorizations int       `json:"factorizations"`
	OptionsHash    string    `json:"options_hash"`
}

// HistoryList is the output of a history listing.
type HistoryList []RunSummary

// Text implements textRenderer.
func (l HistoryList) Text() string {
	if len(l) == 0 {
		return "No runs recorded.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%4s  %-36s  %-12s %-8s %-14s %5s  %s\n", "seq", "id", "problem", "solver", "status", "iters", "root")
	for _, r := range l {
		status := r.Status
		if r.ErrorCode != "" {
			status = r.ErrorCode
		}
		root := ""
		if r.Root != nil {
			root = fmt.Sprintf("%.6g", r.Root)
		}
		fmt.Fprintf(&b, "%4d  %-36s  %-12s %-8s %-14s %5d  %s\n", r.Seq, r.ID, r.Problem, r.Solver, status, r.Iterations, root)
	}
	return b.String()
}

// RunDetail is a single run with its options, inputs and trace.
type RunDetail struct {
	RunSummary
	Options      map[string]string      `json:"options"`
	Args         [][]float64            `json:"args"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Trace        []rootfinder.Iteration `json:"trace"`
}

// Text implements textRenderer.
func (d RunDetail) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run: %s (seq %d)\n", d.ID, d.Seq)
	fmt.Fprintf(&b, "problem: %s\n", d.Problem)
	fmt.Fprintf(&b, "solver: %s\n", d.Solver)
	fmt.Fprintf(&b, "status: %s\n", d.Status)
	if d.ErrorMessage != "" {
		fmt.Fprintf(&b, "error: %s\n", d.ErrorMessage)
	}
	fmt.Fprintf(&b, "args: %v\n", d.Args)
	if d.Root != nil {
		fmt.Fprintf(&b, "root: %v\n", d.Root)
	}
	fmt.Fprintf(&b, "iterations: %d\n", d.Iterations)
	fmt.Fprintf(&b, "factorizations: %d\n", d.Factorizations)
	b.WriteString(renderIterations(d.Trace))
	return b.String()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Query the solve history",
		Long: `List the runs recorded by "rootsolve solve --db", or show one run
with its options, inputs and iteration trace.

Examples:
  rootsolve history --db ./history.db
  rootsolve history --db ./history.db --problem square --status failed
  rootsolve history --db ./history.db --limit 5 --format json
  rootsolve history --db ./history.db 01920f4e-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runHistory(opts, id, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Problem, "problem", "", "only runs of this problem")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this status (converged|failed)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "only the most recent runs")

	return cmd
}

func runHistory(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Database == "" {
		return NewExitError(ExitCommandError, "--db is required")
	}
	if opts.Status != "" && opts.Status != store.StatusConverged && opts.Status != store.StatusFailed {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid status %q: must be converged or failed", opts.Status))
	}

	st, err := openHistory(opts.Database)
	if err != nil {
		return formatter.Fail("failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	ctx := commandContext(cmd.Context())

	if id != "" {
		run, err := st.ReadRun(ctx, id)
		if err != nil {
			return formatter.Fail("failed to read run", err)
		}
		return formatter.Success(detailOf(run))
	}

	runs, err := st.ListRuns(ctx, store.RunFilter{Problem: opts.Problem, Status: opts.Status, Limit: opts.Limit})
	if err != nil {
		return formatter.Fail("failed to list runs", &storeError{err})
	}
	formatter.VerboseLog("Found %d run(s)", len(runs))
	list := make(HistoryList, 0, len(runs))
	for _, r := range runs {
		list = append(list, summaryOf(r))
	}
	return formatter.Success(list)
}

func summaryOf(r *store.Run) RunSummary {
	return RunSummary{
		ID:             r.ID,
		Seq:            r.Seq,
		Problem:        r.Problem,
		Solver:         r.Solver,
		Status:         r.Status,
		ErrorCode:      r.ErrorCode,
		Root:           r.Root,
		Iterations:     r.Iterations,
		Factorizations: r.Factorizations,
		OptionsHash:    r.OptionsHash,
	}
}

func detailOf(r *store.Run) RunDetail {
	opts := make(map[string]string, len(r.Options))
	for k, v := range r.Options {
		opts[k] = v.String()
	}
	return RunDetail{
		RunSummary:   summaryOf(r),
		Options:      opts,
		Args:         r.Args,
		ErrorMessage: r.ErrorMessage,
		Trace:        r.Trace,
	}
}
