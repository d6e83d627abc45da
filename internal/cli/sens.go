package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rootsolve/internal/function"
	"github.com/roach88/rootsolve/internal/harness"
	"github.com/roach88/rootsolve/internal/rootfinder"
)

// SensOptions holds flags for the sens command.
type SensOptions struct {
	*RootOptions
	ProblemFlags
	Reverse bool    // use adjoint sensitivities
	Check   bool    // verify against finite differences
	Tol     float64 // tolerance of --check
}

// InputSensitivity is dz/dp for one input p, row-major with one row per
// root entry.
type InputSensitivity struct {
	Input  string      `json:"input"`
	Matrix [][]float64 `json:"matrix"`
}

// SensResult is the outcome of the sens command.
type SensResult struct {
	Problem       string             `json:"problem"`
	Mode          string             `json:"mode"` // "forward" or "reverse"
	Root          []float64          `json:"root"`
	Sensitivities []InputSensitivity `json:"sensitivities"`
	Checked       bool               `json:"checked,omitempty"`
}

// Text implements textRenderer.
func (r SensResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "problem: %s\n", r.Problem)
	fmt.Fprintf(&b, "root: %v\n", r.Root)
	fmt.Fprintf(&b, "mode: %s\n", r.Mode)
	for _, s := range r.Sensitivities {
		fmt.Fprintf(&b, "\ndz/d%s:\n", s.Input)
		for _, row := range s.Matrix {
			fmt.Fprintf(&b, "  %.10g\n", row)
		}
	}
	if r.Checked {
		b.WriteString("\n✓ forward, reverse and finite differences agree\n")
	}
	return b.String()
}

// NewSensCommand creates the sens command.
func NewSensCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SensOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sens <problem.yaml>",
		Short: "Differentiate the root of a problem",
		Long: `Solve a problem file and print the sensitivities of the root with
respect to every input other than the unknown.

Forward mode seeds one direction per input entry; reverse mode (--reverse)
seeds one adjoint per root entry. Both reuse the factorization at the root.
--check additionally compares them with each other and with central
differences of fresh solves.

Examples:
  rootsolve sens coupled.yaml
  rootsolve sens coupled.yaml --reverse --format json
  rootsolve sens coupled.yaml --check --tol 1e-5`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSens(opts, args[0], cmd)
		},
	}

	addProblemFlags(cmd, &opts.ProblemFlags)
	cmd.Flags().BoolVar(&opts.Reverse, "reverse", false, "compute adjoint sensitivities")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "verify against finite differences")
	cmd.Flags().Float64Var(&opts.Tol, "tol", harness.DefaultSensitivityTol, "relative tolerance of --check")

	return cmd
}

func runSens(opts *SensOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd.Context())

	setup, err := loadProblem(path, opts.ProblemFlags)
	if err != nil {
		return formatter.Fail("failed to load problem", err)
	}
	rf, err := setup.rootfinder()
	if err != nil {
		return formatter.Fail("failed to create rootfinder", err)
	}
	defer rf.Close()

	root, err := setup.solve(ctx, rf)
	if err != nil {
		return formatter.Fail("solve failed", err)
	}

	result := SensResult{Problem: setup.problem.Name, Mode: "forward", Root: root}
	var jac [][][]float64
	if opts.Reverse {
		result.Mode = "reverse"
		jac, err = reverseJacobian(ctx, rf, setup.args, root)
	} else {
		jac, err = forwardJacobian(ctx, rf, setup.args, root)
	}
	if err != nil {
		return formatter.Fail("sensitivities failed", err)
	}
	for i, m := range jac {
		if i == rf.ImplicitInput() {
			continue
		}
		result.Sensitivities = append(result.Sensitivities, InputSensitivity{Input: setup.names[i], Matrix: m})
	}

	if opts.Check {
		formatter.VerboseLog("Checking sensitivities against finite differences (tol %g)", opts.Tol)
		if err := harness.CheckSensitivities(ctx, rf, setup.args, root, opts.Tol); err != nil {
			if outErr := formatter.Error(ErrCodeDerivative, "sensitivity check failed: "+err.Error(), nil); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitFailure, "sensitivity check failed", err)
		}
		result.Checked = true
	}

	return formatter.Success(result)
}

// forwardJacobian returns dz/dp_i for every input i (nil for the unknown)
// with one forward direction per input entry, all in one batched call.
func forwardJacobian(ctx context.Context, rf *rootfinder.Rootfinder, args [][]float64, root []float64) ([][][]float64, error) {
	type entry struct{ input, index int }
	var entries []entry
	for i, a := range args {
		if i == rf.ImplicitInput() {
			continue
		}
		for j := range a {
			entries = append(entries, entry{i, j})
		}
	}
	jac := emptyJacobian(rf, args, len(root))
	if len(entries) == 0 {
		return jac, nil
	}

	fwd, err := rf.ForwardFunction(len(entries))
	if err != nil {
		return nil, err
	}
	in := append(cloneArgs(args), root)
	for _, e := range entries {
		for i := range args {
			seed := make([]float64, len(args[i]))
			if i == e.input {
				seed[e.index] = 1
			}
			in = append(in, seed)
		}
	}
	out, err := function.Call(ctx, fwd, in)
	if err != nil {
		return nil, err
	}
	for d, e := range entries {
		for k := range root {
			jac[e.input][k][e.index] = out[d][k]
		}
	}
	return jac, nil
}

// reverseJacobian returns the same matrices as forwardJacobian from one
// adjoint direction per root entry.
func reverseJacobian(ctx context.Context, rf *rootfinder.Rootfinder, args [][]float64, root []float64) ([][][]float64, error) {
	n, nIn := len(root), len(args)
	rev, err := rf.ReverseFunction(n)
	if err != nil {
		return nil, err
	}
	in := append(cloneArgs(args), root)
	for k := 0; k < n; k++ {
		seed := make([]float64, n)
		seed[k] = 1
		in = append(in, seed)
	}
	out, err := function.Call(ctx, rev, in)
	if err != nil {
		return nil, err
	}
	jac := emptyJacobian(rf, args, n)
	for k := 0; k < n; k++ {
		for i := range args {
			if i == rf.ImplicitInput() {
				continue
			}
			copy(jac[i][k], out[k*nIn+i])
		}
	}
	return jac, nil
}

func emptyJacobian(rf *rootfinder.Rootfinder, args [][]float64, n int) [][][]float64 {
	jac := make([][][]float64, len(args))
	for i, a := range args {
		if i == rf.ImplicitInput() {
			continue
		}
		jac[i] = make([][]float64, n)
		for k := range jac[i] {
			jac[i][k] = make([]float64, len(a))
		}
	}
	return jac
}

func cloneArgs(args [][]float64) [][]float64 {
	out := make([][]float64, len(args))
	for i, a := range args {
		out[i] = append([]float64(nil), a...)
	}
	return out
}
