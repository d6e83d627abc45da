package harness

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/rootsolve/internal/function"
	"github.com/roach88/rootsolve/internal/rootfinder"
)

// DefaultSensitivityTol bounds the relative disagreement between analytic
// and finite-difference sensitivities.
const DefaultSensitivityTol = 1e-4

// dualityTol bounds the disagreement between forward and reverse
// sensitivities, which share one factorization.
const dualityTol = 1e-9

// fdStep is the relative step of the central differences.
const fdStep = 1e-6

// CheckSensitivities verifies the derivatives of a converged root. rf must
// hold the factorization left by solving args, whose root is root.
//
// Every entry of every non-implicit input is seeded once. The forward
// sensitivities must equal the reverse ones entry for entry, and both must
// match central differences of fresh solves within tol. The rootfinder is
// re-solved at args before returning so its factorization is left as found.
func CheckSensitivities(ctx context.Context, rf *rootfinder.Rootfinder, args [][]float64, root []float64, tol float64) error {
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
	if len(entries) == 0 {
		return nil
	}
	nIn, n := len(args), len(root)

	// forward: one direction per entry
	fwd, err := rf.ForwardFunction(len(entries))
	if err != nil {
		return err
	}
	fargs := append(cloneArgs(args), root)
	for _, e := range entries {
		for i := 0; i < nIn; i++ {
			seed := make([]float64, len(args[i]))
			if i == e.input {
				seed[e.index] = 1
			}
			fargs = append(fargs, seed)
		}
	}
	dz, err := function.Call(ctx, fwd, fargs)
	if err != nil {
		return fmt.Errorf("forward sensitivities: %w", err)
	}

	// reverse: one direction per root entry
	rev, err := rf.ReverseFunction(n)
	if err != nil {
		return err
	}
	rargs := append(cloneArgs(args), root)
	for k := 0; k < n; k++ {
		seed := make([]float64, n)
		seed[k] = 1
		rargs = append(rargs, seed)
	}
	pbar, err := function.Call(ctx, rev, rargs)
	if err != nil {
		return fmt.Errorf("reverse sensitivities: %w", err)
	}

	for d, e := range entries {
		for k := 0; k < n; k++ {
			f, r := dz[d][k], pbar[k*nIn+e.input][e.index]
			if !within(f, r, dualityTol) {
				return fmt.Errorf("dz[%d]/d%d[%d]: forward %g, reverse %g", k, e.input, e.index, f, r)
			}
		}
	}

	defer func() { _, _ = rf.Eval(ctx, args) }()
	for d, e := range entries {
		fd, err := centralDifference(ctx, rf, args, root, e.input, e.index)
		if err != nil {
			return err
		}
		for k := 0; k < n; k++ {
			if !within(dz[d][k], fd[k], tol) {
				return fmt.Errorf("dz[%d]/d%d[%d]: analytic %g, finite difference %g", k, e.input, e.index, dz[d][k], fd[k])
			}
		}
	}
	return nil
}

// centralDifference differentiates the root with respect to one input
// entry by solving on either side of it, warm-started at root.
func centralDifference(ctx context.Context, rf *rootfinder.Rootfinder, args [][]float64, root []float64, input, index int) ([]float64, error) {
	x := args[input][index]
	h := fdStep * math.Max(1, math.Abs(x))

	solveAt := func(v float64) ([]float64, error) {
		perturbed := cloneArgs(args)
		perturbed[rf.ImplicitInput()] = append([]float64(nil), root...)
		perturbed[input][index] = v
		out, err := rf.Eval(ctx, perturbed)
		if err != nil {
			return nil, fmt.Errorf("finite difference solve at %d[%d]=%g: %w", input, index, v, err)
		}
		return out[0], nil
	}

	hi, err := solveAt(x + h)
	if err != nil {
		return nil, err
	}
	lo, err := solveAt(x - h)
	if err != nil {
		return nil, err
	}
	d := make([]float64, len(root))
	for k := range d {
		d[k] = (hi[k] - lo[k]) / (2 * h)
	}
	return d, nil
}

// within reports |a-b| <= tol*max(1, |a|).
func within(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Abs(a))
}

func cloneArgs(args [][]float64) [][]float64 {
	out := make([][]float64, len(args))
	for i, a := range args {
		out[i] = append([]float64(nil), a...)
	}
	return out
}
