package rootfinder

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rootsolve/internal/function"
	"github.com/roach88/rootsolve/internal/sparsity"
	"github.com/roach88/rootsolve/internal/variant"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func col(n int) sparsity.Pattern { return sparsity.DenseColumn(n) }

// square is F(z, p) = z^2 - p.
func square(t *testing.T, opts ...function.Option) *function.Callback {
	t.Helper()
	f, err := function.New("square",
		[]sparsity.Pattern{col(1), col(1)},
		[]sparsity.Pattern{col(1)},
		func(_ context.Context, args [][]float64) ([][]float64, error) {
			z, p := args[0][0], args[1][0]
			return [][]float64{{z*z - p}}, nil
		},
		opts...,
	)
	require.NoError(t, err)
	return f
}

// squareAnalytic is square with exact Jacobians.
func squareAnalytic(t *testing.T) *function.Callback {
	t.Helper()
	jac := func(name string, eval function.EvalFunc) function.Function {
		f, err := function.New(name, []sparsity.Pattern{col(1), col(1)}, []sparsity.Pattern{sparsity.Dense(1, 1)}, eval)
		require.NoError(t, err)
		return f
	}
	dz := jac("dsquare_dz", func(_ context.Context, args [][]float64) ([][]float64, error) {
		return [][]float64{{2 * args[0][0]}}, nil
	})
	dp := jac("dsquare_dp", func(context.Context, [][]float64) ([][]float64, error) {
		return [][]float64{{-1}}, nil
	})
	return square(t, function.WithJacobian(0, 0, dz), function.WithJacobian(1, 0, dp))
}

// coupled has z in R^2, p in R^2, q in R^1 and an input u that the
// residual ignores:
//
//	F0 = z0 + z1 - p0
//	F1 = z0 - z1 + z1^3 - p1*q0
func coupled(t *testing.T) *function.Callback {
	t.Helper()
	f, err := function.New("coupled",
		[]sparsity.Pattern{col(2), col(2), col(1), col(1)},
		[]sparsity.Pattern{col(2)},
		func(_ context.Context, args [][]float64) ([][]float64, error) {
			z, p, q := args[0], args[1], args[2]
			return [][]float64{{
				z[0] + z[1] - p[0],
				z[0] - z[1] + z[1]*z[1]*z[1] - p[1]*q[0],
			}}, nil
		},
		function.WithDependency(0, 1, sparsity.Diagonal(2)),
		function.WithDependency(0, 2, sparsity.MustNew(2, 1, []int{0, 1}, []int{1})),
		function.WithDependency(0, 3, sparsity.Empty(2, 1)),
	)
	require.NoError(t, err)
	return f
}

func newInit(t *testing.T, solver string, f function.Function, opts variant.Dict, options ...Option) *Rootfinder {
	t.Helper()
	rf, err := New("rf", solver, f, opts, append([]Option{quiet}, options...)...)
	require.NoError(t, err)
	require.NoError(t, rf.Init())
	t.Cleanup(func() { _ = rf.Close() })
	return rf
}

func solve(t *testing.T, rf *Rootfinder, args ...[]float64) []float64 {
	t.Helper()
	out, err := rf.Eval(context.Background(), args)
	require.NoError(t, err)
	return out[0]
}

func maxAbsDiff(a, b []float64) float64 {
	m := 0.0
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return m
}
