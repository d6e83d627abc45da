package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rootsolve/internal/function"
	"github.com/roach88/rootsolve/internal/rootfinder"
	"github.com/roach88/rootsolve/internal/sparsity"
	"github.com/roach88/rootsolve/internal/testutil"
	"github.com/roach88/rootsolve/internal/variant"
)

// squareResidual is z^2 - p. dp, when set, replaces the true dF/dp = -1.
func squareResidual(t *testing.T, dp float64) function.Function {
	t.Helper()
	col := sparsity.DenseColumn(1)
	var opts []function.Option
	if dp != 0 {
		jac, err := function.New("dsq_dp", []sparsity.Pattern{col, col}, []sparsity.Pattern{sparsity.Dense(1, 1)},
			func(context.Context, [][]float64) ([][]float64, error) {
				return [][]float64{{dp}}, nil
			})
		require.NoError(t, err)
		opts = append(opts, function.WithJacobian(1, 0, jac))
	}
	f, err := function.New("sq", []sparsity.Pattern{col, col}, []sparsity.Pattern{col},
		func(_ context.Context, args [][]float64) ([][]float64, error) {
			z, p := args[0][0], args[1][0]
			return [][]float64{{z*z - p}}, nil
		}, opts...)
	require.NoError(t, err)
	return f
}

func solvedSquare(t *testing.T, f function.Function) (*rootfinder.Rootfinder, [][]float64, []float64) {
	t.Helper()
	rf, err := rootfinder.New("sq", "newton", f, variant.Dict{}, rootfinder.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	require.NoError(t, rf.Init())
	t.Cleanup(func() { _ = rf.Close() })

	args := [][]float64{{2.1}, {4}}
	out, err := rf.Eval(context.Background(), args)
	require.NoError(t, err)
	return rf, args, out[0]
}

func TestCheckSensitivitiesPasses(t *testing.T) {
	rf, args, root := solvedSquare(t, squareResidual(t, 0))

	require.NoError(t, CheckSensitivities(context.Background(), rf, args, root, DefaultSensitivityTol))

	// the factorization is left at the root
	assert.Equal(t, rootfinder.Factorized, rf.State())
	fwd, err := rf.ForwardFunction(1)
	require.NoError(t, err)
	out, err := function.Call(context.Background(), fwd, [][]float64{{2.1}, {4}, root, {0}, {1}})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, out[0][0], 1e-9)
}

func TestCheckSensitivitiesDetectsWrongJacobian(t *testing.T) {
	// forward and reverse agree with each other but not with the solves
	rf, args, root := solvedSquare(t, squareResidual(t, -2))

	err := CheckSensitivities(context.Background(), rf, args, root, DefaultSensitivityTol)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finite difference")
}

func TestWithin(t *testing.T) {
	assert.True(t, within(1, 1+1e-10, 1e-9))
	assert.True(t, within(1000, 1000.0005, 1e-6))
	assert.False(t, within(0, 1e-3, 1e-4))
}
