package problem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rootsolve/internal/function"
	"github.com/roach88/rootsolve/internal/sparsity"
)

func TestResidualEvaluates(t *testing.T) {
	f, err := NewResidual("circle", `
import "math"

r: [
	math.Pow(x[0], 2) + x[1]*x[1] - c[0],
	x[0] - x[1],
]
`, []string{"x", "c"}, []int{2, 1}, 2)
	require.NoError(t, err)

	out, err := function.Call(context.Background(), f, [][]float64{{3, 4}, {25}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, -1}, out[0], 1e-12)
}

func TestResidualIsOpaque(t *testing.T) {
	f, err := NewResidual("lin", "r: [a[0], b[0]]", []string{"a", "b"}, []int{1, 1}, 2)
	require.NoError(t, err)

	// a CUE residual is a black box: every output depends on every input
	p, err := function.JacobianSparsity(f, 0, 0)
	require.NoError(t, err)
	assert.True(t, p.Equal(sparsity.Dense(2, 1)))
}

func TestResidualFiniteDifferenceJacobian(t *testing.T) {
	f, err := NewResidual("square", "r: [z[0]*z[0] - p[0]]", []string{"z", "p"}, []int{1, 1}, 1)
	require.NoError(t, err)

	jac, err := function.Jacobian(f, 0, 0)
	require.NoError(t, err)
	out, err := function.Call(context.Background(), jac, [][]float64{{3}, {4}})
	require.NoError(t, err)
	assert.InDelta(t, 6, out[0][0], 1e-6)
}

func TestResidualCompileErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":            "r: [z[0] *",
		"unknown reference": "r: [w[0]]",
		"no r":              "s: [z[0]]",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewResidual("bad", src, []string{"z"}, []int{1}, 1)
			require.Error(t, err)
			assert.Equal(t, ErrCodeResidual, Code(err))
		})
	}
}

func TestResidualWrongLength(t *testing.T) {
	f, err := NewResidual("short", "r: [z[0]]", []string{"z"}, []int{2}, 2)
	require.NoError(t, err)
	_, err = function.Call(context.Background(), f, [][]float64{{1, 2}})
	assert.ErrorContains(t, err, "has 1 entries, want 2")
}

func TestResidualEvaluationError(t *testing.T) {
	f, err := NewResidual("div", "r: [1 / (z[0] - 1)]", []string{"z"}, []int{1}, 1)
	require.NoError(t, err)

	out, err := function.Call(context.Background(), f, [][]float64{{5}})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, out[0][0], 1e-15)

	_, err = function.Call(context.Background(), f, [][]float64{{1}})
	assert.Error(t, err)
}
