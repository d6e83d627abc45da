package function

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rootsolve/internal/sparsity"
)

// chain evaluates r = [x0*p0, x1 + x0^2, sin(x2)] with x in R^3, p in R^1.
func chain(t *testing.T, opts ...Option) *Callback {
	t.Helper()
	f, err := New("chain",
		[]sparsity.Pattern{sparsity.DenseColumn(3), sparsity.DenseColumn(1)},
		[]sparsity.Pattern{sparsity.DenseColumn(3)},
		func(_ context.Context, args [][]float64) ([][]float64, error) {
			x, p := args[0], args[1]
			return [][]float64{{x[0] * p[0], x[1] + x[0]*x[0], math.Sin(x[2])}}, nil
		},
		opts...,
	)
	require.NoError(t, err)
	return f
}

var (
	chainDx = sparsity.MustNew(3, 3, []int{0, 2, 3, 4}, []int{0, 1, 1, 2})
	chainDp = sparsity.MustNew(3, 1, []int{0, 1}, []int{0})
)

func TestDefaultDependencyIsDense(t *testing.T) {
	f := chain(t)
	res := [][]sparsity.Word{make([]sparsity.Word, 3)}
	require.NoError(t, f.SpForward([][]sparsity.Word{nil, {1}}, res))
	assert.Equal(t, []sparsity.Word{1, 1, 1}, res[0])
}

func TestDeclaredDependencies(t *testing.T) {
	f := chain(t, WithDependency(0, 0, chainDx), WithDependency(0, 1, chainDp))

	res := [][]sparsity.Word{{0xff, 0xff, 0xff}}
	require.NoError(t, f.SpForward([][]sparsity.Word{{1, 2, 4}, {8}}, res))
	assert.Equal(t, []sparsity.Word{1 | 8, 1 | 2, 4}, res[0], "forward overwrites")

	arg := [][]sparsity.Word{make([]sparsity.Word, 3), make([]sparsity.Word, 1)}
	require.NoError(t, f.SpAdjoint(arg, [][]sparsity.Word{{0, 0, 1}}))
	require.NoError(t, f.SpAdjoint(arg, [][]sparsity.Word{{2, 0, 0}}))
	assert.Equal(t, []sparsity.Word{2, 0, 1}, arg[0])
	assert.Equal(t, []sparsity.Word{2}, arg[1])
}

func TestDependencyShapeChecked(t *testing.T) {
	_, err := New("bad",
		[]sparsity.Pattern{sparsity.DenseColumn(2)},
		[]sparsity.Pattern{sparsity.DenseColumn(2)},
		func(context.Context, [][]float64) ([][]float64, error) { return nil, nil },
		WithDependency(0, 0, sparsity.Dense(3, 2)),
	)
	assert.Error(t, err)
}

func TestJacobianSparsity(t *testing.T) {
	f := chain(t, WithDependency(0, 0, chainDx), WithDependency(0, 1, chainDp))

	jx, err := JacobianSparsity(f, 0, 0)
	require.NoError(t, err)
	assert.True(t, jx.Equal(chainDx))

	jp, err := JacobianSparsity(f, 1, 0)
	require.NoError(t, err)
	assert.True(t, jp.Equal(chainDp))

	_, err = JacobianSparsity(f, 2, 0)
	assert.Error(t, err)
}

func TestJacobianSparsityBatchesWideInputs(t *testing.T) {
	const n = 130
	f, err := New("identity",
		[]sparsity.Pattern{sparsity.DenseColumn(n)},
		[]sparsity.Pattern{sparsity.DenseColumn(n)},
		func(_ context.Context, args [][]float64) ([][]float64, error) { return args, nil },
		WithDependency(0, 0, sparsity.Diagonal(n)),
	)
	require.NoError(t, err)

	p, err := JacobianSparsity(f, 0, 0)
	require.NoError(t, err)
	assert.True(t, p.Equal(sparsity.Diagonal(n)))
}

func TestFiniteDifferenceMatchesAnalytic(t *testing.T) {
	f := chain(t, WithDependency(0, 0, chainDx), WithDependency(0, 1, chainDp))
	x := []float64{1.5, -2, 0.3}
	p := []float64{3}

	for _, method := range []Method{Forward, Central} {
		t.Run(method.String(), func(t *testing.T) {
			jac, err := NewFiniteDifference(f, 0, 0, method)
			require.NoError(t, err)
			assert.Equal(t, "jac_chain", jac.Name())

			out, err := Call(context.Background(), jac, [][]float64{x, p})
			require.NoError(t, err)

			// column-major nonzeros of chainDx: d0/dx0, d1/dx0, d1/dx1, d2/dx2
			want := []float64{p[0], 2 * x[0], 1, math.Cos(x[2])}
			assert.InDeltaSlice(t, want, out[0], 1e-6)
		})
	}
}

func TestFiniteDifferenceSkipsEmptyColumns(t *testing.T) {
	// r = [x0^2, 0, 3*x2]: column 1 is structurally empty.
	pattern := sparsity.MustNew(3, 3, []int{0, 1, 1, 2}, []int{0, 2})
	calls := 0
	f, err := New("skip",
		[]sparsity.Pattern{sparsity.DenseColumn(3)},
		[]sparsity.Pattern{sparsity.DenseColumn(3)},
		func(_ context.Context, args [][]float64) ([][]float64, error) {
			calls++
			x := args[0]
			return [][]float64{{x[0] * x[0], 0, 3 * x[2]}}, nil
		},
		WithDependency(0, 0, pattern),
	)
	require.NoError(t, err)

	tests := []struct {
		method Method
		calls  int // evaluations for two nonempty columns
	}{
		{Forward, 1 + 2},
		{Central, 2 * 2},
	}
	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			jac, err := NewFiniteDifference(f, 0, 0, tt.method)
			require.NoError(t, err)
			calls = 0
			out, err := jac.Eval(context.Background(), [][]float64{{2, 5, -1}})
			require.NoError(t, err)
			assert.Equal(t, tt.calls, calls)
			assert.InDeltaSlice(t, []float64{4, 3}, out[0], 1e-6)
		})
	}
}

func TestStructuralPatternIsSound(t *testing.T) {
	// A dense-declared function is checked against its own numeric
	// Jacobian: every numerically nonzero entry must be structural.
	f := chain(t, WithDependency(0, 0, chainDx), WithDependency(0, 1, chainDp))
	structural, err := JacobianSparsity(f, 0, 0)
	require.NoError(t, err)

	numeric, err := NewFiniteDifference(chain(t), 0, 0, Central)
	require.NoError(t, err)
	out, err := numeric.Eval(context.Background(), [][]float64{{0.7, 1.1, -0.4}, {2}})
	require.NoError(t, err)

	rows, cols := numeric.SparsityOut(0).Find()
	for k, v := range out[0] {
		if math.Abs(v) > 1e-9 {
			assert.True(t, structural.Has(rows[k], cols[k]), "entry (%d,%d) = %g missing", rows[k], cols[k], v)
		}
	}
}

func TestJacobianPrefersAnalytic(t *testing.T) {
	analytic, err := New("dchain",
		[]sparsity.Pattern{sparsity.DenseColumn(3), sparsity.DenseColumn(1)},
		[]sparsity.Pattern{chainDx},
		func(_ context.Context, args [][]float64) ([][]float64, error) {
			x, p := args[0], args[1]
			return [][]float64{{p[0], 2 * x[0], 1, math.Cos(x[2])}}, nil
		},
	)
	require.NoError(t, err)

	f := chain(t, WithJacobian(0, 0, analytic))
	jac, err := Jacobian(f, 0, 0)
	require.NoError(t, err)
	assert.Same(t, analytic, jac)

	fd, err := Jacobian(f, 1, 0)
	require.NoError(t, err)
	assert.IsType(t, &FiniteDifference{}, fd)
}

func TestCallChecksDimensions(t *testing.T) {
	f := chain(t)

	_, err := Call(context.Background(), f, [][]float64{{1, 2, 3}})
	assert.True(t, IsDimensionError(err))

	_, err = Call(context.Background(), f, [][]float64{{1, 2}, {1}})
	var de *DimensionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 0, de.Index)
	assert.Equal(t, 3, de.Want)
	assert.Equal(t, 2, de.Got)

	err = f.SpForward([][]sparsity.Word{nil, nil}, [][]sparsity.Word{make([]sparsity.Word, 2)})
	assert.True(t, IsDimensionError(err))
}

func TestDenseHelpers(t *testing.T) {
	res := [][]sparsity.Word{{4, 4}, nil}
	DenseSpForward([][]sparsity.Word{{1}, nil, {2, 0}}, res)
	assert.Equal(t, []sparsity.Word{3, 3}, res[0])

	arg := [][]sparsity.Word{{8}, nil}
	DenseSpAdjoint(arg, [][]sparsity.Word{{1, 2}})
	assert.Equal(t, []sparsity.Word{11}, arg[0])
}
