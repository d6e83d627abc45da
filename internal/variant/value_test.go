package variant

import (
	"encoding/json"
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedFunc struct{ name string }

func (f *namedFunc) Name() string { return f.name }

func TestToDoubleWidensInt(t *testing.T) {
	d, err := NewInt(5).ToDouble()
	require.NoError(t, err)
	assert.Equal(t, 5.0, d)
}

func TestAsIntDoesNotNarrowDouble(t *testing.T) {
	_, err := NewDouble(5.5).AsInt()
	require.Error(t, err)
	assert.True(t, IsTypeError(err))

	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, TypeInt, te.Want)
	assert.Equal(t, TypeDouble, te.Got)
}

func TestToIntDoesNotNarrowDouble(t *testing.T) {
	_, err := NewDouble(5.0).ToInt()
	assert.True(t, IsTypeError(err))
	assert.False(t, NewDouble(5.0).CanCastTo(TypeInt))
}

func TestEqualityComparesTagThenPayload(t *testing.T) {
	assert.True(t, MustOf("x").Equal(NewString(string("x"))))
	assert.False(t, NewInt(5).Equal(NewDouble(5.0)))
	assert.True(t, NewInt(5).Equal(MustOf(5)))
	assert.False(t, NewIntList([]int{1, 2}).Equal(NewDoubleList([]float64{1, 2})))
	assert.True(t, Null().Equal(Value{}))
}

func TestEqualityDicts(t *testing.T) {
	a := NewDict(Dict{"abstol": NewDouble(1e-10), "max_iter": NewInt(50)})
	b := NewDict(Dict{"max_iter": NewInt(50), "abstol": NewDouble(1e-10)})
	c := NewDict(Dict{"max_iter": NewDouble(50), "abstol": NewDouble(1e-10)})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestEqualityFunctionsByIdentity(t *testing.T) {
	f := &namedFunc{name: "f"}
	g := &namedFunc{name: "f"}

	assert.True(t, NewFunction(f).Equal(NewFunction(f)))
	assert.False(t, NewFunction(f).Equal(NewFunction(g)))
}

func TestPredicatesMatchTag(t *testing.T) {
	x := 1
	values := []Value{
		Null(), NewBool(true), NewInt(1), NewDouble(1), NewString("lu"),
		NewIntList([]int{1}), NewIntListList([][]int{{1}}), NewBoolList([]bool{true}),
		NewDoubleList([]float64{1}), NewStringList([]string{"a"}), NewDict(Dict{}),
		NewFunction(&namedFunc{name: "f"}), NewPointer(unsafe.Pointer(&x)),
	}
	predicates := []func(Value) bool{
		Value.IsNull, Value.IsBool, Value.IsInt, Value.IsDouble, Value.IsString,
		Value.IsIntList, Value.IsIntListList, Value.IsBoolList,
		Value.IsDoubleList, Value.IsStringList, Value.IsDict,
		Value.IsFunction, Value.IsPointer,
	}
	for i, v := range values {
		assert.Equal(t, Type(i), v.Type())
		for j, is := range predicates {
			assert.Equal(t, i == j, is(v), "%s is %s", v.Type(), Type(j))
		}
	}
}

func TestCanCastTo(t *testing.T) {
	tests := []struct {
		name   string
		value  Value
		target Type
		want   bool
	}{
		{"int to double", NewInt(1), TypeDouble, true},
		{"bool to int", NewBool(true), TypeInt, true},
		{"int to bool", NewInt(0), TypeBool, true},
		{"double to int", NewDouble(1), TypeInt, false},
		{"string to int", NewString("1"), TypeInt, false},
		{"int list to double list", NewIntList([]int{1}), TypeDoubleList, true},
		{"double list to int list", NewDoubleList([]float64{1}), TypeIntList, false},
		{"empty int list to string list", NewIntList(nil), TypeStringList, true},
		{"string to string list", NewString("a"), TypeStringList, true},
		{"identity dict", NewDict(nil), TypeDict, true},
		{"null to int", Null(), TypeInt, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.CanCastTo(tt.target))

			_, err := tt.value.To(tt.target)
			if tt.want {
				assert.NoError(t, err)
			} else {
				assert.True(t, IsTypeError(err))
			}
		})
	}
}

func TestToListWidening(t *testing.T) {
	dl, err := NewIntList([]int{1, 2}).ToDoubleList()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, dl)

	il, err := NewBoolList([]bool{true, false}).ToIntList()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, il)

	sl, err := NewString("newton").ToStringList()
	require.NoError(t, err)
	assert.Equal(t, []string{"newton"}, sl)
}

func TestConstructionCopiesInput(t *testing.T) {
	src := []float64{1, 2, 3}
	v := NewDoubleList(src)
	src[0] = 99

	got, err := v.AsDoubleList()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got)

	// Mutating what As returned must not reach the value either
	got[1] = 42
	again, _ := v.AsDoubleList()
	assert.Equal(t, 2.0, again[1])
}

func TestOfTypesUntypedLists(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want Type
	}{
		{"ints", []any{1, 2}, TypeIntList},
		{"mixed numbers", []any{1, 2.5}, TypeDoubleList},
		{"bools", []any{true}, TypeBoolList},
		{"strings", []any{"a", "b"}, TypeStringList},
		{"nested", []any{[]any{1}, []any{2, 3}}, TypeIntListList},
		{"empty", []any{}, TypeIntList},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Of(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Type())
		})
	}

	_, err := Of([]any{1, "a"})
	assert.Error(t, err)
}

func TestOfRejectsUnsupported(t *testing.T) {
	_, err := Of(struct{}{})
	assert.Error(t, err)
}

func TestOfRejectsIntOverflow(t *testing.T) {
	_, err := Of(uint(math.MaxInt) + 1)
	assert.ErrorContains(t, err, "overflows int")

	_, err = Of([]any{1, uint(math.MaxUint)})
	assert.ErrorContains(t, err, "list[1]")

	v, err := Of(uint(math.MaxInt))
	require.NoError(t, err)
	n, err := v.AsInt()
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, n)

	v, err = Of([]any{uint(3), 0.5})
	require.NoError(t, err)
	assert.True(t, v.Equal(NewDoubleList([]float64{3, 0.5})))
}

func TestPointerPayload(t *testing.T) {
	x := 7
	p := unsafe.Pointer(&x)
	v := NewPointer(p)

	got, err := v.AsPointer()
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.True(t, v.Equal(NewPointer(p)))
}

func TestString(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{Null(), "null"},
		{NewInt(5), "int(5)"},
		{NewDouble(2.5), "double(2.5)"},
		{NewString("lu"), `string("lu")`},
		{NewIntList([]int{1, -1}), "int list([1, -1])"},
		{NewIntListList([][]int{{1}, {2, 3}}), "int list list([[1], [2, 3]])"},
		{NewFunction(&namedFunc{name: "f"}), "function(f)"},
		{NewDict(Dict{"b": NewBool(true), "a": NewInt(1)}), "dict({a: int(1), b: bool(true)})"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.value.String())
	}
}

func TestJSONRoundTripKeepsTags(t *testing.T) {
	d := Dict{
		"abstol":      NewDouble(1),
		"max_iter":    NewInt(30),
		"constraints": NewIntList([]int{0, 1, -1}),
		"guess":       NewDoubleList([]float64{1, 2.5}),
		"solver":      NewString("lu"),
		"nested":      NewDict(Dict{"flag": NewBool(false)}),
	}

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"abstol":1.0`)

	var back Dict
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, d.Equal(back), "got %s", back)
}

func TestJSONRejectsFunctions(t *testing.T) {
	_, err := json.Marshal(NewFunction(&namedFunc{name: "f"}))
	assert.Error(t, err)
}
