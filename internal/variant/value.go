package variant

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"unsafe"
)

// Type identifies the payload kind of a Value.
type Type int

const (
	TypeNull Type = iota
	TypeBool
	TypeInt
	TypeDouble
	TypeString
	TypeIntList
	TypeIntListList
	TypeBoolList
	TypeDoubleList
	TypeStringList
	TypeDict
	TypeFunction
	TypePointer
)

var typeNames = [...]string{
	TypeNull:        "null",
	TypeBool:        "bool",
	TypeInt:         "int",
	TypeDouble:      "double",
	TypeString:      "string",
	TypeIntList:     "int list",
	TypeIntListList: "int list list",
	TypeBoolList:    "bool list",
	TypeDoubleList:  "double list",
	TypeStringList:  "string list",
	TypeDict:        "dict",
	TypeFunction:    "function",
	TypePointer:     "pointer",
}

// String returns the human-readable name of the type.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("unknown(%d)", int(t))
	}
	return typeNames[t]
}

// FunctionRef is anything that can be carried as a function-reference
// payload. Evaluator functions satisfy it through their Name method.
type FunctionRef interface {
	Name() string
}

// Dict maps option names to values. Insertion order is irrelevant.
type Dict map[string]Value

// Value is an immutable tagged union. The zero Value is null.
type Value struct {
	t Type
	v any
}

// Null returns the null value.
func Null() Value { return Value{} }

// NewBool creates a bool value.
func NewBool(b bool) Value { return Value{t: TypeBool, v: b} }

// NewInt creates an int value.
func NewInt(i int) Value { return Value{t: TypeInt, v: i} }

// NewDouble creates a double value.
func NewDouble(d float64) Value { return Value{t: TypeDouble, v: d} }

// NewString creates a string value.
func NewString(s string) Value { return Value{t: TypeString, v: s} }

// NewIntList creates an int list value. The slice is copied.
func NewIntList(l []int) Value { return Value{t: TypeIntList, v: cloneOrEmpty(l)} }

// NewIntListList creates a list of int lists. All levels are copied.
func NewIntListList(l [][]int) Value {
	out := make([][]int, len(l))
	for i, row := range l {
		out[i] = cloneOrEmpty(row)
	}
	return Value{t: TypeIntListList, v: out}
}

// NewBoolList creates a bool list value. The slice is copied.
func NewBoolList(l []bool) Value { return Value{t: TypeBoolList, v: cloneOrEmpty(l)} }

// NewDoubleList creates a double list value. The slice is copied.
func NewDoubleList(l []float64) Value { return Value{t: TypeDoubleList, v: cloneOrEmpty(l)} }

// NewStringList creates a string list value. The slice is copied.
func NewStringList(l []string) Value { return Value{t: TypeStringList, v: cloneOrEmpty(l)} }

// NewDict creates a dict value. The map is copied (values are immutable).
func NewDict(d Dict) Value { return Value{t: TypeDict, v: d.Clone()} }

// NewFunction wraps a function reference.
func NewFunction(f FunctionRef) Value { return Value{t: TypeFunction, v: f} }

// NewPointer wraps an opaque pointer.
func NewPointer(p unsafe.Pointer) Value { return Value{t: TypePointer, v: p} }

func cloneOrEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}

// Of converts a Go value into a Value, mirroring the implicit conversions
// callers expect from an options literal. Untyped []any lists are typed by
// their contents; integral lists stay int lists, mixed numeric lists become
// double lists.
func Of(x any) (Value, error) {
	switch val := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return val, nil
	case bool:
		return NewBool(val), nil
	case int, int32, int64, uint:
		n, err := toGoInt(val)
		if err != nil {
			return Value{}, err
		}
		return NewInt(n), nil
	case float32:
		return NewDouble(float64(val)), nil
	case float64:
		return NewDouble(val), nil
	case string:
		return NewString(val), nil
	case []int:
		return NewIntList(val), nil
	case [][]int:
		return NewIntListList(val), nil
	case []bool:
		return NewBoolList(val), nil
	case []float64:
		return NewDoubleList(val), nil
	case []string:
		return NewStringList(val), nil
	case Dict:
		return NewDict(val), nil
	case map[string]Value:
		return NewDict(Dict(val)), nil
	case map[string]any:
		d := make(Dict, len(val))
		for k, elem := range val {
			ev, err := Of(elem)
			if err != nil {
				return Value{}, fmt.Errorf("dict[%q]: %w", k, err)
			}
			d[k] = ev
		}
		return Value{t: TypeDict, v: d}, nil
	case []any:
		return listOf(val)
	case unsafe.Pointer:
		return NewPointer(val), nil
	case FunctionRef:
		return NewFunction(val), nil
	default:
		return Value{}, fmt.Errorf("unsupported type: %T", x)
	}
}

// MustOf is Of for literals known to be valid. Panics on unsupported input.
func MustOf(x any) Value {
	v, err := Of(x)
	if err != nil {
		panic(err)
	}
	return v
}

// listOf types an untyped list by inspecting every element.
func listOf(l []any) (Value, error) {
	if len(l) == 0 {
		return NewIntList(nil), nil
	}
	var nBool, nInt, nDouble, nString, nList int
	for _, elem := range l {
		switch elem.(type) {
		case bool:
			nBool++
		case int, int32, int64, uint:
			nInt++
		case float32, float64:
			nDouble++
		case string:
			nString++
		case []any, []int:
			nList++
		default:
			return Value{}, fmt.Errorf("unsupported list element: %T", elem)
		}
	}
	switch len(l) {
	case nBool:
		out := make([]bool, len(l))
		for i, elem := range l {
			out[i] = elem.(bool)
		}
		return Value{t: TypeBoolList, v: out}, nil
	case nInt:
		out := make([]int, len(l))
		for i, elem := range l {
			n, err := toGoInt(elem)
			if err != nil {
				return Value{}, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = n
		}
		return Value{t: TypeIntList, v: out}, nil
	case nInt + nDouble:
		out := make([]float64, len(l))
		for i, elem := range l {
			switch f := elem.(type) {
			case float32:
				out[i] = float64(f)
			case float64:
				out[i] = f
			case uint:
				out[i] = float64(f)
			default:
				n, err := toGoInt(elem)
				if err != nil {
					return Value{}, fmt.Errorf("list[%d]: %w", i, err)
				}
				out[i] = float64(n)
			}
		}
		return Value{t: TypeDoubleList, v: out}, nil
	case nString:
		out := make([]string, len(l))
		for i, elem := range l {
			out[i] = elem.(string)
		}
		return Value{t: TypeStringList, v: out}, nil
	case nList:
		out := make([][]int, len(l))
		for i, elem := range l {
			inner, err := Of(elem)
			if err != nil {
				return Value{}, fmt.Errorf("list[%d]: %w", i, err)
			}
			row, err := inner.AsIntList()
			if err != nil {
				return Value{}, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = row
		}
		return Value{t: TypeIntListList, v: out}, nil
	default:
		return Value{}, fmt.Errorf("heterogeneous list: %d bool, %d int, %d double, %d string, %d list",
			nBool, nInt, nDouble, nString, nList)
	}
}

// toGoInt converts a Go integer to int, rejecting values int cannot hold.
func toGoInt(x any) (int, error) {
	switch n := x.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, fmt.Errorf("int64 %d overflows int", n)
		}
		return int(n), nil
	case uint:
		if n > math.MaxInt {
			return 0, fmt.Errorf("uint %d overflows int", n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("unsupported integer type: %T", x)
}

// Type returns the tag.
func (v Value) Type() Type { return v.t }

func (v Value) IsNull() bool        { return v.t == TypeNull }
func (v Value) IsBool() bool        { return v.t == TypeBool }
func (v Value) IsInt() bool         { return v.t == TypeInt }
func (v Value) IsDouble() bool      { return v.t == TypeDouble }
func (v Value) IsString() bool      { return v.t == TypeString }
func (v Value) IsIntList() bool     { return v.t == TypeIntList }
func (v Value) IsIntListList() bool { return v.t == TypeIntListList }
func (v Value) IsBoolList() bool    { return v.t == TypeBoolList }
func (v Value) IsDoubleList() bool  { return v.t == TypeDoubleList }
func (v Value) IsStringList() bool  { return v.t == TypeStringList }
func (v Value) IsDict() bool        { return v.t == TypeDict }
func (v Value) IsFunction() bool    { return v.t == TypeFunction }
func (v Value) IsPointer() bool     { return v.t == TypePointer }

// IsEmptyList reports whether the value is a list of any kind with no
// elements.
func (v Value) IsEmptyList() bool {
	switch v.t {
	case TypeIntList:
		return len(v.v.([]int)) == 0
	case TypeIntListList:
		return len(v.v.([][]int)) == 0
	case TypeBoolList:
		return len(v.v.([]bool)) == 0
	case TypeDoubleList:
		return len(v.v.([]float64)) == 0
	case TypeStringList:
		return len(v.v.([]string)) == 0
	}
	return false
}

// Equal compares tag, then payload. Values of different tags are never
// equal, even when numerically convertible.
func (v Value) Equal(o Value) bool {
	if v.t != o.t {
		return false
	}
	switch v.t {
	case TypeNull:
		return true
	case TypeBool, TypeInt, TypeDouble, TypeString, TypePointer:
		return v.v == o.v
	case TypeIntList:
		return slices.Equal(v.v.([]int), o.v.([]int))
	case TypeIntListList:
		return slices.EqualFunc(v.v.([][]int), o.v.([][]int), slices.Equal[[]int])
	case TypeBoolList:
		return slices.Equal(v.v.([]bool), o.v.([]bool))
	case TypeDoubleList:
		return slices.Equal(v.v.([]float64), o.v.([]float64))
	case TypeStringList:
		return slices.Equal(v.v.([]string), o.v.([]string))
	case TypeDict:
		return v.v.(Dict).Equal(o.v.(Dict))
	case TypeFunction:
		return sameRef(v.v, o.v)
	}
	return false
}

// sameRef compares function references by identity, guarding against
// implementations with non-comparable dynamic types.
func sameRef(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil {
		return true
	}
	if !ta.Comparable() {
		return false
	}
	return a == b
}

// Clone returns a shallow copy of the dict. Values are immutable so a
// shallow copy is a full copy.
func (d Dict) Clone() Dict {
	if d == nil {
		return Dict{}
	}
	out := make(Dict, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Equal reports whether both dicts hold the same keys with equal values.
func (d Dict) Equal(o Dict) bool {
	if len(d) != len(o) {
		return false
	}
	for k, v := range d {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Keys returns the dict keys in canonical (RFC 8785) order.
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}
