package variant

import (
	"errors"
	"fmt"
	"slices"
	"unsafe"
)

// TypeError is returned when a value is read as a type it does not hold
// and cannot be widened to.
type TypeError struct {
	Want Type
	Got  Type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("variant: cannot read %s as %s", e.Got, e.Want)
}

// IsTypeError returns true if err is, or wraps, a *TypeError.
func IsTypeError(err error) bool {
	var te *TypeError
	return errors.As(err, &te)
}

// widening lists, per source type, the targets reachable through an
// implicit conversion. Identity is handled by CanCastTo.
var widening = map[Type][]Type{
	TypeBool:     {TypeInt, TypeDouble},
	TypeInt:      {TypeBool, TypeDouble},
	TypeIntList:  {TypeDoubleList, TypeBoolList},
	TypeBoolList: {TypeIntList, TypeDoubleList},
	TypeString:   {TypeStringList},
}

var listTypes = []Type{TypeIntList, TypeIntListList, TypeBoolList, TypeDoubleList, TypeStringList}

// CanCastTo reports whether ToX for target type t succeeds on v.
func (v Value) CanCastTo(t Type) bool {
	if v.t == t {
		return true
	}
	// An empty list carries no element information; it fits any list kind.
	if v.IsEmptyList() && slices.Contains(listTypes, t) {
		return true
	}
	return slices.Contains(widening[v.t], t)
}

func (v Value) mismatch(want Type) error {
	return &TypeError{Want: want, Got: v.t}
}

// AsBool returns the payload of a bool value.
func (v Value) AsBool() (bool, error) {
	if v.t != TypeBool {
		return false, v.mismatch(TypeBool)
	}
	return v.v.(bool), nil
}

// AsInt returns the payload of an int value. Doubles are not narrowed.
func (v Value) AsInt() (int, error) {
	if v.t != TypeInt {
		return 0, v.mismatch(TypeInt)
	}
	return v.v.(int), nil
}

// AsDouble returns the payload of a double value.
func (v Value) AsDouble() (float64, error) {
	if v.t != TypeDouble {
		return 0, v.mismatch(TypeDouble)
	}
	return v.v.(float64), nil
}

// AsString returns the payload of a string value.
func (v Value) AsString() (string, error) {
	if v.t != TypeString {
		return "", v.mismatch(TypeString)
	}
	return v.v.(string), nil
}

// AsIntList returns a copy of the payload of an int list value.
func (v Value) AsIntList() ([]int, error) {
	if v.t != TypeIntList {
		return nil, v.mismatch(TypeIntList)
	}
	return slices.Clone(v.v.([]int)), nil
}

// AsIntListList returns a copy of the payload of an int list list value.
func (v Value) AsIntListList() ([][]int, error) {
	if v.t != TypeIntListList {
		return nil, v.mismatch(TypeIntListList)
	}
	src := v.v.([][]int)
	out := make([][]int, len(src))
	for i, row := range src {
		out[i] = slices.Clone(row)
	}
	return out, nil
}

// AsBoolList returns a copy of the payload of a bool list value.
func (v Value) AsBoolList() ([]bool, error) {
	if v.t != TypeBoolList {
		return nil, v.mismatch(TypeBoolList)
	}
	return slices.Clone(v.v.([]bool)), nil
}

// AsDoubleList returns a copy of the payload of a double list value.
func (v Value) AsDoubleList() ([]float64, error) {
	if v.t != TypeDoubleList {
		return nil, v.mismatch(TypeDoubleList)
	}
	return slices.Clone(v.v.([]float64)), nil
}

// AsStringList returns a copy of the payload of a string list value.
func (v Value) AsStringList() ([]string, error) {
	if v.t != TypeStringList {
		return nil, v.mismatch(TypeStringList)
	}
	return slices.Clone(v.v.([]string)), nil
}

// AsDict returns a copy of the payload of a dict value.
func (v Value) AsDict() (Dict, error) {
	if v.t != TypeDict {
		return nil, v.mismatch(TypeDict)
	}
	return v.v.(Dict).Clone(), nil
}

// AsFunction returns the function reference of a function value.
func (v Value) AsFunction() (FunctionRef, error) {
	if v.t != TypeFunction {
		return nil, v.mismatch(TypeFunction)
	}
	return v.v.(FunctionRef), nil
}

// AsPointer returns the payload of a pointer value.
func (v Value) AsPointer() (unsafe.Pointer, error) {
	if v.t != TypePointer {
		return nil, v.mismatch(TypePointer)
	}
	return v.v.(unsafe.Pointer), nil
}

// ToBool reads a bool, widening from int (non-zero is true).
func (v Value) ToBool() (bool, error) {
	switch v.t {
	case TypeBool:
		return v.v.(bool), nil
	case TypeInt:
		return v.v.(int) != 0, nil
	}
	return false, v.mismatch(TypeBool)
}

// ToInt reads an int, widening from bool.
func (v Value) ToInt() (int, error) {
	switch v.t {
	case TypeInt:
		return v.v.(int), nil
	case TypeBool:
		if v.v.(bool) {
			return 1, nil
		}
		return 0, nil
	}
	return 0, v.mismatch(TypeInt)
}

// ToDouble reads a double, widening from int or bool.
func (v Value) ToDouble() (float64, error) {
	switch v.t {
	case TypeDouble:
		return v.v.(float64), nil
	case TypeInt, TypeBool:
		n, err := v.ToInt()
		return float64(n), err
	}
	return 0, v.mismatch(TypeDouble)
}

// ToString reads a string. There is no widening into strings.
func (v Value) ToString() (string, error) {
	return v.AsString()
}

// ToIntList reads an int list, widening from bool lists and empty lists.
func (v Value) ToIntList() ([]int, error) {
	switch {
	case v.t == TypeIntList:
		return v.AsIntList()
	case v.t == TypeBoolList:
		src := v.v.([]bool)
		out := make([]int, len(src))
		for i, b := range src {
			if b {
				out[i] = 1
			}
		}
		return out, nil
	case v.IsEmptyList():
		return []int{}, nil
	}
	return nil, v.mismatch(TypeIntList)
}

// ToIntListList reads an int list list; an empty list of any kind widens.
func (v Value) ToIntListList() ([][]int, error) {
	switch {
	case v.t == TypeIntListList:
		return v.AsIntListList()
	case v.IsEmptyList():
		return [][]int{}, nil
	}
	return nil, v.mismatch(TypeIntListList)
}

// ToBoolList reads a bool list, widening from int lists.
func (v Value) ToBoolList() ([]bool, error) {
	switch {
	case v.t == TypeBoolList:
		return v.AsBoolList()
	case v.t == TypeIntList:
		src := v.v.([]int)
		out := make([]bool, len(src))
		for i, n := range src {
			out[i] = n != 0
		}
		return out, nil
	case v.IsEmptyList():
		return []bool{}, nil
	}
	return nil, v.mismatch(TypeBoolList)
}

// ToDoubleList reads a double list, widening from int and bool lists.
func (v Value) ToDoubleList() ([]float64, error) {
	switch {
	case v.t == TypeDoubleList:
		return v.AsDoubleList()
	case v.t == TypeIntList || v.t == TypeBoolList:
		ints, err := v.ToIntList()
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(ints))
		for i, n := range ints {
			out[i] = float64(n)
		}
		return out, nil
	case v.IsEmptyList():
		return []float64{}, nil
	}
	return nil, v.mismatch(TypeDoubleList)
}

// ToStringList reads a string list; a single string widens to a one-element
// list.
func (v Value) ToStringList() ([]string, error) {
	switch {
	case v.t == TypeStringList:
		return v.AsStringList()
	case v.t == TypeString:
		return []string{v.v.(string)}, nil
	case v.IsEmptyList():
		return []string{}, nil
	}
	return nil, v.mismatch(TypeStringList)
}

// ToDict reads a dict.
func (v Value) ToDict() (Dict, error) { return v.AsDict() }

// ToFunction reads a function reference.
func (v Value) ToFunction() (FunctionRef, error) { return v.AsFunction() }

// ToPointer reads an opaque pointer.
func (v Value) ToPointer() (unsafe.Pointer, error) { return v.AsPointer() }

// To performs the ToX conversion selected by t and returns the result as a
// new Value of type t.
func (v Value) To(t Type) (Value, error) {
	if v.t == t {
		return v, nil
	}
	if !v.CanCastTo(t) {
		return Value{}, v.mismatch(t)
	}
	switch t {
	case TypeBool:
		b, err := v.ToBool()
		return NewBool(b), err
	case TypeInt:
		n, err := v.ToInt()
		return NewInt(n), err
	case TypeDouble:
		d, err := v.ToDouble()
		return NewDouble(d), err
	case TypeIntList:
		l, err := v.ToIntList()
		return NewIntList(l), err
	case TypeIntListList:
		l, err := v.ToIntListList()
		return NewIntListList(l), err
	case TypeBoolList:
		l, err := v.ToBoolList()
		return NewBoolList(l), err
	case TypeDoubleList:
		l, err := v.ToDoubleList()
		return NewDoubleList(l), err
	case TypeStringList:
		l, err := v.ToStringList()
		return NewStringList(l), err
	}
	return Value{}, v.mismatch(t)
}
