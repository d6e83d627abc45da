package variant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
// Go's default string comparison uses UTF-8 which produces a different order.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler. Doubles always carry a decimal
// point or exponent so ints and doubles survive a round trip. Function and
// pointer payloads cannot be serialised.
func (v Value) MarshalJSON() ([]byte, error) {
	return marshalValue(v, json.Marshal)
}

// MarshalJSON implements json.Marshaler for Dict with sorted keys.
func (d Dict) MarshalJSON() ([]byte, error) {
	return marshalDict(d, json.Marshal)
}

type stringEncoder func(any) ([]byte, error)

func marshalValue(v Value, enc stringEncoder) ([]byte, error) {
	switch v.t {
	case TypeNull:
		return []byte("null"), nil
	case TypeBool:
		return json.Marshal(v.v.(bool))
	case TypeInt:
		return []byte(strconv.Itoa(v.v.(int))), nil
	case TypeDouble:
		return formatDouble(v.v.(float64))
	case TypeString:
		return enc(v.v.(string))
	case TypeIntList:
		return marshalList(v.v.([]int), func(n int) ([]byte, error) { return []byte(strconv.Itoa(n)), nil })
	case TypeIntListList:
		return marshalList(v.v.([][]int), func(row []int) ([]byte, error) {
			return marshalList(row, func(n int) ([]byte, error) { return []byte(strconv.Itoa(n)), nil })
		})
	case TypeBoolList:
		return marshalList(v.v.([]bool), func(b bool) ([]byte, error) { return json.Marshal(b) })
	case TypeDoubleList:
		return marshalList(v.v.([]float64), formatDouble)
	case TypeStringList:
		return marshalList(v.v.([]string), func(s string) ([]byte, error) { return enc(s) })
	case TypeDict:
		return marshalDict(v.v.(Dict), enc)
	default:
		return nil, fmt.Errorf("variant: %s values cannot be serialised", v.t)
	}
}

func marshalList[T any](l []T, elem func(T) ([]byte, error)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, x := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := elem(x)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalDict(d Dict, enc stringEncoder) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := enc(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := marshalValue(d[k], enc)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func formatDouble(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("variant: non-finite double %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return []byte(s), nil
}

// UnmarshalJSON implements json.Unmarshaler. Numbers without a fraction or
// exponent decode as ints, everything else numeric as doubles.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := fromJSON(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Dict.
func (d *Dict) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	dict, err := v.AsDict()
	if err != nil {
		return err
	}
	*d = dict
	return nil
}

// fromJSON converts a decoded JSON tree (with json.Number) into a Value.
func fromJSON(raw any) (Value, error) {
	switch val := raw.(type) {
	case json.Number:
		return numberValue(val)
	case []any:
		conv := make([]any, len(val))
		for i, elem := range val {
			switch e := elem.(type) {
			case json.Number:
				nv, err := numberValue(e)
				if err != nil {
					return Value{}, fmt.Errorf("list[%d]: %w", i, err)
				}
				conv[i] = nv.v
			case []any:
				inner, err := fromJSON(e)
				if err != nil {
					return Value{}, fmt.Errorf("list[%d]: %w", i, err)
				}
				conv[i] = inner.v
			default:
				conv[i] = elem
			}
		}
		return listOf(conv)
	case map[string]any:
		d := make(Dict, len(val))
		for k, elem := range val {
			ev, err := fromJSON(elem)
			if err != nil {
				return Value{}, fmt.Errorf("dict[%q]: %w", k, err)
			}
			d[k] = ev
		}
		return Value{t: TypeDict, v: d}, nil
	default:
		return Of(val)
	}
}

func numberValue(n json.Number) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		i, err := n.Int64()
		if err != nil {
			return Value{}, fmt.Errorf("number out of int range: %s", s)
		}
		return NewInt(int(i)), nil
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, err
	}
	return NewDouble(f), nil
}
