package variant

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders the tag and payload, e.g. `int(5)`, `double list([1, 2.5])`,
// `dict({abstol: double(1e-10)})`.
func (v Value) String() string {
	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

// String renders the dict with keys in canonical order.
func (d Dict) String() string {
	var b strings.Builder
	writeDict(&b, d)
	return b.String()
}

func writeValue(b *strings.Builder, v Value) {
	if v.t == TypeNull {
		b.WriteString("null")
		return
	}
	b.WriteString(v.t.String())
	b.WriteByte('(')
	switch v.t {
	case TypeBool:
		b.WriteString(strconv.FormatBool(v.v.(bool)))
	case TypeInt:
		b.WriteString(strconv.Itoa(v.v.(int)))
	case TypeDouble:
		b.WriteString(strconv.FormatFloat(v.v.(float64), 'g', -1, 64))
	case TypeString:
		b.WriteString(strconv.Quote(v.v.(string)))
	case TypeIntList:
		writeList(b, v.v.([]int), strconv.Itoa)
	case TypeIntListList:
		writeList(b, v.v.([][]int), func(row []int) string {
			var inner strings.Builder
			writeList(&inner, row, strconv.Itoa)
			return inner.String()
		})
	case TypeBoolList:
		writeList(b, v.v.([]bool), strconv.FormatBool)
	case TypeDoubleList:
		writeList(b, v.v.([]float64), func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) })
	case TypeStringList:
		writeList(b, v.v.([]string), strconv.Quote)
	case TypeDict:
		writeDict(b, v.v.(Dict))
	case TypeFunction:
		if f := v.v.(FunctionRef); f != nil {
			b.WriteString(f.Name())
		}
	case TypePointer:
		fmt.Fprintf(b, "%p", v.v)
	}
	b.WriteByte(')')
}

func writeList[T any](b *strings.Builder, l []T, format func(T) string) {
	b.WriteByte('[')
	for i, x := range l {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(format(x))
	}
	b.WriteByte(']')
}

func writeDict(b *strings.Builder, d Dict) {
	b.WriteByte('{')
	for i, k := range d.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		writeValue(b, d[k])
	}
	b.WriteByte('}')
}
