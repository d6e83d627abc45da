package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/rootsolve/internal/variant"
)

// marshalOptions converts an option dict to canonical JSON TEXT.
func marshalOptions(opts variant.Dict) (string, error) {
	data, err := variant.MarshalCanonical(opts)
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	return string(data), nil
}

// unmarshalOptions parses canonical JSON TEXT back into a dict.
func unmarshalOptions(data string) (variant.Dict, error) {
	if data == "" || data == "{}" {
		return variant.Dict{}, nil
	}
	var d variant.Dict
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	return d, nil
}

// marshalVector renders a vector as a JSON array. Non-finite entries,
// which JSON cannot carry, are written as null.
func marshalVector(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			b.WriteString("null")
			continue
		}
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// unmarshalVector is the inverse of marshalVector; null reads as NaN.
func unmarshalVector(data string) ([]float64, error) {
	var raw []*float64
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal vector: %w", err)
	}
	v := make([]float64, len(raw))
	for i, x := range raw {
		if x == nil {
			v[i] = math.NaN()
			continue
		}
		v[i] = *x
	}
	return v, nil
}

func marshalVectors(vs [][]float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = marshalVector(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func unmarshalVectors(data string) ([][]float64, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal vectors: %w", err)
	}
	out := make([][]float64, len(raw))
	for i, r := range raw {
		v, err := unmarshalVector(string(r))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// sqlFloat maps NaN to NULL; SQLite would store it as NULL anyway.
func sqlFloat(x float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: x, Valid: !math.IsNaN(x)}
}

func goFloat(x sql.NullFloat64) float64 {
	if !x.Valid {
		return math.NaN()
	}
	return x.Float64
}
