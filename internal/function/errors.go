package function

import (
	"errors"
	"fmt"
)

// DimensionError reports numeric data or seeds whose size does not match
// a function's signature. Index is -1 when the count itself is wrong.
type DimensionError struct {
	Func  string
	Kind  string
	Index int
	Want  int
	Got   int
}

func (e *DimensionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("function %s: got %d %s, want %d", e.Func, e.Got, e.Kind, e.Want)
	}
	return fmt.Sprintf("function %s: %s %d has %d nonzeros, want %d", e.Func, e.Kind, e.Index, e.Got, e.Want)
}

// IsDimensionError returns true if err is, or wraps, a *DimensionError.
func IsDimensionError(err error) bool {
	var de *DimensionError
	return errors.As(err, &de)
}
