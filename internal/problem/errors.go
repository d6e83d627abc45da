package problem

import (
	"errors"
	"fmt"
)

// Error codes for problem loading. The CLI reports them verbatim.
const (
	ErrCodeNotFound = "E005" // Problem file missing
	ErrCodeParse    = "E201" // Malformed YAML or unknown field
	ErrCodeInvalid  = "E202" // Structurally invalid problem
	ErrCodeResidual = "E203" // CUE residual does not compile or evaluate
)

// LoadError describes a problem file that could not be loaded.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Code returns the LoadError code carried by err, or "" if there is none.
func Code(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
