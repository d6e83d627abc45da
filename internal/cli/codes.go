package cli

import (
	"errors"

	"github.com/roach88/rootsolve/internal/plugin"
	"github.com/roach88/rootsolve/internal/problem"
	"github.com/roach88/rootsolve/internal/rootfinder"
	"github.com/roach88/rootsolve/internal/store"
)

// Error codes
const (
	ErrCodeGeneric   = "E001" // Generic/unknown error
	ErrCodeScanError = "E002" // Directory scan error
	ErrCodeNoFiles   = "E003" // No problem files found
	ErrCodeNotFound  = problem.ErrCodeNotFound

	// Problem file errors (E2xx) come from problem.LoadError

	// Solver setup errors (E3xx)
	ErrCodeUnknownPlugin = "E301" // No plugin of that name
	ErrCodeOption        = "E302" // Unrecognized or mistyped option
	ErrCodeShape         = "E303" // Inputs disagree with the residual
	ErrCodeDerivative    = "E304" // Derivatives unavailable at this point

	// History errors (E4xx)
	ErrCodeStore       = "E401" // Database open/read/write failure
	ErrCodeRunNotFound = "E402" // No run with that ID

	// Scenario failures
	ErrCodeTestFailed = "E_TEST_FAILED"
)

// ErrorCode maps err onto the code reported by the CLI. Numeric failures
// keep their own codes (SINGULAR, NOT_CONVERGED, ...).
func ErrorCode(err error) string {
	var ne *rootfinder.NumericError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ne):
		return string(ne.Code)
	case problem.IsLoadError(err):
		return problem.Code(err)
	case plugin.IsNotFound(err):
		return ErrCodeUnknownPlugin
	case plugin.IsOptionError(err):
		return ErrCodeOption
	case rootfinder.IsShapeError(err):
		return ErrCodeShape
	case errors.Is(err, rootfinder.ErrNoFactorization):
		return ErrCodeDerivative
	case errors.Is(err, store.ErrRunNotFound):
		return ErrCodeRunNotFound
	case errors.As(err, new(*storeError)):
		return ErrCodeStore
	}
	return ErrCodeGeneric
}

// storeError marks failures of the solve history database.
type storeError struct {
	err error
}

func (e *storeError) Error() string { return "history: " + e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }
