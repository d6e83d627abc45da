package rootfinder

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNotInitialized is returned by Eval before Init.
	ErrNotInitialized = errors.New("rootfinder: not initialized")

	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = errors.New("rootfinder: already initialized")

	// ErrNoFactorization is returned by derivative functions when no valid
	// factorization of the Jacobian exists at the requested root.
	ErrNoFactorization = errors.New("rootfinder: no valid factorization")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("rootfinder: closed")
)

// ShapeError reports a residual function whose signature cannot define a
// root-finding problem.
type ShapeError struct {
	Func    string
	Message string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("rootfinder: residual %s: %s", e.Func, e.Message)
}

// IsShapeError returns true if err is, or wraps, a *ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// NumericErrorCode categorizes numeric failures of a solve.
type NumericErrorCode string

const (
	// ErrCodeSingular indicates the Jacobian could not be factorized.
	ErrCodeSingular NumericErrorCode = "SINGULAR"

	// ErrCodeNotConverged indicates the iteration budget ran out or the
	// algorithm stalled before reaching the tolerance.
	ErrCodeNotConverged NumericErrorCode = "NOT_CONVERGED"

	// ErrCodeNonFinite indicates a NaN or infinite residual or Jacobian.
	ErrCodeNonFinite NumericErrorCode = "NON_FINITE"

	// ErrCodeCancelled indicates the context was cancelled mid-solve.
	ErrCodeCancelled NumericErrorCode = "CANCELLED"
)

// NumericError reports a solve that failed for numeric reasons. It carries
// the last iterate so callers can inspect or restart from it.
type NumericError struct {
	Code    NumericErrorCode
	Message string

	// Iterations is the number of steps taken before the failure.
	Iterations int

	// Norm is the max-norm of the residual at Z.
	Norm float64

	// Z is the last iterate.
	Z []float64

	// Err is the underlying cause, if any.
	Err error
}

func (e *NumericError) Error() string {
	msg := fmt.Sprintf("%s: %s (iter=%d, |F|=%g)", e.Code, e.Message, e.Iterations, e.Norm)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NumericError) Unwrap() error { return e.Err }

// IsNumericError returns true if err is, or wraps, a *NumericError.
func IsNumericError(err error) bool {
	var ne *NumericError
	return errors.As(err, &ne)
}

// IsSingular returns true for numeric failures caused by a singular
// Jacobian.
func IsSingular(err error) bool {
	return hasCode(err, ErrCodeSingular)
}

// IsNotConverged returns true for numeric failures caused by exhausting
// the iteration budget.
func IsNotConverged(err error) bool {
	return hasCode(err, ErrCodeNotConverged)
}

func hasCode(err error, code NumericErrorCode) bool {
	var ne *NumericError
	if errors.As(err, &ne) {
		return ne.Code == code
	}
	return false
}

// annotate fills in the iterate details the algorithm left blank.
func (e *NumericError) annotate(s *Session) {
	if e.Iterations == 0 {
		e.Iterations = s.iter
	}
	if e.Z == nil {
		e.Z = slices.Clone(s.z)
	}
	if e.Norm == 0 {
		e.Norm = s.norm
	}
}
