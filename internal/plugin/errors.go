package plugin

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotLocated is returned by a Locator that has nothing to offer for a
// name. Load moves on to the next locator.
var ErrNotLocated = errors.New("plugin: not located")

// NotFoundError is returned when no plugin of a kind is registered under a
// name and discovery could not provide one.
type NotFoundError struct {
	Kind  string
	Name  string
	Known []string
	// Cause joins locator failures other than ErrNotLocated, if any.
	Cause error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("plugin: unknown %s plugin %q (known: %s)", e.Kind, e.Name, strings.Join(e.Known, ", "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Cause }

// IsNotFound returns true if err is, or wraps, a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// OptionErrorCode categorizes option validation failures.
type OptionErrorCode string

const (
	// ErrCodeUnrecognizedOption indicates a key absent from the option table.
	ErrCodeUnrecognizedOption OptionErrorCode = "UNRECOGNIZED_OPTION"

	// ErrCodeOptionType indicates a value that cannot be read as the
	// declared type.
	ErrCodeOptionType OptionErrorCode = "OPTION_TYPE"
)

// OptionError reports a bad entry in an options dict.
type OptionError struct {
	Code    OptionErrorCode
	Key     string
	Message string
	// Known lists the accepted keys for unrecognized-option errors.
	Known []string
}

func (e *OptionError) Error() string {
	if e.Code == ErrCodeUnrecognizedOption {
		return fmt.Sprintf("%s: %q: %s (known: %s)", e.Code, e.Key, e.Message, strings.Join(e.Known, ", "))
	}
	return fmt.Sprintf("%s: %q: %s", e.Code, e.Key, e.Message)
}

// IsOptionError returns true if err is, or wraps, an *OptionError.
func IsOptionError(err error) bool {
	var oe *OptionError
	return errors.As(err, &oe)
}
