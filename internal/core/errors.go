// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps a formatted cause under base's code.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Capital errors
	ErrInsufficientLiquidity = &Error{Code: "INSUFFICIENT_LIQUIDITY", Message: "insufficient liquidity to complete the transaction"}

	// Sizing errors
	ErrInvalidParameters = &Error{Code: "INVALID_PARAMETERS", Message: "max risk, stop loss and entry price must be greater than zero"}

	// Data errors
	ErrMissingField   = &Error{Code: "MISSING_FIELD", Message: "field not present in series"}
	ErrLookupFailure  = &Error{Code: "LOOKUP_FAILURE", Message: "bar index out of range"}
	ErrNoData         = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrUnorderedData  = &Error{Code: "UNORDERED_DATA", Message: "bars are not in increasing date order"}
	ErrMalformedInput = &Error{Code: "MALFORMED_INPUT", Message: "malformed input data"}

	// Position errors
	ErrUnknownPosition = &Error{Code: "UNKNOWN_POSITION", Message: "position not found"}
	ErrPositionClosed  = &Error{Code: "POSITION_CLOSED", Message: "position already closed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Storage errors
	ErrArchiveFailed = &Error{Code: "ARCHIVE_FAILED", Message: "archive write failed"}
)
