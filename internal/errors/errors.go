// Package errors defines the stable error codes and diagnostics produced while
// assembling review context.
package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ParseFailed indicates the input is not diff-shaped at all
	ParseFailed ErrorCode = "PARSE_FAILED"
	// ParseWarning indicates a hunk header disagreed with its body
	ParseWarning ErrorCode = "PARSE_WARNING"
	// IndexBuildFailed indicates the protocol backend could not serve the run
	IndexBuildFailed ErrorCode = "INDEX_BUILD_FAILED"
	// ConfigResolution indicates a malformed glob in a path rule
	ConfigResolution ErrorCode = "CONFIG_RESOLUTION"
	// InvalidConfig indicates a configuration value failed validation
	InvalidConfig ErrorCode = "INVALID_CONFIG"
	// BackendUnavailable indicates a backend is not running or reachable
	BackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	// Timeout indicates a request timed out
	Timeout ErrorCode = "TIMEOUT"
	// PluginFailed indicates a pre-analyzer returned an error
	PluginFailed ErrorCode = "PLUGIN_FAILED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// Error is an error carrying a stable code.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	cause   error
}

// New creates a new Error
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Errorf creates a new Error without a cause.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of the first *Error in err's chain, or InternalError.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return InternalError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
