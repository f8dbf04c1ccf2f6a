// internal/types.go - Common types for internal packages
package internal

import "errors"

// Error represents application-specific errors
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new application error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode constants for the error taxonomy.
// Degenerate-input and index-range errors reject an operation and leave
// the operands untouched; tile-not-found and out-of-bounds mark tiles a
// source can never produce (missing local files, addresses outside the
// grid); network, HTTP, malformed-tile and timeout errors are transient
// fetch failures, retried on the next viewport refresh.
const (
	ErrorCodeDegenerate  = "DEGENERATE_INPUT"
	ErrorCodeOutOfBounds = "OUT_OF_BOUNDS"
	ErrorCodeNotFound    = "TILE_NOT_FOUND"
	ErrorCodeNetwork     = "NETWORK_ERROR"
	ErrorCodeHTTP        = "HTTP_ERROR"
	ErrorCodeMalformed   = "MALFORMED_TILE"
	ErrorCodeTimeout     = "TIMEOUT_ERROR"
	ErrorCodeIndexRange  = "INDEX_RANGE"
	ErrorCodeConfig      = "CONFIG_ERROR"
	ErrorCodeFileSystem  = "FILESYSTEM_ERROR"
)

// CodeOf returns the error code of err, or the empty string if err does
// not carry one anywhere in its chain.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err's chain carries the given code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}
