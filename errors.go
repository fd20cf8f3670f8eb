package gpameta

import (
	"errors"
	"fmt"
)

// =====================================
// Error Handling
// =====================================

// Error represents an error raised while scanning or translating metadata
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Code    string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type
	}
	return false
}

// NewError creates a new Error
func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorf creates a new Error with a formatted message
func NewErrorf(errorType ErrorType, format string, args ...any) *Error {
	return NewError(errorType, fmt.Sprintf(format, args...))
}

// NewErrorWithCause creates a new Error with a cause
func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewErrorWithCode creates a new Error with a code
func NewErrorWithCode(errorType ErrorType, message string, code string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Code:    code,
	}
}

// ErrNotYetImplemented matches any error of type ErrorTypeNotYetImplemented via errors.Is
var ErrNotYetImplemented = NewError(ErrorTypeNotYetImplemented, "not yet implemented")

// IsNotYetImplemented checks if an error reports a mapping construct with no translation
func IsNotYetImplemented(err error) bool {
	return IsErrorType(err, ErrorTypeNotYetImplemented)
}

// IsInvalidArgument checks if an error is an "invalid argument" error
func IsInvalidArgument(err error) bool {
	return IsErrorType(err, ErrorTypeInvalidArgument)
}

// IsMapping checks if an error is a "mapping" error
func IsMapping(err error) bool {
	return IsErrorType(err, ErrorTypeMapping)
}

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeNotFound)
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errorType
	}
	return false
}
