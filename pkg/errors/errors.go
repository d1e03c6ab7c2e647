// Package errors provides structured error types for thumbatlas.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP surface and the pipeline
//   - Machine-readable error codes for the status record and API responses
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes fall into two groups. Run-level codes (DIRECTORY_NOT_FOUND,
// EMPTY_INVENTORY, UNPACKABLE_RECTANGLE, ATLAS_TOO_LARGE, PERSIST_FAILURE)
// abort a generation run and end in a terminal error status. Image-level
// codes (UNREADABLE_IMAGE, COMPOSITE_FAILURE) are logged where they occur and
// only drop the affected image.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeEmptyInventory, "no image files found in %s", dir)
//	if errors.Is(err, errors.ErrCodeEmptyInventory) {
//	    // Report and stop before packing
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodePersistFailure, origErr, "write %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Inventory errors
	ErrCodeDirectoryNotFound Code = "DIRECTORY_NOT_FOUND"
	ErrCodeEmptyInventory    Code = "EMPTY_INVENTORY"
	ErrCodeUnreadableImage   Code = "UNREADABLE_IMAGE"

	// Packing errors
	ErrCodeUnpackableRectangle Code = "UNPACKABLE_RECTANGLE"
	ErrCodeAtlasTooLarge       Code = "ATLAS_TOO_LARGE"

	// Output errors
	ErrCodeCompositeFailure Code = "COMPOSITE_FAILURE"
	ErrCodePersistFailure   Code = "PERSIST_FAILURE"

	// Run coordination errors
	ErrCodeRunInProgress Code = "RUN_IN_PROGRESS"
	ErrCodeNotFound      Code = "NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message followed by the verbatim cause, so
// operators see the underlying disk or permission failure. For other errors,
// returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
