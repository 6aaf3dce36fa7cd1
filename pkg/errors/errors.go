// Package errors defines common error types for the application.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown             = "UNKNOWN_ERROR"
	CodeHostAPIError        = "HOST_API_ERROR"
	CodeObjectNotReachable  = "OBJECT_NOT_REACHABLE"
	CodeObjectNull          = "OBJECT_NULL"
	CodeInvalidHandle       = "INVALID_HANDLE"
	CodeAgentNotInitialized = "AGENT_NOT_INITIALIZED"
	CodeParseError          = "PARSE_ERROR"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNotFound            = "NOT_FOUND"
	CodeConfigError         = "CONFIG_ERROR"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeStorageError        = "STORAGE_ERROR"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrHostAPI             = New(CodeHostAPIError, "host heap primitive failed")
	ErrObjectNotReachable  = New(CodeObjectNotReachable, "object is not reachable from any GC root")
	ErrObjectNull          = New(CodeObjectNull, "object reference is null or collected")
	ErrInvalidHandle       = New(CodeInvalidHandle, "invalid tag handle")
	ErrAgentNotInitialized = New(CodeAgentNotInitialized, "agent is not initialized")
	ErrParseError          = New(CodeParseError, "parse error")
	ErrInvalidInput        = New(CodeInvalidInput, "invalid input")
	ErrNotFound            = New(CodeNotFound, "resource not found")
	ErrConfigError         = New(CodeConfigError, "configuration error")
	ErrDatabaseError       = New(CodeDatabaseError, "database error")
	ErrStorageError        = New(CodeStorageError, "storage error")
)

// IsHostAPIError checks if the error came from the host heap primitive.
func IsHostAPIError(err error) bool {
	return errors.Is(err, ErrHostAPI)
}

// IsObjectNotReachable checks if the error indicates an unreachable object.
func IsObjectNotReachable(err error) bool {
	return errors.Is(err, ErrObjectNotReachable)
}

// IsObjectNull checks if the error indicates a null object reference.
func IsObjectNull(err error) bool {
	return errors.Is(err, ErrObjectNull)
}

// IsInvalidHandle checks if the error indicates a bad tag handle.
func IsInvalidHandle(err error) bool {
	return errors.Is(err, ErrInvalidHandle)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
