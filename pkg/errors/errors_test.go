package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeObjectNull, "object reference is null"),
			expected: "[OBJECT_NULL] object reference is null",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeHostAPIError, "follow references failed", errors.New("status 112")),
			expected: "[HOST_API_ERROR] follow references failed: status 112",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeHostAPIError, "traversal aborted", underlying)

	assert.Equal(t, underlying, err.Unwrap())
	assert.True(t, errors.Is(err, underlying))
}

func TestAppError_Is(t *testing.T) {
	err := Wrap(CodeObjectNotReachable, "no root found for 0x1234", nil)
	assert.True(t, errors.Is(err, ErrObjectNotReachable))
	assert.False(t, errors.Is(err, ErrHostAPI))

	// Matching is by code, not by message.
	other := New(CodeObjectNotReachable, "different message")
	assert.True(t, errors.Is(other, ErrObjectNotReachable))
}

func TestAppError_IsThroughWrapping(t *testing.T) {
	inner := Wrap(CodeHostAPIError, "iterate failed", errors.New("status 103"))
	outer := fmt.Errorf("gc roots query: %w", inner)

	assert.True(t, IsHostAPIError(outer))
	assert.False(t, IsObjectNull(outer))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeInvalidHandle, GetErrorCode(New(CodeInvalidHandle, "handle 0")))
	assert.Equal(t, CodeUnknown, GetErrorCode(errors.New("plain error")))
	assert.Equal(t, CodeUnknown, GetErrorCode(nil))
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "handle 0", GetErrorMessage(New(CodeInvalidHandle, "handle 0")))
	assert.Equal(t, "plain error", GetErrorMessage(errors.New("plain error")))
	assert.Equal(t, "", GetErrorMessage(nil))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsObjectNull(ErrObjectNull))
	assert.True(t, IsObjectNotReachable(ErrObjectNotReachable))
	assert.True(t, IsInvalidHandle(ErrInvalidHandle))
	assert.False(t, IsHostAPIError(ErrObjectNull))
}
