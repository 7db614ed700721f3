package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	memErr := New(ErrCodeNotFound, "record not found: abc123", originalErr)

	require.NotNil(t, memErr)
	assert.Equal(t, originalErr, errors.Unwrap(memErr))
	assert.True(t, errors.Is(memErr, originalErr))
}

func TestMemError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "not found error",
			code:     ErrCodeNotFound,
			message:  "record abc123 not found",
			expected: "[ERR_203_NOT_FOUND] record abc123 not found",
		},
		{
			name:     "remote service error",
			code:     ErrCodeRemoteService,
			message:  "embedding request failed",
			expected: "[ERR_303_REMOTE_SERVICE] embedding request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestMemError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeNotFound, "record A not found", nil)
	err2 := New(ErrCodeNotFound, "record B not found", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestMemError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeNotFound, "record not found", nil)
	err2 := New(ErrCodeScopeDenied, "scope denied", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestMemError_WithDetails_AddsContext(t *testing.T) {
	err := New(ErrCodeNotFound, "record not found", nil)

	err = err.WithDetail("id", "abc123")
	err = err.WithDetail("scope", "agent:alice")

	assert.Equal(t, "abc123", err.Details["id"])
	assert.Equal(t, "agent:alice", err.Details["scope"])
}

func TestMemError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(ErrCodeAmbiguousPrefix, "prefix matches 3 records", nil)

	err = err.WithSuggestion("Use a longer id prefix")

	assert.Equal(t, "Use a longer id prefix", err.Suggestion)
}

func TestMemError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeEngineError, CategoryIO},
		{ErrCodeNotFound, CategoryIO},
		{ErrCodeNetworkTimeout, CategoryNetwork},
		{ErrCodeRemoteService, CategoryNetwork},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeDimensionMismatch, CategoryValidation},
		{ErrCodeScopeDenied, CategoryValidation},
		{ErrCodeAmbiguousPrefix, CategoryValidation},
		{ErrCodeDuplicate, CategoryValidation},
		{ErrCodeNoise, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestMemError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeDimensionMismatch, SeverityFatal},
		{ErrCodeNotFound, SeverityError},
		{ErrCodeNetworkTimeout, SeverityWarning},
		{ErrCodeRemoteService, SeverityWarning},
		{ErrCodeNoise, SeverityInfo},
		{ErrCodeDuplicate, SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestMemError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeNetworkTimeout, true},
		{ErrCodeNetworkUnavailable, true},
		{ErrCodeRemoteService, true},
		{ErrCodeNotFound, false},
		{ErrCodeConfigInvalid, false},
		{ErrCodeDimensionMismatch, false},
		{ErrCodeScopeDenied, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesMemErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")

	memErr := Wrap(ErrCodeInternal, originalErr)

	require.NotNil(t, memErr)
	assert.Equal(t, ErrCodeInternal, memErr.Code)
	assert.Equal(t, "something went wrong", memErr.Message)
	assert.Equal(t, originalErr, memErr.Cause)
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestConfigError_CreatesConfigCategoryError(t *testing.T) {
	err := ConfigError("invalid yaml syntax", nil)

	assert.Equal(t, CategoryConfig, err.Category)
	assert.Contains(t, err.Code, "CONFIG")
}

func TestEngineError_CreatesIOCategoryError(t *testing.T) {
	err := EngineError("cannot open sqlite database", nil)

	assert.Equal(t, CategoryIO, err.Category)
}

func TestNotFoundError_CreatesIOCategoryError(t *testing.T) {
	err := NotFoundError("record abc123 not found", nil)

	assert.Equal(t, CategoryIO, err.Category)
	assert.Equal(t, ErrCodeNotFound, err.Code)
}

func TestRemoteServiceError_CreatesRetryableError(t *testing.T) {
	err := RemoteServiceError("embedding provider returned 503", nil)

	assert.Equal(t, CategoryNetwork, err.Category)
	assert.True(t, err.Retryable)
}

func TestValidationError_CreatesValidationCategoryError(t *testing.T) {
	err := ValidationError("query cannot be empty", nil)

	assert.Equal(t, CategoryValidation, err.Category)
}

func TestDimensionMismatchError_NeverRetryable(t *testing.T) {
	err := DimensionMismatchError("expected 1024 dimensions, got 768")

	assert.Equal(t, ErrCodeDimensionMismatch, err.Code)
	assert.False(t, err.Retryable)
	assert.Equal(t, SeverityFatal, err.Severity)
}

func TestScopeDeniedError_ValidationCategory(t *testing.T) {
	err := ScopeDeniedError("agent:bob cannot access scope project:alpha")

	assert.Equal(t, ErrCodeScopeDenied, err.Code)
	assert.Equal(t, CategoryValidation, err.Category)
}

func TestAmbiguousPrefixError_ValidationCategory(t *testing.T) {
	err := AmbiguousPrefixError("prefix 'ab' matches 3 records")

	assert.Equal(t, ErrCodeAmbiguousPrefix, err.Code)
}

func TestDuplicateError_InfoSeverity(t *testing.T) {
	err := DuplicateError("near-identical record already stored")

	assert.Equal(t, ErrCodeDuplicate, err.Code)
	assert.Equal(t, SeverityInfo, err.Severity)
}

func TestNoiseError_InfoSeverity(t *testing.T) {
	err := NoiseError("content classified as conversational filler")

	assert.Equal(t, ErrCodeNoise, err.Code)
	assert.Equal(t, SeverityInfo, err.Severity)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable MemError",
			err:      New(ErrCodeNetworkTimeout, "timeout", nil),
			expected: true,
		},
		{
			name:     "non-retryable MemError",
			err:      New(ErrCodeNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "wrapped retryable error",
			err:      Wrap(ErrCodeRemoteService, errors.New("wrapped")),
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "fatal error",
			err:      New(ErrCodeDimensionMismatch, "dimension mismatch", nil),
			expected: true,
		},
		{
			name:     "non-fatal error",
			err:      New(ErrCodeNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

func TestGetCode_ExtractsCode(t *testing.T) {
	err := New(ErrCodeScopeDenied, "denied", nil)
	assert.Equal(t, ErrCodeScopeDenied, GetCode(err))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}

func TestGetCategory_ExtractsCategory(t *testing.T) {
	err := New(ErrCodeScopeDenied, "denied", nil)
	assert.Equal(t, CategoryValidation, GetCategory(err))
	assert.Equal(t, Category(""), GetCategory(errors.New("plain")))
}
