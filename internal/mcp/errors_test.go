package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/hybridmem/internal/errors"
)

func TestMapError_NilError(t *testing.T) {
	result := MapError(nil)
	assert.Nil(t, result)
}

func TestMapError_RecordNotFound(t *testing.T) {
	result := MapError(ErrRecordNotFound)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeRecordNotFound, result.Code)
	assert.Contains(t, result.Message, "not found")
}

func TestMapError_EmbeddingFailed(t *testing.T) {
	result := MapError(ErrEmbeddingFailed)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeEmbeddingFailed, result.Code)
	assert.Contains(t, result.Message, "Embedding")
}

func TestMapError_DeadlineExceeded(t *testing.T) {
	result := MapError(context.DeadlineExceeded)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
	assert.Contains(t, result.Message, "timed out")
}

func TestMapError_Canceled(t *testing.T) {
	result := MapError(context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
	assert.Contains(t, result.Message, "canceled")
}

func TestMapError_ScopeDenied(t *testing.T) {
	result := MapError(ErrScopeDenied)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeScopeDenied, result.Code)
}

func TestMapError_ToolNotFound(t *testing.T) {
	result := MapError(ErrToolNotFound)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeMethodNotFound, result.Code)
}

func TestMapError_InvalidParams(t *testing.T) {
	result := MapError(ErrInvalidParams)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInvalidParams, result.Code)
}

func TestMapError_ResourceNotFound(t *testing.T) {
	result := MapError(ErrResourceNotFound)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeMethodNotFound, result.Code)
}

func TestMapError_UnknownError(t *testing.T) {
	result := MapError(errors.New("some unknown error"))
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInternalError, result.Code)
	assert.Contains(t, result.Message, "Internal server error")
}

func TestMapError_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("failed to search: %w", ErrRecordNotFound)
	result := MapError(err)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeRecordNotFound, result.Code)
}

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{Code: ErrCodeInvalidParams, Message: "missing required field"}
	msg := err.Error()
	assert.Contains(t, msg, "MCP error")
	assert.Contains(t, msg, "-32602")
	assert.Contains(t, msg, "missing required field")
}

func TestNewInvalidParamsError(t *testing.T) {
	msg := "query parameter is required"
	err := NewInvalidParamsError(msg)
	assert.Equal(t, ErrCodeInvalidParams, err.Code)
	assert.Equal(t, msg, err.Message)
}

func TestNewMethodNotFoundError(t *testing.T) {
	name := "unknown_tool"
	err := NewMethodNotFoundError(name)
	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, name)
}

func TestNewResourceNotFoundError(t *testing.T) {
	uri := "memory://abc123"
	err := NewResourceNotFoundError(uri)
	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, uri)
}

func TestMapError_MemError_NotFound(t *testing.T) {
	err := amerrors.NotFoundError("record 'abc123' not found", nil)
	result := MapError(err)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeRecordNotFound, result.Code)
	assert.Contains(t, result.Message, "abc123")
}

func TestMapError_MemError_NetworkTimeout(t *testing.T) {
	err := amerrors.New(amerrors.ErrCodeNetworkTimeout, "connection timed out", nil)
	result := MapError(err)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
}

func TestMapError_MemError_ValidationError(t *testing.T) {
	err := amerrors.ValidationError("query cannot be empty", nil)
	result := MapError(err)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInvalidParams, result.Code)
}

func TestMapError_MemError_ScopeDenied(t *testing.T) {
	err := amerrors.ScopeDeniedError("agent cannot access scope project:x")
	result := MapError(err)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeScopeDenied, result.Code)
}

func TestMapError_MemError_AmbiguousPrefix(t *testing.T) {
	err := amerrors.AmbiguousPrefixError("3 records match prefix \"ab12\"")
	result := MapError(err)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeAmbiguousPrefix, result.Code)
}

func TestMapError_MemError_DuplicateAndNoise(t *testing.T) {
	dup := MapError(amerrors.DuplicateError("already stored"))
	require.NotNil(t, dup)
	assert.Equal(t, ErrCodeInvalidParams, dup.Code)

	noise := MapError(amerrors.NoiseError("too short"))
	require.NotNil(t, noise)
	assert.Equal(t, ErrCodeInvalidParams, noise.Code)
}

func TestMapError_MemError_WithSuggestion(t *testing.T) {
	err := amerrors.NotFoundError("record not found", nil).WithSuggestion("check the id prefix length")
	result := MapError(err)
	require.NotNil(t, result)
	assert.Contains(t, result.Message, "record not found")
	assert.Contains(t, result.Message, "check the id prefix length")
}

func TestMapError_MemError_Internal(t *testing.T) {
	err := amerrors.InternalError("unexpected error", nil)
	result := MapError(err)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInternalError, result.Code)
}

func TestMapError_WrappedMemError(t *testing.T) {
	memErr := amerrors.New(amerrors.ErrCodeNetworkTimeout, "timeout", nil)
	err := fmt.Errorf("operation failed: %w", memErr)
	result := MapError(err)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
}
