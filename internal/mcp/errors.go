// Package mcp implements the Tool Surface: the Model Context Protocol
// (MCP) server exposing recall/store/forget/update/stats/list.
package mcp

import (
	"context"
	"errors"
	"fmt"

	amerrors "github.com/Aman-CERP/hybridmem/internal/errors"
)

// Custom MCP error codes for the memory tool surface.
const (
	// ErrCodeRecordNotFound indicates the referenced memory record does not exist.
	ErrCodeRecordNotFound = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeScopeDenied indicates the caller lacks access to the requested scope.
	ErrCodeScopeDenied = -32004

	// ErrCodeAmbiguousPrefix indicates an id prefix matched more than one record.
	ErrCodeAmbiguousPrefix = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrRecordNotFound indicates the referenced memory record does not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrEmbeddingFailed indicates embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrScopeDenied indicates the caller lacks access to the requested scope.
	ErrScopeDenied = errors.New("scope denied")

	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrResourceNotFound indicates the requested resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
// It maps known error types to appropriate MCP error codes and messages.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	// Check for MemError first
	var memErr *amerrors.MemError
	if errors.As(err, &memErr) {
		return mapMemError(memErr)
	}

	switch {
	case errors.Is(err, ErrRecordNotFound):
		return &MCPError{
			Code:    ErrCodeRecordNotFound,
			Message: "Memory record not found.",
		}
	case errors.Is(err, ErrEmbeddingFailed):
		return &MCPError{
			Code:    ErrCodeEmbeddingFailed,
			Message: "Embedding generation failed. Using BM25-only results.",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	case errors.Is(err, ErrScopeDenied):
		return &MCPError{
			Code:    ErrCodeScopeDenied,
			Message: "Caller does not have access to this scope.",
		}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Tool not found.",
		}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: "Invalid parameters.",
		}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Resource not found.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown methods/tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

// mapMemError converts a MemError to an MCPError, preserving its code so
// the Tool Surface can surface a stable {error_code, message} pair.
func mapMemError(me *amerrors.MemError) *MCPError {
	// Build message with suggestion if available
	message := me.Message
	if me.Suggestion != "" {
		message = fmt.Sprintf("%s %s", me.Message, me.Suggestion)
	}

	switch me.Code {
	case amerrors.ErrCodeNotFound:
		return &MCPError{Code: ErrCodeRecordNotFound, Message: message}
	case amerrors.ErrCodeScopeDenied:
		return &MCPError{Code: ErrCodeScopeDenied, Message: message}
	case amerrors.ErrCodeAmbiguousPrefix:
		return &MCPError{Code: ErrCodeAmbiguousPrefix, Message: message}
	case amerrors.ErrCodeInvalidInput, amerrors.ErrCodeDimensionMismatch:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case amerrors.ErrCodeDuplicate, amerrors.ErrCodeNoise:
		// Not failures: the caller asked to store something the write path
		// intentionally skipped. Still reported via InvalidParams so the
		// caller sees a structured reason rather than a silent no-op.
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case amerrors.ErrCodeRemoteService, amerrors.ErrCodeNetworkTimeout, amerrors.ErrCodeNetworkUnavailable:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case amerrors.ErrCodeConfigNotFound, amerrors.ErrCodeConfigInvalid:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
