// Package mcp implements the Model Context Protocol (MCP) tool server for lawrag.
package mcp

import (
	"context"
	"errors"
	"fmt"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
)

// Custom MCP error codes for lawrag.
const (
	// ErrCodeIndexNotFound indicates the legal corpus has not been indexed.
	ErrCodeIndexNotFound = -32001

	// ErrCodeCollaboratorFailed indicates a model or search service failed.
	ErrCodeCollaboratorFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrToolNotFound indicates the requested tool does not exist.
var ErrToolNotFound = errors.New("tool not found")

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
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var re *lrerrors.RAGError
	if errors.As(err, &re) {
		return mapRAGError(re)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

func mapRAGError(re *lrerrors.RAGError) *MCPError {
	message := re.Message
	if re.Suggestion != "" {
		message = fmt.Sprintf("%s %s", re.Message, re.Suggestion)
	}

	switch re.Category {
	case lrerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case lrerrors.CategoryIO:
		if re.Code == lrerrors.ErrCodeIndexMissing || re.Code == lrerrors.ErrCodeCorruptIndex {
			return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	case lrerrors.CategoryCollaborator:
		if re.Code == lrerrors.ErrCodeCollaboratorTimeout {
			return &MCPError{Code: ErrCodeTimeout, Message: message}
		}
		return &MCPError{Code: ErrCodeCollaboratorFailed, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
