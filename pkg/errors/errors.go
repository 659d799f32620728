// Package errors provides structured error types for the Flowscope application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - SNAPSHOT_*: Snapshot load failures (the model keeps its previous state)
//   - NOT_FOUND_*: Resource not found
//   - STORE_*: Run store and archive failures
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDanglingEdge, "edge %s -> %s references unknown node", src, dst)
//	if errors.Is(err, errors.ErrCodeDanglingEdge) {
//	    // Handle load error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeStore, origErr, "failed to open runs database %s", path)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidSnapshot Code = "INVALID_SNAPSHOT"
	ErrCodeInvalidNode     Code = "INVALID_NODE"
	ErrCodeInvalidEdge     Code = "INVALID_EDGE"
	ErrCodeInvalidPipeline Code = "INVALID_PIPELINE"
	ErrCodeInvalidFormat   Code = "INVALID_FORMAT"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"

	// Snapshot load errors. A load failure never mutates the current model.
	ErrCodeDuplicateNode Code = "SNAPSHOT_DUPLICATE_NODE"
	ErrCodeDanglingEdge  Code = "SNAPSHOT_DANGLING_EDGE"
	ErrCodeMembership    Code = "SNAPSHOT_MEMBERSHIP_NOT_FOREST"
	ErrCodeGraphCycle    Code = "SNAPSHOT_GRAPH_CYCLE"
	ErrCodeUnknownMember Code = "SNAPSHOT_UNKNOWN_MEMBER"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeNodeNotFound     Code = "NODE_NOT_FOUND"
	ErrCodePipelineNotFound Code = "PIPELINE_NOT_FOUND"
	ErrCodeRunNotFound      Code = "RUN_NOT_FOUND"
	ErrCodeViewNotFound     Code = "VIEW_NOT_FOUND"

	// Store errors (runs database, archive)
	ErrCodeStore    Code = "STORE_ERROR"
	ErrCodeConflict Code = "STORE_CONFLICT"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
	ErrCodeLayout   Code = "INTERNAL_LAYOUT"
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
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsLoadError reports whether err is one of the snapshot load failures.
// Load errors are recoverable: the previously loaded model stays current.
func IsLoadError(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidSnapshot, ErrCodeInvalidNode, ErrCodeInvalidEdge,
		ErrCodeInvalidPipeline, ErrCodeDuplicateNode, ErrCodeDanglingEdge,
		ErrCodeMembership, ErrCodeGraphCycle, ErrCodeUnknownMember:
		return true
	}
	return false
}

// CycleError reports a dependency cycle found while validating a snapshot.
// Path holds the node identifiers along the cycle, first node repeated last.
type CycleError struct {
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "graph contains a cycle"
	}
	return fmt.Sprintf("graph contains a cycle: %s", strings.Join(e.Path, " -> "))
}

// Code returns the error code for this error type.
func (e *CycleError) Code() Code {
	return ErrCodeGraphCycle
}
