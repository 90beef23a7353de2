package workflow

import (
	"errors"
	"fmt"
)

// EngineErrorCode identifies the class of a workflow engine failure.
type EngineErrorCode string

const (
	// ErrInvalidGraph indicates the definition violates a graph invariant
	// (no start node, dangling edge, unknown kind, illegal cycle).
	ErrInvalidGraph EngineErrorCode = "invalid_graph"

	// ErrNodeExecutionFailed indicates a node executor exhausted its
	// retries.
	ErrNodeExecutionFailed EngineErrorCode = "node_execution_failed"

	// ErrExpressionInvalid indicates the expression sandbox rejected or
	// failed to evaluate an expression.
	ErrExpressionInvalid EngineErrorCode = "expression_invalid"

	// ErrInvalidConfig indicates a node's config map could not be decoded
	// into the typed config for its kind.
	ErrInvalidConfig EngineErrorCode = "invalid_config"

	// ErrResourceFailed indicates a run-scoped resource (the browser
	// driver) could not be acquired; the run aborts before any node runs.
	ErrResourceFailed EngineErrorCode = "resource_failed"

	// ErrRunCancelled indicates the run was cancelled externally.
	ErrRunCancelled EngineErrorCode = "run_cancelled"

	// ErrNodeTimeout indicates a single node attempt exceeded its timeout.
	ErrNodeTimeout EngineErrorCode = "node_timeout"

	// ErrNotFound indicates a workflow, run, or schedule does not exist.
	ErrNotFound EngineErrorCode = "not_found"
)

// EngineError is the error type produced by the workflow engine. NodeID
// attributes the failure to a node when one is responsible.
type EngineError struct {
	Code    EngineErrorCode `json:"code"`
	Message string          `json:"message"`
	NodeID  string          `json:"node_id,omitempty"`
	Cause   error           `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.NodeID != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s [node: %s]: %s (caused by: %v)", e.Code, e.NodeID, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s [node: %s]: %s", e.Code, e.NodeID, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is matches engine errors by code.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// newEngineError creates an EngineError without a cause.
func newEngineError(code EngineErrorCode, message string) *EngineError {
	return &EngineError{Code: code, Message: message}
}

// newNodeError creates an EngineError attributed to a node.
func newNodeError(code EngineErrorCode, nodeID, message string, cause error) *EngineError {
	return &EngineError{Code: code, Message: message, NodeID: nodeID, Cause: cause}
}

// EngineCodeOf extracts the engine error code from err, or "" when err is
// not an EngineError.
func EngineCodeOf(err error) EngineErrorCode {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
