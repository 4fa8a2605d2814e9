package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrEntityNotFound indicates an entity was not found by the given identifier.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityAlreadyExists indicates an entity with the same identifier already exists.
	ErrEntityAlreadyExists = errors.New("entity already exists")

	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrEdgeAlreadyExists indicates the workflow already has an edge with the same endpoints.
	ErrEdgeAlreadyExists = errors.New("edge already exists")

	// ErrEdgeNotFound indicates the workflow has no edge with the given endpoints.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrAttemptNotFound indicates no verification attempt exists for the key.
	ErrAttemptNotFound = errors.New("verification attempt not found")

	// ErrConcurrentUpdate indicates a compare-and-swap update lost against another writer.
	ErrConcurrentUpdate = errors.New("concurrent update")
)

// EntityError wraps entity-related errors with additional context.
type EntityError struct {
	Op       string // Operation being performed (e.g., "GetByID", "WithLock")
	EntityID string
	Err      error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s operation failed for entity %s: %v", e.Op, e.EntityID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for entity errors.
func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewEntityError creates a new entity error with context.
func NewEntityError(op, entityID string, err error) *EntityError {
	return &EntityError{
		Op:       op,
		EntityID: entityID,
		Err:      err,
	}
}

// WorkflowError wraps workflow and edge errors with additional context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Edge       string // "from->to" when the failure concerns one edge
	Err        error
}

func (e *WorkflowError) Error() string {
	if e.Edge != "" {
		return fmt.Sprintf("%s operation failed for edge %s in workflow %s: %v", e.Op, e.Edge, e.WorkflowID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// NewEdgeError creates a workflow error scoped to one edge.
func NewEdgeError(op, workflowID string, from, to int, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Edge:       fmt.Sprintf("%d->%d", from, to),
		Err:        err,
	}
}

// IsEntityNotFound checks if an error indicates an entity was not found.
func IsEntityNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsEdgeAlreadyExists checks if an error indicates a duplicate edge.
func IsEdgeAlreadyExists(err error) bool {
	return errors.Is(err, ErrEdgeAlreadyExists)
}

// IsEdgeNotFound checks if an error indicates a missing edge.
func IsEdgeNotFound(err error) bool {
	return errors.Is(err, ErrEdgeNotFound)
}

// IsAttemptNotFound checks if an error indicates no verification attempt exists.
func IsAttemptNotFound(err error) bool {
	return errors.Is(err, ErrAttemptNotFound)
}

// IsConcurrentUpdate checks if an error indicates a lost compare-and-swap.
func IsConcurrentUpdate(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate)
}
