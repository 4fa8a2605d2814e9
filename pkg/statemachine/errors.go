package statemachine

import (
	"errors"
	"fmt"

	"github.com/lendstate/lendstate/pkg/models"
)

var (
	// ErrIllegalEdge indicates no active edge joins the current and requested status.
	ErrIllegalEdge = errors.New("illegal transition edge")

	// ErrConcurrentTransitionConflict indicates the entity moved away from the status the caller expected.
	ErrConcurrentTransitionConflict = errors.New("concurrent transition conflict")

	// ErrVerificationRequired indicates the transition is gated by a verification that did not pass.
	ErrVerificationRequired = errors.New("verification required")

	// ErrPreconditionFailed indicates the caller supplied precondition rejected the entity.
	ErrPreconditionFailed = errors.New("transition precondition failed")

	// ErrWorkflowMismatch indicates the workflow namespace does not govern the entity kind.
	ErrWorkflowMismatch = errors.New("workflow does not govern entity kind")

	errNoVerifier = errors.New("no verifier configured")
)

// TransitionError describes a refused transition of one entity.
type TransitionError struct {
	EntityID string
	From     models.StatusCode
	To       models.StatusCode
	Err      error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s %d->%d: %v", e.EntityID, e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// VerificationRequiredError wraps the verification failure that blocked a
// transition. It matches ErrVerificationRequired and the underlying error.
type VerificationRequiredError struct {
	Kind   models.ServiceType
	Action string
	Err    error
}

func (e *VerificationRequiredError) Error() string {
	return fmt.Sprintf("%v (%s/%s): %v", ErrVerificationRequired, e.Kind, e.Action, e.Err)
}

func (e *VerificationRequiredError) Unwrap() error {
	return e.Err
}

func (e *VerificationRequiredError) Is(target error) bool {
	return target == ErrVerificationRequired
}

// PreconditionError carries the reason a precondition gave.
type PreconditionError struct {
	EntityID string
	Err      error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%v for entity %s: %v", ErrPreconditionFailed, e.EntityID, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionFailed
}

func IsIllegalEdge(err error) bool {
	return errors.Is(err, ErrIllegalEdge)
}

func IsVerificationRequired(err error) bool {
	return errors.Is(err, ErrVerificationRequired)
}

func IsConcurrentTransitionConflict(err error) bool {
	return errors.Is(err, ErrConcurrentTransitionConflict)
}
