// Package errkeys maps domain errors to stable message keys that clients
// localize without parsing error text.
package errkeys

import (
	"errors"
	"net/http"

	"github.com/lendstate/lendstate/pkg/history"
	"github.com/lendstate/lendstate/pkg/persistence"
	"github.com/lendstate/lendstate/pkg/services"
	"github.com/lendstate/lendstate/pkg/statemachine"
	"github.com/lendstate/lendstate/pkg/statusgraph"
	"github.com/lendstate/lendstate/pkg/verification"
)

const (
	UnknownWorkflow              = "workflow.unknown"
	DuplicateEdge                = "workflow.duplicate_edge"
	EdgeNotFound                 = "workflow.edge_not_found"
	UnknownStatus                = "workflow.unknown_status"
	ForeignStatus                = "workflow.foreign_status"
	IllegalEdge                  = "transition.illegal_edge"
	ConcurrentTransitionConflict = "transition.concurrent_conflict"
	PreconditionFailed           = "transition.precondition_failed"
	WorkflowMismatch             = "transition.workflow_mismatch"
	EntityNotFound               = "entity.not_found"
	EntityAlreadyExists          = "entity.already_exists"
	HistoryGap                   = "history.gap"
	VerificationRequired         = "verification.required"
	NotFound                     = "verification.not_found"
	AlreadyUsed                  = "verification.already_used"
	RetryExhausted               = "verification.retry_exhausted"
	Expired                      = "verification.expired"
	InvalidToken                 = "verification.invalid_token"
	ResendTooSoon                = "verification.resend_too_soon"
	MaxRequestsExceeded          = "verification.max_requests_exceeded"
	TokenRequired                = "verification.token_required"
	UnknownServiceType           = "verification.unknown_service_type"
	ConcurrentUpdate             = "verification.concurrent_update"
	InvalidRequest               = "request.invalid"
	Internal                     = "internal"
)

type mapping struct {
	err    error
	key    string
	status int
}

// Verification kinds come first so a VerificationRequiredError reports the
// tracker failure it wraps. It matches both sentinels.
var mappings = []mapping{
	{verification.ErrNotFound, NotFound, http.StatusNotFound},
	{verification.ErrAlreadyUsed, AlreadyUsed, http.StatusConflict},
	{verification.ErrRetryExhausted, RetryExhausted, http.StatusForbidden},
	{verification.ErrExpired, Expired, http.StatusGone},
	{verification.ErrInvalidToken, InvalidToken, http.StatusUnprocessableEntity},
	{verification.ErrResendTooSoon, ResendTooSoon, http.StatusTooManyRequests},
	{verification.ErrMaxRequestsExceeded, MaxRequestsExceeded, http.StatusTooManyRequests},
	{verification.ErrTokenRequired, TokenRequired, http.StatusBadRequest},
	{verification.ErrUnknownServiceType, UnknownServiceType, http.StatusBadRequest},
	{persistence.ErrConcurrentUpdate, ConcurrentUpdate, http.StatusConflict},
	{statemachine.ErrVerificationRequired, VerificationRequired, http.StatusForbidden},
	{statemachine.ErrIllegalEdge, IllegalEdge, http.StatusUnprocessableEntity},
	{statemachine.ErrConcurrentTransitionConflict, ConcurrentTransitionConflict, http.StatusConflict},
	{statemachine.ErrPreconditionFailed, PreconditionFailed, http.StatusUnprocessableEntity},
	{statemachine.ErrWorkflowMismatch, WorkflowMismatch, http.StatusBadRequest},
	{statusgraph.ErrUnknownWorkflow, UnknownWorkflow, http.StatusNotFound},
	{statusgraph.ErrDuplicateEdge, DuplicateEdge, http.StatusConflict},
	{statusgraph.ErrEdgeNotFound, EdgeNotFound, http.StatusNotFound},
	{statusgraph.ErrUnknownStatus, UnknownStatus, http.StatusBadRequest},
	{statusgraph.ErrForeignStatus, ForeignStatus, http.StatusBadRequest},
	{persistence.ErrEntityNotFound, EntityNotFound, http.StatusNotFound},
	{persistence.ErrEntityAlreadyExists, EntityAlreadyExists, http.StatusConflict},
	{persistence.ErrWorkflowNotFound, UnknownWorkflow, http.StatusNotFound},
	{history.ErrHistoryGap, HistoryGap, http.StatusInternalServerError},
}

// For returns the key of the first known error kind in err's chain, or Internal.
func For(err error) string {
	key, _ := Lookup(err)

	return key
}

// Lookup returns the key and the HTTP status that presents err.
func Lookup(err error) (string, int) {
	if err == nil {
		return "", http.StatusOK
	}

	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.key, m.status
		}
	}

	if services.IsValidationError(err) {
		return InvalidRequest, http.StatusBadRequest
	}

	return Internal, http.StatusInternalServerError
}
