// Package web provides the HTTP request and response types and handlers of the lendstate API.
package web

import (
	"time"

	"github.com/lendstate/lendstate/pkg/models"
)

// CreateEntityRequest creates an entity in its workflow entry status. ID is generated when empty.
type CreateEntityRequest struct {
	ID         string            `json:"id,omitempty"`
	Kind       models.EntityKind `json:"kind"          validate:"required,oneof=application loan customer"`
	WorkflowID string            `json:"workflow_id"   validate:"required"`
}

// VerificationInput carries the token that gates a transition.
type VerificationInput struct {
	Subject     string             `json:"subject"      validate:"required"`
	Token       string             `json:"token"        validate:"required"`
	ServiceType models.ServiceType `json:"service_type" validate:"required,oneof=sms email pin"`
	ActionType  string             `json:"action_type"  validate:"required"`
}

type TransitionRequest struct {
	ToStatus       models.StatusCode  `json:"to_status"                 validate:"gte=0"`
	Actor          string             `json:"actor"                     validate:"required"`
	Reason         string             `json:"reason"`
	ExpectedStatus *models.StatusCode `json:"expected_status,omitempty"`
	Verification   *VerificationInput `json:"verification,omitempty"`
}

type TransitionResponse struct {
	EntityID   string            `json:"entity_id"`
	FromStatus models.StatusCode `json:"from_status"`
	Status     models.StatusCode `json:"status"`
	Label      string            `json:"label"`
	HistoryID  int64             `json:"history_id"`
}

type CreateEdgeRequest struct {
	From     models.StatusCode `json:"status_from" validate:"gte=0"`
	To       models.StatusCode `json:"status_to"   validate:"gte=0"`
	Type     models.EdgeType   `json:"edge_type"   validate:"required,oneof=happy exception"`
	IsActive *bool             `json:"is_active,omitempty"`
}

type UpdateEdgeRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// IssueVerificationRequest asks for a new challenge. Token is only accepted for pin.
type IssueVerificationRequest struct {
	Subject     string             `json:"subject"               validate:"required"`
	ServiceType models.ServiceType `json:"service_type"          validate:"required,oneof=sms email pin"`
	ActionType  string             `json:"action_type"           validate:"required"`
	TTLSeconds  int                `json:"ttl_seconds,omitempty" validate:"gte=0"`
	MaxRetry    int                `json:"max_retry,omitempty"   validate:"gte=0"`
	Token       string             `json:"token,omitempty"       validate:"required_if=ServiceType pin"`
}

type ValidateVerificationRequest struct {
	Subject     string             `json:"subject"      validate:"required"`
	Token       string             `json:"token"        validate:"required"`
	ServiceType models.ServiceType `json:"service_type" validate:"required,oneof=sms email pin"`
	ActionType  string             `json:"action_type"  validate:"required"`
}

// VerificationResponse never includes the token or its hash.
type VerificationResponse struct {
	ID                 string             `json:"id"`
	SubjectID          string             `json:"subject_id"`
	ServiceType        models.ServiceType `json:"service_type"`
	ActionType         string             `json:"action_type"`
	IssuedAt           time.Time          `json:"issued_at"`
	ExpiresAt          time.Time          `json:"expires_at"`
	IsUsed             bool               `json:"is_used"`
	RetryValidateCount int                `json:"retry_validate_count"`
	MaxRetry           int                `json:"max_retry"`
}

func NewVerificationResponse(attempt *models.VerificationAttempt) VerificationResponse {
	return VerificationResponse{
		ID:                 attempt.ID,
		SubjectID:          attempt.SubjectID,
		ServiceType:        attempt.ServiceType,
		ActionType:         attempt.ActionType,
		IssuedAt:           attempt.IssuedAt,
		ExpiresAt:          attempt.ExpiresAt,
		IsUsed:             attempt.IsUsed,
		RetryValidateCount: attempt.RetryValidateCount,
		MaxRetry:           attempt.MaxRetry,
	}
}
