// Package events defines the notifications published after status transitions and verification activity.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/lendstate/lendstate/pkg/models"
)

type EventType string

// Topic carries every lendstate event.
const Topic = "lendstate.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	StatusTransitionedEvent      EventType = "status.transitioned"
	VerificationTokenIssuedEvent EventType = "verification.token_issued"
	VerificationValidatedEvent   EventType = "verification.validated"
	RetrofixCompletedEvent       EventType = "retrofix.completed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, at time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: at.UTC(),
		Metadata:  make(map[string]any),
	}
}

// StatusTransitioned is published once the status update and its history record are committed.
type StatusTransitioned struct {
	BaseEvent

	EntityID   string            `json:"entity_id"`
	EntityKind models.EntityKind `json:"entity_kind"`
	WorkflowID string            `json:"workflow_id"`
	FromStatus models.StatusCode `json:"from_status"`
	ToStatus   models.StatusCode `json:"to_status"`
	HistoryID  int64             `json:"history_id"`
	ChangedBy  string            `json:"changed_by"`
	Reason     string            `json:"reason"`
}

func (e StatusTransitioned) GetType() EventType {
	return StatusTransitionedEvent
}

// VerificationTokenIssued hands a plain token to the notification service for delivery.
type VerificationTokenIssued struct {
	BaseEvent

	AttemptID   string             `json:"attempt_id"`
	SubjectID   string             `json:"subject_id"`
	ServiceType models.ServiceType `json:"service_type"`
	ActionType  string             `json:"action_type"`
	Token       string             `json:"token"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

func (e VerificationTokenIssued) GetType() EventType {
	return VerificationTokenIssuedEvent
}

type VerificationValidated struct {
	BaseEvent

	AttemptID   string             `json:"attempt_id"`
	SubjectID   string             `json:"subject_id"`
	ServiceType models.ServiceType `json:"service_type"`
	ActionType  string             `json:"action_type"`
}

func (e VerificationValidated) GetType() EventType {
	return VerificationValidatedEvent
}

// RetrofixCompleted summarizes one anonymization run.
type RetrofixCompleted struct {
	BaseEvent

	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

func (e RetrofixCompleted) GetType() EventType {
	return RetrofixCompletedEvent
}
