package models

import "time"

// EntityKind names the record types that carry a status.
type EntityKind string

const (
	EntityKindApplication EntityKind = "application"
	EntityKindLoan        EntityKind = "loan"
	EntityKindCustomer    EntityKind = "customer"
)

// Entity is any record whose status is governed by a workflow.
// It is created in the workflow entry status and is never deleted.
type Entity struct {
	ID         string     `json:"id"          validate:"required"`
	Kind       EntityKind `json:"kind"        validate:"required,oneof=application loan customer"`
	WorkflowID string     `json:"workflow_id" validate:"required"`
	Status     StatusCode `json:"status_code"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TransitionHistoryRecord is one immutable row of an entity's status ledger.
type TransitionHistoryRecord struct {
	ID           int64      `json:"id"`
	EntityID     string     `json:"entity_id"`
	StatusOld    StatusCode `json:"status_old"`
	StatusNew    StatusCode `json:"status_new"`
	ChangedBy    string     `json:"changed_by"`
	ChangeReason string     `json:"change_reason"`
	CreatedAt    time.Time  `json:"created_at"`
}
