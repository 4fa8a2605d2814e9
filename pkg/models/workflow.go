// Package models defines the core domain types of the lending status engine.
package models

import (
	"slices"
	"time"
)

// EdgeType tells whether an edge is part of the expected flow.
type EdgeType string

const (
	EdgeTypeHappy     EdgeType = "happy"
	EdgeTypeException EdgeType = "exception"
)

// Workflow is a named set of legal status transitions for one entity kind.
type Workflow struct {
	ID               string       `json:"id"                          validate:"required"`
	Name             string       `json:"name"                        validate:"required,min=3"`
	Namespace        Namespace    `json:"namespace"                   validate:"required,oneof=application loan account customer"`
	EntryStatus      StatusCode   `json:"entry_status"                validate:"gte=0"`
	TerminalStatuses []StatusCode `json:"terminal_statuses,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// IsTerminal reports whether status is declared terminal for the workflow.
func (w *Workflow) IsTerminal(status StatusCode) bool {
	return slices.Contains(w.TerminalStatuses, status)
}

// TransitionEdge is a directed, workflow-scoped transition between two statuses.
type TransitionEdge struct {
	WorkflowID string     `json:"workflow_id" validate:"required"`
	From       StatusCode `json:"status_from" validate:"gte=0"`
	To         StatusCode `json:"status_to"   validate:"gte=0"`
	Type       EdgeType   `json:"edge_type"   validate:"required,oneof=happy exception"`
	IsActive   bool       `json:"is_active"`
}

// EdgeKey identifies an edge inside a workflow.
type EdgeKey struct {
	From StatusCode
	To   StatusCode
}

// Key returns the (from, to) identity of the edge.
func (e TransitionEdge) Key() EdgeKey {
	return EdgeKey{From: e.From, To: e.To}
}
