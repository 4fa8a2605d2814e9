package services

import (
	"context"

	"github.com/lendstate/lendstate/pkg/history"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
	"github.com/lendstate/lendstate/pkg/statemachine"
)

// Entity exposes creation, lookup and transitions of status-carrying entities.
type Entity struct {
	entities persistence.EntityRepository
	machine  *statemachine.Machine
	history  *history.Store
}

func NewEntity(entities persistence.EntityRepository, machine *statemachine.Machine, historyStore *history.Store) *Entity {
	return &Entity{
		entities: entities,
		machine:  machine,
		history:  historyStore,
	}
}

func (e *Entity) Create(ctx context.Context, kind models.EntityKind, workflowID, id string) (*models.Entity, error) {
	return e.machine.Create(ctx, kind, workflowID, id)
}

func (e *Entity) FetchByID(ctx context.Context, id string) (*models.Entity, error) {
	if id == "" {
		return nil, ErrEntityIDRequired
	}

	return e.entities.GetByID(ctx, id)
}

// Transition requires an actor so every history record names who made the change.
func (e *Entity) Transition(ctx context.Context, req statemachine.TransitionRequest) (*statemachine.Result, error) {
	if req.EntityID == "" {
		return nil, ErrEntityIDRequired
	}

	if req.Actor == "" {
		return nil, NewValidationError("Transition", "actor_required", "actor must be set", ErrActorRequired)
	}

	return e.machine.Transition(ctx, req)
}

func (e *Entity) AllowedTransitions(ctx context.Context, id string) ([]models.TransitionEdge, error) {
	return e.machine.AllowedTransitions(ctx, id)
}

// History returns the full ledger of an entity, oldest first.
func (e *Entity) History(ctx context.Context, id string) ([]*models.TransitionHistoryRecord, error) {
	_, err := e.entities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return e.history.Collect(ctx, id)
}
