// Package persistence provides the storage abstraction for workflows, entities,
// transition history and verification attempts.
package persistence

import (
	"context"
	"time"

	"github.com/lendstate/lendstate/pkg/models"
)

type Persistence interface {
	EntityRepository() EntityRepository
	WorkflowRepository() WorkflowRepository
	HistoryRepository() HistoryRepository
	VerificationRepository() VerificationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// EntityRepository stores status-carrying entities.
type EntityRepository interface {
	// Create stores a new entity. An existing id fails with ErrEntityAlreadyExists.
	Create(ctx context.Context, entity *models.Entity) error

	// GetByID returns a snapshot of the entity or ErrEntityNotFound.
	GetByID(ctx context.Context, id string) (*models.Entity, error)

	// ListByStatus returns up to limit entities currently at status, ordered by id.
	ListByStatus(ctx context.Context, status models.StatusCode, limit int) ([]*models.Entity, error)

	// WithLock runs fn while holding an exclusive lock on the entity.
	// Writes made through tx are committed when fn returns nil and discarded otherwise.
	WithLock(ctx context.Context, id string, fn func(ctx context.Context, tx EntityTx) error) error
}

// EntityTx is the write scope of a locked entity.
type EntityTx interface {
	// Entity returns the locked entity as seen inside the transaction.
	Entity() *models.Entity

	UpdateStatus(ctx context.Context, status models.StatusCode, at time.Time) error

	// AppendHistory stores record and returns its assigned id.
	AppendHistory(ctx context.Context, record *models.TransitionHistoryRecord) (int64, error)
}

// WorkflowRepository stores workflows and their transition edges.
type WorkflowRepository interface {
	// SaveWorkflow creates or replaces a workflow definition.
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	ListWorkflows(ctx context.Context) ([]*models.Workflow, error)

	// Edges returns every edge of the workflow, active or not, ordered by (from, to).
	Edges(ctx context.Context, workflowID string) ([]models.TransitionEdge, error)

	// InsertEdge adds an edge and fails with ErrEdgeAlreadyExists on a duplicate (from, to).
	InsertEdge(ctx context.Context, edge models.TransitionEdge) error

	// UpsertEdge adds an edge or overwrites the type and activity of an existing one.
	UpsertEdge(ctx context.Context, edge models.TransitionEdge) error

	// UpdateEdge overwrites an existing edge and fails with ErrEdgeNotFound otherwise.
	UpdateEdge(ctx context.Context, edge models.TransitionEdge) error
}

// HistoryRepository reads the append-only transition ledger.
type HistoryRepository interface {
	// ListByEntity returns up to limit records with id greater than afterID, oldest first.
	ListByEntity(ctx context.Context, entityID string, afterID int64, limit int) ([]*models.TransitionHistoryRecord, error)
}

// VerificationRepository stores OTP and PIN attempts.
type VerificationRepository interface {
	// Latest returns the most recently issued attempt for key or ErrAttemptNotFound.
	Latest(ctx context.Context, key models.AttemptKey) (*models.VerificationAttempt, error)

	// CountIssuedSince counts attempts for key issued at or after since.
	CountIssuedSince(ctx context.Context, key models.AttemptKey, since time.Time) (int, error)

	Create(ctx context.Context, attempt *models.VerificationAttempt) error

	// Update saves attempt if its Version matches the stored one and bumps
	// attempt.Version on success. A stale version fails with ErrConcurrentUpdate.
	Update(ctx context.Context, attempt *models.VerificationAttempt) error
}
