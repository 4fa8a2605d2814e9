package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
	"github.com/lib/pq"
)

const entityColumns = `
			id
		  , kind
		  , workflow_id
		  , status_code
		  , created_at
		  , updated_at`

// EntityRepository handles entity rows and row-locked status transactions.
type EntityRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEntityRepository creates a new entity repository.
func NewEntityRepository(db *sql.DB, logger *slog.Logger) *EntityRepository {
	return &EntityRepository{db: db, logger: logger}
}

func (r *EntityRepository) Create(ctx context.Context, entity *models.Entity) error {
	query := `
		INSERT INTO entities (id, kind, workflow_id, status_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		entity.ID,
		entity.Kind,
		entity.WorkflowID,
		entity.Status,
		entity.CreatedAt,
		entity.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return persistence.NewEntityError("Create", entity.ID, persistence.ErrEntityAlreadyExists)
			case "23503":
				return persistence.NewWorkflowError("Create", entity.WorkflowID, persistence.ErrWorkflowNotFound)
			}
		}

		return fmt.Errorf("failed to create entity %s: %w", entity.ID, err)
	}

	return nil
}

func (r *EntityRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	query := `SELECT` + entityColumns + `
		FROM entities
		WHERE id = $1
	`

	entity, err := scanEntity(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", id, persistence.ErrEntityNotFound)
		}

		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	return entity, nil
}

func (r *EntityRepository) ListByStatus(ctx context.Context, status models.StatusCode, limit int) ([]*models.Entity, error) {
	query := `SELECT` + entityColumns + `
		FROM entities
		WHERE status_code = $1
		ORDER BY id
		LIMIT $2
	`

	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := r.db.QueryContext(ctx, query, status, limitArg)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	entities := make([]*models.Entity, 0)

	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}

	return entities, nil
}

// WithLock opens a transaction holding SELECT ... FOR UPDATE on the entity row.
func (r *EntityRepository) WithLock(ctx context.Context, id string, fn func(ctx context.Context, tx persistence.EntityTx) error) (err error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := sqlTx.Rollback()
			if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				r.logger.ErrorContext(ctx, "failed to rollback entity transaction", "entity_id", id, "error", rollbackErr)
			}
		}
	}()

	query := `SELECT` + entityColumns + `
		FROM entities
		WHERE id = $1
		FOR UPDATE
	`

	entity, err := scanEntity(sqlTx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NewEntityError("WithLock", id, persistence.ErrEntityNotFound)
		}

		return fmt.Errorf("failed to lock entity %s: %w", id, err)
	}

	err = fn(ctx, &entityTx{tx: sqlTx, entity: entity})
	if err != nil {
		return err
	}

	err = sqlTx.Commit()
	if err != nil {
		return persistence.NewEntityError("Commit", id, err)
	}

	return nil
}

type entityTx struct {
	tx     *sql.Tx
	entity *models.Entity
}

func (t *entityTx) Entity() *models.Entity {
	snapshot := *t.entity

	return &snapshot
}

func (t *entityTx) UpdateStatus(ctx context.Context, status models.StatusCode, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE entities SET status_code = $2, updated_at = $3 WHERE id = $1`,
		t.entity.ID, status, at,
	)
	if err != nil {
		return fmt.Errorf("failed to update status of entity %s: %w", t.entity.ID, err)
	}

	t.entity.Status = status
	t.entity.UpdatedAt = at

	return nil
}

func (t *entityTx) AppendHistory(ctx context.Context, record *models.TransitionHistoryRecord) (int64, error) {
	query := `
		INSERT INTO transition_history (entity_id, status_old, status_new, changed_by, change_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	record.EntityID = t.entity.ID

	err := t.tx.QueryRowContext(ctx, query,
		record.EntityID,
		record.StatusOld,
		record.StatusNew,
		record.ChangedBy,
		record.ChangeReason,
		record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to append history for entity %s: %w", t.entity.ID, err)
	}

	return record.ID, nil
}

func scanEntity(scanner rowScanner) (*models.Entity, error) {
	var entity models.Entity

	err := scanner.Scan(
		&entity.ID,
		&entity.Kind,
		&entity.WorkflowID,
		&entity.Status,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &entity, nil
}
