package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lendstate/lendstate/pkg/models"
)

// HistoryRepository reads the transition_history table.
type HistoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *sql.DB, logger *slog.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

func (r *HistoryRepository) ListByEntity(ctx context.Context, entityID string, afterID int64, limit int) ([]*models.TransitionHistoryRecord, error) {
	query := `
		SELECT
			id
		  , entity_id
		  , status_old
		  , status_new
		  , changed_by
		  , change_reason
		  , created_at
		FROM transition_history
		WHERE entity_id = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`

	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := r.db.QueryContext(ctx, query, entityID, afterID, limitArg)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for entity %s: %w", entityID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	records := make([]*models.TransitionHistoryRecord, 0)

	for rows.Next() {
		var record models.TransitionHistoryRecord

		err := rows.Scan(
			&record.ID,
			&record.EntityID,
			&record.StatusOld,
			&record.StatusNew,
			&record.ChangedBy,
			&record.ChangeReason,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}

		records = append(records, &record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return records, nil
}
