// Package history is the append-only ledger of entity status transitions.
package history

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/jonboulle/clockwork"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
)

const defaultPageSize = 100

// ErrHistoryGap indicates a record whose old status does not follow the previous record.
var ErrHistoryGap = errors.New("history gap")

// GapError describes where a ledger breaks.
type GapError struct {
	EntityID string
	RecordID int64
	Expected models.StatusCode
	Got      models.StatusCode
}

func (e *GapError) Error() string {
	return fmt.Sprintf("history gap for entity %s at record %d: expected from %d, got %d",
		e.EntityID, e.RecordID, e.Expected, e.Got)
}

func (e *GapError) Unwrap() error {
	return ErrHistoryGap
}

// Store appends to and reads from the transition ledger.
type Store struct {
	repo     persistence.HistoryRepository
	clock    clockwork.Clock
	pageSize int
}

type Option func(*Store)

// WithPageSize sets how many records ListFor fetches per repository call.
func WithPageSize(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

func New(repo persistence.HistoryRepository, clock clockwork.Clock, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		clock:    clock,
		pageSize: defaultPageSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Append writes one record inside the entity transaction tx, so it commits or
// rolls back with the status change. from must equal the locked entity status.
func (s *Store) Append(ctx context.Context, tx persistence.EntityTx, from, to models.StatusCode, actor, reason string) (int64, error) {
	entity := tx.Entity()

	if entity.Status != from {
		return 0, &GapError{EntityID: entity.ID, Expected: entity.Status, Got: from}
	}

	record := &models.TransitionHistoryRecord{
		EntityID:     entity.ID,
		StatusOld:    from,
		StatusNew:    to,
		ChangedBy:    actor,
		ChangeReason: reason,
		CreatedAt:    s.clock.Now().UTC(),
	}

	id, err := tx.AppendHistory(ctx, record)
	if err != nil {
		return 0, fmt.Errorf("failed to append history: %w", err)
	}

	return id, nil
}

// ListFor yields the entity's records oldest first. Pages are fetched lazily,
// and every range over the sequence starts again from the first record.
func (s *Store) ListFor(ctx context.Context, entityID string) iter.Seq2[*models.TransitionHistoryRecord, error] {
	return func(yield func(*models.TransitionHistoryRecord, error) bool) {
		var afterID int64

		for {
			page, err := s.repo.ListByEntity(ctx, entityID, afterID, s.pageSize)
			if err != nil {
				yield(nil, fmt.Errorf("failed to list history for entity %s: %w", entityID, err))

				return
			}

			for _, record := range page {
				if !yield(record, nil) {
					return
				}

				afterID = record.ID
			}

			if len(page) < s.pageSize {
				return
			}
		}
	}
}

// Collect materializes ListFor.
func (s *Store) Collect(ctx context.Context, entityID string) ([]*models.TransitionHistoryRecord, error) {
	records := make([]*models.TransitionHistoryRecord, 0)

	for record, err := range s.ListFor(ctx, entityID) {
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

// Replay folds records starting from initial and returns the resulting status.
func Replay(initial models.StatusCode, records []*models.TransitionHistoryRecord) (models.StatusCode, error) {
	current := initial

	for _, record := range records {
		if record.StatusOld != current {
			return current, &GapError{
				EntityID: record.EntityID,
				RecordID: record.ID,
				Expected: current,
				Got:      record.StatusOld,
			}
		}

		current = record.StatusNew
	}

	return current, nil
}
