package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lendstate/lendstate/pkg/models"
)

type sequence struct {
	History int64 `json:"history"`
}

// HistoryRepository keeps one append-only JSON array per entity.
type HistoryRepository struct {
	fp *Persistence
}

// nextID reserves a history id. Ids left unused by a failed commit are skipped.
func (hr *HistoryRepository) nextID() (int64, error) {
	hr.fp.mu.Lock()
	defer hr.fp.mu.Unlock()

	seqPath := filepath.Join(hr.fp.root, "sequence.json")

	var seq sequence

	_, err := readJSON(seqPath, &seq)
	if err != nil {
		return 0, err
	}

	seq.History++

	err = writeJSON(seqPath, seq)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve history id: %w", err)
	}

	return seq.History, nil
}

func (hr *HistoryRepository) readLocked(entityID string) ([]*models.TransitionHistoryRecord, error) {
	records := make([]*models.TransitionHistoryRecord, 0)

	_, err := readJSON(hr.fp.path("history", entityID), &records)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// appendLocked writes the entity's history with added appended and returns
// a function that puts the previous history back.
func (hr *HistoryRepository) appendLocked(entityID string, added []*models.TransitionHistoryRecord) (func() error, error) {
	historyPath := hr.fp.path("history", entityID)
	records := make([]*models.TransitionHistoryRecord, 0)

	found, err := readJSON(historyPath, &records)
	if err != nil {
		return nil, err
	}

	previous := records

	err = writeJSON(historyPath, append(records[:len(records):len(records)], added...))
	if err != nil {
		return nil, err
	}

	restore := func() error {
		if !found {
			return os.Remove(historyPath)
		}

		return writeJSON(historyPath, previous)
	}

	return restore, nil
}

func (hr *HistoryRepository) ListByEntity(_ context.Context, entityID string, afterID int64, limit int) ([]*models.TransitionHistoryRecord, error) {
	hr.fp.mu.Lock()
	defer hr.fp.mu.Unlock()

	records, err := hr.readLocked(entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for entity %s: %w", entityID, err)
	}

	page := make([]*models.TransitionHistoryRecord, 0)

	for _, record := range records {
		if record.ID <= afterID {
			continue
		}

		page = append(page, record)
		if limit > 0 && len(page) == limit {
			break
		}
	}

	return page, nil
}
