package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
)

// EntityRepository handles entity documents and their locked transactions.
type EntityRepository struct {
	fp *Persistence
}

func (er *EntityRepository) load(id string) (*models.Entity, error) {
	var entity models.Entity

	found, err := readJSON(er.fp.path("entities", id), &entity)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entity %s: %w", id, err)
	}

	if !found {
		return nil, persistence.NewEntityError("GetByID", id, persistence.ErrEntityNotFound)
	}

	return &entity, nil
}

func (er *EntityRepository) Create(_ context.Context, entity *models.Entity) error {
	er.fp.mu.Lock()
	defer er.fp.mu.Unlock()

	_, err := er.load(entity.ID)
	if err == nil {
		return persistence.NewEntityError("Create", entity.ID, persistence.ErrEntityAlreadyExists)
	}

	if !persistence.IsEntityNotFound(err) {
		return err
	}

	return writeJSON(er.fp.path("entities", entity.ID), entity)
}

func (er *EntityRepository) GetByID(_ context.Context, id string) (*models.Entity, error) {
	er.fp.mu.Lock()
	defer er.fp.mu.Unlock()

	return er.load(id)
}

// ListByStatus scans every entity document. Suitable for development data sizes only.
func (er *EntityRepository) ListByStatus(_ context.Context, status models.StatusCode, limit int) ([]*models.Entity, error) {
	er.fp.mu.Lock()
	defer er.fp.mu.Unlock()

	root := os.DirFS(filepath.Join(er.fp.root, "entities"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list entity files: %w", err)
	}

	entities := make([]*models.Entity, 0)

	for _, file := range jsonFiles {
		var entity models.Entity

		_, err := readJSON(filepath.Join(er.fp.root, "entities", file), &entity)
		if err != nil {
			return nil, err
		}

		if entity.Status == status {
			entities = append(entities, &entity)
		}
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID < entities[j].ID
	})

	if limit > 0 && len(entities) > limit {
		entities = entities[:limit]
	}

	return entities, nil
}

// WithLock holds the entity's key lock for the duration of fn. Status and
// history writes are staged in the transaction and written together on success.
func (er *EntityRepository) WithLock(ctx context.Context, id string, fn func(ctx context.Context, tx persistence.EntityTx) error) error {
	unlock, err := er.fp.locks.Lock(ctx, id)
	if err != nil {
		return persistence.NewEntityError("WithLock", id, err)
	}
	defer unlock()

	entity, err := er.GetByID(ctx, id)
	if err != nil {
		return err
	}

	tx := &entityTx{fp: er.fp, entity: entity}

	err = fn(ctx, tx)
	if err != nil {
		return err
	}

	return tx.commit()
}

type entityTx struct {
	fp      *Persistence
	entity  *models.Entity
	dirty   bool
	records []*models.TransitionHistoryRecord
}

func (tx *entityTx) Entity() *models.Entity {
	snapshot := *tx.entity

	return &snapshot
}

func (tx *entityTx) UpdateStatus(_ context.Context, status models.StatusCode, at time.Time) error {
	tx.entity.Status = status
	tx.entity.UpdatedAt = at
	tx.dirty = true

	return nil
}

func (tx *entityTx) AppendHistory(_ context.Context, record *models.TransitionHistoryRecord) (int64, error) {
	id, err := tx.fp.historyRepo.nextID()
	if err != nil {
		return 0, err
	}

	record.ID = id
	record.EntityID = tx.entity.ID
	tx.records = append(tx.records, record)

	return id, nil
}

// commit stages the entity document, writes the history and only then
// publishes the entity. A failure at any step leaves neither change on disk.
func (tx *entityTx) commit() error {
	if !tx.dirty && len(tx.records) == 0 {
		return nil
	}

	tx.fp.mu.Lock()
	defer tx.fp.mu.Unlock()

	entityPath := tx.fp.path("entities", tx.entity.ID)

	var staged string

	if tx.dirty {
		var err error

		staged, err = stageJSON(entityPath, tx.entity)
		if err != nil {
			return persistence.NewEntityError("Commit", tx.entity.ID, err)
		}
	}

	restoreHistory := func() error { return nil }

	if len(tx.records) > 0 {
		var err error

		restoreHistory, err = tx.fp.historyRepo.appendLocked(tx.entity.ID, tx.records)
		if err != nil {
			if staged != "" {
				_ = os.Remove(staged)
			}

			return persistence.NewEntityError("Commit", tx.entity.ID, err)
		}
	}

	if staged == "" {
		return nil
	}

	err := publish(staged, entityPath)
	if err != nil {
		restoreErr := restoreHistory()
		if restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to restore history: %w", restoreErr))
		}

		return persistence.NewEntityError("Commit", tx.entity.ID, err)
	}

	return nil
}
