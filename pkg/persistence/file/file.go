// Package file provides file-based persistence for workflows, entities,
// transition history and verification attempts.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lendstate/lendstate/pkg/keylock"
	"github.com/lendstate/lendstate/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Every document is a JSON file under root; mu guards all file I/O.
type Persistence struct {
	root  string
	mu    sync.Mutex
	locks *keylock.Locker

	entityRepo       *EntityRepository
	workflowRepo     *WorkflowRepository
	historyRepo      *HistoryRepository
	verificationRepo *VerificationRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	fp := &Persistence{
		root:  cleanRoot,
		locks: keylock.New(),
	}

	fp.entityRepo = &EntityRepository{fp: fp}
	fp.workflowRepo = &WorkflowRepository{fp: fp}
	fp.historyRepo = &HistoryRepository{fp: fp}
	fp.verificationRepo = &VerificationRepository{fp: fp}

	return fp
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) EntityRepository() persistence.EntityRepository {
	return fp.entityRepo
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) HistoryRepository() persistence.HistoryRepository {
	return fp.historyRepo
}

func (fp *Persistence) VerificationRepository() persistence.VerificationRepository {
	return fp.verificationRepo
}

func (fp *Persistence) path(collection, id string) string {
	return filepath.Join(fp.root, collection, url.PathEscape(id)+".json")
}

// readJSON decodes the document at filePath into v. A missing file reports false.
func readJSON(filePath string, v any) (bool, error) {
	body, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", filePath, err)
	}

	return true, nil
}

// writeJSON replaces the document at filePath through a rename so readers never see partial files.
func writeJSON(filePath string, v any) error {
	tmp, err := stageJSON(filePath, v)
	if err != nil {
		return err
	}

	return publish(tmp, filePath)
}

// stageJSON writes v next to filePath and returns the staged path. The
// document becomes visible only once publish renames it into place.
func stageJSON(filePath string, v any) (string, error) {
	err := os.MkdirAll(filepath.Dir(filePath), 0750)
	if err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", filePath, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", filePath, err)
	}

	tmp := filePath + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	return tmp, nil
}

func publish(tmp, filePath string) error {
	err := os.Rename(tmp, filePath)
	if err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("failed to replace %s: %w", filePath, err)
	}

	return nil
}
