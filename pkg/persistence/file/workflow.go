package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
)

// workflowDocument is the on-disk shape of a workflow and its edges.
type workflowDocument struct {
	Workflow *models.Workflow        `json:"workflow"`
	Edges    []models.TransitionEdge `json:"edges"`
}

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	fp *Persistence
}

func (wr *WorkflowRepository) load(workflowID string) (*workflowDocument, error) {
	var doc workflowDocument

	found, err := readJSON(wr.fp.path("workflows", workflowID), &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	if !found {
		return nil, persistence.NewWorkflowError("GetWorkflow", workflowID, persistence.ErrWorkflowNotFound)
	}

	return &doc, nil
}

func (wr *WorkflowRepository) store(doc *workflowDocument) error {
	sort.Slice(doc.Edges, func(i, j int) bool {
		if doc.Edges[i].From != doc.Edges[j].From {
			return doc.Edges[i].From < doc.Edges[j].From
		}

		return doc.Edges[i].To < doc.Edges[j].To
	})

	return writeJSON(wr.fp.path("workflows", doc.Workflow.ID), doc)
}

// SaveWorkflow creates or replaces a workflow definition, keeping its edges.
func (wr *WorkflowRepository) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	wr.fp.mu.Lock()
	defer wr.fp.mu.Unlock()

	doc, err := wr.load(workflow.ID)
	if err != nil && !persistence.IsWorkflowNotFound(err) {
		return err
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if doc == nil {
		doc = &workflowDocument{Edges: make([]models.TransitionEdge, 0)}
	} else {
		workflow.CreatedAt = doc.Workflow.CreatedAt
	}

	doc.Workflow = workflow

	return wr.store(doc)
}

// GetWorkflow retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	wr.fp.mu.Lock()
	defer wr.fp.mu.Unlock()

	doc, err := wr.load(id)
	if err != nil {
		return nil, err
	}

	return doc.Workflow, nil
}

// ListWorkflows returns every stored workflow ordered by id.
func (wr *WorkflowRepository) ListWorkflows(_ context.Context) ([]*models.Workflow, error) {
	wr.fp.mu.Lock()
	defer wr.fp.mu.Unlock()

	root := os.DirFS(filepath.Join(wr.fp.root, "workflows"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		var doc workflowDocument

		_, err := readJSON(filepath.Join(wr.fp.root, "workflows", file), &doc)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", strings.TrimSuffix(file, ".json"), err)
		}

		workflows = append(workflows, doc.Workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].ID < workflows[j].ID
	})

	return workflows, nil
}

// Edges returns every edge of the workflow ordered by (from, to).
func (wr *WorkflowRepository) Edges(_ context.Context, workflowID string) ([]models.TransitionEdge, error) {
	wr.fp.mu.Lock()
	defer wr.fp.mu.Unlock()

	doc, err := wr.load(workflowID)
	if err != nil {
		return nil, err
	}

	return doc.Edges, nil
}

func (wr *WorkflowRepository) InsertEdge(_ context.Context, edge models.TransitionEdge) error {
	return wr.writeEdge("InsertEdge", edge, func(found bool) error {
		if found {
			return persistence.ErrEdgeAlreadyExists
		}

		return nil
	})
}

func (wr *WorkflowRepository) UpsertEdge(_ context.Context, edge models.TransitionEdge) error {
	return wr.writeEdge("UpsertEdge", edge, func(bool) error { return nil })
}

func (wr *WorkflowRepository) UpdateEdge(_ context.Context, edge models.TransitionEdge) error {
	return wr.writeEdge("UpdateEdge", edge, func(found bool) error {
		if !found {
			return persistence.ErrEdgeNotFound
		}

		return nil
	})
}

// writeEdge stores edge after check approves the presence of an existing edge with the same key.
func (wr *WorkflowRepository) writeEdge(op string, edge models.TransitionEdge, check func(found bool) error) error {
	wr.fp.mu.Lock()
	defer wr.fp.mu.Unlock()

	doc, err := wr.load(edge.WorkflowID)
	if err != nil {
		return err
	}

	idx := -1

	for i, existing := range doc.Edges {
		if existing.Key() == edge.Key() {
			idx = i

			break
		}
	}

	err = check(idx >= 0)
	if err != nil {
		return persistence.NewEdgeError(op, edge.WorkflowID, int(edge.From), int(edge.To), err)
	}

	if idx >= 0 {
		doc.Edges[idx] = edge
	} else {
		doc.Edges = append(doc.Edges, edge)
	}

	return wr.store(doc)
}
