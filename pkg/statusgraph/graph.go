// Package statusgraph declares which status transitions each workflow allows.
//
// Edges are directed and looked up by their exact (from, to) pair. A path
// through intermediate statuses never makes a direct transition legal.
package statusgraph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
)

// Graph reads and edits workflow edges through a WorkflowRepository.
type Graph struct {
	repo   persistence.WorkflowRepository
	logger *slog.Logger
}

func New(repo persistence.WorkflowRepository, logger *slog.Logger) *Graph {
	return &Graph{
		repo:   repo,
		logger: logger.With("module", "statusgraph"),
	}
}

// Snapshot is an immutable view of one workflow's edges.
type Snapshot struct {
	Workflow *models.Workflow

	edges map[models.EdgeKey]models.TransitionEdge
	out   map[models.StatusCode][]models.TransitionEdge
}

func newSnapshot(workflow *models.Workflow, edges []models.TransitionEdge) *Snapshot {
	s := &Snapshot{
		Workflow: workflow,
		edges:    make(map[models.EdgeKey]models.TransitionEdge, len(edges)),
		out:      make(map[models.StatusCode][]models.TransitionEdge),
	}

	for _, edge := range edges {
		s.edges[edge.Key()] = edge

		if edge.IsActive {
			s.out[edge.From] = append(s.out[edge.From], edge)
		}
	}

	for from := range s.out {
		sort.SliceStable(s.out[from], func(i, j int) bool {
			a, b := s.out[from][i], s.out[from][j]
			if a.Type != b.Type {
				return a.Type == models.EdgeTypeHappy
			}

			return a.To < b.To
		})
	}

	return s
}

// IsLegalEdge reports whether an active edge from -> to exists.
func (s *Snapshot) IsLegalEdge(from, to models.StatusCode) bool {
	edge, ok := s.edges[models.EdgeKey{From: from, To: to}]

	return ok && edge.IsActive
}

// AllowedTransitions lists the active edges leaving from, happy edges first.
func (s *Snapshot) AllowedTransitions(from models.StatusCode) []models.TransitionEdge {
	return append([]models.TransitionEdge(nil), s.out[from]...)
}

// Edges returns every edge, active or not, ordered by (from, to).
func (s *Snapshot) Edges() []models.TransitionEdge {
	edges := make([]models.TransitionEdge, 0, len(s.edges))
	for _, edge := range s.edges {
		edges = append(edges, edge)
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}

		return edges[i].To < edges[j].To
	})

	return edges
}

// Load reads the workflow and its edges. A missing workflow fails with ErrUnknownWorkflow.
func (g *Graph) Load(ctx context.Context, workflowID string) (*Snapshot, error) {
	workflow, err := g.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, g.translate(workflowID, err)
	}

	edges, err := g.repo.Edges(ctx, workflowID)
	if err != nil {
		return nil, g.translate(workflowID, err)
	}

	return newSnapshot(workflow, edges), nil
}

// IsLegalEdge loads the workflow and checks a single edge.
func (g *Graph) IsLegalEdge(ctx context.Context, workflowID string, from, to models.StatusCode) (bool, error) {
	snapshot, err := g.Load(ctx, workflowID)
	if err != nil {
		return false, err
	}

	return snapshot.IsLegalEdge(from, to), nil
}

// Seed stores the workflow and upserts its edges. Existing edges take the
// seeded type and activity flag; edges absent from the seed are left alone.
func (g *Graph) Seed(ctx context.Context, workflow *models.Workflow, edges []models.TransitionEdge) error {
	for _, edge := range edges {
		err := checkEndpoints(workflow, edge)
		if err != nil {
			return err
		}
	}

	err := g.repo.SaveWorkflow(ctx, workflow)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	for _, edge := range edges {
		edge.WorkflowID = workflow.ID

		err := g.repo.UpsertEdge(ctx, edge)
		if err != nil {
			return fmt.Errorf("failed to seed edge %d->%d: %w", edge.From, edge.To, err)
		}
	}

	g.logger.InfoContext(ctx, "Seeded workflow", "workflow_id", workflow.ID, "edges", len(edges))

	return nil
}

// AddEdge inserts a single edge. An existing (from, to) fails with ErrDuplicateEdge.
func (g *Graph) AddEdge(ctx context.Context, edge models.TransitionEdge) error {
	workflow, err := g.repo.GetWorkflow(ctx, edge.WorkflowID)
	if err != nil {
		return g.translate(edge.WorkflowID, err)
	}

	err = checkEndpoints(workflow, edge)
	if err != nil {
		return err
	}

	err = g.repo.InsertEdge(ctx, edge)
	if err != nil {
		if persistence.IsEdgeAlreadyExists(err) {
			return fmt.Errorf("%w: %d->%d in workflow %s", ErrDuplicateEdge, edge.From, edge.To, edge.WorkflowID)
		}

		return g.translate(edge.WorkflowID, err)
	}

	g.logger.InfoContext(ctx, "Added edge", "workflow_id", edge.WorkflowID, "from", edge.From, "to", edge.To, "type", edge.Type)

	return nil
}

// SetEdgeActive flips the activity flag of an existing edge.
func (g *Graph) SetEdgeActive(ctx context.Context, workflowID string, from, to models.StatusCode, active bool) (models.TransitionEdge, error) {
	snapshot, err := g.Load(ctx, workflowID)
	if err != nil {
		return models.TransitionEdge{}, err
	}

	edge, ok := snapshot.edges[models.EdgeKey{From: from, To: to}]
	if !ok {
		return models.TransitionEdge{}, fmt.Errorf("%w: %d->%d in workflow %s", ErrEdgeNotFound, from, to, workflowID)
	}

	edge.IsActive = active

	err = g.repo.UpdateEdge(ctx, edge)
	if err != nil {
		if persistence.IsEdgeNotFound(err) {
			return models.TransitionEdge{}, fmt.Errorf("%w: %d->%d in workflow %s", ErrEdgeNotFound, from, to, workflowID)
		}

		return models.TransitionEdge{}, g.translate(workflowID, err)
	}

	g.logger.InfoContext(ctx, "Changed edge activity", "workflow_id", workflowID, "from", from, "to", to, "active", active)

	return edge, nil
}

func (g *Graph) translate(workflowID string, err error) error {
	if persistence.IsWorkflowNotFound(err) {
		return fmt.Errorf("%w: %s", ErrUnknownWorkflow, workflowID)
	}

	return fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
}

// checkEndpoints requires both ends of edge to be catalogued statuses of the
// workflow's namespace.
func checkEndpoints(workflow *models.Workflow, edge models.TransitionEdge) error {
	for _, code := range []models.StatusCode{edge.From, edge.To} {
		status, ok := models.LookupStatus(code)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownStatus, code)
		}

		if status.Namespace != workflow.Namespace {
			return fmt.Errorf("%w: %d is a %s status, workflow %s is %s",
				ErrForeignStatus, code, status.Namespace, workflow.ID, workflow.Namespace)
		}
	}

	return nil
}
