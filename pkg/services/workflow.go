package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
	"github.com/lendstate/lendstate/pkg/statusgraph"
)

type Workflow struct {
	persistence persistence.Persistence
	graph       *statusgraph.Graph
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, graph *statusgraph.Graph) *Workflow {
	return &Workflow{
		persistence: persistence,
		graph:       graph,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// WorkflowView is a workflow with its edges, as served by the API.
type WorkflowView struct {
	*models.Workflow

	Edges []models.TransitionEdge `json:"edges"`
}

// ListWorkflows returns every workflow ordered by id.
func (w *Workflow) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := w.persistence.WorkflowRepository().ListWorkflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].ID < workflows[j].ID
	})

	return workflows, nil
}

func (w *Workflow) FetchByID(ctx context.Context, id string) (*WorkflowView, error) {
	snapshot, err := w.graph.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	return &WorkflowView{Workflow: snapshot.Workflow, Edges: snapshot.Edges()}, nil
}

// Seed stores a workflow and upserts its edges.
func (w *Workflow) Seed(ctx context.Context, workflow *models.Workflow, edges []models.TransitionEdge) error {
	if workflow == nil {
		return ErrNilWorkflow
	}

	return w.graph.Seed(ctx, workflow, edges)
}

func (w *Workflow) AddEdge(ctx context.Context, edge models.TransitionEdge) error {
	return w.graph.AddEdge(ctx, edge)
}

func (w *Workflow) SetEdgeActive(ctx context.Context, workflowID string, from, to models.StatusCode, active bool) (models.TransitionEdge, error) {
	return w.graph.SetEdgeActive(ctx, workflowID, from, to, active)
}
