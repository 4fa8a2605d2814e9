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

// WorkflowRepository handles workflow and edge database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// SaveWorkflow inserts or updates a workflow; created_at is kept on update.
func (r *WorkflowRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	query := `
		INSERT INTO workflows (id, name, namespace, entry_status, terminal_statuses, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			namespace = EXCLUDED.namespace,
			entry_status = EXCLUDED.entry_status,
			terminal_statuses = EXCLUDED.terminal_statuses,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Namespace,
		workflow.EntryStatus,
		pq.Array(statusesToInts(workflow.TerminalStatuses)),
		workflow.CreatedAt,
		workflow.UpdatedAt,
	).Scan(&workflow.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , namespace
		  , entry_status
		  , terminal_statuses
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetWorkflow", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , namespace
		  , entry_status
		  , terminal_statuses
		  , created_at
		  , updated_at
		FROM workflows
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// Edges returns every edge of the workflow. An unknown workflow fails with ErrWorkflowNotFound.
func (r *WorkflowRepository) Edges(ctx context.Context, workflowID string) ([]models.TransitionEdge, error) {
	_, err := r.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT workflow_id, status_from, status_to, edge_type, is_active
		FROM transition_edges
		WHERE workflow_id = $1
		ORDER BY status_from, status_to
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	edges := make([]models.TransitionEdge, 0)

	for rows.Next() {
		var edge models.TransitionEdge

		err := rows.Scan(&edge.WorkflowID, &edge.From, &edge.To, &edge.Type, &edge.IsActive)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}

		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return edges, nil
}

func (r *WorkflowRepository) InsertEdge(ctx context.Context, edge models.TransitionEdge) error {
	query := `
		INSERT INTO transition_edges (workflow_id, status_from, status_to, edge_type, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workflow_id, status_from, status_to) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, edge.WorkflowID, edge.From, edge.To, edge.Type, edge.IsActive)
	if err != nil {
		return r.edgeWriteError("InsertEdge", edge, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.NewEdgeError("InsertEdge", edge.WorkflowID, int(edge.From), int(edge.To), persistence.ErrEdgeAlreadyExists)
	}

	return nil
}

func (r *WorkflowRepository) UpsertEdge(ctx context.Context, edge models.TransitionEdge) error {
	query := `
		INSERT INTO transition_edges (workflow_id, status_from, status_to, edge_type, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workflow_id, status_from, status_to) DO UPDATE SET
			edge_type = EXCLUDED.edge_type,
			is_active = EXCLUDED.is_active
	`

	_, err := r.db.ExecContext(ctx, query, edge.WorkflowID, edge.From, edge.To, edge.Type, edge.IsActive)
	if err != nil {
		return r.edgeWriteError("UpsertEdge", edge, err)
	}

	return nil
}

func (r *WorkflowRepository) UpdateEdge(ctx context.Context, edge models.TransitionEdge) error {
	query := `
		UPDATE transition_edges SET edge_type = $4, is_active = $5
		WHERE workflow_id = $1 AND status_from = $2 AND status_to = $3
	`

	result, err := r.db.ExecContext(ctx, query, edge.WorkflowID, edge.From, edge.To, edge.Type, edge.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update edge: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.NewEdgeError("UpdateEdge", edge.WorkflowID, int(edge.From), int(edge.To), persistence.ErrEdgeNotFound)
	}

	return nil
}

// edgeWriteError maps a foreign key violation on workflow_id to ErrWorkflowNotFound.
func (r *WorkflowRepository) edgeWriteError(op string, edge models.TransitionEdge, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return persistence.NewEdgeError(op, edge.WorkflowID, int(edge.From), int(edge.To), persistence.ErrWorkflowNotFound)
	}

	return fmt.Errorf("failed to write edge: %w", err)
}

func scanWorkflow(scanner rowScanner) (*models.Workflow, error) {
	var (
		workflow  models.Workflow
		terminals []int64
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Namespace,
		&workflow.EntryStatus,
		pq.Array(&terminals),
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, code := range terminals {
		workflow.TerminalStatuses = append(workflow.TerminalStatuses, models.StatusCode(code))
	}

	return &workflow, nil
}

func statusesToInts(statuses []models.StatusCode) []int64 {
	ints := make([]int64, 0, len(statuses))
	for _, status := range statuses {
		ints = append(ints, int64(status))
	}

	return ints
}
