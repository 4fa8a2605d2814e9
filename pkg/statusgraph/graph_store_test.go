package statusgraph_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/lendstate/lendstate/pkg/mocks"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
	"github.com/lendstate/lendstate/pkg/statusgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGraph_Load_StoreFailures(t *testing.T) {
	repo := &mocks.MockWorkflowRepository{}
	repo.On("GetWorkflow", mock.Anything, "gone").
		Return(nil, persistence.NewWorkflowError("GetWorkflow", "gone", persistence.ErrWorkflowNotFound))
	repo.On("GetWorkflow", mock.Anything, "flaky").
		Return(nil, errors.New("connection reset"))

	graph := statusgraph.New(repo, slog.Default())

	_, err := graph.Load(t.Context(), "gone")
	require.ErrorIs(t, err, statusgraph.ErrUnknownWorkflow)

	_, err = graph.Load(t.Context(), "flaky")
	require.Error(t, err)
	assert.NotErrorIs(t, err, statusgraph.ErrUnknownWorkflow)
	assert.Contains(t, err.Error(), "connection reset")

	repo.AssertExpectations(t)
}

func TestGraph_AddEdge_DuplicateFromStore(t *testing.T) {
	edge := models.TransitionEdge{
		WorkflowID: "application",
		From:       models.ApplicationFormCreated,
		To:         models.ApplicationFormPartial,
		Type:       models.EdgeTypeHappy,
		IsActive:   true,
	}

	repo := &mocks.MockWorkflowRepository{}
	repo.On("GetWorkflow", mock.Anything, "application").
		Return(&models.Workflow{ID: "application", Namespace: models.NamespaceApplication}, nil)
	repo.On("InsertEdge", mock.Anything, edge).
		Return(persistence.NewEdgeError("InsertEdge", "application", 100, 105, persistence.ErrEdgeAlreadyExists))

	err := statusgraph.New(repo, slog.Default()).AddEdge(t.Context(), edge)
	require.ErrorIs(t, err, statusgraph.ErrDuplicateEdge)

	repo.AssertExpectations(t)
}

func TestGraph_AddEdge_UnknownWorkflowSkipsInsert(t *testing.T) {
	edge := models.TransitionEdge{
		WorkflowID: "gone",
		From:       models.ApplicationFormCreated,
		To:         models.ApplicationFormPartial,
		Type:       models.EdgeTypeHappy,
	}

	repo := &mocks.MockWorkflowRepository{}
	repo.On("GetWorkflow", mock.Anything, "gone").
		Return(nil, persistence.NewWorkflowError("GetWorkflow", "gone", persistence.ErrWorkflowNotFound))

	err := statusgraph.New(repo, slog.Default()).AddEdge(t.Context(), edge)
	require.ErrorIs(t, err, statusgraph.ErrUnknownWorkflow)

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "InsertEdge", mock.Anything, mock.Anything)
}
