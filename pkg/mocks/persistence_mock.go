package mocks

import (
	"context"
	"time"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockEntityRepository is a mock implementation of persistence.EntityRepository interface.
type MockEntityRepository struct {
	mock.Mock
}

func (m *MockEntityRepository) Create(ctx context.Context, entity *models.Entity) error {
	args := m.Called(ctx, entity)

	return args.Error(0)
}

func (m *MockEntityRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Entity), args.Error(1)
}

func (m *MockEntityRepository) ListByStatus(ctx context.Context, status models.StatusCode, limit int) ([]*models.Entity, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Entity), args.Error(1)
}

func (m *MockEntityRepository) WithLock(ctx context.Context, id string, fn func(ctx context.Context, tx persistence.EntityTx) error) error {
	args := m.Called(ctx, id, fn)

	return args.Error(0)
}

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Edges(ctx context.Context, workflowID string) ([]models.TransitionEdge, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.TransitionEdge), args.Error(1)
}

func (m *MockWorkflowRepository) InsertEdge(ctx context.Context, edge models.TransitionEdge) error {
	args := m.Called(ctx, edge)

	return args.Error(0)
}

func (m *MockWorkflowRepository) UpsertEdge(ctx context.Context, edge models.TransitionEdge) error {
	args := m.Called(ctx, edge)

	return args.Error(0)
}

func (m *MockWorkflowRepository) UpdateEdge(ctx context.Context, edge models.TransitionEdge) error {
	args := m.Called(ctx, edge)

	return args.Error(0)
}

// MockHistoryRepository is a mock implementation of persistence.HistoryRepository interface.
type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) ListByEntity(ctx context.Context, entityID string, afterID int64, limit int) ([]*models.TransitionHistoryRecord, error) {
	args := m.Called(ctx, entityID, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.TransitionHistoryRecord), args.Error(1)
}

// MockVerificationRepository is a mock implementation of persistence.VerificationRepository interface.
type MockVerificationRepository struct {
	mock.Mock
}

func (m *MockVerificationRepository) Latest(ctx context.Context, key models.AttemptKey) (*models.VerificationAttempt, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.VerificationAttempt), args.Error(1)
}

func (m *MockVerificationRepository) CountIssuedSince(ctx context.Context, key models.AttemptKey, since time.Time) (int, error) {
	args := m.Called(ctx, key, since)

	return args.Int(0), args.Error(1)
}

func (m *MockVerificationRepository) Create(ctx context.Context, attempt *models.VerificationAttempt) error {
	args := m.Called(ctx, attempt)

	return args.Error(0)
}

func (m *MockVerificationRepository) Update(ctx context.Context, attempt *models.VerificationAttempt) error {
	args := m.Called(ctx, attempt)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) EntityRepository() persistence.EntityRepository {
	args := m.Called()

	return args.Get(0).(persistence.EntityRepository)
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	args := m.Called()

	return args.Get(0).(persistence.WorkflowRepository)
}

func (m *MockPersistence) HistoryRepository() persistence.HistoryRepository {
	args := m.Called()

	return args.Get(0).(persistence.HistoryRepository)
}

func (m *MockPersistence) VerificationRepository() persistence.VerificationRepository {
	args := m.Called()

	return args.Get(0).(persistence.VerificationRepository)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
