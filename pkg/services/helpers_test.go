package services_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lendstate/lendstate/pkg/history"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence/file"
	"github.com/lendstate/lendstate/pkg/statemachine"
	"github.com/lendstate/lendstate/pkg/statusgraph"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store   *file.Persistence
	clock   *clockwork.FakeClock
	logger  *slog.Logger
	graph   *statusgraph.Graph
	history *history.Store
	machine *statemachine.Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := file.NewPersistence(t.TempDir())
	clock := clockwork.NewFakeClockAt(start)
	graph := statusgraph.New(store.WorkflowRepository(), logger)
	historyStore := history.New(store.HistoryRepository(), clock)

	err := graph.Seed(t.Context(), &models.Workflow{
		ID:               "customer_deletion",
		Name:             "Customer deletion",
		Namespace:        models.NamespaceCustomer,
		EntryStatus:      models.CustomerActive,
		TerminalStatuses: []models.StatusCode{models.CustomerDeleted},
	}, []models.TransitionEdge{
		{From: models.CustomerActive, To: models.CustomerDeletionRequested, Type: models.EdgeTypeHappy, IsActive: true},
		{From: models.CustomerDeletionRequested, To: models.CustomerDeleted, Type: models.EdgeTypeHappy, IsActive: true},
	})
	require.NoError(t, err)

	return &fixture{
		store:   store,
		clock:   clock,
		logger:  logger,
		graph:   graph,
		history: historyStore,
		machine: statemachine.New(store.EntityRepository(), graph, historyStore,
			statemachine.WithClock(clock), statemachine.WithLogger(logger)),
	}
}

// pendingCustomer creates a customer and requests its deletion.
func (f *fixture) pendingCustomer(t *testing.T, id string) {
	t.Helper()

	_, err := f.machine.Create(t.Context(), models.EntityKindCustomer, "customer_deletion", id)
	require.NoError(t, err)

	_, err = f.machine.Transition(t.Context(), statemachine.TransitionRequest{
		EntityID: id,
		ToStatus: models.CustomerDeletionRequested,
		Actor:    "customer",
		Reason:   "deletion requested in app",
	})
	require.NoError(t, err)
}

func (f *fixture) status(t *testing.T, id string) models.StatusCode {
	t.Helper()

	entity, err := f.store.EntityRepository().GetByID(t.Context(), id)
	require.NoError(t, err)

	return entity.Status
}
