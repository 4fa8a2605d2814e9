package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lendstate/lendstate/pkg/events"
	"github.com/lendstate/lendstate/pkg/mocks"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/services"
	"github.com/lendstate/lendstate/pkg/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingAnonymizer struct {
	mu   sync.Mutex
	seen []string
	fail map[string]error
}

func (a *recordingAnonymizer) Anonymize(_ context.Context, customer models.Entity) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seen = append(a.seen, customer.ID)

	return a.fail[customer.ID]
}

func TestRetrofix_ContinuesPastFailedCustomer(t *testing.T) {
	f := newFixture(t)

	for _, id := range []string{"c-1", "c-2", "c-3"} {
		f.pendingCustomer(t, id)
	}

	anonymizer := &recordingAnonymizer{fail: map[string]error{"c-2": errors.New("crm unavailable")}}

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.AnythingOfType("events.StatusTransitioned")).Return(nil).Maybe()
	bus.On("Publish", mock.Anything, "retrofix", mock.MatchedBy(func(event events.RetrofixCompleted) bool {
		return len(event.Succeeded) == 2 && event.Failed["c-2"] != ""
	})).Return(nil).Once()

	retrofix := services.NewRetrofix(f.store.EntityRepository(), f.machine, anonymizer, bus, f.clock, f.logger)

	report, err := retrofix.AnonymizeDeletedCustomers(t.Context(), services.RetrofixOptions{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"c-1", "c-3"}, report.Succeeded)
	require.Len(t, report.Failed, 1)
	require.ErrorIs(t, report.Failed["c-2"], statemachine.ErrPreconditionFailed)
	assert.ElementsMatch(t, []string{"c-1", "c-2", "c-3"}, anonymizer.seen)

	assert.Equal(t, models.CustomerDeleted, f.status(t, "c-1"))
	assert.Equal(t, models.CustomerDeletionRequested, f.status(t, "c-2"))
	assert.Equal(t, models.CustomerDeleted, f.status(t, "c-3"))

	records, err := f.history.Collect(t.Context(), "c-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, services.RetrofixActor, records[1].ChangedBy)
	assert.Equal(t, services.RetrofixReason, records[1].ChangeReason)

	bus.AssertExpectations(t)
}

func TestRetrofix_ExplicitIDs(t *testing.T) {
	f := newFixture(t)

	f.pendingCustomer(t, "c-1")
	f.pendingCustomer(t, "c-2")

	_, err := f.machine.Create(t.Context(), models.EntityKindCustomer, "customer_deletion", "c-active")
	require.NoError(t, err)

	anonymizer := &recordingAnonymizer{}
	retrofix := services.NewRetrofix(f.store.EntityRepository(), f.machine, anonymizer, nil, f.clock, f.logger)

	report, err := retrofix.AnonymizeDeletedCustomers(t.Context(), services.RetrofixOptions{
		EntityIDs: []string{"c-2", "c-active", "c-missing"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"c-2"}, report.Succeeded)
	require.Len(t, report.Failed, 2)
	require.ErrorIs(t, report.Failed["c-active"], statemachine.ErrConcurrentTransitionConflict)
	assert.Error(t, report.Failed["c-missing"])

	// Customers outside the list are untouched and the anonymizer never saw the active one.
	assert.Equal(t, models.CustomerDeletionRequested, f.status(t, "c-1"))
	assert.Equal(t, []string{"c-2"}, anonymizer.seen)
}

func TestRetrofix_NothingPending(t *testing.T) {
	f := newFixture(t)

	retrofix := services.NewRetrofix(f.store.EntityRepository(), f.machine,
		services.AnonymizerFunc(func(context.Context, models.Entity) error { return nil }), nil, f.clock, f.logger)

	report, err := retrofix.AnonymizeDeletedCustomers(t.Context(), services.RetrofixOptions{})
	require.NoError(t, err)

	assert.Empty(t, report.Succeeded)
	assert.Empty(t, report.Failed)
	assert.Empty(t, report.FailureMessages())
}

func TestRetrofix_RepeatedIDsProcessedOnce(t *testing.T) {
	f := newFixture(t)

	f.pendingCustomer(t, "c-1")
	f.pendingCustomer(t, "c-2")

	anonymizer := &recordingAnonymizer{}
	retrofix := services.NewRetrofix(f.store.EntityRepository(), f.machine, anonymizer, nil, f.clock, f.logger)

	opts := services.RetrofixOptions{EntityIDs: []string{"c-1", "c-2", "c-1", "", "c-2"}}

	candidates, err := retrofix.Candidates(t.Context(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-1", "c-2"}, candidates)

	report, err := retrofix.AnonymizeDeletedCustomers(t.Context(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"c-1", "c-2"}, report.Succeeded)
	assert.Empty(t, report.Failed)
	assert.ElementsMatch(t, []string{"c-1", "c-2"}, anonymizer.seen)
}

func TestRetrofix_CandidatesLeavesCustomersPending(t *testing.T) {
	f := newFixture(t)

	f.pendingCustomer(t, "c-1")
	f.pendingCustomer(t, "c-2")

	anonymizer := &recordingAnonymizer{}
	retrofix := services.NewRetrofix(f.store.EntityRepository(), f.machine, anonymizer, nil, f.clock, f.logger)

	candidates, err := retrofix.Candidates(t.Context(), services.RetrofixOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c-1", "c-2"}, candidates)

	assert.Empty(t, anonymizer.seen)
	assert.Equal(t, models.CustomerDeletionRequested, f.status(t, "c-1"))
	assert.Equal(t, models.CustomerDeletionRequested, f.status(t, "c-2"))
}
