package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lendstate/lendstate/pkg/cmd"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/services"
	"github.com/lendstate/lendstate/pkg/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *cmd.App {
	t.Helper()

	ctx := t.Context()

	app, err := cmd.NewApp(ctx, cmd.AppConfig{
		ServiceName:        "lendstate-retrofix-test",
		DatabaseURL:        t.TempDir(),
		EventBus:           "gochannel",
		VerificationConfig: filepath.Join("..", "..", "configs", "verification.yaml"),
		WorkflowSeed:       filepath.Join("..", "..", "configs", "workflows.yaml"),
		HashKey:            "hash-key",
		OTPSecret:          "otp-secret",
	}, slog.Default())
	require.NoError(t, err)

	t.Cleanup(func() { _ = app.Close(ctx) })

	return app
}

func requestDeletion(t *testing.T, app *cmd.App, id string) {
	t.Helper()

	_, err := app.Machine.Create(t.Context(), models.EntityKindCustomer, "customer_deletion", id)
	require.NoError(t, err)

	_, err = app.Machine.Transition(t.Context(), statemachine.TransitionRequest{
		EntityID: id,
		ToStatus: models.CustomerDeletionRequested,
		Actor:    "customer",
	})
	require.NoError(t, err)
}

// customerDataServer records the customers it was asked to scrub and answers
// with status.
func customerDataServer(t *testing.T, status int) (*httptest.Server, func() []string) {
	t.Helper()

	var (
		mu   sync.Mutex
		seen []string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anonymizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		mu.Lock()
		seen = append(seen, req.EntityID)
		mu.Unlock()

		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	return server, func() []string {
		mu.Lock()
		defer mu.Unlock()

		return append([]string(nil), seen...)
	}
}

func TestNewAnonymizer_RequiresURL(t *testing.T) {
	_, err := newAnonymizer("", slog.Default())
	require.ErrorIs(t, err, ErrAnonymizerNotConfigured)

	anonymizer, err := newAnonymizer("http://localhost:9/anonymize", slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, anonymizer)
}

func TestHTTPAnonymizer_RejectedIsFinal(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(server.Close)

	anonymizer, err := newAnonymizer(server.URL, slog.Default())
	require.NoError(t, err)

	err = anonymizer.Anonymize(t.Context(), models.Entity{ID: "c-1", WorkflowID: "customer_deletion"})
	require.ErrorIs(t, err, ErrAnonymizerRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPAnonymizer_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	anonymizer, err := newAnonymizer(server.URL, slog.Default())
	require.NoError(t, err)

	err = anonymizer.Anonymize(t.Context(), models.Entity{ID: "c-1", WorkflowID: "customer_deletion"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrofix_RunOnce(t *testing.T) {
	app := setupTestApp(t)

	requestDeletion(t, app, "c-1")
	requestDeletion(t, app, "c-2")

	_, err := app.Machine.Create(t.Context(), models.EntityKindCustomer, "customer_deletion", "c-3")
	require.NoError(t, err)

	server, scrubbed := customerDataServer(t, http.StatusNoContent)

	anonymizer, err := newAnonymizer(server.URL, slog.Default())
	require.NoError(t, err)

	retrofix := newRetrofix(app, anonymizer)

	report, err := retrofix.AnonymizeDeletedCustomers(t.Context(), services.RetrofixOptions{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"c-1", "c-2"}, report.Succeeded)
	assert.Empty(t, report.Failed)
	assert.ElementsMatch(t, []string{"c-1", "c-2"}, scrubbed())

	for _, id := range []string{"c-1", "c-2"} {
		entity, err := app.Persistence.EntityRepository().GetByID(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, models.CustomerDeleted, entity.Status)
	}

	entity, err := app.Persistence.EntityRepository().GetByID(t.Context(), "c-3")
	require.NoError(t, err)
	assert.Equal(t, models.CustomerActive, entity.Status)
}

func TestScheduler(t *testing.T) {
	app := setupTestApp(t)

	requestDeletion(t, app, "c-1")

	failing := services.AnonymizerFunc(func(context.Context, models.Entity) error {
		return errors.New("customer store unavailable")
	})

	_, err := NewScheduler(t.Context(), slog.Default(), newRetrofix(app, failing), "not a cron", services.RetrofixOptions{})
	require.Error(t, err)

	scheduler, err := NewScheduler(t.Context(), slog.Default(), newRetrofix(app, failing), "0 3 * * *", services.RetrofixOptions{})
	require.NoError(t, err)
	assert.Nil(t, scheduler.LastRun())

	scheduler.run(t.Context())

	report := scheduler.LastRun()
	require.NotNil(t, report)
	assert.Empty(t, report.Succeeded)
	assert.Contains(t, report.FailureMessages(), "c-1")

	entity, err := app.Persistence.EntityRepository().GetByID(t.Context(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.CustomerDeletionRequested, entity.Status)
}

func TestRetrofix_RejectedCustomerStaysPending(t *testing.T) {
	app := setupTestApp(t)

	requestDeletion(t, app, "c-1")

	server, scrubbed := customerDataServer(t, http.StatusConflict)

	anonymizer, err := newAnonymizer(server.URL, slog.Default())
	require.NoError(t, err)

	report, err := newRetrofix(app, anonymizer).AnonymizeDeletedCustomers(t.Context(), services.RetrofixOptions{})
	require.NoError(t, err)

	assert.Empty(t, report.Succeeded)
	require.ErrorIs(t, report.Failed["c-1"], ErrAnonymizerRejected)
	assert.Equal(t, []string{"c-1"}, scrubbed())

	entity, err := app.Persistence.EntityRepository().GetByID(t.Context(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.CustomerDeletionRequested, entity.Status)
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	app := setupTestApp(t)

	requestDeletion(t, app, "c-1")

	started := make(chan struct{})
	blocking := services.AnonymizerFunc(func(ctx context.Context, _ models.Entity) error {
		close(started)
		<-ctx.Done()

		return ctx.Err()
	})

	scheduler, err := NewScheduler(t.Context(), slog.Default(), newRetrofix(app, blocking), "0 3 * * *", services.RetrofixOptions{})
	require.NoError(t, err)

	scheduler.Start()

	done := make(chan struct{})

	go func() {
		defer close(done)
		scheduler.run(scheduler.ctx)
	}()

	<-started
	scheduler.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("retrofix run did not return after Stop")
	}

	report := scheduler.LastRun()
	require.NotNil(t, report)
	require.ErrorIs(t, report.Failed["c-1"], context.Canceled)

	entity, err := app.Persistence.EntityRepository().GetByID(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.CustomerDeletionRequested, entity.Status)
}

func TestScheduler_ParentCancellationReachesRuns(t *testing.T) {
	app := setupTestApp(t)

	parent, cancel := context.WithCancel(t.Context())

	scheduler, err := NewScheduler(parent, slog.Default(), newRetrofix(app, nil), "0 3 * * *", services.RetrofixOptions{})
	require.NoError(t, err)

	t.Cleanup(scheduler.Stop)

	require.NoError(t, scheduler.ctx.Err())

	cancel()

	require.ErrorIs(t, scheduler.ctx.Err(), context.Canceled)
}
