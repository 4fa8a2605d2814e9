package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lendstate/lendstate/pkg/eventbus"
	"github.com/lendstate/lendstate/pkg/events"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
	"github.com/lendstate/lendstate/pkg/statemachine"
)

const (
	RetrofixActor  = "system"
	RetrofixReason = "retrofix old deletion data"

	defaultRetrofixLimit = 500
)

// Anonymizer scrubs the personal data of a customer. It runs under the
// entity lock, before the customer moves to DELETED.
type Anonymizer interface {
	Anonymize(ctx context.Context, customer models.Entity) error
}

// AnonymizerFunc adapts a function to Anonymizer.
type AnonymizerFunc func(ctx context.Context, customer models.Entity) error

func (f AnonymizerFunc) Anonymize(ctx context.Context, customer models.Entity) error {
	return f(ctx, customer)
}

type RetrofixOptions struct {
	// EntityIDs restricts the run to these customers. Empty selects every
	// customer at DELETION_REQUESTED, up to Limit.
	EntityIDs []string
	Limit     int
}

// RetrofixReport lists the outcome of every selected customer.
type RetrofixReport struct {
	Succeeded  []string         `json:"succeeded"`
	Failed     map[string]error `json:"-"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// FailureMessages renders Failed for logs and events.
func (r *RetrofixReport) FailureMessages() map[string]string {
	messages := make(map[string]string, len(r.Failed))

	for id, err := range r.Failed {
		messages[id] = err.Error()
	}

	return messages
}

// Retrofix anonymizes customers whose deletion was requested but never completed.
type Retrofix struct {
	entities   persistence.EntityRepository
	machine    *statemachine.Machine
	anonymizer Anonymizer
	publisher  eventbus.EventPublisher
	clock      clockwork.Clock
	logger     *slog.Logger
}

func NewRetrofix(
	entities persistence.EntityRepository,
	machine *statemachine.Machine,
	anonymizer Anonymizer,
	publisher eventbus.EventPublisher,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Retrofix {
	return &Retrofix{
		entities:   entities,
		machine:    machine,
		anonymizer: anonymizer,
		publisher:  publisher,
		clock:      clock,
		logger:     logger.With("module", "retrofix"),
	}
}

func (r *Retrofix) selectCustomers(ctx context.Context, opts RetrofixOptions) ([]string, error) {
	if len(opts.EntityIDs) > 0 {
		return uniqueIDs(opts.EntityIDs), nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultRetrofixLimit
	}

	customers, err := r.entities.ListByStatus(ctx, models.CustomerDeletionRequested, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers pending deletion: %w", err)
	}

	ids := make([]string, 0, len(customers))

	for _, customer := range customers {
		if customer.Kind == models.EntityKindCustomer {
			ids = append(ids, customer.ID)
		}
	}

	return ids, nil
}

// uniqueIDs drops repeated and empty ids, keeping the first occurrence order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}

		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	return unique
}

// Candidates returns the customers a run with opts would process, without
// touching them.
func (r *Retrofix) Candidates(ctx context.Context, opts RetrofixOptions) ([]string, error) {
	return r.selectCustomers(ctx, opts)
}

// AnonymizeDeletedCustomers moves each selected customer from
// DELETION_REQUESTED to DELETED once the anonymizer succeeds. A failure is
// logged and reported for its customer and the run continues.
func (r *Retrofix) AnonymizeDeletedCustomers(ctx context.Context, opts RetrofixOptions) (*RetrofixReport, error) {
	report := &RetrofixReport{
		Failed:    make(map[string]error),
		StartedAt: r.clock.Now().UTC(),
	}

	ids, err := r.selectCustomers(ctx, opts)
	if err != nil {
		return nil, err
	}

	expected := models.CustomerDeletionRequested
	requests := make([]statemachine.TransitionRequest, 0, len(ids))

	for _, id := range ids {
		requests = append(requests, statemachine.TransitionRequest{
			EntityID:       id,
			ToStatus:       models.CustomerDeleted,
			Actor:          RetrofixActor,
			Reason:         RetrofixReason,
			ExpectedStatus: &expected,
			Precondition:   r.anonymizer.Anonymize,
		})
	}

	batch := r.machine.TransitionBatch(ctx, requests)

	for _, item := range batch.Items {
		if item.Err != nil {
			report.Failed[item.Request.EntityID] = item.Err

			r.logger.ErrorContext(ctx, "Failed to retrofix customer deletion",
				"entity_id", item.Request.EntityID, "error", item.Err)

			continue
		}

		report.Succeeded = append(report.Succeeded, item.Request.EntityID)
	}

	report.FinishedAt = r.clock.Now().UTC()

	r.logger.InfoContext(ctx, "Retrofix finished",
		"selected", len(ids), "succeeded", len(report.Succeeded), "failed", len(report.Failed))

	r.publishReport(ctx, report)

	return report, nil
}

func (r *Retrofix) publishReport(ctx context.Context, report *RetrofixReport) {
	if r.publisher == nil {
		return
	}

	event := events.RetrofixCompleted{
		BaseEvent: events.NewBaseEvent(events.RetrofixCompletedEvent, report.FinishedAt),
		Succeeded: report.Succeeded,
		Failed:    report.FailureMessages(),
		Duration:  report.FinishedAt.Sub(report.StartedAt),
	}

	err := r.publisher.Publish(ctx, "retrofix", event)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to publish retrofix report", "error", err)
	}
}
