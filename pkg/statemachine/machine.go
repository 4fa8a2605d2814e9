// Package statemachine moves entities between status codes along the edges of
// their workflow, gating transitions on preconditions and verification and
// recording every change in the history ledger.
package statemachine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lendstate/lendstate/pkg/eventbus"
	"github.com/lendstate/lendstate/pkg/events"
	"github.com/lendstate/lendstate/pkg/history"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/otelhelper"
	"github.com/lendstate/lendstate/pkg/persistence"
	"github.com/lendstate/lendstate/pkg/statusgraph"
	"github.com/lendstate/lendstate/pkg/verification"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultBatchLimit = 8

// Verifier checks a verification token. *verification.Tracker implements it.
type Verifier interface {
	Validate(ctx context.Context, req verification.ValidateRequest) (*models.VerificationAttempt, error)
}

// Precondition inspects the locked entity before its status changes.
// A non-nil error refuses the transition.
type Precondition func(ctx context.Context, entity models.Entity) error

type TransitionRequest struct {
	EntityID string
	ToStatus models.StatusCode
	Actor    string
	Reason   string

	// ExpectedStatus, when set, must match the locked status.
	ExpectedStatus *models.StatusCode

	// Verification, when set, must validate before the status changes.
	Verification *verification.ValidateRequest

	Precondition Precondition
}

type Result struct {
	EntityID   string
	FromStatus models.StatusCode
	Status     models.StatusCode
	HistoryID  int64
}

type Machine struct {
	entities   persistence.EntityRepository
	graph      *statusgraph.Graph
	history    *history.Store
	verifier   Verifier
	publisher  eventbus.EventPublisher
	clock      clockwork.Clock
	logger     *slog.Logger
	tracer     trace.Tracer
	batchLimit int
}

type Option func(*Machine)

func WithVerifier(verifier Verifier) Option {
	return func(m *Machine) {
		m.verifier = verifier
	}
}

// WithPublisher sends a StatusTransitioned event after every committed transition.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(m *Machine) {
		m.publisher = publisher
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(m *Machine) {
		m.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(m *Machine) {
		m.tracer = tracer
	}
}

// WithBatchLimit caps how many entities a batch transitions at once.
func WithBatchLimit(limit int) Option {
	return func(m *Machine) {
		if limit > 0 {
			m.batchLimit = limit
		}
	}
}

func New(entities persistence.EntityRepository, graph *statusgraph.Graph, historyStore *history.Store, opts ...Option) *Machine {
	m := &Machine{
		entities:   entities,
		graph:      graph,
		history:    historyStore,
		clock:      clockwork.NewRealClock(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("lendstate/statemachine"),
		batchLimit: defaultBatchLimit,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.With("module", "statemachine")

	return m
}

func namespaceOf(kind models.EntityKind) models.Namespace {
	switch kind {
	case models.EntityKindApplication:
		return models.NamespaceApplication
	case models.EntityKindLoan:
		return models.NamespaceLoan
	case models.EntityKindCustomer:
		return models.NamespaceCustomer
	default:
		return ""
	}
}

// Create stores a new entity in the entry status of its workflow. An empty id
// is replaced with a generated one.
func (m *Machine) Create(ctx context.Context, kind models.EntityKind, workflowID, id string) (*models.Entity, error) {
	snapshot, err := m.graph.Load(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if namespaceOf(kind) != snapshot.Workflow.Namespace {
		return nil, fmt.Errorf("%w: %s in %s", ErrWorkflowMismatch, kind, workflowID)
	}

	if id == "" {
		id = uuid.NewString()
	}

	now := m.clock.Now().UTC()
	entity := &models.Entity{
		ID:         id,
		Kind:       kind,
		WorkflowID: workflowID,
		Status:     snapshot.Workflow.EntryStatus,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = m.entities.Create(ctx, entity)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Entity created",
		"entity_id", entity.ID, "kind", kind, "workflow_id", workflowID, "status", entity.Status)

	return entity, nil
}

// Transition moves one entity to req.ToStatus. Under the entity lock it checks
// the expected status, the edge, the precondition and the verification, then
// writes the status and its history record together.
func (m *Machine) Transition(ctx context.Context, req TransitionRequest) (_ *Result, err error) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "statemachine.transition",
		attribute.String(otelhelper.EntityIDKey, req.EntityID),
		attribute.Int(otelhelper.StatusToKey, int(req.ToStatus)),
		attribute.String(otelhelper.ActorKey, req.Actor),
	)
	defer func() {
		if err != nil {
			otelhelper.SetError(span, err)
		}

		span.End()
	}()

	var (
		result  Result
		changed models.Entity
	)

	err = m.entities.WithLock(ctx, req.EntityID, func(ctx context.Context, tx persistence.EntityTx) error {
		entity := tx.Entity()
		from := entity.Status

		span.SetAttributes(
			attribute.String(otelhelper.WorkflowIDKey, entity.WorkflowID),
			attribute.Int(otelhelper.StatusFromKey, int(from)),
		)

		if req.ExpectedStatus != nil && *req.ExpectedStatus != from {
			return &TransitionError{EntityID: entity.ID, From: from, To: req.ToStatus, Err: ErrConcurrentTransitionConflict}
		}

		legal, err := m.graph.IsLegalEdge(ctx, entity.WorkflowID, from, req.ToStatus)
		if err != nil {
			return err
		}

		if !legal {
			return &TransitionError{EntityID: entity.ID, From: from, To: req.ToStatus, Err: ErrIllegalEdge}
		}

		if req.Precondition != nil {
			err = req.Precondition(ctx, *entity)
			if err != nil {
				return &PreconditionError{EntityID: entity.ID, Err: err}
			}
		}

		if req.Verification != nil {
			err = m.verify(ctx, *req.Verification)
			if err != nil {
				return err
			}
		}

		historyID, err := m.history.Append(ctx, tx, from, req.ToStatus, req.Actor, req.Reason)
		if err != nil {
			return err
		}

		err = tx.UpdateStatus(ctx, req.ToStatus, m.clock.Now().UTC())
		if err != nil {
			return err
		}

		result = Result{EntityID: entity.ID, FromStatus: from, Status: req.ToStatus, HistoryID: historyID}
		changed = *entity

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Entity transitioned",
		"entity_id", result.EntityID, "from", result.FromStatus, "to", result.Status,
		"history_id", result.HistoryID, "actor", req.Actor)

	m.publishTransition(ctx, changed, result, req)

	return &result, nil
}

func (m *Machine) verify(ctx context.Context, req verification.ValidateRequest) error {
	if m.verifier == nil {
		return &VerificationRequiredError{Kind: req.ServiceType, Action: req.ActionType, Err: errNoVerifier}
	}

	_, err := m.verifier.Validate(ctx, req)
	if err != nil {
		return &VerificationRequiredError{Kind: req.ServiceType, Action: req.ActionType, Err: err}
	}

	return nil
}

// publishTransition runs after commit; a failed publish is logged and does not undo the transition.
func (m *Machine) publishTransition(ctx context.Context, entity models.Entity, result Result, req TransitionRequest) {
	if m.publisher == nil {
		return
	}

	event := events.StatusTransitioned{
		BaseEvent:  events.NewBaseEvent(events.StatusTransitionedEvent, m.clock.Now()),
		EntityID:   result.EntityID,
		EntityKind: entity.Kind,
		WorkflowID: entity.WorkflowID,
		FromStatus: result.FromStatus,
		ToStatus:   result.Status,
		HistoryID:  result.HistoryID,
		ChangedBy:  req.Actor,
		Reason:     req.Reason,
	}

	err := m.publisher.Publish(ctx, result.EntityID, event)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to publish status transition",
			"entity_id", result.EntityID, "history_id", result.HistoryID, "error", err)
	}
}

// AllowedTransitions lists the active edges out of the entity's current status.
func (m *Machine) AllowedTransitions(ctx context.Context, entityID string) ([]models.TransitionEdge, error) {
	entity, err := m.entities.GetByID(ctx, entityID)
	if err != nil {
		return nil, err
	}

	snapshot, err := m.graph.Load(ctx, entity.WorkflowID)
	if err != nil {
		return nil, err
	}

	return snapshot.AllowedTransitions(entity.Status), nil
}

// IsTerminal reports whether the entity sits in a terminal status of its
// workflow with no active edge leading out of it.
func (m *Machine) IsTerminal(ctx context.Context, entityID string) (bool, error) {
	entity, err := m.entities.GetByID(ctx, entityID)
	if err != nil {
		return false, err
	}

	snapshot, err := m.graph.Load(ctx, entity.WorkflowID)
	if err != nil {
		return false, err
	}

	return snapshot.Workflow.IsTerminal(entity.Status) && len(snapshot.AllowedTransitions(entity.Status)) == 0, nil
}
