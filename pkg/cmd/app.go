// Package cmd wires stores, the event bus and the domain services for the command line applications.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/lendstate/lendstate/pkg/config"
	"github.com/lendstate/lendstate/pkg/eventbus"
	"github.com/lendstate/lendstate/pkg/history"
	"github.com/lendstate/lendstate/pkg/persistence"
	"github.com/lendstate/lendstate/pkg/statemachine"
	"github.com/lendstate/lendstate/pkg/statusgraph"
	"github.com/lendstate/lendstate/pkg/verification"
	"go.opentelemetry.io/otel/trace"
)

type AppConfig struct {
	ServiceName        string
	DatabaseURL        string
	RedisURL           string
	EventBus           string
	KafkaBrokers       string
	VerificationConfig string
	WorkflowSeed       string
	HashKey            string
	OTPSecret          string
	BatchLimit         int
	// Tracer is optional. Spans are dropped when it is nil.
	Tracer trace.Tracer
}

// App holds the long lived components shared by the lendstate commands.
type App struct {
	Clock       clockwork.Clock
	Logger      *slog.Logger
	Persistence persistence.Persistence
	EventBus    eventbus.EventBus
	Graph       *statusgraph.Graph
	History     *history.Store
	Tracker     *verification.Tracker
	Machine     *statemachine.Machine

	closeVerification func() error
}

// NewApp opens the stores, applies the workflow seed when one is configured
// and builds the services on top.
func NewApp(ctx context.Context, cfg AppConfig, logger *slog.Logger) (*App, error) {
	if cfg.HashKey == "" || cfg.OTPSecret == "" {
		return nil, errors.New("hash key and otp secret are required")
	}

	verificationConfig, err := config.LoadVerificationConfig(cfg.VerificationConfig)
	if err != nil {
		return nil, err
	}

	var seeds *config.SeedFile
	if cfg.WorkflowSeed != "" {
		seeds, err = config.LoadWorkflowSeeds(cfg.WorkflowSeed)
		if err != nil {
			return nil, err
		}
	}

	store, err := NewPersistence(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	verificationRepo, err := NewVerificationRepository(ctx, store, cfg.RedisURL)
	if err != nil {
		_ = store.Close(ctx)

		return nil, err
	}

	bus, err := NewEventBus(cfg.EventBus, cfg.KafkaBrokers, cfg.ServiceName, logger)
	if err != nil {
		_ = store.Close(ctx)

		return nil, err
	}

	clock := clockwork.NewRealClock()
	graph := statusgraph.New(store.WorkflowRepository(), logger)

	if seeds != nil {
		err = seeds.Apply(ctx, graph)
		if err != nil {
			_ = bus.Close()
			_ = store.Close(ctx)

			return nil, err
		}
	}

	trackerOpts := []verification.Option{verification.WithClock(clock), verification.WithLogger(logger)}
	machineOpts := []statemachine.Option{
		statemachine.WithPublisher(bus),
		statemachine.WithClock(clock),
		statemachine.WithLogger(logger),
		statemachine.WithBatchLimit(cfg.BatchLimit),
	}

	if cfg.Tracer != nil {
		trackerOpts = append(trackerOpts, verification.WithTracer(cfg.Tracer))
		machineOpts = append(machineOpts, statemachine.WithTracer(cfg.Tracer))
	}

	tracker, err := verification.New(verificationRepo, verificationConfig, []byte(cfg.HashKey), []byte(cfg.OTPSecret),
		trackerOpts...)
	if err != nil {
		_ = bus.Close()
		_ = store.Close(ctx)

		return nil, err
	}

	historyStore := history.New(store.HistoryRepository(), clock)

	machine := statemachine.New(store.EntityRepository(), graph, historyStore,
		append(machineOpts, statemachine.WithVerifier(tracker))...)

	return &App{
		Clock:       clock,
		Logger:      logger,
		Persistence: store,
		EventBus:    bus,
		Graph:       graph,
		History:     historyStore,
		Tracker:     tracker,
		Machine:     machine,

		closeVerification: closerOf(verificationRepo),
	}, nil
}

// closerOf returns the Close method of repo when it owns a connection of its own.
func closerOf(repo persistence.VerificationRepository) func() error {
	if closer, ok := repo.(interface{ Close() error }); ok {
		return closer.Close
	}

	return func() error { return nil }
}

func (a *App) Close(ctx context.Context) error {
	busErr := a.EventBus.Close()

	err := a.closeVerification()
	if err != nil {
		a.Logger.ErrorContext(ctx, "Failed to close verification store", "error", err)
	}

	storeErr := a.Persistence.Close(ctx)
	if storeErr != nil {
		return fmt.Errorf("failed to close persistence: %w", storeErr)
	}

	return busErr
}
