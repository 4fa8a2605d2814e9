// Package main provides the job that completes pending customer deletions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lendstate/lendstate/pkg/cmd"
	"github.com/lendstate/lendstate/pkg/services"
	"github.com/robfig/cron/v3"
)

func newRetrofix(app *cmd.App, anonymizer services.Anonymizer) *services.Retrofix {
	return services.NewRetrofix(
		app.Persistence.EntityRepository(),
		app.Machine,
		anonymizer,
		app.EventBus,
		app.Clock,
		app.Logger,
	)
}

// Scheduler runs the retrofix on a cron schedule. A run still in progress
// makes the next tick skip. Runs use the context given to NewScheduler, which
// Stop cancels.
type Scheduler struct {
	logger   *slog.Logger
	retrofix *services.Retrofix
	opts     services.RetrofixOptions
	cron     *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	lastRun *services.RetrofixReport
}

func NewScheduler(
	ctx context.Context,
	logger *slog.Logger,
	retrofix *services.Retrofix,
	expr string,
	opts services.RetrofixOptions,
) (*Scheduler, error) {
	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("invalid cron expression '%s': %w", expr, err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	s := &Scheduler{
		ctx:      runCtx,
		cancel:   cancel,
		logger:   logger.With("module", "retrofix_scheduler"),
		retrofix: retrofix,
		opts:     opts,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
	}

	entryID, err := s.cron.AddFunc(expr, func() {
		s.run(s.ctx)
	})
	if err != nil {
		cancel()

		return nil, fmt.Errorf("failed to add retrofix job: %w", err)
	}

	s.logger.Info("Scheduled retrofix", "cron", expr, "entry_id", entryID)

	return s, nil
}

func (s *Scheduler) run(ctx context.Context) {
	report, err := s.retrofix.AnonymizeDeletedCustomers(ctx, s.opts)
	if err != nil {
		s.logger.ErrorContext(ctx, "Retrofix run failed", "error", err)

		return
	}

	s.mu.Lock()
	s.lastRun = report
	s.mu.Unlock()
}

// LastRun returns the report of the latest completed run, or nil.
func (s *Scheduler) LastRun() *services.RetrofixReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastRun
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels a running job and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
