/*
scheduler.go - Periodic audit scheduler

PURPOSE:
  Runs the data audit over a fresh snapshot on a fixed interval so data
  problems (orphan allocations, unbalanced transactions, overlapping rates)
  are noticed without anyone opening the audit page.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each run is recorded as an AuditRun (running -> completed | failed)
  - Completed and failed runs are published through events.Publisher
  - Manual runs (POST /api/audit/run) go through the same code path

CONFIGURATION:
  - Interval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAuditScheduler(store, publisher, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunAudit endpoint (manual audit)
  - engine/audit.go: the checks themselves
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/condo-ledger/engine"
	"github.com/warp/condo-ledger/events"
)

// AuditScheduler runs the audit periodically and on demand.
type AuditScheduler struct {
	Store     engine.Store
	Publisher events.Publisher
	Logger    *slog.Logger
	Interval  time.Duration
	Enabled   bool
	FirstYear int

	// Clock returns "now"; tests pin it.
	Clock func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAuditScheduler creates a new scheduler.
func NewAuditScheduler(store engine.Store, publisher events.Publisher, logger *slog.Logger) *AuditScheduler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditScheduler{
		Store:     store,
		Publisher: publisher,
		Logger:    logger.With("component", "scheduler"),
		Interval:  time.Hour,
		Enabled:   true,
		Clock:     time.Now,
	}
}

// Start begins the scheduler.
func (s *AuditScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("Scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("Scheduler started", "interval", s.Interval)
}

// Stop stops the scheduler and waits for an in-flight run.
func (s *AuditScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("Scheduler stopped")
	}
}

func (s *AuditScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	s.RunNow(ctx, "scheduled", engine.Month{})

	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx, "scheduled", engine.Month{})
		case <-stop:
			return
		}
	}
}

// RunNow audits a fresh snapshot and records the run. A zero asOf means the
// current month. On failure the run has Status=failed and Error set, and
// the result is nil.
func (s *AuditScheduler) RunNow(ctx context.Context, trigger string, asOf engine.Month) (engine.AuditRun, *engine.AuditResult) {
	now := s.now()
	if asOf.IsZero() {
		asOf = engine.MonthOf(now)
	}
	run := engine.AuditRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		AsOf:      asOf,
		Status:    engine.AuditRunning,
		StartedAt: now,
	}
	if err := s.Store.SaveAuditRun(ctx, run); err != nil {
		s.Logger.ErrorContext(ctx, "Failed to save run record", "run_id", run.ID, "error", err)
	}

	result, err := s.audit(ctx, asOf, now)
	finished := s.now()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = engine.AuditFailed
		run.Error = err.Error()
		s.Logger.ErrorContext(ctx, "Audit failed", "run_id", run.ID, "error", err)
	} else {
		run.Status = engine.AuditCompleted
		run.Counts = result.Report.Counts()
		s.Logger.InfoContext(ctx, "Audit completed",
			"run_id", run.ID,
			"trigger", trigger,
			"as_of", asOf.String(),
			"errors", run.Counts.Errors,
			"warnings", run.Counts.Warnings,
			"infos", run.Counts.Infos,
			"duration", finished.Sub(now))
	}

	if err := s.Store.SaveAuditRun(ctx, run); err != nil {
		s.Logger.ErrorContext(ctx, "Failed to update run record", "run_id", run.ID, "error", err)
	}
	if err := s.Publisher.PublishAuditCompleted(ctx, events.NewAuditCompletedEvent(run)); err != nil {
		s.Logger.WarnContext(ctx, "Failed to publish audit event", "run_id", run.ID, "error", err)
	}
	return run, result
}

func (s *AuditScheduler) audit(ctx context.Context, asOf engine.Month, now time.Time) (*engine.AuditResult, error) {
	ds, err := s.Store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	result := engine.AuditOptions{AsOf: asOf, Now: now, FirstYear: s.FirstYear}.Run(ds)
	return &result, nil
}

// NextRunTime returns when the next scheduled run will occur, roughly.
func (s *AuditScheduler) NextRunTime() time.Time {
	return s.now().Add(s.Interval)
}

func (s *AuditScheduler) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}
