/*
scheduler.go - Periodic biometric sync

PURPOSE:
  Pulls the current month from the biometric vendor on a fixed interval and
  reconciles it, so the ledger follows the devices without an admin
  pressing "fetch".

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on Start
  - During the first SettleDays of a month the previous month is synced
    too, to pick up punches the devices upload late
  - Each sync is an ordinary batch (trigger "schedule"); MANUAL records
    are skipped and failures leave the ledger untouched

USAGE:
  scheduler := NewSyncScheduler(service, logger)
  scheduler.Interval = time.Hour
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: FetchAttendance (manual trigger)
  - attendance/engine.go: Reconciler
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// MonthSyncer reconciles one month from the vendor.
type MonthSyncer interface {
	SyncMonth(ctx context.Context, month generic.Month) (attendance.BatchResult, error)
}

// SyncScheduler handles automated biometric syncs.
type SyncScheduler struct {
	Syncer     MonthSyncer
	Interval   time.Duration
	SettleDays int
	Timeout    time.Duration
	Logger     *slog.Logger
	Now        func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSyncScheduler creates a new scheduler.
func NewSyncScheduler(syncer MonthSyncer, logger *slog.Logger) *SyncScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncScheduler{
		Syncer:     syncer,
		Interval:   time.Hour,
		SettleDays: 3,
		Timeout:    5 * time.Minute,
		Logger:     logger.With("component", "sync_scheduler"),
		Now:        time.Now,
	}
}

// Start begins the scheduler. A non-positive Interval leaves it disabled.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Interval <= 0 {
		s.Logger.Info("scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	s.Logger.Info("scheduler started", "interval", s.Interval.String())
}

// Stop stops the scheduler and waits for an in-flight sync.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("scheduler stopped")
	}
}

func (s *SyncScheduler) run() {
	defer s.wg.Done()

	s.SyncDue()

	for {
		select {
		case <-s.ticker.C:
			s.SyncDue()
		case <-s.stop:
			return
		}
	}
}

// DueMonths lists the months a sync at now should cover, oldest first.
func (s *SyncScheduler) DueMonths(now time.Time) []generic.Month {
	current := generic.MonthOf(generic.DateOf(now))
	if now.Day() > s.SettleDays {
		return []generic.Month{current}
	}
	previous := generic.MonthOf(current.First().AddDays(-1))
	return []generic.Month{previous, current}
}

// SyncDue runs one sync pass. Errors are logged, not returned; the next
// tick retries.
func (s *SyncScheduler) SyncDue() {
	for _, month := range s.DueMonths(s.Now()) {
		ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
		result, err := s.Syncer.SyncMonth(ctx, month)
		cancel()

		if err != nil {
			s.Logger.Error("scheduled sync failed", "month", month.String(), "error", err)
			continue
		}
		s.Logger.Info("scheduled sync completed",
			"month", result.Month,
			"run_id", result.RunID,
			"written", result.Written,
			"skipped_manual", result.SkippedManual,
		)
	}
}
