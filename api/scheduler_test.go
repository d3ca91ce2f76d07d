package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

type recordingSyncer struct {
	mu     sync.Mutex
	months []generic.Month
	failOn map[generic.Month]bool
}

func (r *recordingSyncer) SyncMonth(_ context.Context, month generic.Month) (attendance.BatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.months = append(r.months, month)
	if r.failOn[month] {
		return attendance.BatchResult{}, errors.New("vendor down")
	}
	return attendance.BatchResult{Month: month.String()}, nil
}

func (r *recordingSyncer) calls() []generic.Month {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]generic.Month(nil), r.months...)
}

func newTestScheduler(syncer MonthSyncer) *SyncScheduler {
	return NewSyncScheduler(syncer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDueMonths(t *testing.T) {
	s := newTestScheduler(&recordingSyncer{})
	jan := generic.Month{Year: 2024, Month: time.January}
	dec := generic.Month{Year: 2023, Month: time.December}

	tests := []struct {
		name string
		now  time.Time
		want []generic.Month
	}{
		{"first day covers previous month", time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC), []generic.Month{dec, jan}},
		{"last settle day", time.Date(2024, 1, 3, 23, 0, 0, 0, time.UTC), []generic.Month{dec, jan}},
		{"after settling", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), []generic.Month{jan}},
		{"month end", time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC), []generic.Month{jan}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.DueMonths(tt.now))
		})
	}

	s.SettleDays = 0
	assert.Equal(t, []generic.Month{jan}, s.DueMonths(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSyncDue_ContinuesPastFailures(t *testing.T) {
	feb := generic.Month{Year: 2024, Month: time.February}
	mar := generic.Month{Year: 2024, Month: time.March}
	syncer := &recordingSyncer{failOn: map[generic.Month]bool{feb: true}}

	s := newTestScheduler(syncer)
	s.Now = func() time.Time { return time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC) }

	// WHEN: The previous month fails
	s.SyncDue()

	// THEN: The current month is still attempted
	assert.Equal(t, []generic.Month{feb, mar}, syncer.calls())
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	syncer := &recordingSyncer{}
	s := newTestScheduler(syncer)
	s.Now = func() time.Time { return time.Date(2024, 3, 20, 6, 0, 0, 0, time.UTC) }
	s.Interval = time.Hour

	s.Start()
	s.Start() // second start is a no-op
	require.Eventually(t, func() bool { return len(syncer.calls()) == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	assert.Equal(t, []generic.Month{{Year: 2024, Month: time.March}}, syncer.calls())
}

func TestScheduler_DisabledInterval(t *testing.T) {
	syncer := &recordingSyncer{}
	s := newTestScheduler(syncer)
	s.Interval = 0

	s.Start()
	s.Stop()
	assert.Empty(t, syncer.calls())
}
