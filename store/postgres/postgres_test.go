package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/store/postgres"
)

// These tests need a disposable database:
//
//	TEST_DATABASE_URL=postgres://localhost:5432/attendance_test?sslmode=disable go test ./store/postgres/
func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := postgres.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedEmployee(t *testing.T, s *postgres.Store) attendance.Employee {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	emp := attendance.Employee{
		ID:              attendance.EmployeeID(uuid.NewString()),
		Name:            "Postgres Test",
		Code:            "PG-" + uuid.NewString()[:8],
		Active:          true,
		ShiftStart:      generic.ClockTime{Hour: 9},
		ShiftEnd:        generic.ClockTime{Hour: 17},
		DutyHoursPerDay: 8,
		MonthlySalary:   decimal.NewFromInt(31000),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, s.SaveEmployee(context.Background(), emp))
	t.Cleanup(func() {
		off := emp
		off.Active = false
		s.SaveEmployee(context.Background(), off)
	})
	return emp
}

func TestPostgres_ActiveCodeUnique(t *testing.T) {
	s := newStore(t)
	emp := seedEmployee(t, s)

	dup := emp
	dup.ID = attendance.EmployeeID(uuid.NewString())
	err := s.SaveEmployee(context.Background(), dup)
	assert.ErrorIs(t, err, attendance.ErrDuplicateEmployeeCode)
}

func TestPostgres_ReconcileAndSummarize(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	emp := seedEmployee(t, s)
	month := generic.Month{Year: 2024, Month: time.March}

	set, err := attendance.NormalizeRows([]attendance.VendorRow{
		{Empcode: attendance.Code(emp.Code), DateString: "04/03/2024", INTime: "09:00", OUTTime: "18:00"},
	})
	require.NoError(t, err)

	r := attendance.NewReconciler(s, generic.DefaultWeeklyOff, nil)
	_, err = r.Reconcile(ctx, month, set, attendance.TriggerUpload)
	require.NoError(t, err)

	records, err := s.FindRecords(ctx, emp.ID, month.Period())
	require.NoError(t, err)
	require.Len(t, records, 31)
	t.Cleanup(func() {
		for _, rec := range records {
			s.DeleteRecord(context.Background(), rec.ID)
		}
	})
	assert.Equal(t, attendance.StatusPresentOvertime, records[3].Status)
	assert.Equal(t, "1000.00", records[3].DaySalary.StringFixed(2))

	// Re-running keeps every id
	_, err = r.Reconcile(ctx, month, set, attendance.TriggerUpload)
	require.NoError(t, err)
	again, err := s.FindRecords(ctx, emp.ID, month.Period())
	require.NoError(t, err)
	for i := range records {
		assert.Equal(t, records[i].ID, again[i].ID)
	}

	totals, err := s.AggregateByEmployee(ctx, month.Period())
	require.NoError(t, err)
	var mine *attendance.LedgerTotals
	for i := range totals {
		if totals[i].EmployeeID == emp.ID {
			mine = &totals[i]
		}
	}
	require.NotNil(t, mine)
	want := attendance.TotalsOf(records)[0]
	assert.Equal(t, want.Present, mine.Present)
	assert.Equal(t, want.Absent, mine.Absent)
	assert.Equal(t, 60, mine.OvertimeMinutes)
	assert.True(t, want.TotalSalary.Equal(mine.TotalSalary))
}

func TestPostgres_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	emp := seedEmployee(t, s)
	day := generic.NewDate(2024, time.March, 5)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx attendance.Store) error {
		rec := attendance.EvaluateDay(emp, day, nil, decimal.Zero, generic.DefaultWeeklyOff)
		rec.ID = attendance.RecordID(uuid.NewString())
		require.NoError(t, tx.UpsertRecord(ctx, rec))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetRecordByKey(ctx, emp.ID, day)
	require.NoError(t, err)
	assert.Nil(t, got)
}
