/*
engine.go - Monthly reconciliation of punches into the daily ledger

PURPOSE:
  For every (active employee, calendar day) cell of a month, decide the
  day's status and pay figures and upsert the ledger record.

CELL POLICY (strict priority order):
  1. Existing record with source MANUAL -> skip, no write
  2. Weekly-off day and no punch        -> WEEKLY_OFF, 1 day, dailyRate
  3. No punch                           -> ABSENT, 0 days, 0
  4. Punch                              -> PRESENT_{OVERTIME,COMPLETE,INCOMPLETE}
                                           by worked vs shift minutes;
                                           1 day, dailyRate

  A punch on the weekly-off day is treated like any other worked day.
  Only manual edits prorate; biometric days credit the full daily rate.
  A missing punch after a worked day is ABSENT; shifts are not carried over.

UNIT OF WORK:
  The whole month runs inside TxStore.WithTx. Any error rolls back every
  write of the batch. A Run row is saved outside the transaction before and
  after, so failed batches stay visible.

IDEMPOTENCE:
  Cells are a pure function of (employee, day, punch, rate). Existing IDs are
  reused and biometric records carry no write timestamp, so re-running the
  same input leaves identical records.

KNOWN RACE:
  The MANUAL check happens when the engine reads the record. A manual edit
  that lands between that read and the upsert, on a store without row
  locks, is overwritten. Last writer wins.

SEE ALSO:
  - normalizer.go: Builds the PunchSet
  - calculator.go: Rate and threshold rules
  - manual.go: The MANUAL writer
*/
package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// RECONCILER
// =============================================================================

type Reconciler struct {
	Store     TxStore
	WeeklyOff generic.WeeklyOff
	Logger    *slog.Logger

	// Overridable for tests.
	Now   func() time.Time
	NewID func() string
}

func NewReconciler(store TxStore, weeklyOff generic.WeeklyOff, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		Store:     store,
		WeeklyOff: weeklyOff,
		Logger:    logger,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

// BatchResult summarizes one Reconcile call.
type BatchResult struct {
	RunID         RunID
	Month         string
	Employees     int
	Written       int
	SkippedManual int
	ByStatus      map[Status]int
}

func (r BatchResult) String() string {
	return fmt.Sprintf("%s: %d employees, %d records written, %d manual records kept",
		r.Month, r.Employees, r.Written, r.SkippedManual)
}

// Reconcile runs one batch for month. Either every cell is written or none.
func (r *Reconciler) Reconcile(ctx context.Context, month generic.Month, punches *PunchSet, trigger Trigger) (BatchResult, error) {
	result := BatchResult{
		RunID:    RunID(r.NewID()),
		Month:    month.String(),
		ByStatus: make(map[Status]int),
	}

	run := Run{
		ID:        result.RunID,
		Month:     result.Month,
		Trigger:   trigger,
		Status:    RunRunning,
		StartedAt: r.Now().UTC(),
	}
	if err := r.Store.SaveRun(ctx, run); err != nil {
		return result, fmt.Errorf("save run: %w", err)
	}

	err := r.Store.WithTx(ctx, func(tx Store) error {
		employees, err := tx.ListActiveEmployees(ctx)
		if err != nil {
			return fmt.Errorf("list active employees: %w", err)
		}
		for _, emp := range employees {
			if strings.TrimSpace(emp.Code) == "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.reconcileEmployee(ctx, tx, emp, month, punches, &result); err != nil {
				return fmt.Errorf("employee %s: %w", emp.ID, err)
			}
			result.Employees++
		}
		return nil
	})

	completed := r.Now().UTC()
	run.CompletedAt = &completed
	run.Employees = result.Employees
	run.Written = result.Written
	run.SkippedManual = result.SkippedManual
	run.Status = RunCompleted
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		run.Written = 0
	}
	if saveErr := r.Store.SaveRun(ctx, run); saveErr != nil {
		r.Logger.Error("failed to save run", "run_id", run.ID, "error", saveErr)
	}

	if err != nil {
		r.Logger.Error("reconciliation failed", "run_id", run.ID, "month", run.Month, "error", err)
		return result, err
	}

	r.Logger.Info("reconciliation completed",
		"run_id", run.ID,
		"month", run.Month,
		"trigger", trigger,
		"punches", punches.Len(),
		"employees", result.Employees,
		"written", result.Written,
		"skipped_manual", result.SkippedManual,
	)
	return result, nil
}

func (r *Reconciler) reconcileEmployee(ctx context.Context, tx Store, emp Employee, month generic.Month, punches *PunchSet, result *BatchResult) error {
	code := strings.TrimSpace(emp.Code)
	dailyRate := MonthlyDailyRate(emp.MonthlySalary, month)

	for _, day := range month.Days() {
		existing, err := tx.GetRecordByKey(ctx, emp.ID, day)
		if err != nil {
			return fmt.Errorf("load %s: %w", day, err)
		}
		if existing != nil && existing.Source == SourceManual {
			result.SkippedManual++
			continue
		}

		var punch *Punch
		if p, ok := punches.Lookup(code, day); ok {
			punch = &p
		}

		rec := EvaluateDay(emp, day, punch, dailyRate, r.WeeklyOff)
		if existing != nil {
			rec.ID = existing.ID
		} else {
			rec.ID = RecordID(r.NewID())
		}

		if err := tx.UpsertRecord(ctx, rec); err != nil {
			return fmt.Errorf("upsert %s: %w", day, err)
		}
		result.Written++
		result.ByStatus[rec.Status]++
	}
	return nil
}

// =============================================================================
// CELL DECISION
// =============================================================================

// EvaluateDay decides one biometric ledger cell. It does not see existing
// records; the MANUAL skip is the caller's concern. The returned record has
// no ID.
func EvaluateDay(emp Employee, day generic.Date, punch *Punch, dailyRate decimal.Decimal, weeklyOff generic.WeeklyOff) DailyRecord {
	rec := DailyRecord{
		EmployeeID:     emp.ID,
		EmployeeCode:   strings.TrimSpace(emp.Code),
		Date:           day,
		Source:         SourceBiometric,
		SalaryDayCount: decimal.Zero,
		DaySalary:      decimal.Zero,
	}

	switch {
	case punch == nil && weeklyOff.IsWeeklyOff(day):
		rec.Status = StatusWeeklyOff
		rec.SalaryDayCount = decimal.NewFromInt(1)
		rec.DaySalary = dailyRate

	case punch == nil:
		rec.Status = StatusAbsent

	default:
		in := punch.In
		out := generic.ApplyOvernightCorrection(in, punch.Out)
		shift := emp.ShiftMinutes()
		work := generic.MinutesBetween(in, out)

		rec.Status = ClassifyWork(work, shift)
		rec.WorkMinutes = work
		rec.OvertimeMinutes = OvertimeMinutes(work, shift)
		rec.SalaryDayCount = decimal.NewFromInt(1)
		rec.DaySalary = dailyRate
		rec.InAt = &in
		rec.OutAt = &out
	}
	return rec
}
