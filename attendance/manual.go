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
// MANUAL EDIT HANDLER
// =============================================================================
// A manual edit recomputes one record from user-supplied timestamps and marks
// it MANUAL, which takes it out of every later reconciliation batch. Unlike
// biometric days, manual days prorate pay by the share of the shift worked.

// ManualEdit is the typed request for overriding one ledger record.
type ManualEdit struct {
	RecordID string
	In       string // ISO-8601 date-time
	Out      string // ISO-8601 date-time
}

type Editor struct {
	Store  Store
	Logger *slog.Logger
	Now    func() time.Time
}

func NewEditor(store Store, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{Store: store, Logger: logger, Now: time.Now}
}

// Apply validates req, recomputes the record and stores it as MANUAL.
// Nothing is written unless every check passes.
func (e *Editor) Apply(ctx context.Context, req ManualEdit) (DailyRecord, error) {
	id := strings.TrimSpace(req.RecordID)
	if _, err := uuid.Parse(id); err != nil {
		return DailyRecord{}, &generic.ValidationError{Field: "record_id", Message: "must be a UUID", Err: err}
	}

	rec, err := e.Store.GetRecord(ctx, RecordID(id))
	if err != nil {
		return DailyRecord{}, fmt.Errorf("load record: %w", err)
	}
	if rec == nil {
		return DailyRecord{}, &generic.NotFoundError{Kind: "attendance record", ID: id}
	}

	if strings.TrimSpace(req.In) == "" || strings.TrimSpace(req.Out) == "" {
		return DailyRecord{}, &generic.ValidationError{Field: "in_datetime/out_datetime", Message: "both timestamps are required"}
	}
	in, err := generic.ParseTimestamp(req.In)
	if err != nil {
		return DailyRecord{}, &generic.ValidationError{Field: "in_datetime", Message: "invalid datetime format", Err: err}
	}
	out, err := generic.ParseTimestamp(req.Out)
	if err != nil {
		return DailyRecord{}, &generic.ValidationError{Field: "out_datetime", Message: "invalid datetime format", Err: err}
	}

	emp, err := e.Store.GetEmployee(ctx, rec.EmployeeID)
	if err != nil {
		return DailyRecord{}, fmt.Errorf("load employee: %w", err)
	}
	if emp == nil {
		return DailyRecord{}, &generic.NotFoundError{Kind: "employee", ID: string(rec.EmployeeID)}
	}

	updated := RecomputeManual(*rec, *emp, in, out, e.Now().UTC())
	if err := e.Store.UpsertRecord(ctx, updated); err != nil {
		return DailyRecord{}, fmt.Errorf("save record: %w", err)
	}

	e.Logger.Info("attendance edited manually",
		"record_id", updated.ID,
		"employee_id", updated.EmployeeID,
		"date", updated.Date.String(),
		"status", updated.Status,
		"work_minutes", updated.WorkMinutes,
	)
	return updated, nil
}

// RecomputeManual derives a MANUAL record from in/out timestamps.
// An out at or before in is read as the next day.
func RecomputeManual(rec DailyRecord, emp Employee, in, out time.Time, now time.Time) DailyRecord {
	if !out.After(in) {
		out = out.Add(24 * time.Hour)
	}

	shift := emp.ShiftMinutes()
	work := int(out.Sub(in) / time.Minute)
	dailyRate := MonthlyDailyRate(emp.MonthlySalary, generic.MonthOf(rec.Date))

	status := ClassifyWork(work, shift)
	if work <= 0 {
		status = StatusPresentIncomplete
	}

	var salary decimal.Decimal
	switch {
	case work <= 0:
		salary = decimal.Zero
	case work < shift:
		salary = ProratedSalary(work, shift, dailyRate)
	default:
		salary = dailyRate
	}

	rec.Status = status
	rec.WorkMinutes = max(0, work)
	rec.OvertimeMinutes = OvertimeMinutes(work, shift)
	rec.SalaryDayCount = SalaryDayCredit(work, shift)
	rec.DaySalary = generic.RoundMoney(salary)
	rec.Source = SourceManual
	rec.InAt = &in
	rec.OutAt = &out
	rec.UpdatedAt = &now
	return rec
}
