package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// SERVICE - The operations exposed to the HTTP and CLI layers
// =============================================================================

// PunchSource fetches a month of raw punches from the biometric vendor.
// A nil slice means the vendor payload had no punch list at all.
type PunchSource interface {
	FetchPunches(ctx context.Context, month generic.Month) ([]VendorRow, error)
}

type Service struct {
	Store      TxStore
	Source     PunchSource // nil when no vendor is configured
	Reconciler *Reconciler
	Editor     *Editor
	Aggregator *Aggregator
	Directory  *Directory
}

// Options configure NewService.
type Options struct {
	WeeklyOff          generic.WeeklyOff
	OvertimeMultiplier decimal.Decimal
	Logger             *slog.Logger
}

func NewService(store TxStore, source PunchSource, opts Options) *Service {
	return &Service{
		Store:      store,
		Source:     source,
		Reconciler: NewReconciler(store, opts.WeeklyOff, opts.Logger),
		Editor:     NewEditor(store, opts.Logger),
		Aggregator: NewAggregator(store, opts.OvertimeMultiplier),
		Directory:  NewDirectory(store),
	}
}

// ProcessUpload reconciles month from an uploaded punch file. Parse errors
// abort before any write.
func (s *Service) ProcessUpload(ctx context.Context, file []byte, month string) (BatchResult, error) {
	m, err := generic.ParseMonth(month)
	if err != nil {
		return BatchResult{}, err
	}
	punches, err := NormalizePayload(file)
	if err != nil {
		return BatchResult{}, err
	}
	return s.Reconciler.Reconcile(ctx, m, punches, TriggerUpload)
}

// FetchAndProcess pulls month from the vendor and reconciles it.
func (s *Service) FetchAndProcess(ctx context.Context, month string) (BatchResult, error) {
	return s.fetchAndProcess(ctx, month, TriggerFetch)
}

// SyncMonth is FetchAndProcess for scheduled runs.
func (s *Service) SyncMonth(ctx context.Context, month generic.Month) (BatchResult, error) {
	return s.fetchAndProcess(ctx, month.String(), TriggerSchedule)
}

func (s *Service) fetchAndProcess(ctx context.Context, month string, trigger Trigger) (BatchResult, error) {
	m, err := generic.ParseMonth(month)
	if err != nil {
		return BatchResult{}, err
	}
	if s.Source == nil {
		return BatchResult{}, &generic.UpstreamError{Service: "biometric", Err: fmt.Errorf("no biometric source configured")}
	}
	rows, err := s.Source.FetchPunches(ctx, m)
	if err != nil {
		return BatchResult{}, err
	}
	punches, err := NormalizeRows(rows)
	if err != nil {
		return BatchResult{}, err
	}
	return s.Reconciler.Reconcile(ctx, m, punches, trigger)
}

// EmployeeAttendance returns one employee's records for month, by date.
func (s *Service) EmployeeAttendance(ctx context.Context, employeeID, month string) ([]DailyRecord, error) {
	if strings.TrimSpace(employeeID) == "" {
		return nil, &generic.ValidationError{Field: "employee_id", Message: "is required"}
	}
	m, err := generic.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	records, err := s.Store.FindRecords(ctx, EmployeeID(employeeID), m.Period())
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	return records, nil
}

func (s *Service) EditRecord(ctx context.Context, req ManualEdit) (DailyRecord, error) {
	return s.Editor.Apply(ctx, req)
}

func (s *Service) MonthlySummary(ctx context.Context, month string) ([]MonthlySummary, error) {
	m, err := generic.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	return s.Aggregator.MonthlySummary(ctx, m)
}

// DeleteRecord is the explicit administrative removal of one ledger entry.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return &generic.ValidationError{Field: "record_id", Message: "must be a UUID", Err: err}
	}
	return s.Store.DeleteRecord(ctx, RecordID(strings.TrimSpace(id)))
}

func (s *Service) Employees(ctx context.Context) ([]Employee, error) {
	return s.Store.ListEmployees(ctx)
}

// Employee returns *generic.NotFoundError for unknown ids.
func (s *Service) Employee(ctx context.Context, id string) (Employee, error) {
	emp, err := s.Store.GetEmployee(ctx, EmployeeID(id))
	if err != nil {
		return Employee{}, fmt.Errorf("load employee: %w", err)
	}
	if emp == nil {
		return Employee{}, &generic.NotFoundError{Kind: "employee", ID: id}
	}
	return *emp, nil
}

func (s *Service) Runs(ctx context.Context, limit int) ([]Run, error) {
	return s.Store.ListRuns(ctx, limit)
}
