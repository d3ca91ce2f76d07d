/*
Package attendance reconciles biometric punches into a daily attendance ledger.

PURPOSE:
  Merges biometric punches, manual overrides, weekly-off rules and shift
  configuration into one canonical record per employee per day, then derives
  salary and overtime figures from that ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: read-only shift and pay configuration
  - Punch: an ephemeral (code, date) -> (in, out) pair from one batch
  - DailyRecord: the ledger entry, keyed by (employee, date)
  - MonthlySummary: derived per-employee roll-up, never persisted
  - Run: one reconciliation batch and its outcome

LEDGER RULES:
  1. One record per (employee, date); every write is an upsert on that key
  2. Source MANUAL wins: reconciliation never overwrites a manual record
  3. No automatic deletion; removal is an explicit admin action

SEE ALSO:
  - engine.go: Reconciler (the state machine)
  - manual.go: Editor (manual overrides)
  - summary.go: Aggregator
  - store.go: Persistence interfaces
*/
package attendance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RecordID string
type RunID string

// =============================================================================
// STATUS & SOURCE
// =============================================================================

// Status is the outcome of one ledger cell.
type Status string

const (
	StatusWeeklyOff         Status = "WEEKLY_OFF"
	StatusAbsent            Status = "ABSENT"
	StatusPresentIncomplete Status = "PRESENT_INCOMPLETE"
	StatusPresentComplete   Status = "PRESENT_COMPLETE"
	StatusPresentOvertime   Status = "PRESENT_OVERTIME"
)

// IsPresent reports whether the employee was at work (any PRESENT_* status).
func (s Status) IsPresent() bool { return strings.HasPrefix(string(s), "PRESENT") }

// Source records who wrote a ledger entry.
type Source string

const (
	SourceBiometric Source = "BIOMETRIC"
	SourceManual    Source = "MANUAL"
)

// =============================================================================
// EMPLOYEE
// =============================================================================

// Employee is owned by the HR admin workflow; the engine only reads it.
type Employee struct {
	ID              EmployeeID
	Name            string
	Code            string // biometric code, unique among active employees
	Active          bool
	ShiftStart      generic.ClockTime
	ShiftEnd        generic.ClockTime
	DutyHoursPerDay float64
	MonthlySalary   decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ShiftMinutes is the expected daily duty duration.
func (e Employee) ShiftMinutes() int {
	return generic.HoursToMinutes(e.DutyHoursPerDay)
}

// =============================================================================
// PUNCH
// =============================================================================

// Punch is one clock-in/clock-out pair. Out is already overnight-corrected.
type Punch struct {
	EmployeeCode string
	Date         generic.Date
	In           time.Time
	Out          time.Time
}

type punchKey struct {
	code string
	date string
}

// PunchSet is the (code, date) lookup built by the normalizer.
type PunchSet struct {
	punches map[punchKey]Punch
}

func NewPunchSet() *PunchSet {
	return &PunchSet{punches: make(map[punchKey]Punch)}
}

// Put stores p, replacing any earlier punch for the same key.
func (s *PunchSet) Put(p Punch) {
	s.punches[punchKey{code: p.EmployeeCode, date: p.Date.String()}] = p
}

// Lookup returns the punch for code on date.
func (s *PunchSet) Lookup(code string, date generic.Date) (Punch, bool) {
	if s == nil {
		return Punch{}, false
	}
	p, ok := s.punches[punchKey{code: code, date: date.String()}]
	return p, ok
}

func (s *PunchSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.punches)
}

// =============================================================================
// DAILY RECORD - The ledger entry
// =============================================================================

type DailyRecord struct {
	ID              RecordID
	EmployeeID      EmployeeID
	EmployeeCode    string
	Date            generic.Date
	Status          Status
	WorkMinutes     int
	OvertimeMinutes int
	SalaryDayCount  decimal.Decimal
	DaySalary       decimal.Decimal
	Source          Source
	InAt            *time.Time
	OutAt           *time.Time
	UpdatedAt       *time.Time // manual edits only
}

// =============================================================================
// AGGREGATES
// =============================================================================

// LedgerTotals is the store-side group-by result for one employee.
type LedgerTotals struct {
	EmployeeID      EmployeeID
	Present         int
	Absent          int
	SalaryDays      decimal.Decimal
	OvertimeMinutes int
	TotalSalary     decimal.Decimal
}

// MonthlySummary is one employee's roll-up for a month.
type MonthlySummary struct {
	EmployeeID      EmployeeID
	Name            string
	Present         int
	Absent          int
	WorkingDays     decimal.Decimal
	OvertimeMinutes int
	OvertimeHours   decimal.Decimal
	OvertimePay     decimal.Decimal
	TotalSalary     decimal.Decimal
}

// =============================================================================
// RUN - One reconciliation batch
// =============================================================================

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Trigger says what started a batch.
type Trigger string

const (
	TriggerUpload   Trigger = "upload"
	TriggerFetch    Trigger = "fetch"
	TriggerSchedule Trigger = "schedule"
	TriggerCLI      Trigger = "cli"
)

type Run struct {
	ID            RunID
	Month         string
	Trigger       Trigger
	Status        RunStatus
	Employees     int
	Written       int
	SkippedManual int
	Error         string
	StartedAt     time.Time
	CompletedAt   *time.Time
}
