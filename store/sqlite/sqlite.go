/*
Package sqlite provides a SQLite-backed implementation of attendance.TxStore.

PURPOSE:
  Default persistence for the attendance ledger, the employee directory and
  the reconciliation run log. The PostgreSQL store in store/postgres keeps
  the same schema modulo dialect.

KEY TABLES:
  employees:         Directory (shift, duty hours, salary)
  attendance_daily:  The ledger, one row per (employee_id, date)
  reconcile_runs:    One row per reconciliation batch

MONEY:
  Salaries, day salaries and salary day counts are stored as INTEGER
  hundredths so SUM() in the aggregation query stays exact. See
  generic.ToHundredths.

INDEXES:
  - attendance_daily UNIQUE(employee_id, date): the upsert key
  - idx_attendance_daily_date: month range scans for aggregation
  - idx_employees_active_code: biometric codes unique among active employees

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single connection so that
  ":memory:" databases are shared and writers never see SQLITE_BUSY.
  Reads made through the Store handed to WithTx run on the transaction.

USAGE:
  store, err := sqlite.New("./attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - attendance/store.go: Interface definitions
  - attendance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// Store implements attendance.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		emp_code TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		shift_start TEXT NOT NULL,
		shift_end TEXT NOT NULL,
		duty_hours_per_day REAL NOT NULL,
		monthly_salary INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_employees_active_code
		ON employees(emp_code) WHERE is_active = 1 AND emp_code <> '';

	-- Ledger: one row per employee per day
	CREATE TABLE IF NOT EXISTS attendance_daily (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		emp_code TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		work_minutes INTEGER NOT NULL DEFAULT 0,
		overtime_minutes INTEGER NOT NULL DEFAULT 0,
		salary_day_count INTEGER NOT NULL DEFAULT 0,
		day_salary INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		in_at TEXT,
		out_at TEXT,
		updated_at TEXT,
		UNIQUE(employee_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_daily_date
		ON attendance_daily(date);

	CREATE TABLE IF NOT EXISTS reconcile_runs (
		id TEXT PRIMARY KEY,
		month TEXT NOT NULL,
		triggered_by TEXT NOT NULL,
		status TEXT NOT NULL,
		employees INTEGER NOT NULL DEFAULT 0,
		written INTEGER NOT NULL DEFAULT 0,
		skipped_manual INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reconcile_runs_started
		ON reconcile_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, name, emp_code, is_active, shift_start, shift_end,
	duty_hours_per_day, monthly_salary, created_at, updated_at`

func (s *Store) SaveEmployee(ctx context.Context, emp attendance.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployee(ctx, s.db, emp)
}

func saveEmployee(ctx context.Context, q querier, emp attendance.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			emp_code = excluded.emp_code,
			is_active = excluded.is_active,
			shift_start = excluded.shift_start,
			shift_end = excluded.shift_end,
			duty_hours_per_day = excluded.duty_hours_per_day,
			monthly_salary = excluded.monthly_salary,
			updated_at = excluded.updated_at
	`

	_, err := q.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.Code, emp.Active,
		emp.ShiftStart.String(), emp.ShiftEnd.String(),
		emp.DutyHoursPerDay, generic.ToHundredths(emp.MonthlySalary),
		formatTime(emp.CreatedAt), formatTime(emp.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s", attendance.ErrDuplicateEmployeeCode, emp.Code)
	}
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, id)
}

func getEmployee(ctx context.Context, q querier, id attendance.EmployeeID) (*attendance.Employee, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	employees, err := scanEmployees(rows)
	if err != nil || len(employees) == 0 {
		return nil, err
	}
	return &employees[0], nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEmployees(ctx, s.db, false)
}

func (s *Store) ListActiveEmployees(ctx context.Context) ([]attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEmployees(ctx, s.db, true)
}

func listEmployees(ctx context.Context, q querier, activeOnly bool) ([]attendance.Employee, error) {
	query := "SELECT " + employeeColumns + " FROM employees"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY id"

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanEmployees(rows)
}

func scanEmployees(rows *sql.Rows) ([]attendance.Employee, error) {
	defer rows.Close()

	var employees []attendance.Employee
	for rows.Next() {
		var (
			emp                  attendance.Employee
			shiftStart, shiftEnd string
			salary               int64
			createdAt, updatedAt string
		)
		if err := rows.Scan(
			&emp.ID, &emp.Name, &emp.Code, &emp.Active, &shiftStart, &shiftEnd,
			&emp.DutyHoursPerDay, &salary, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		emp.ShiftStart, _ = generic.ParseClockTime(shiftStart)
		emp.ShiftEnd, _ = generic.ParseClockTime(shiftEnd)
		emp.MonthlySalary = generic.FromHundredths(salary)
		emp.CreatedAt = parseTime(createdAt)
		emp.UpdatedAt = parseTime(updatedAt)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// LEDGER
// =============================================================================

const recordColumns = `id, employee_id, emp_code, date, status, work_minutes,
	overtime_minutes, salary_day_count, day_salary, source, in_at, out_at, updated_at`

func (s *Store) UpsertRecord(ctx context.Context, rec attendance.DailyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertRecord(ctx, s.db, rec)
}

// upsertRecord keeps the stored id on conflict.
func upsertRecord(ctx context.Context, q querier, rec attendance.DailyRecord) error {
	query := `
		INSERT INTO attendance_daily (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, date) DO UPDATE SET
			emp_code = excluded.emp_code,
			status = excluded.status,
			work_minutes = excluded.work_minutes,
			overtime_minutes = excluded.overtime_minutes,
			salary_day_count = excluded.salary_day_count,
			day_salary = excluded.day_salary,
			source = excluded.source,
			in_at = excluded.in_at,
			out_at = excluded.out_at,
			updated_at = excluded.updated_at
	`

	_, err := q.ExecContext(ctx, query,
		rec.ID, rec.EmployeeID, rec.EmployeeCode, rec.Date.String(), rec.Status,
		rec.WorkMinutes, rec.OvertimeMinutes,
		generic.ToHundredths(rec.SalaryDayCount), generic.ToHundredths(rec.DaySalary),
		rec.Source, nullTime(rec.InAt), nullTime(rec.OutAt), nullTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert attendance record: %w", err)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id attendance.RecordID) (*attendance.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRecord(ctx, s.db, "id = ?", id)
}

func (s *Store) GetRecordByKey(ctx context.Context, employeeID attendance.EmployeeID, date generic.Date) (*attendance.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRecord(ctx, s.db, "employee_id = ? AND date = ?", employeeID, date.String())
}

func getRecord(ctx context.Context, q querier, where string, args ...any) (*attendance.DailyRecord, error) {
	records, err := queryRecords(ctx, q, "SELECT "+recordColumns+" FROM attendance_daily WHERE "+where, args...)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

func (s *Store) FindRecords(ctx context.Context, employeeID attendance.EmployeeID, period generic.Period) ([]attendance.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findRecords(ctx, s.db, employeeID, period)
}

func findRecords(ctx context.Context, q querier, employeeID attendance.EmployeeID, period generic.Period) ([]attendance.DailyRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM attendance_daily
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`
	return queryRecords(ctx, q, query, employeeID, period.Start.String(), period.End.String())
}

func queryRecords(ctx context.Context, q querier, query string, args ...any) ([]attendance.DailyRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []attendance.DailyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (attendance.DailyRecord, error) {
	var (
		rec                    attendance.DailyRecord
		date                   string
		dayCount, daySalary    int64
		inAt, outAt, updatedAt sql.NullString
	)

	err := rows.Scan(
		&rec.ID, &rec.EmployeeID, &rec.EmployeeCode, &date, &rec.Status,
		&rec.WorkMinutes, &rec.OvertimeMinutes, &dayCount, &daySalary,
		&rec.Source, &inAt, &outAt, &updatedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan attendance record: %w", err)
	}

	if rec.Date, err = generic.ParseDate(date); err != nil {
		return rec, fmt.Errorf("bad date in attendance_daily %s: %w", rec.ID, err)
	}
	rec.SalaryDayCount = generic.FromHundredths(dayCount)
	rec.DaySalary = generic.FromHundredths(daySalary)
	rec.InAt = parseNullTime(inAt)
	rec.OutAt = parseNullTime(outAt)
	rec.UpdatedAt = parseNullTime(updatedAt)
	return rec, nil
}

func (s *Store) AggregateByEmployee(ctx context.Context, period generic.Period) ([]attendance.LedgerTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return aggregateByEmployee(ctx, s.db, period)
}

func aggregateByEmployee(ctx context.Context, q querier, period generic.Period) ([]attendance.LedgerTotals, error) {
	query := `
		SELECT employee_id,
			SUM(CASE WHEN status LIKE 'PRESENT%' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'ABSENT' THEN 1 ELSE 0 END),
			SUM(salary_day_count),
			SUM(overtime_minutes),
			SUM(day_salary)
		FROM attendance_daily
		WHERE date >= ? AND date <= ?
		GROUP BY employee_id
		ORDER BY employee_id
	`

	rows, err := q.QueryContext(ctx, query, period.Start.String(), period.End.String())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attendance: %w", err)
	}
	defer rows.Close()

	var totals []attendance.LedgerTotals
	for rows.Next() {
		var (
			t                 attendance.LedgerTotals
			days, salaryTotal int64
		)
		if err := rows.Scan(&t.EmployeeID, &t.Present, &t.Absent, &days, &t.OvertimeMinutes, &salaryTotal); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		t.SalaryDays = generic.FromHundredths(days)
		t.TotalSalary = generic.FromHundredths(salaryTotal)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (s *Store) DeleteRecord(ctx context.Context, id attendance.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRecord(ctx, s.db, id)
}

func deleteRecord(ctx context.Context, q querier, id attendance.RecordID) error {
	res, err := q.ExecContext(ctx, "DELETE FROM attendance_daily WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete attendance record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Kind: "attendance record", ID: string(id)}
	}
	return nil
}

// =============================================================================
// RUNS
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, run attendance.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRun(ctx, s.db, run)
}

func saveRun(ctx context.Context, q querier, run attendance.Run) error {
	query := `
		INSERT INTO reconcile_runs (id, month, triggered_by, status, employees, written,
			skipped_manual, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			employees = excluded.employees,
			written = excluded.written,
			skipped_manual = excluded.skipped_manual,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	_, err := q.ExecContext(ctx, query,
		run.ID, run.Month, run.Trigger, run.Status, run.Employees, run.Written,
		run.SkippedManual, nullString(run.Error), formatTime(run.StartedAt), nullTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]attendance.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRuns(ctx, s.db, limit)
}

func listRuns(ctx context.Context, q querier, limit int) ([]attendance.Run, error) {
	query := `
		SELECT id, month, triggered_by, status, employees, written, skipped_manual,
			error, started_at, completed_at
		FROM reconcile_runs
		ORDER BY started_at DESC, rowid DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []attendance.Run
	for rows.Next() {
		var (
			r           attendance.Run
			runErr      sql.NullString
			startedAt   string
			completedAt sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.Month, &r.Trigger, &r.Status, &r.Employees, &r.Written,
			&r.SkippedManual, &runErr, &startedAt, &completedAt,
		); err != nil {
			return nil, err
		}
		r.Error = runErr.String
		r.StartedAt = parseTime(startedAt)
		r.CompletedAt = parseNullTime(completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (attendance.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store attendance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every call through the open transaction. The parent lock
// is already held by WithTx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveEmployee(ctx context.Context, emp attendance.Employee) error {
	return saveEmployee(ctx, ts.tx, emp)
}

func (ts *txStore) GetEmployee(ctx context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	return getEmployee(ctx, ts.tx, id)
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]attendance.Employee, error) {
	return listEmployees(ctx, ts.tx, false)
}

func (ts *txStore) ListActiveEmployees(ctx context.Context) ([]attendance.Employee, error) {
	return listEmployees(ctx, ts.tx, true)
}

func (ts *txStore) UpsertRecord(ctx context.Context, rec attendance.DailyRecord) error {
	return upsertRecord(ctx, ts.tx, rec)
}

func (ts *txStore) GetRecord(ctx context.Context, id attendance.RecordID) (*attendance.DailyRecord, error) {
	return getRecord(ctx, ts.tx, "id = ?", id)
}

func (ts *txStore) GetRecordByKey(ctx context.Context, employeeID attendance.EmployeeID, date generic.Date) (*attendance.DailyRecord, error) {
	return getRecord(ctx, ts.tx, "employee_id = ? AND date = ?", employeeID, date.String())
}

func (ts *txStore) FindRecords(ctx context.Context, employeeID attendance.EmployeeID, period generic.Period) ([]attendance.DailyRecord, error) {
	return findRecords(ctx, ts.tx, employeeID, period)
}

func (ts *txStore) AggregateByEmployee(ctx context.Context, period generic.Period) ([]attendance.LedgerTotals, error) {
	return aggregateByEmployee(ctx, ts.tx, period)
}

func (ts *txStore) DeleteRecord(ctx context.Context, id attendance.RecordID) error {
	return deleteRecord(ctx, ts.tx, id)
}

func (ts *txStore) SaveRun(ctx context.Context, run attendance.Run) error {
	return saveRun(ctx, ts.tx, run)
}

func (ts *txStore) ListRuns(ctx context.Context, limit int) ([]attendance.Run, error) {
	return listRuns(ctx, ts.tx, limit)
}

// Reset deletes all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"attendance_daily", "reconcile_runs", "employees"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ attendance.TxStore = (*Store)(nil)
