/*
Package postgres provides a PostgreSQL implementation of attendance.TxStore
on top of pgx.

PURPOSE:
  Production persistence for deployments that share a database with the
  rest of the HR system. Same tables as store/sqlite; dates are DATE,
  timestamps TIMESTAMPTZ, money BIGINT hundredths.

ROW LOCKING:
  Inside WithTx, record lookups take FOR UPDATE locks. A manual edit that
  races a batch waits for the batch to commit and then wins, instead of
  being overwritten.

SEE ALSO:
  - store/sqlite/sqlite.go: Default store
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type Store struct {
	queries
	pool *pgxpool.Pool
}

// New connects to dsn, checks the connection and migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	config.MaxConns = 25
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{queries: queries{q: pool}, pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		emp_code TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		shift_start TEXT NOT NULL,
		shift_end TEXT NOT NULL,
		duty_hours_per_day DOUBLE PRECISION NOT NULL,
		monthly_salary BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_employees_active_code
		ON employees(emp_code) WHERE is_active AND emp_code <> '';

	CREATE TABLE IF NOT EXISTS attendance_daily (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		emp_code TEXT NOT NULL DEFAULT '',
		date DATE NOT NULL,
		status TEXT NOT NULL,
		work_minutes INTEGER NOT NULL DEFAULT 0,
		overtime_minutes INTEGER NOT NULL DEFAULT 0,
		salary_day_count BIGINT NOT NULL DEFAULT 0,
		day_salary BIGINT NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		in_at TIMESTAMPTZ,
		out_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ,
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
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_reconcile_runs_started
		ON reconcile_runs(started_at DESC);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// WithTx executes fn inside a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(attendance.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&queries{q: tx, lockRows: true}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback error: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// QUERIES - Shared by the pool and transaction views
// =============================================================================

type queries struct {
	q        Querier
	lockRows bool
}

const employeeColumns = `id, name, emp_code, is_active, shift_start, shift_end,
	duty_hours_per_day, monthly_salary, created_at, updated_at`

func (r *queries) SaveEmployee(ctx context.Context, emp attendance.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			emp_code = EXCLUDED.emp_code,
			is_active = EXCLUDED.is_active,
			shift_start = EXCLUDED.shift_start,
			shift_end = EXCLUDED.shift_end,
			duty_hours_per_day = EXCLUDED.duty_hours_per_day,
			monthly_salary = EXCLUDED.monthly_salary,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.q.Exec(ctx, query,
		string(emp.ID), emp.Name, emp.Code, emp.Active,
		emp.ShiftStart.String(), emp.ShiftEnd.String(),
		emp.DutyHoursPerDay, generic.ToHundredths(emp.MonthlySalary),
		emp.CreatedAt.UTC(), emp.UpdatedAt.UTC(),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", attendance.ErrDuplicateEmployeeCode, emp.Code)
	}
	if err != nil {
		return fmt.Errorf("save employee: %w", err)
	}
	return nil
}

func (r *queries) GetEmployee(ctx context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	employees, err := r.queryEmployees(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = $1", string(id))
	if err != nil || len(employees) == 0 {
		return nil, err
	}
	return &employees[0], nil
}

func (r *queries) ListEmployees(ctx context.Context) ([]attendance.Employee, error) {
	return r.queryEmployees(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY id")
}

func (r *queries) ListActiveEmployees(ctx context.Context) ([]attendance.Employee, error) {
	return r.queryEmployees(ctx, "SELECT "+employeeColumns+" FROM employees WHERE is_active ORDER BY id")
}

func (r *queries) queryEmployees(ctx context.Context, query string, args ...interface{}) ([]attendance.Employee, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var employees []attendance.Employee
	for rows.Next() {
		var (
			emp                  attendance.Employee
			id                   string
			shiftStart, shiftEnd string
			salary               int64
		)
		if err := rows.Scan(
			&id, &emp.Name, &emp.Code, &emp.Active, &shiftStart, &shiftEnd,
			&emp.DutyHoursPerDay, &salary, &emp.CreatedAt, &emp.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		emp.ID = attendance.EmployeeID(id)
		emp.ShiftStart, _ = generic.ParseClockTime(shiftStart)
		emp.ShiftEnd, _ = generic.ParseClockTime(shiftEnd)
		emp.MonthlySalary = generic.FromHundredths(salary)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

const recordColumns = `id, employee_id, emp_code, date, status, work_minutes,
	overtime_minutes, salary_day_count, day_salary, source, in_at, out_at, updated_at`

func (r *queries) UpsertRecord(ctx context.Context, rec attendance.DailyRecord) error {
	query := `
		INSERT INTO attendance_daily (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (employee_id, date) DO UPDATE SET
			emp_code = EXCLUDED.emp_code,
			status = EXCLUDED.status,
			work_minutes = EXCLUDED.work_minutes,
			overtime_minutes = EXCLUDED.overtime_minutes,
			salary_day_count = EXCLUDED.salary_day_count,
			day_salary = EXCLUDED.day_salary,
			source = EXCLUDED.source,
			in_at = EXCLUDED.in_at,
			out_at = EXCLUDED.out_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.q.Exec(ctx, query,
		string(rec.ID), string(rec.EmployeeID), rec.EmployeeCode, rec.Date.Time(),
		string(rec.Status), rec.WorkMinutes, rec.OvertimeMinutes,
		generic.ToHundredths(rec.SalaryDayCount), generic.ToHundredths(rec.DaySalary),
		string(rec.Source), rec.InAt, rec.OutAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}
	return nil
}

func (r *queries) GetRecord(ctx context.Context, id attendance.RecordID) (*attendance.DailyRecord, error) {
	return r.getRecord(ctx, "id = $1", string(id))
}

func (r *queries) GetRecordByKey(ctx context.Context, employeeID attendance.EmployeeID, date generic.Date) (*attendance.DailyRecord, error) {
	return r.getRecord(ctx, "employee_id = $1 AND date = $2", string(employeeID), date.Time())
}

func (r *queries) getRecord(ctx context.Context, where string, args ...interface{}) (*attendance.DailyRecord, error) {
	query := "SELECT " + recordColumns + " FROM attendance_daily WHERE " + where
	if r.lockRows {
		query += " FOR UPDATE"
	}
	records, err := r.queryRecords(ctx, query, args...)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

func (r *queries) FindRecords(ctx context.Context, employeeID attendance.EmployeeID, period generic.Period) ([]attendance.DailyRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM attendance_daily
		WHERE employee_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`
	return r.queryRecords(ctx, query, string(employeeID), period.Start.Time(), period.End.Time())
}

func (r *queries) queryRecords(ctx context.Context, query string, args ...interface{}) ([]attendance.DailyRecord, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []attendance.DailyRecord
	for rows.Next() {
		var (
			rec                 attendance.DailyRecord
			id, employeeID      string
			status, source      string
			date                time.Time
			dayCount, daySalary int64
		)
		if err := rows.Scan(
			&id, &employeeID, &rec.EmployeeCode, &date, &status,
			&rec.WorkMinutes, &rec.OvertimeMinutes, &dayCount, &daySalary,
			&source, &rec.InAt, &rec.OutAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		rec.ID = attendance.RecordID(id)
		rec.EmployeeID = attendance.EmployeeID(employeeID)
		rec.Status = attendance.Status(status)
		rec.Source = attendance.Source(source)
		rec.Date = generic.DateOf(date)
		rec.SalaryDayCount = generic.FromHundredths(dayCount)
		rec.DaySalary = generic.FromHundredths(daySalary)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *queries) AggregateByEmployee(ctx context.Context, period generic.Period) ([]attendance.LedgerTotals, error) {
	query := `
		SELECT employee_id,
			COUNT(*) FILTER (WHERE status LIKE 'PRESENT%'),
			COUNT(*) FILTER (WHERE status = 'ABSENT'),
			COALESCE(SUM(salary_day_count), 0),
			COALESCE(SUM(overtime_minutes), 0),
			COALESCE(SUM(day_salary), 0)
		FROM attendance_daily
		WHERE date BETWEEN $1 AND $2
		GROUP BY employee_id
		ORDER BY employee_id
	`
	rows, err := r.q.Query(ctx, query, period.Start.Time(), period.End.Time())
	if err != nil {
		return nil, fmt.Errorf("aggregate attendance: %w", err)
	}
	defer rows.Close()

	var totals []attendance.LedgerTotals
	for rows.Next() {
		var (
			employeeID             string
			present, absent        int64
			days, overtime, salary int64
		)
		if err := rows.Scan(&employeeID, &present, &absent, &days, &overtime, &salary); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		totals = append(totals, attendance.LedgerTotals{
			EmployeeID:      attendance.EmployeeID(employeeID),
			Present:         int(present),
			Absent:          int(absent),
			SalaryDays:      generic.FromHundredths(days),
			OvertimeMinutes: int(overtime),
			TotalSalary:     generic.FromHundredths(salary),
		})
	}
	return totals, rows.Err()
}

func (r *queries) DeleteRecord(ctx context.Context, id attendance.RecordID) error {
	tag, err := r.q.Exec(ctx, "DELETE FROM attendance_daily WHERE id = $1", string(id))
	if err != nil {
		return fmt.Errorf("delete attendance record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &generic.NotFoundError{Kind: "attendance record", ID: string(id)}
	}
	return nil
}

func (r *queries) SaveRun(ctx context.Context, run attendance.Run) error {
	query := `
		INSERT INTO reconcile_runs (id, month, triggered_by, status, employees, written,
			skipped_manual, error, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			employees = EXCLUDED.employees,
			written = EXCLUDED.written,
			skipped_manual = EXCLUDED.skipped_manual,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at
	`
	var runErr *string
	if run.Error != "" {
		runErr = &run.Error
	}
	_, err := r.q.Exec(ctx, query,
		string(run.ID), run.Month, string(run.Trigger), string(run.Status),
		run.Employees, run.Written, run.SkippedManual, runErr,
		run.StartedAt.UTC(), run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (r *queries) ListRuns(ctx context.Context, limit int) ([]attendance.Run, error) {
	query := `
		SELECT id, month, triggered_by, status, employees, written, skipped_manual,
			error, started_at, completed_at
		FROM reconcile_runs
		ORDER BY started_at DESC, id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []attendance.Run
	for rows.Next() {
		var (
			run                 attendance.Run
			id, trigger, status string
			runErr              *string
		)
		if err := rows.Scan(
			&id, &run.Month, &trigger, &status, &run.Employees, &run.Written,
			&run.SkippedManual, &runErr, &run.StartedAt, &run.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.ID = attendance.RunID(id)
		run.Trigger = attendance.Trigger(trigger)
		run.Status = attendance.RunStatus(status)
		if runErr != nil {
			run.Error = *runErr
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

var _ attendance.TxStore = (*Store)(nil)
