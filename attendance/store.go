/*
store.go - Persistence interfaces for employees, the ledger and batch runs

PURPOSE:
  Defines the boundary between reconciliation logic and storage. Components
  receive a Store (or TxStore) by injection; nothing holds a global handle.

KEY INTERFACES:
  EmployeeStore: Employee directory reads and writes
  LedgerStore:   Keyed upsert, lookups, range find, grouped aggregation
  RunStore:      Batch run audit trail
  TxStore:       All of the above plus an all-or-nothing unit of work

UPSERT CONTRACT:
  UpsertRecord is keyed by (EmployeeID, Date). On conflict the stored
  record's ID is kept and every other field is replaced. Implementations
  must make this atomic so concurrent batches never create duplicate rows.

LOOKUP CONTRACT:
  Get* methods return (nil, nil) when nothing matches.

IMPLEMENTATIONS:
  - attendance/store/memory.go: In-memory for tests and dev
  - store/sqlite/sqlite.go: SQLite (default)
  - store/postgres/postgres.go: PostgreSQL via pgx

SEE ALSO:
  - engine.go: Runs each batch inside TxStore.WithTx
*/
package attendance

import (
	"context"

	"github.com/warp/attendance-engine/generic"
)

// EmployeeStore persists the employee directory.
type EmployeeStore interface {
	SaveEmployee(ctx context.Context, emp Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)

	// ListActiveEmployees returns active employees ordered by ID.
	ListActiveEmployees(ctx context.Context) ([]Employee, error)
}

// LedgerStore persists daily attendance records.
type LedgerStore interface {
	// UpsertRecord writes rec keyed by (EmployeeID, Date).
	UpsertRecord(ctx context.Context, rec DailyRecord) error

	GetRecord(ctx context.Context, id RecordID) (*DailyRecord, error)
	GetRecordByKey(ctx context.Context, employeeID EmployeeID, date generic.Date) (*DailyRecord, error)

	// FindRecords returns an employee's records in period, ordered by date.
	FindRecords(ctx context.Context, employeeID EmployeeID, period generic.Period) ([]DailyRecord, error)

	// AggregateByEmployee groups records in period by employee with
	// conditional sums. Employees without records are absent from the result.
	AggregateByEmployee(ctx context.Context, period generic.Period) ([]LedgerTotals, error)

	// DeleteRecord removes one record; *generic.NotFoundError if none matched.
	DeleteRecord(ctx context.Context, id RecordID) error
}

// RunStore keeps the audit trail of reconciliation batches.
type RunStore interface {
	SaveRun(ctx context.Context, run Run) error

	// ListRuns returns the newest runs first; limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

type Store interface {
	EmployeeStore
	LedgerStore
	RunStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the Store passed to fn
	// is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
