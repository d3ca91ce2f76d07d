// Package store provides in-process attendance.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	employees map[attendance.EmployeeID]attendance.Employee
	records   map[attendance.RecordID]attendance.DailyRecord
	byKey     map[key]attendance.RecordID
	runs      map[attendance.RunID]attendance.Run
}

type key struct {
	EmployeeID attendance.EmployeeID
	Date       string
}

func keyOf(employeeID attendance.EmployeeID, date generic.Date) key {
	return key{EmployeeID: employeeID, Date: date.String()}
}

func NewMemory() *Memory {
	return &Memory{
		employees: make(map[attendance.EmployeeID]attendance.Employee),
		records:   make(map[attendance.RecordID]attendance.DailyRecord),
		byKey:     make(map[key]attendance.RecordID),
		runs:      make(map[attendance.RunID]attendance.Run),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, emp attendance.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEmployeeLocked(id), nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]attendance.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEmployeesLocked(false), nil
}

func (m *Memory) ListActiveEmployees(_ context.Context) ([]attendance.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEmployeesLocked(true), nil
}

func (m *Memory) getEmployeeLocked(id attendance.EmployeeID) *attendance.Employee {
	emp, ok := m.employees[id]
	if !ok {
		return nil
	}
	return &emp
}

func (m *Memory) listEmployeesLocked(activeOnly bool) []attendance.Employee {
	var out []attendance.Employee
	for _, emp := range m.employees {
		if activeOnly && !emp.Active {
			continue
		}
		out = append(out, emp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =============================================================================
// LEDGER
// =============================================================================

// UpsertRecord writes rec keyed by (employee, date), keeping the stored ID.
func (m *Memory) UpsertRecord(_ context.Context, rec attendance.DailyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(rec)
	return nil
}

func (m *Memory) upsertLocked(rec attendance.DailyRecord) {
	k := keyOf(rec.EmployeeID, rec.Date)
	if id, ok := m.byKey[k]; ok {
		rec.ID = id
	}
	m.byKey[k] = rec.ID
	m.records[rec.ID] = rec
}

func (m *Memory) GetRecord(_ context.Context, id attendance.RecordID) (*attendance.DailyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRecordLocked(id), nil
}

func (m *Memory) GetRecordByKey(_ context.Context, employeeID attendance.EmployeeID, date generic.Date) (*attendance.DailyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getByKeyLocked(employeeID, date), nil
}

func (m *Memory) getRecordLocked(id attendance.RecordID) *attendance.DailyRecord {
	rec, ok := m.records[id]
	if !ok {
		return nil
	}
	return &rec
}

func (m *Memory) getByKeyLocked(employeeID attendance.EmployeeID, date generic.Date) *attendance.DailyRecord {
	id, ok := m.byKey[keyOf(employeeID, date)]
	if !ok {
		return nil
	}
	return m.getRecordLocked(id)
}

func (m *Memory) FindRecords(_ context.Context, employeeID attendance.EmployeeID, period generic.Period) ([]attendance.DailyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLocked(func(rec attendance.DailyRecord) bool {
		return rec.EmployeeID == employeeID && period.Contains(rec.Date)
	}), nil
}

func (m *Memory) AggregateByEmployee(_ context.Context, period generic.Period) ([]attendance.LedgerTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := m.findLocked(func(rec attendance.DailyRecord) bool {
		return period.Contains(rec.Date)
	})
	return attendance.TotalsOf(records), nil
}

func (m *Memory) findLocked(match func(attendance.DailyRecord) bool) []attendance.DailyRecord {
	var out []attendance.DailyRecord
	for _, rec := range m.records {
		if match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out
}

func (m *Memory) DeleteRecord(_ context.Context, id attendance.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(id)
}

func (m *Memory) deleteLocked(id attendance.RecordID) error {
	rec, ok := m.records[id]
	if !ok {
		return &generic.NotFoundError{Kind: "attendance record", ID: string(id)}
	}
	delete(m.records, id)
	delete(m.byKey, keyOf(rec.EmployeeID, rec.Date))
	return nil
}

// =============================================================================
// RUNS
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, run attendance.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) ListRuns(_ context.Context, limit int) ([]attendance.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRunsLocked(limit), nil
}

func (m *Memory) listRunsLocked(limit int) []attendance.Run {
	out := make([]attendance.Run, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// Runs are kept out of the snapshot; they record the batch itself.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(attendance.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		employees: make(map[attendance.EmployeeID]attendance.Employee, len(tm.employees)),
		records:   make(map[attendance.RecordID]attendance.DailyRecord, len(tm.records)),
		byKey:     make(map[key]attendance.RecordID, len(tm.byKey)),
	}
	for k, v := range tm.employees {
		s.employees[k] = v
	}
	for k, v := range tm.records {
		s.records[k] = v
	}
	for k, v := range tm.byKey {
		s.byKey[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.employees = s.employees
	tm.records = s.records
	tm.byKey = s.byKey
}

type memorySnapshot struct {
	employees map[attendance.EmployeeID]attendance.Employee
	records   map[attendance.RecordID]attendance.DailyRecord
	byKey     map[key]attendance.RecordID
}

// txMemoryView operates on the parent while WithTx holds its lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) SaveEmployee(_ context.Context, emp attendance.Employee) error {
	tv.parent.employees[emp.ID] = emp
	return nil
}

func (tv *txMemoryView) GetEmployee(_ context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	return tv.parent.getEmployeeLocked(id), nil
}

func (tv *txMemoryView) ListEmployees(_ context.Context) ([]attendance.Employee, error) {
	return tv.parent.listEmployeesLocked(false), nil
}

func (tv *txMemoryView) ListActiveEmployees(_ context.Context) ([]attendance.Employee, error) {
	return tv.parent.listEmployeesLocked(true), nil
}

func (tv *txMemoryView) UpsertRecord(_ context.Context, rec attendance.DailyRecord) error {
	tv.parent.upsertLocked(rec)
	return nil
}

func (tv *txMemoryView) GetRecord(_ context.Context, id attendance.RecordID) (*attendance.DailyRecord, error) {
	return tv.parent.getRecordLocked(id), nil
}

func (tv *txMemoryView) GetRecordByKey(_ context.Context, employeeID attendance.EmployeeID, date generic.Date) (*attendance.DailyRecord, error) {
	return tv.parent.getByKeyLocked(employeeID, date), nil
}

func (tv *txMemoryView) FindRecords(_ context.Context, employeeID attendance.EmployeeID, period generic.Period) ([]attendance.DailyRecord, error) {
	return tv.parent.findLocked(func(rec attendance.DailyRecord) bool {
		return rec.EmployeeID == employeeID && period.Contains(rec.Date)
	}), nil
}

func (tv *txMemoryView) AggregateByEmployee(_ context.Context, period generic.Period) ([]attendance.LedgerTotals, error) {
	return attendance.TotalsOf(tv.parent.findLocked(func(rec attendance.DailyRecord) bool {
		return period.Contains(rec.Date)
	})), nil
}

func (tv *txMemoryView) DeleteRecord(_ context.Context, id attendance.RecordID) error {
	return tv.parent.deleteLocked(id)
}

func (tv *txMemoryView) SaveRun(_ context.Context, run attendance.Run) error {
	tv.parent.runs[run.ID] = run
	return nil
}

func (tv *txMemoryView) ListRuns(_ context.Context, limit int) ([]attendance.Run, error) {
	return tv.parent.listRunsLocked(limit), nil
}
