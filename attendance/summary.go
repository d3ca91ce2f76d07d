package attendance

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// MONTHLY AGGREGATOR
// =============================================================================

// Aggregator rolls the ledger up into per-employee monthly summaries.
type Aggregator struct {
	Store              Store
	OvertimeMultiplier decimal.Decimal
}

func NewAggregator(store Store, multiplier decimal.Decimal) *Aggregator {
	if !multiplier.IsPositive() {
		multiplier = DefaultOvertimeMultiplier
	}
	return &Aggregator{Store: store, OvertimeMultiplier: multiplier}
}

// MonthlySummary returns one row per employee with at least one record in
// month, sorted by name. Rows whose employee no longer exists are dropped.
func (a *Aggregator) MonthlySummary(ctx context.Context, month generic.Month) ([]MonthlySummary, error) {
	totals, err := a.Store.AggregateByEmployee(ctx, month.Period())
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger: %w", err)
	}

	summaries := make([]MonthlySummary, 0, len(totals))
	for _, t := range totals {
		emp, err := a.Store.GetEmployee(ctx, t.EmployeeID)
		if err != nil {
			return nil, fmt.Errorf("load employee %s: %w", t.EmployeeID, err)
		}
		if emp == nil {
			continue
		}
		summaries = append(summaries, a.summarize(*emp, t, month))
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Name != summaries[j].Name {
			return summaries[i].Name < summaries[j].Name
		}
		return summaries[i].EmployeeID < summaries[j].EmployeeID
	})
	return summaries, nil
}

func (a *Aggregator) summarize(emp Employee, t LedgerTotals, month generic.Month) MonthlySummary {
	hourly := HourlyRate(MonthlyDailyRate(emp.MonthlySalary, month), emp.ShiftMinutes())
	return MonthlySummary{
		EmployeeID:      emp.ID,
		Name:            emp.Name,
		Present:         t.Present,
		Absent:          t.Absent,
		WorkingDays:     t.SalaryDays,
		OvertimeMinutes: t.OvertimeMinutes,
		OvertimeHours:   generic.MinutesToHours(t.OvertimeMinutes),
		OvertimePay:     OvertimeAmount(t.OvertimeMinutes, hourly, a.OvertimeMultiplier),
		TotalSalary:     generic.RoundMoney(t.TotalSalary),
	}
}

// TotalsOf computes LedgerTotals in memory. Stores that cannot group
// server-side use it; it is also the reference the SQL reducers match.
func TotalsOf(records []DailyRecord) []LedgerTotals {
	index := make(map[EmployeeID]int)
	var out []LedgerTotals
	for _, rec := range records {
		i, ok := index[rec.EmployeeID]
		if !ok {
			i = len(out)
			index[rec.EmployeeID] = i
			out = append(out, LedgerTotals{
				EmployeeID:  rec.EmployeeID,
				SalaryDays:  decimal.Zero,
				TotalSalary: decimal.Zero,
			})
		}
		t := &out[i]
		if rec.Status.IsPresent() {
			t.Present++
		}
		if rec.Status == StatusAbsent {
			t.Absent++
		}
		t.SalaryDays = t.SalaryDays.Add(rec.SalaryDayCount)
		t.OvertimeMinutes += rec.OvertimeMinutes
		t.TotalSalary = t.TotalSalary.Add(rec.DaySalary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out
}
