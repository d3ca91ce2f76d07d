package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - Inclusive day range
// =============================================================================

// Period is the inclusive day range [Start, End].
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns all days in the period.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// MONTH - The reconciliation batch unit
// =============================================================================

// Month identifies one calendar month; reconciliation always runs per month.
type Month struct {
	Year  int
	Month time.Month
}

const MonthLayout = "2006-01"

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return Month{}, &ParseError{Input: s, Layout: MonthLayout, Err: err}
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the month containing d.
func MonthOf(d Date) Month { return Month{Year: d.Year(), Month: d.Month()} }

func (m Month) First() Date { return NewDate(m.Year, m.Month, 1) }

func (m Month) Last() Date {
	return NewDate(m.Year, m.Month+1, 1).AddDays(-1)
}

// DaysIn is the number of calendar days in the month.
func (m Month) DaysIn() int { return m.Last().Day() }

func (m Month) Days() []Date         { return AllDatesOfMonth(m.Year, m.Month) }
func (m Month) Period() Period       { return Period{Start: m.First(), End: m.Last()} }
func (m Month) Contains(d Date) bool { return d.Year() == m.Year && d.Month() == m.Month }
func (m Month) String() string       { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }
