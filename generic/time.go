package generic

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - A calendar day (the ledger key granularity)
// =============================================================================

// Date is a calendar day at midnight UTC.
type Date struct {
	t time.Time
}

const (
	DateLayout       = "2006-01-02"
	VendorDateLayout = "02/01/2006"
	ClockLayout      = "15:04"
)

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	return parseDateLayout(s, DateLayout)
}

// ParseVendorDate parses the biometric vendor's DD/MM/YYYY.
func ParseVendorDate(s string) (Date, error) {
	return parseDateLayout(s, VendorDateLayout)
}

func parseDateLayout(s, layout string) (Date, error) {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ParseError{Input: s, Layout: layout, Err: err}
	}
	return DateOf(t), nil
}

func (d Date) Time() time.Time          { return d.t }
func (d Date) Year() int                { return d.t.Year() }
func (d Date) Month() time.Month        { return d.t.Month() }
func (d Date) Day() int                 { return d.t.Day() }
func (d Date) Weekday() time.Weekday    { return d.t.Weekday() }
func (d Date) IsZero() bool             { return d.t.IsZero() }
func (d Date) AddDays(n int) Date       { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Before(other Date) bool   { return d.t.Before(other.t) }
func (d Date) After(other Date) bool    { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool    { return d.t.Equal(other.t) }
func (d Date) String() string           { return d.t.Format(DateLayout) }
func (d Date) VendorString() string     { return d.t.Format(VendorDateLayout) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }

// At returns the timestamp of clock time c on this day.
func (d Date) At(c ClockTime) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, 0, 0, time.UTC)
}

// =============================================================================
// CLOCK TIME - Time of day, minute precision
// =============================================================================

type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses a 24h "HH:MM" string.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, &ParseError{Input: s, Layout: ClockLayout, Err: err}
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

func (c ClockTime) String() string {
	return time.Date(0, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC).Format(ClockLayout)
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp accepts ISO-8601 date-times with or without seconds and zone.
// Zone-less input is read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Input: s, Layout: "2006-01-02T15:04[:05][Z07:00]"}
}

// =============================================================================
// MINUTE ARITHMETIC
// =============================================================================

// MinutesBetween returns whole minutes from start to end, never negative.
// Overnight correction is the caller's job.
func MinutesBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

// ApplyOvernightCorrection moves out to the next day when it precedes in.
func ApplyOvernightCorrection(in, out time.Time) time.Time {
	if out.Before(in) {
		return out.Add(24 * time.Hour)
	}
	return out
}

// MinutesToHours converts minutes to hours rounded to 2 places.
func MinutesToHours(m int) decimal.Decimal {
	return Ratio(m, 60)
}

// HoursToMinutes truncates fractional minutes.
func HoursToMinutes(h float64) int {
	return int(h * 60)
}

// =============================================================================
// CALENDAR
// =============================================================================

// AllDatesOfMonth returns every day of the month, first to last.
func AllDatesOfMonth(year int, month time.Month) []Date {
	var days []Date
	for d := NewDate(year, month, 1); d.Month() == month; d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// WeeklyOff is the single designated non-working weekday.
type WeeklyOff time.Weekday

// DefaultWeeklyOff is the last day of an ISO week.
const DefaultWeeklyOff = WeeklyOff(time.Sunday)

func (w WeeklyOff) IsWeeklyOff(d Date) bool { return d.Weekday() == time.Weekday(w) }
func (w WeeklyOff) String() string          { return time.Weekday(w).String() }

// ParseWeekday accepts full or three-letter English day names, any case.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if name == full || name == full[:3] {
			return wd, nil
		}
	}
	return time.Sunday, &ParseError{Input: s, Layout: "weekday"}
}
