package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/generic"
)

func TestParseVendorDate(t *testing.T) {
	d, err := generic.ParseVendorDate("05/03/2024")
	require.NoError(t, err)
	assert.Equal(t, generic.NewDate(2024, time.March, 5), d)
	assert.Equal(t, "2024-03-05", d.String())
	assert.Equal(t, "05/03/2024", d.VendorString())

	_, err = generic.ParseVendorDate("2024-03-05")
	assert.ErrorIs(t, err, generic.ErrParse)
}

func TestDate_AddDaysAcrossMonth(t *testing.T) {
	d := generic.NewDate(2024, time.February, 28)
	assert.Equal(t, generic.NewDate(2024, time.February, 29), d.AddDays(1))
	assert.Equal(t, generic.NewDate(2024, time.March, 1), d.AddDays(2))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.BeforeOrEqual(d))
}

func TestParseClockTime(t *testing.T) {
	c, err := generic.ParseClockTime(" 09:05 ")
	require.NoError(t, err)
	assert.Equal(t, 9*60+5, c.Minutes())
	assert.Equal(t, "09:05", c.String())

	for _, bad := range []string{"", "--:--", "25:00", "9am"} {
		_, err := generic.ParseClockTime(bad)
		assert.ErrorIs(t, err, generic.ErrParse, "input %q", bad)
	}
}

func TestDate_At(t *testing.T) {
	d := generic.NewDate(2024, time.March, 5)
	at := d.At(generic.ClockTime{Hour: 23, Minute: 50})
	assert.Equal(t, time.Date(2024, time.March, 5, 23, 50, 0, 0, time.UTC), at)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-05T09:00", time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)},
		{"2024-03-05T09:00:30", time.Date(2024, 3, 5, 9, 0, 30, 0, time.UTC)},
		{"2024-03-05 18:15", time.Date(2024, 3, 5, 18, 15, 0, 0, time.UTC)},
		{"2024-03-05T09:00:00Z", time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := generic.ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.in, got)
	}

	_, err := generic.ParseTimestamp("05/03/2024 09:00")
	assert.ErrorIs(t, err, generic.ErrParse)
}

func TestOvernightCorrection(t *testing.T) {
	// GIVEN: In at 23:50, out at 00:10 on the same calendar day
	d := generic.NewDate(2024, time.March, 5)
	in := d.At(generic.ClockTime{Hour: 23, Minute: 50})
	out := d.At(generic.ClockTime{Hour: 0, Minute: 10})

	// WHEN: Correcting and measuring
	corrected := generic.ApplyOvernightCorrection(in, out)

	// THEN: Out moves to the next day and the shift is 20 minutes
	assert.Equal(t, 20, generic.MinutesBetween(in, corrected))
	assert.Equal(t, 0, generic.MinutesBetween(in, out), "uncorrected span never goes negative")
}

func TestMinutesToHours(t *testing.T) {
	assert.True(t, decimal.RequireFromString("1.5").Equal(generic.MinutesToHours(90)))
	assert.True(t, decimal.RequireFromString("0.33").Equal(generic.MinutesToHours(20)))
	assert.Equal(t, 510, generic.HoursToMinutes(8.5))
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"Sunday": time.Sunday,
		"sun":    time.Sunday,
		"FRI":    time.Friday,
		"monday": time.Monday,
	} {
		got, err := generic.ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := generic.ParseWeekday("someday")
	assert.ErrorIs(t, err, generic.ErrParse)
}

func TestWeeklyOff(t *testing.T) {
	off := generic.DefaultWeeklyOff
	assert.True(t, off.IsWeeklyOff(generic.NewDate(2024, time.March, 3)), "2024-03-03 is a Sunday")
	assert.False(t, off.IsWeeklyOff(generic.NewDate(2024, time.March, 4)))
	assert.Equal(t, "Sunday", off.String())
}

func TestRatioAndHundredths(t *testing.T) {
	assert.True(t, decimal.RequireFromString("0.5").Equal(generic.Ratio(240, 480)))
	assert.True(t, generic.Ratio(5, 0).IsZero())

	v := decimal.RequireFromString("1234.567")
	assert.Equal(t, int64(123457), generic.ToHundredths(v))
	assert.True(t, decimal.RequireFromString("1234.57").Equal(generic.FromHundredths(123457)))
}

func TestErrorClassification(t *testing.T) {
	parse := &generic.ParseError{Input: "x", Layout: "15:04"}
	validation := &generic.ValidationError{Field: "id", Message: "not a uuid"}
	missing := &generic.NotFoundError{Kind: "employee", ID: "e-1"}
	upstream := &generic.UpstreamError{Service: "biometric", StatusCode: 503}

	assert.True(t, generic.IsClientError(parse))
	assert.True(t, generic.IsClientError(validation))
	assert.False(t, generic.IsClientError(missing))
	assert.True(t, generic.IsNotFound(missing))
	assert.True(t, generic.IsUpstream(upstream))
	assert.Equal(t, "biometric returned status 503", upstream.Error())
	assert.Equal(t, "employee not found: e-1", missing.Error())

	cause := errors.New("dial tcp: timeout")
	wrapped := &generic.UpstreamError{Service: "biometric", Err: cause}
	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, generic.ErrUpstream)
}
