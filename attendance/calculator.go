package attendance

import (
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// SALARY / OVERTIME CALCULATOR
// =============================================================================
// All functions are total: zero or negative divisors yield zero, negative
// minute counts clamp to zero. Money is rounded to 2 places on the way out.

// DefaultOvertimeMultiplier applies when no multiplier is configured.
var DefaultOvertimeMultiplier = decimal.RequireFromString("1.5")

// StandardWorkingDays is the daily-rate divisor for a month: the number of
// calendar days in it. Every component goes through this one policy.
func StandardWorkingDays(m generic.Month) int {
	return m.DaysIn()
}

// DailyRate is monthlySalary / divisor, rounded to 2 places.
func DailyRate(monthlySalary decimal.Decimal, divisor int) decimal.Decimal {
	if divisor <= 0 || !monthlySalary.IsPositive() {
		return decimal.Zero
	}
	return generic.RoundMoney(monthlySalary.Div(decimal.NewFromInt(int64(divisor))))
}

// MonthlyDailyRate applies the StandardWorkingDays policy.
func MonthlyDailyRate(monthlySalary decimal.Decimal, m generic.Month) decimal.Decimal {
	return DailyRate(monthlySalary, StandardWorkingDays(m))
}

func OvertimeMinutes(workMinutes, shiftMinutes int) int {
	return max(0, workMinutes-shiftMinutes)
}

// ProratedSalary pays dailyRate in proportion to the shift worked, capped at
// one full day.
func ProratedSalary(workMinutes, shiftMinutes int, dailyRate decimal.Decimal) decimal.Decimal {
	if shiftMinutes <= 0 {
		return decimal.Zero
	}
	ratio := decimal.NewFromInt(int64(max(0, workMinutes))).Div(decimal.NewFromInt(int64(shiftMinutes)))
	ratio = decimal.Min(ratio, decimal.NewFromInt(1))
	return generic.RoundMoney(dailyRate.Mul(ratio))
}

// OvertimeAmount is (otMinutes / 60) x hourlyRate x multiplier.
func OvertimeAmount(otMinutes int, hourlyRate, multiplier decimal.Decimal) decimal.Decimal {
	if otMinutes <= 0 {
		return decimal.Zero
	}
	hours := decimal.NewFromInt(int64(otMinutes)).Div(decimal.NewFromInt(60))
	return generic.RoundMoney(hours.Mul(hourlyRate).Mul(multiplier))
}

// HourlyRate spreads dailyRate over the shift's hours.
func HourlyRate(dailyRate decimal.Decimal, shiftMinutes int) decimal.Decimal {
	if shiftMinutes <= 0 {
		return decimal.Zero
	}
	hours := decimal.NewFromInt(int64(shiftMinutes)).Div(decimal.NewFromInt(60))
	return generic.RoundMoney(dailyRate.Div(hours))
}

// SalaryDayCredit is the fraction of a day credited for workMinutes:
// 0, min(work/shift, 1) rounded to 2 places, or 1.
func SalaryDayCredit(workMinutes, shiftMinutes int) decimal.Decimal {
	switch {
	case workMinutes <= 0:
		return decimal.Zero
	case shiftMinutes <= 0 || workMinutes >= shiftMinutes:
		return decimal.NewFromInt(1)
	default:
		return generic.Ratio(workMinutes, shiftMinutes)
	}
}

// ClassifyWork compares worked minutes to the configured shift.
func ClassifyWork(workMinutes, shiftMinutes int) Status {
	switch {
	case workMinutes > shiftMinutes:
		return StatusPresentOvertime
	case workMinutes == shiftMinutes:
		return StatusPresentComplete
	default:
		return StatusPresentIncomplete
	}
}
