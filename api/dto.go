/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the attendance domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Employee:
    EmployeeDTO, CreateEmployeeRequest, UpdateEmployeeRequest

  Attendance:
    AttendanceDTO, ManualEditRequest, FetchRequest, BatchResultDTO

  Summary:
    MonthlySummaryDTO, RunDTO

VALIDATION:
  Validation is done in the attendance package, not in DTOs. DTOs are pure
  data carriers. Update bodies reject unknown fields.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Code            string  `json:"emp_code"`
	Active          bool    `json:"is_active"`
	ShiftStart      string  `json:"shift_start"`
	ShiftEnd        string  `json:"shift_end"`
	DutyHoursPerDay float64 `json:"duty_hours_per_day"`
	Salary          float64 `json:"salary"`
	CreatedAt       string  `json:"created_at,omitempty"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	Name            string          `json:"name"`
	Code            string          `json:"emp_code"`
	Active          *bool           `json:"is_active"` // defaults to true
	ShiftStart      string          `json:"shift_start"`
	ShiftEnd        string          `json:"shift_end"`
	DutyHoursPerDay float64         `json:"duty_hours_per_day"`
	Salary          decimal.Decimal `json:"salary"`
}

// UpdateEmployeeRequest lists the fields an admin may change.
type UpdateEmployeeRequest struct {
	Name            *string          `json:"name"`
	Code            *string          `json:"emp_code"`
	Active          *bool            `json:"is_active"`
	ShiftStart      *string          `json:"shift_start"`
	ShiftEnd        *string          `json:"shift_end"`
	DutyHoursPerDay *float64         `json:"duty_hours_per_day"`
	Salary          *decimal.Decimal `json:"salary"`
}

func toEmployeeDTO(e attendance.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:              string(e.ID),
		Name:            e.Name,
		Code:            e.Code,
		Active:          e.Active,
		ShiftStart:      e.ShiftStart.String(),
		ShiftEnd:        e.ShiftEnd.String(),
		DutyHoursPerDay: e.DutyHoursPerDay,
		Salary:          e.MonthlySalary.InexactFloat64(),
		CreatedAt:       formatTime(e.CreatedAt),
		UpdatedAt:       formatTime(e.UpdatedAt),
	}
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// AttendanceDTO is one ledger record.
type AttendanceDTO struct {
	ID              string  `json:"id"`
	EmployeeID      string  `json:"employee_id"`
	EmployeeCode    string  `json:"emp_code"`
	Date            string  `json:"date"`
	Status          string  `json:"status"`
	WorkMinutes     int     `json:"work_minutes"`
	OvertimeMinutes int     `json:"ot_minutes"`
	SalaryDayCount  float64 `json:"salary_day_count"`
	DaySalary       float64 `json:"day_salary"`
	Source          string  `json:"source"`
	InTime          *string `json:"in_time"`
	OutTime         *string `json:"out_time"`
	UpdatedAt       *string `json:"updated_at,omitempty"`
}

// ManualEditRequest is the body of PUT /api/attendance/{id}.
type ManualEditRequest struct {
	InDatetime  string `json:"in_datetime"`
	OutDatetime string `json:"out_datetime"`
}

// FetchRequest is the body of POST /api/attendance/fetch.
type FetchRequest struct {
	Month string `json:"month"`
}

// BatchResultDTO reports one reconciliation batch.
type BatchResultDTO struct {
	Message       string         `json:"message"`
	RunID         string         `json:"run_id"`
	Month         string         `json:"month"`
	Employees     int            `json:"employees"`
	Written       int            `json:"records_written"`
	SkippedManual int            `json:"skipped_manual"`
	ByStatus      map[string]int `json:"by_status"`
}

func toAttendanceDTO(r attendance.DailyRecord) AttendanceDTO {
	return AttendanceDTO{
		ID:              string(r.ID),
		EmployeeID:      string(r.EmployeeID),
		EmployeeCode:    r.EmployeeCode,
		Date:            r.Date.String(),
		Status:          string(r.Status),
		WorkMinutes:     r.WorkMinutes,
		OvertimeMinutes: r.OvertimeMinutes,
		SalaryDayCount:  r.SalaryDayCount.InexactFloat64(),
		DaySalary:       r.DaySalary.InexactFloat64(),
		Source:          string(r.Source),
		InTime:          formatTimePtr(r.InAt),
		OutTime:         formatTimePtr(r.OutAt),
		UpdatedAt:       formatTimePtr(r.UpdatedAt),
	}
}

func toBatchResultDTO(r attendance.BatchResult) BatchResultDTO {
	byStatus := make(map[string]int, len(r.ByStatus))
	for status, n := range r.ByStatus {
		byStatus[string(status)] = n
	}
	return BatchResultDTO{
		Message:       "Attendance processed successfully",
		RunID:         string(r.RunID),
		Month:         r.Month,
		Employees:     r.Employees,
		Written:       r.Written,
		SkippedManual: r.SkippedManual,
		ByStatus:      byStatus,
	}
}

// =============================================================================
// SUMMARY & RUNS
// =============================================================================

// MonthlySummaryDTO is one row of the monthly salary table.
type MonthlySummaryDTO struct {
	EmployeeID    string  `json:"employee_id"`
	Name          string  `json:"name"`
	PresentDays   int     `json:"present_days"`
	AbsentDays    int     `json:"absent_days"`
	WorkingDays   float64 `json:"working_days"`
	OvertimeHours float64 `json:"ot_hours"`
	OvertimePay   float64 `json:"ot_pay"`
	TotalSalary   float64 `json:"total_salary"`
}

func toMonthlySummaryDTO(s attendance.MonthlySummary) MonthlySummaryDTO {
	return MonthlySummaryDTO{
		EmployeeID:    string(s.EmployeeID),
		Name:          s.Name,
		PresentDays:   s.Present,
		AbsentDays:    s.Absent,
		WorkingDays:   s.WorkingDays.InexactFloat64(),
		OvertimeHours: s.OvertimeHours.InexactFloat64(),
		OvertimePay:   s.OvertimePay.InexactFloat64(),
		TotalSalary:   s.TotalSalary.InexactFloat64(),
	}
}

// RunDTO is one entry of the reconciliation run log.
type RunDTO struct {
	ID            string  `json:"id"`
	Month         string  `json:"month"`
	Trigger       string  `json:"trigger"`
	Status        string  `json:"status"`
	Employees     int     `json:"employees"`
	Written       int     `json:"records_written"`
	SkippedManual int     `json:"skipped_manual"`
	Error         string  `json:"error,omitempty"`
	StartedAt     string  `json:"started_at"`
	CompletedAt   *string `json:"completed_at,omitempty"`
}

func toRunDTO(r attendance.Run) RunDTO {
	return RunDTO{
		ID:            string(r.ID),
		Month:         r.Month,
		Trigger:       string(r.Trigger),
		Status:        string(r.Status),
		Employees:     r.Employees,
		Written:       r.Written,
		SkippedManual: r.SkippedManual,
		Error:         r.Error,
		StartedAt:     formatTime(r.StartedAt),
		CompletedAt:   formatTimePtr(r.CompletedAt),
	}
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
