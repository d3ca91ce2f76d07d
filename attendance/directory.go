package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================
// Admin-side writes to the employee records the engine reads. Updates are
// typed: only the fields of EmployeeUpdate can change.

// ErrDuplicateEmployeeCode is returned when an active employee already uses
// the biometric code.
var ErrDuplicateEmployeeCode = errors.New("biometric code already used by an active employee")

// NewEmployee is the create request.
type NewEmployee struct {
	Name            string
	Code            string
	Active          bool
	ShiftStart      string // HH:MM
	ShiftEnd        string // HH:MM
	DutyHoursPerDay float64
	MonthlySalary   decimal.Decimal
}

// EmployeeUpdate lists the mutable employee fields. Nil means unchanged.
type EmployeeUpdate struct {
	Name            *string
	Code            *string
	Active          *bool
	ShiftStart      *string
	ShiftEnd        *string
	DutyHoursPerDay *float64
	MonthlySalary   *decimal.Decimal
}

type Directory struct {
	Store EmployeeStore
	Now   func() time.Time
	NewID func() string
}

func NewDirectory(store EmployeeStore) *Directory {
	return &Directory{Store: store, Now: time.Now, NewID: uuid.NewString}
}

// Create validates and stores a new employee.
func (d *Directory) Create(ctx context.Context, req NewEmployee) (Employee, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Employee{}, &generic.ValidationError{Field: "name", Message: "is required"}
	}
	start, err := parseShiftClock("shift_start", req.ShiftStart)
	if err != nil {
		return Employee{}, err
	}
	end, err := parseShiftClock("shift_end", req.ShiftEnd)
	if err != nil {
		return Employee{}, err
	}

	now := d.Now().UTC()
	emp := Employee{
		ID:              EmployeeID(d.NewID()),
		Name:            strings.TrimSpace(req.Name),
		Code:            strings.TrimSpace(req.Code),
		Active:          req.Active,
		ShiftStart:      start,
		ShiftEnd:        end,
		DutyHoursPerDay: req.DutyHoursPerDay,
		MonthlySalary:   req.MonthlySalary,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := validatePay(emp); err != nil {
		return Employee{}, err
	}
	if err := d.checkCodeFree(ctx, emp); err != nil {
		return Employee{}, err
	}
	if err := d.Store.SaveEmployee(ctx, emp); err != nil {
		return Employee{}, fmt.Errorf("save employee: %w", err)
	}
	return emp, nil
}

// Update applies the non-nil fields of upd.
func (d *Directory) Update(ctx context.Context, id EmployeeID, upd EmployeeUpdate) (Employee, error) {
	existing, err := d.Store.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, fmt.Errorf("load employee: %w", err)
	}
	if existing == nil {
		return Employee{}, &generic.NotFoundError{Kind: "employee", ID: string(id)}
	}
	emp := *existing

	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return Employee{}, &generic.ValidationError{Field: "name", Message: "cannot be empty"}
		}
		emp.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Code != nil {
		emp.Code = strings.TrimSpace(*upd.Code)
	}
	if upd.Active != nil {
		emp.Active = *upd.Active
	}
	if upd.ShiftStart != nil {
		if emp.ShiftStart, err = parseShiftClock("shift_start", *upd.ShiftStart); err != nil {
			return Employee{}, err
		}
	}
	if upd.ShiftEnd != nil {
		if emp.ShiftEnd, err = parseShiftClock("shift_end", *upd.ShiftEnd); err != nil {
			return Employee{}, err
		}
	}
	if upd.DutyHoursPerDay != nil {
		emp.DutyHoursPerDay = *upd.DutyHoursPerDay
	}
	if upd.MonthlySalary != nil {
		emp.MonthlySalary = *upd.MonthlySalary
	}
	if err := validatePay(emp); err != nil {
		return Employee{}, err
	}
	if err := d.checkCodeFree(ctx, emp); err != nil {
		return Employee{}, err
	}

	emp.UpdatedAt = d.Now().UTC()
	if err := d.Store.SaveEmployee(ctx, emp); err != nil {
		return Employee{}, fmt.Errorf("save employee: %w", err)
	}
	return emp, nil
}

func (d *Directory) checkCodeFree(ctx context.Context, emp Employee) error {
	if !emp.Active || emp.Code == "" {
		return nil
	}
	active, err := d.Store.ListActiveEmployees(ctx)
	if err != nil {
		return fmt.Errorf("list active employees: %w", err)
	}
	for _, other := range active {
		if other.ID != emp.ID && strings.TrimSpace(other.Code) == emp.Code {
			return fmt.Errorf("%w: %s", ErrDuplicateEmployeeCode, emp.Code)
		}
	}
	return nil
}

func parseShiftClock(field, s string) (generic.ClockTime, error) {
	c, err := generic.ParseClockTime(s)
	if err != nil {
		return generic.ClockTime{}, &generic.ValidationError{Field: field, Message: "must be HH:MM", Err: err}
	}
	return c, nil
}

func validatePay(emp Employee) error {
	if emp.DutyHoursPerDay <= 0 || emp.DutyHoursPerDay > 24 {
		return &generic.ValidationError{Field: "duty_hours_per_day", Message: "must be in (0, 24]"}
	}
	if emp.MonthlySalary.IsNegative() {
		return &generic.ValidationError{Field: "salary", Message: "cannot be negative"}
	}
	return nil
}
