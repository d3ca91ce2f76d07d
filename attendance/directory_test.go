package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
	"github.com/warp/attendance-engine/generic"
)

func newDirectory(s attendance.EmployeeStore) *attendance.Directory {
	d := attendance.NewDirectory(s)
	d.Now = func() time.Time { return fixedNow }
	return d
}

func validNewEmployee(code string) attendance.NewEmployee {
	return attendance.NewEmployee{
		Name:            " Priya ",
		Code:            code,
		Active:          true,
		ShiftStart:      "09:00",
		ShiftEnd:        "17:30",
		DutyHoursPerDay: 8.5,
		MonthlySalary:   money("30000"),
	}
}

func TestDirectory_Create(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()

	emp, err := newDirectory(s).Create(ctx, validNewEmployee(" E001 "))
	require.NoError(t, err)

	assert.NotEmpty(t, emp.ID)
	assert.Equal(t, "Priya", emp.Name)
	assert.Equal(t, "E001", emp.Code)
	assert.Equal(t, generic.ClockTime{Hour: 17, Minute: 30}, emp.ShiftEnd)
	assert.Equal(t, 510, emp.ShiftMinutes())
	assert.Equal(t, fixedNow, emp.CreatedAt)

	stored, err := s.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, emp, *stored)
}

func TestDirectory_CreateRejects(t *testing.T) {
	tests := map[string]func(*attendance.NewEmployee){
		"blank name":      func(e *attendance.NewEmployee) { e.Name = "  " },
		"bad shift start": func(e *attendance.NewEmployee) { e.ShiftStart = "9am" },
		"bad shift end":   func(e *attendance.NewEmployee) { e.ShiftEnd = "" },
		"zero duty hours": func(e *attendance.NewEmployee) { e.DutyHoursPerDay = 0 },
		"25 duty hours":   func(e *attendance.NewEmployee) { e.DutyHoursPerDay = 25 },
		"negative salary": func(e *attendance.NewEmployee) { e.MonthlySalary = money("-1") },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			s := store.NewTxMemory()
			req := validNewEmployee("E001")
			mutate(&req)

			_, err := newDirectory(s).Create(context.Background(), req)
			assert.ErrorIs(t, err, generic.ErrValidation)

			all, err := s.ListEmployees(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all, "nothing is stored")
		})
	}
}

func TestDirectory_ActiveCodesAreUnique(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	d := newDirectory(s)

	// GIVEN: An active employee using E001
	first, err := d.Create(ctx, validNewEmployee("E001"))
	require.NoError(t, err)

	// WHEN: Another active employee claims E001
	_, err = d.Create(ctx, validNewEmployee("E001"))

	// THEN: Rejected
	assert.ErrorIs(t, err, attendance.ErrDuplicateEmployeeCode)

	// AND: An inactive employee may keep the code
	inactive := validNewEmployee("E001")
	inactive.Active = false
	_, err = d.Create(ctx, inactive)
	assert.NoError(t, err)

	// AND: Once the first is deactivated the code is free again
	off := false
	_, err = d.Update(ctx, first.ID, attendance.EmployeeUpdate{Active: &off})
	require.NoError(t, err)
	_, err = d.Create(ctx, validNewEmployee("E001"))
	assert.NoError(t, err)
}

func TestDirectory_Update(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	d := newDirectory(s)
	emp, err := d.Create(ctx, validNewEmployee("E001"))
	require.NoError(t, err)

	later := fixedNow.Add(time.Hour)
	d.Now = func() time.Time { return later }

	name := "Priya N"
	salary := decimal.NewFromInt(36000)
	start := "08:00"
	updated, err := d.Update(ctx, emp.ID, attendance.EmployeeUpdate{
		Name:          &name,
		MonthlySalary: &salary,
		ShiftStart:    &start,
	})
	require.NoError(t, err)

	assert.Equal(t, "Priya N", updated.Name)
	assert.True(t, salary.Equal(updated.MonthlySalary))
	assert.Equal(t, generic.ClockTime{Hour: 8}, updated.ShiftStart)
	assert.Equal(t, emp.Code, updated.Code, "untouched fields are kept")
	assert.Equal(t, emp.CreatedAt, updated.CreatedAt)
	assert.Equal(t, later, updated.UpdatedAt)

	blank := ""
	_, err = d.Update(ctx, emp.ID, attendance.EmployeeUpdate{Name: &blank})
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = d.Update(ctx, "missing", attendance.EmployeeUpdate{Name: &name})
	assert.True(t, generic.IsNotFound(err))
}
