// Package export renders monthly summaries as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// SheetName is the worksheet holding the summary table.
const SheetName = "Summary"

// Columns of the summary table, in order.
var Columns = []string{
	"Employee", "Present Days", "Absent Days", "Working Days",
	"OT Hours", "OT Pay", "Total Salary",
}

// headerRow is the first table row; rows above it hold the title.
const headerRow = 3

// WriteMonthlySummary writes summaries for month as an XLSX workbook to w.
func WriteMonthlySummary(w io.Writer, month generic.Month, summaries []attendance.MonthlySummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return err
	}

	f.SetCellValue(SheetName, "A1", "Attendance & Salary Summary "+month.String())
	f.SetCellStyle(SheetName, "A1", "A1", titleStyle)

	for i, title := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		f.SetCellValue(SheetName, cell, title)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	f.SetCellStyle(SheetName, "A3", fmt.Sprintf("%s%d", lastCol, headerRow), headerStyle)

	for i, s := range summaries {
		row := headerRow + 1 + i
		values := []any{
			s.Name,
			s.Present,
			s.Absent,
			s.WorkingDays.InexactFloat64(),
			s.OvertimeHours.InexactFloat64(),
			s.OvertimePay.InexactFloat64(),
			s.TotalSalary.InexactFloat64(),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, start, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		f.SetCellStyle(SheetName, fmt.Sprintf("F%d", row), fmt.Sprintf("G%d", row), moneyStyle)
	}

	f.SetColWidth(SheetName, "A", "A", 28)
	f.SetColWidth(SheetName, "B", lastCol, 15)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
