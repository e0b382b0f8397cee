// Package export renders attendance data to Excel workbooks.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"classtrack/internal/postgres"
)

var header = []string{"Student", "Email", "Status", "Checked in at"}

// AttendanceWorkbook builds a one-sheet workbook for a class on a date.
// Enrolled students without a record show an empty status.
func AttendanceWorkbook(className string, date time.Time, rows []postgres.ReportRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	sheet := "Attendance"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	title := fmt.Sprintf("%s - %s", className, date.Format("2006-01-02"))
	if err := f.SetCellStr(sheet, "A1", title); err != nil {
		return nil, err
	}

	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for col, h := range header {
		cell := fmt.Sprintf("%s2", colName(col+1))
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	end := colName(len(header)) + "2"
	_ = f.SetCellStyle(sheet, "A1", end, bold)
	_ = f.AutoFilter(sheet, "A2:"+end, nil)

	for i, row := range rows {
		checkedIn := ""
		if row.CheckedInAt != nil {
			checkedIn = row.CheckedInAt.Format("2006-01-02 15:04")
		}
		values := []string{row.StudentName, row.Email, row.Status, checkedIn}
		for c, val := range values {
			cell := fmt.Sprintf("%s%d", colName(c+1), i+3)
			if err := f.SetCellStr(sheet, cell, val); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	widths := []float64{28, 32, 12, 20}
	for c, w := range widths {
		_ = f.SetColWidth(sheet, colName(c+1), colName(c+1), w)
	}

	return f.WriteToBuffer()
}

func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}
