package xlsx

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// OvertimeRow is one approved overtime entry in the export.
type OvertimeRow struct {
	EmployeeCode     string
	EmployeeName     string
	OrganizationName string
	Date             string
	StartTime        string
	EndTime          string
	DurationMinutes  int
	Reason           string
	ApprovedAt       string
}

var overtimeHeaders = []string{
	"Kode Karyawan", "Nama", "Divisi", "Tanggal", "Mulai", "Selesai", "Durasi (jam)", "Keterangan", "Disetujui",
}

// Overtime writes rows to a single sheet workbook with a totals line.
func Overtime(sheetTitle string, rows []OvertimeRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Lembur"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	row := 0
	if sheetTitle != "" {
		row++
		if err := writeCell(f, sheet, 1, row, sheetTitle); err != nil {
			return nil, err
		}
		row++
	}

	row, err := writeHeader(f, sheet, row, overtimeHeaders)
	if err != nil {
		return nil, err
	}
	firstData := row + 1

	total := decimal.Zero
	for _, r := range rows {
		row++
		hours := decimal.NewFromInt(int64(r.DurationMinutes)).Div(decimal.NewFromInt(60)).Round(2)
		total = total.Add(hours)
		values := []interface{}{
			r.EmployeeCode, r.EmployeeName, r.OrganizationName, r.Date,
			r.StartTime, r.EndTime, hours.InexactFloat64(), r.Reason, r.ApprovedAt,
		}
		for col, v := range values {
			if err := writeCell(f, sheet, col+1, row, v); err != nil {
				return nil, err
			}
		}
	}

	if len(rows) > 0 {
		if err := applyDataCellStyle(f, sheet, 1, firstData, len(overtimeHeaders), row); err != nil {
			return nil, err
		}
	}

	row++
	if err := writeCell(f, sheet, 6, row, "Total"); err != nil {
		return nil, err
	}
	if err := writeCell(f, sheet, 7, row, total.InexactFloat64()); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func writeHeader(f *excelize.File, sheet string, row int, headers []string) (int, error) {
	row++
	style, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return row, err
	}
	cellFirst, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return row, err
	}
	cellLast, err := excelize.CoordinatesToCellName(len(headers), row)
	if err != nil {
		return row, err
	}
	if err := f.SetCellStyle(sheet, cellFirst, cellLast, style); err != nil {
		return row, err
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return row, err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return row, err
	}
	for idx, h := range headers {
		if err := writeCell(f, sheet, idx+1, row, h); err != nil {
			return row, err
		}
	}
	return row, nil
}

func applyDataCellStyle(f *excelize.File, sheet string, colFrom, rowFrom, colTo, rowTo int) error {
	style, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Font:      &excelize.Font{Size: 11},
	})
	if err != nil {
		return err
	}
	first, err := excelize.CoordinatesToCellName(colFrom, rowFrom)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(colTo, rowTo)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}
