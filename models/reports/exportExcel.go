package reports

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

func exportExcel(filename string, headings []string, rows [][]interface{}) error {

	f := excelize.NewFile()
	sheetName := "Sheet1"
	_, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	// Add headers
	col := 'A'
	for _, h := range headings {
		f.SetCellValue(sheetName, string(col)+"1", h)
		col++
	}

	// Add data
	for i, row := range rows {
		col := 'A'
		for _, value := range row {
			f.SetCellValue(sheetName, string(col)+fmt.Sprint(i+2), value)
			col++
		}
	}

	return f.SaveAs(filename)
}

// ExportShiftVarianceExcel writes the variance detail rows to an xlsx file.
func ExportShiftVarianceExcel(data []*ShiftVarianceDetailResponse, filename string) error {
	headings := []string{
		"ShiftId", "CashierId", "PackId", "PackNumber", "OpeningSerial", "ClosingSerial",
		"EntryMethod", "Expected", "Actual", "Difference", "ValueAtRisk",
	}
	rows := make([][]interface{}, 0, len(data))
	for _, d := range data {
		rows = append(rows, []interface{}{
			d.ShiftId, d.CashierId, d.PackId, d.PackNumber, d.OpeningSerial, d.ClosingSerial,
			d.EntryMethod, d.Expected, d.Actual, d.Difference, d.ValueAtRisk.StringFixed(2),
		})
	}
	return exportExcel(filename, headings, rows)
}

// ExportShiftSettlementExcel writes the per-shift settlement summary to an xlsx file.
func ExportShiftSettlementExcel(data []*ShiftSettlementResponse, filename string) error {
	headings := []string{
		"ShiftId", "CashierId", "Status", "OpenedAt", "ClosedAt", "PacksClosed", "PacksDepleted",
		"ManualClosings", "VarianceCount", "TicketShortfall", "CashExpected", "CashCounted", "CashVariance",
	}
	rows := make([][]interface{}, 0, len(data))
	for _, d := range data {
		closedAt := ""
		if d.ClosedAt != nil {
			closedAt = d.ClosedAt.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []interface{}{
			d.ShiftId, d.CashierId, d.CurrentStatus, d.OpenedAt.Format("2006-01-02 15:04:05"), closedAt,
			d.PacksClosed, d.PacksDepleted, d.ManualClosings, d.VarianceCount, d.TicketShortfall,
			d.CashExpected.StringFixed(2), d.CashCounted.StringFixed(2), d.CashVariance.StringFixed(2),
		})
	}
	return exportExcel(filename, headings, rows)
}
