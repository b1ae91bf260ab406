package sheets

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/gauravpcu/vendor-statements-sub000/internal/verification"
)

// WriteOutcomesXLSX writes verification results to a local workbook using the
// same columns as the Google Sheets export.
func WriteOutcomesXLSX(path string, results []verification.Result, sheetName string) error {
	const op = "WriteOutcomesXLSX"

	f := excelize.NewFile()
	defer f.Close()

	if sheetName == "" {
		sheetName = "Verification"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("%s: rename sheet: %w", op, err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &outcomeColumns); err != nil {
		return fmt.Errorf("%s: write headers: %w", op, err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(sheetName, 1, 1, bold)
	}

	for i, row := range OutcomeRows(results, time.Now()) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		values := row.values()
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("%s: write row %d: %w", op, i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%s: save %s: %w", op, path, err)
	}
	return nil
}
