// Package export writes the consolidated price table as a spreadsheet.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

const SheetName = "bancodedados"

// ShiftFileName names the workbook after the part of the day it was made in.
func ShiftFileName(t time.Time) string {
	shift := "NOITE"
	switch h := t.Hour(); {
	case h < 12:
		shift = "MANHA"
	case h < 18:
		shift = "TARDE"
	}
	return fmt.Sprintf("PLANILHA_GERAL_%s.xlsx", shift)
}

// WriteXLSX writes rows to dir and returns the file path.
func WriteXLSX(dir string, rows [][]string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return "", err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return "", fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if len(rows) > 0 {
		if err := f.SetColWidth(SheetName, "A", "A", 40); err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, ShiftFileName(now))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}
