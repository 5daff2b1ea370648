package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// defaultSheet is the sheet excelize creates with every new file.
const defaultSheet = "Sheet1"

// WriteXLSX writes each sheet to its own worksheet of one Excel workbook.
// The header row is bold and frozen. The first sheet is active.
func WriteXLSX(w io.Writer, sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, s := range sheets {
		index, err := f.NewSheet(s.Name)
		if err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", s.Name, err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}
		if err := writeWorksheet(f, s, header); err != nil {
			return err
		}
	}

	if err := f.DeleteSheet(defaultSheet); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeWorksheet(f *excelize.File, s Sheet, headerStyle int) error {
	if err := f.SetSheetRow(s.Name, "A1", &s.Table.Headers); err != nil {
		return fmt.Errorf("failed to write %s header: %w", s.Name, err)
	}
	if err := f.SetRowStyle(s.Name, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", s.Name, err)
	}

	for i, row := range s.Table.Rows {
		if len(row) != len(s.Table.Headers) {
			return fmt.Errorf("%s row %d has %d fields, want %d", s.Name, i+1, len(row), len(s.Table.Headers))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", s.Name, i+1, err)
		}
	}

	return f.SetPanes(s.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
