package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/pagebind/internal/models"
)

const indexSheet = "Index"

// WriteIndexWorkbook writes entries as a spreadsheet with one row per entry,
// names indented by level.
func WriteIndexWorkbook(w io.Writer, entries []models.IndexEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", indexSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := []any{"Section", "Name", "Kind", "Pages", "First page"}
	if err := f.SetSheetRow(indexSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, e := range entries {
		var first any
		if e.TargetPage != nil {
			first = *e.TargetPage
		}
		row := []any{e.Section, strings.Repeat("  ", e.Level) + e.Name, string(e.Kind), e.PageRange, first}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(indexSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(indexSheet, "B", "B", 60); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}
