// Package cli formats pagebind results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/pagebind/internal/export"
	"github.com/hyperjump/pagebind/internal/models"
)

// OutputFormat is the format for index and export output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputXLSX is an Excel workbook. Only the index supports it.
	OutputXLSX OutputFormat = "xlsx"
)

// ParseFormat validates a -format flag value. Empty means text.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "":
		return OutputText, nil
	case OutputText, OutputJSON, OutputXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json, or xlsx)", s)
	}
}

// WriteIndex writes index entries to w in the given format.
func WriteIndex(w io.Writer, entries []models.IndexEntry, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, entries)
	case OutputXLSX:
		return export.WriteIndexWorkbook(w, entries)
	default:
		writeIndexText(w, entries)
		return nil
	}
}

func writeIndexText(w io.Writer, entries []models.IndexEntry) {
	for _, e := range entries {
		indent := strings.Repeat("  ", e.Level)
		pages := e.PageRange
		if e.Kind == models.KindFolder {
			pages = ""
			if e.TargetPage != nil {
				pages = fmt.Sprintf("from %d", *e.TargetPage)
			}
		}
		fmt.Fprintf(w, "%s%-6s %s", indent, e.Section, e.Name)
		if pages != "" {
			fmt.Fprintf(w, "  [%s]", pages)
		}
		fmt.Fprintln(w)
	}
}

// WriteExport writes an export record to w. XLSX falls back to text.
func WriteExport(w io.Writer, rec *models.Export, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rec)
	}
	fmt.Fprintf(w, "Exported %s (%d pages, %d bytes)\n", rec.Path, rec.Pages, rec.Bytes)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
