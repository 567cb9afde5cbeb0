// =============================================================================
// Enrollment File Processor - XLSX Workbook Writer
// =============================================================================
//
// This module writes every organization into one Excel workbook, one sheet
// per organization, as a convenience copy of the per-organization CSV files.
// Each sheet carries the same header and rows as the matching CSV file.
//
// SHEET NAMING:
//   Excel limits sheet names to 31 characters and forbids : \ / ? * [ ].
//   Forbidden characters become '_', the name is truncated, and a numeric
//   suffix is added when two organizations end up with the same sheet name:
//     "Acme/East"  -> "Acme_East"
//     "Acme:East"  -> "Acme_East (2)"
//
// =============================================================================

package xlsxwriter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/enrollment-file-processor/internal/csvwriter"
	"github.com/ginjaninja78/enrollment-file-processor/internal/types"
)

// MaxSheetNameLength is Excel's limit on sheet names.
const MaxSheetNameLength = 31

var sheetNameReplacer = strings.NewReplacer(
	":", "_", `\`, "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

// SheetName returns a valid sheet name for an organization. Uniqueness is
// handled by WriteWorkbook.
func SheetName(organization string) string {
	name := strings.TrimSpace(sheetNameReplacer.Replace(organization))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Organization"
	}
	return truncate(name, MaxSheetNameLength)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// uniqueSheetName returns name, or name with a " (N)" suffix, so that it is
// not yet used. Comparison ignores case, like Excel does.
func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(name, MaxSheetNameLength-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

// WriteWorkbook writes groups to a workbook at path, replacing any existing
// file. It returns the sheet name used for each organization, in group order.
//
// PARAMETERS:
//   - path: Destination .xlsx file. The parent directory is created.
//   - groups: Sorted organizations, as handed to the CSV writer.
//
// RETURNS:
//   - The sheet names, index-aligned with groups.
//   - An error if the workbook cannot be built or saved.
func WriteWorkbook(path string, groups []types.Group) ([]string, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	used := make(map[string]bool, len(groups))
	names := make([]string, 0, len(groups))

	for i, g := range groups {
		sheet := uniqueSheetName(SheetName(g.Organization), used)

		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return nil, fmt.Errorf("failed to rename sheet for %s: %w", g.Organization, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("failed to add sheet for %s: %w", g.Organization, err)
		}

		if err := writeSheet(f, sheet, g.Records, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to write sheet for %s: %w", g.Organization, err)
		}
		names = append(names, sheet)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workbook directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("failed to save workbook %s: %w", path, err)
	}

	return names, nil
}

// writeSheet fills one sheet with the header and the Records.
func writeSheet(f *excelize.File, sheet string, records []types.Record, headerStyle int) error {
	header := make([]any, len(csvwriter.Header))
	for i, h := range csvwriter.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", headerStyle); err != nil {
		return err
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{r.SubscriberID, r.FullName(), r.Version, r.Organization}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SetColWidth(sheet, "A", "D", 20)
}
