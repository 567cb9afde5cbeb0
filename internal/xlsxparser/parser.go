// =============================================================================
// Enrollment File Processor - XLSX Input Module
// =============================================================================
//
// This module reads enrollment rows from an Excel workbook instead of a
// delimited text file. Rows are taken from the first sheet, one enrollee per
// row, in the same column order as the CSV input:
//
//   | Column A      | Column B    | Column C | Column D     |
//   |---------------|-------------|----------|--------------|
//   | Subscriber ID | Full Name   | Version  | Organization |
//   | 1             | Alice Adams | 3        | Acme         |
//
// Cells go through the same field rules as CSV lines (csvparser.ParseFields),
// so a workbook row is accepted or rejected exactly like the equivalent line.
// The raw text kept on a Rejection is the row's cells joined with commas.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/enrollment-file-processor/internal/csvparser"
	"github.com/ginjaninja78/enrollment-file-processor/internal/validation"
)

// Extension identifies workbook inputs.
const Extension = ".xlsx"

// IsWorkbook reports whether path names a workbook input.
func IsWorkbook(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}

// =============================================================================
// READER
// =============================================================================

// Reader streams rows from the first sheet of a workbook. It has the same
// Next/Result/Err/Close shape as csvparser.Reader.
type Reader struct {
	file       *excelize.File
	rows       *excelize.Rows
	source     string
	sheet      string
	headerRows int

	current   csvparser.Result
	rowNumber int
	err       error
}

// Open opens the workbook at path. A workbook that cannot be opened, or that
// has no sheets, is reported as validation.ErrSourceUnavailable.
//
// PARAMETERS:
//   - path: The path to the .xlsx file.
//   - headerRows: Leading rows to skip without validation. Values below 1
//     mean 1.
func Open(path string, headerRows int) (*Reader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, validation.SourceUnavailable(path, err)
	}

	sheet := f.GetSheetName(0)
	if sheet == "" {
		f.Close()
		return nil, validation.SourceUnavailable(path, fmt.Errorf("workbook has no sheets"))
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, validation.SourceUnavailable(path, fmt.Errorf("failed to read sheet %q: %w", sheet, err))
	}

	if headerRows <= 0 {
		headerRows = 1
	}

	return &Reader{
		file:       f,
		rows:       rows,
		source:     path,
		sheet:      sheet,
		headerRows: headerRows,
	}, nil
}

// Next advances to the next data row. Header rows and empty rows are skipped.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}

	for r.rows.Next() {
		r.rowNumber++

		cells, err := r.rows.Columns()
		if err != nil {
			r.err = validation.SourceUnavailable(r.source,
				fmt.Errorf("failed to read row %d of sheet %q: %w", r.rowNumber, r.sheet, err))
			return false
		}

		if r.rowNumber <= r.headerRows || isRowEmpty(cells) {
			continue
		}

		r.current = csvparser.ParseFields(cells, strings.Join(cells, ","))
		if r.current.Rejection != nil {
			r.current.Rejection.Line = r.rowNumber
		}
		return true
	}

	if err := r.rows.Error(); err != nil {
		r.err = validation.SourceUnavailable(r.source, err)
	}
	return false
}

// Result returns the outcome for the current row.
func (r *Reader) Result() csvparser.Result {
	return r.current
}

// LineNumber returns the 1-based number of the current row.
func (r *Reader) LineNumber() int {
	return r.rowNumber
}

// Source names the input, for log fields.
func (r *Reader) Source() string {
	return r.source
}

// Err returns the error that stopped the read, if any.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the row iterator and the workbook.
func (r *Reader) Close() error {
	rowsErr := r.rows.Close()
	if err := r.file.Close(); err != nil {
		return err
	}
	return rowsErr
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
