package xlsxparser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/enrollment-file-processor/internal/csvparser"
	"github.com/ginjaninja78/enrollment-file-processor/internal/validation"
)

// writeWorkbook saves rows to the first sheet of a new workbook.
func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "enrollments.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func readAll(t *testing.T, r *Reader) []csvparser.Result {
	t.Helper()

	var results []csvparser.Result
	for r.Next() {
		results = append(results, r.Result())
	}
	require.NoError(t, r.Err())
	return results
}

func TestIsWorkbook(t *testing.T) {
	assert.True(t, IsWorkbook("in/enrollments.xlsx"))
	assert.True(t, IsWorkbook("ENROLLMENTS.XLSX"))
	assert.False(t, IsWorkbook("enrollments.csv"))
	assert.False(t, IsWorkbook("xlsx"))
}

func TestReader_ParsesRows(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Subscriber ID", "Name", "Version", "Organization"},
		{"1", "Alice   Adams", 3, "Acme"},
		{"2", "Bob Brown", "x", "Acme"},
		{"", "Nobody", 1, "Acme"},
		{},
		{"3", "Plato", 1, " Zenith "},
	})

	r, err := Open(path, 1)
	require.NoError(t, err)
	defer r.Close()

	results := readAll(t, r)
	require.Len(t, results, 4)

	require.True(t, results[0].OK())
	assert.Equal(t, "Alice", results[0].Record.FirstName)
	assert.Equal(t, "Adams", results[0].Record.LastName)
	assert.Equal(t, 3, results[0].Record.Version)

	require.False(t, results[1].OK())
	assert.Equal(t, validation.ReasonInvalidVersion, results[1].Rejection.Reason)
	assert.Equal(t, 3, results[1].Rejection.Line)
	assert.Equal(t, "2,Bob Brown,x,Acme", results[1].Rejection.Raw)

	require.False(t, results[2].OK())
	assert.Equal(t, validation.ReasonMissingIdentifier, results[2].Rejection.Reason)

	require.True(t, results[3].OK())
	assert.Equal(t, "Zenith", results[3].Record.Organization)
	assert.Equal(t, "", results[3].Record.LastName)
}

func TestReader_ShortRowIsMalformed(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"h"},
		{"1", "Alice Adams", 3},
	})

	r, err := Open(path, 1)
	require.NoError(t, err)
	defer r.Close()

	results := readAll(t, r)
	require.Len(t, results, 1)
	assert.Equal(t, validation.ReasonMalformedRow, results[0].Rejection.Reason)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.xlsx"), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, validation.ErrSourceUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_NotAWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("1,Alice Adams,3,Acme\n"), 0o644))

	_, err := Open(path, 1)
	assert.ErrorIs(t, err, validation.ErrSourceUnavailable)
}
