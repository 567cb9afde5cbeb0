package xlsxwriter

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/enrollment-file-processor/internal/types"
	"github.com/ginjaninja78/enrollment-file-processor/internal/xlsxparser"
)

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Acme_East", SheetName("Acme/East"))
	assert.Equal(t, "Acme_East_", SheetName("Acme:East?"))
	assert.Equal(t, "Organization", SheetName("  "))
	assert.Equal(t, "Organization", SheetName("''"))
	assert.Len(t, SheetName(strings.Repeat("x", 40)), MaxSheetNameLength)
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "Acme", uniqueSheetName("Acme", used))
	assert.Equal(t, "ACME (2)", uniqueSheetName("ACME", used))
	assert.Equal(t, "Acme (3)", uniqueSheetName("Acme", used))

	long := strings.Repeat("y", MaxSheetNameLength)
	assert.Equal(t, long, uniqueSheetName(long, used))
	second := uniqueSheetName(long, used)
	assert.Len(t, second, MaxSheetNameLength)
	assert.True(t, strings.HasSuffix(second, " (2)"))
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "enrollments.xlsx")

	names, err := WriteWorkbook(path, []types.Group{
		{Organization: "Acme/East", Records: []types.Record{
			types.NewRecord("1", "Alice", "Adams", 3, "Acme/East"),
			types.NewRecord("2", "Plato", "", 1, "Acme/East"),
		}},
		{Organization: "Acme:East", Records: []types.Record{
			types.NewRecord("9", "Zed", "Zulu", 2, "Acme:East"),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme_East", "Acme_East (2)"}, names)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, names, f.GetSheetList())

	rows, err := f.GetRows("Acme_East")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"User ID", "Full Name", "Version", "Insurance Company"},
		{"1", "Alice Adams", "3", "Acme/East"},
		{"2", "Plato", "1", "Acme/East"},
	}, rows)
}

func TestWriteWorkbook_ReadsBackAsInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrollments.xlsx")
	records := []types.Record{
		types.NewRecord("1", "Alice", "Adams", 3, "Acme"),
		types.NewRecord("2", "Bob", "Brown", 7, "Acme"),
	}

	_, err := WriteWorkbook(path, []types.Group{{Organization: "Acme", Records: records}})
	require.NoError(t, err)

	r, err := xlsxparser.Open(path, 1)
	require.NoError(t, err)
	defer r.Close()

	var got []types.Record
	for r.Next() {
		require.True(t, r.Result().OK())
		got = append(got, r.Result().Record)
	}
	require.NoError(t, r.Err())
	assert.Equal(t, records, got)
}

func TestWriteWorkbook_NoGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")

	names, err := WriteWorkbook(path, nil)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.FileExists(t, path)
}
