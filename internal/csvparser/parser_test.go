package csvparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/enrollment-file-processor/internal/config"
	"github.com/ginjaninja78/enrollment-file-processor/internal/types"
	"github.com/ginjaninja78/enrollment-file-processor/internal/validation"
)

func defaultSettings() config.CSVSettings {
	return config.Default().CSVSettings
}

func TestParseLine_Accepted(t *testing.T) {
	p := NewParser(defaultSettings())

	tests := []struct {
		name string
		raw  string
		want types.Record
	}{
		{
			name: "two part name",
			raw:  "1,Alice Adams,2,Acme",
			want: types.NewRecord("1", "Alice", "Adams", 2, "Acme"),
		},
		{
			name: "single token name",
			raw:  "1,Plato,1,Acme",
			want: types.NewRecord("1", "Plato", "", 1, "Acme"),
		},
		{
			name: "tokens after the second are dropped",
			raw:  "7,Mary Ann Smith Jr,4,Acme",
			want: types.NewRecord("7", "Mary", "Ann", 4, "Acme"),
		},
		{
			name: "whitespace is trimmed and collapsed",
			raw:  "1,   Alice    Adams   ,1,   Acme Insurance  ",
			want: types.NewRecord("1", "Alice", "Adams", 1, "Acme Insurance"),
		},
		{
			name: "empty name",
			raw:  "9,,1,Acme",
			want: types.NewRecord("9", "", "", 1, "Acme"),
		},
		{
			name: "quoted fields may hold the delimiter",
			raw:  `3,"Bob Brown",5,"Acme, Inc."`,
			want: types.NewRecord("3", "Bob", "Brown", 5, "Acme, Inc."),
		},
		{
			name: "quoted field after a space",
			raw:  `3, "Bob Brown",5, "Zenith"`,
			want: types.NewRecord("3", "Bob", "Brown", 5, "Zenith"),
		},
		{
			name: "blanks around a quoted name",
			raw:  `1, "Alice Adams" ,2,Acme`,
			want: types.NewRecord("1", "Alice", "Adams", 2, "Acme"),
		},
		{
			name: "trailing blank after a quoted organization",
			raw:  `1,Alice Adams,2,"Acme" `,
			want: types.NewRecord("1", "Alice", "Adams", 2, "Acme"),
		},
		{
			name: "doubled quotes inside a quoted field",
			raw:  `4,"Ann ""Nan"" Lee" ,1,Acme`,
			want: types.NewRecord("4", "Ann", `"Nan"`, 1, "Acme"),
		},
		{
			name: "organization case is kept",
			raw:  "1,Alice Adams,3,ACME",
			want: types.NewRecord("1", "Alice", "Adams", 3, "ACME"),
		},
		{
			name: "extra fields are ignored",
			raw:  "1,Alice Adams,3,Acme,unused",
			want: types.NewRecord("1", "Alice", "Adams", 3, "Acme"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.ParseLine(tt.raw)
			require.True(t, res.OK(), "unexpected rejection: %v", res.Rejection)
			assert.Equal(t, tt.want, res.Record)
		})
	}
}

func TestParseLine_Rejected(t *testing.T) {
	p := NewParser(defaultSettings())

	tests := []struct {
		name   string
		raw    string
		reason validation.Reason
	}{
		{name: "three fields", raw: "1,Alice,2", reason: validation.ReasonMalformedRow},
		{name: "single field", raw: "garbage", reason: validation.ReasonMalformedRow},
		{name: "empty identifier", raw: " ,Alice Adams,2,Acme", reason: validation.ReasonMissingIdentifier},
		{name: "word version", raw: "1,Alice,notanumber,Acme", reason: validation.ReasonInvalidVersion},
		{name: "negative version", raw: "1,Alice,-3,Acme", reason: validation.ReasonInvalidVersion},
		{name: "empty version", raw: "1,Alice,,Acme", reason: validation.ReasonInvalidVersion},
		{name: "identifier checked before version", raw: ",Alice,x,Acme", reason: validation.ReasonMissingIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.ParseLine(tt.raw)
			require.False(t, res.OK())
			assert.Equal(t, tt.reason, res.Rejection.Reason)
			assert.Equal(t, tt.raw, res.Rejection.Raw)
		})
	}
}

func TestParseLine_PipeDelimiter(t *testing.T) {
	p := NewParser(config.CSVSettings{Delimiter: "pipe"})

	res := p.ParseLine("1|Adams, Alice|2|Acme")
	require.True(t, res.OK())
	assert.Equal(t, "Adams,", res.Record.FirstName)
	assert.Equal(t, "Alice", res.Record.LastName)
}

func TestParseLine_TabDelimiterKeepsEmptyFields(t *testing.T) {
	p := NewParser(config.CSVSettings{Delimiter: "tab"})

	res := p.ParseLine("1\t\t2\tAcme")
	require.True(t, res.OK())
	assert.Equal(t, "", res.Record.FirstName)
	assert.Equal(t, 2, res.Record.Version)
}

func TestTidyQuotedFields(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		delimiter rune
		want      string
	}{
		{name: "no quotes", line: "1, Alice ,2,Acme", delimiter: ',', want: "1, Alice ,2,Acme"},
		{name: "blanks around quoted field", line: `1, "A B" ,2,"Acme"  `, delimiter: ',', want: `1,"A B",2,"Acme"`},
		{name: "delimiter inside quotes", line: `1, "Adams, Alice" ,2,Acme`, delimiter: ',', want: `1,"Adams, Alice",2,Acme`},
		{name: "irregular quoted field is kept", line: `1,"A"B,2,Acme`, delimiter: ',', want: `1,"A"B,2,Acme`},
		{name: "unterminated quote is kept", line: `1,"A B,2,Acme`, delimiter: ',', want: `1,"A B,2,Acme`},
		{name: "tab delimiter is not a blank", line: "1\t \"A B\" \t2\tAcme", delimiter: '\t', want: "1\t\"A B\"\t2\tAcme"},
		{name: "trailing empty field", line: `"1",`, delimiter: ',', want: `"1",`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tidyQuotedFields(tt.line, tt.delimiter))
		})
	}
}

func TestSplitName(t *testing.T) {
	first, last := SplitName("")
	assert.Equal(t, "", first)
	assert.Equal(t, "", last)

	first, last = SplitName("Plato")
	assert.Equal(t, "Plato", first)
	assert.Equal(t, "", last)

	first, last = SplitName("Jane Doe")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Doe", last)
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "Alice Adams", CleanName(`  "Alice   Adams"  `))
	assert.Equal(t, `"Alice`, CleanName(`"Alice`))
}

// =============================================================================
// Reader
// =============================================================================

func collect(t *testing.T, r *Reader) []Result {
	t.Helper()
	var out []Result
	for r.Next() {
		out = append(out, r.Result())
	}
	require.NoError(t, r.Err())
	return out
}

func TestReader_SkipsHeaderAndBlankLines(t *testing.T) {
	input := "subscriberId,fullName,version,organization\n" +
		"1,Alice Adams,2,Acme\n" +
		"\n" +
		"   \n" +
		"1,Alice,2\n" +
		"2,Bob Brown,1,Acme\r\n"

	r, err := NewReader(strings.NewReader(input), defaultSettings())
	require.NoError(t, err)
	defer r.Close()

	results := collect(t, r)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.Equal(t, validation.ReasonMalformedRow, results[1].Rejection.Reason)
	assert.Equal(t, 5, results[1].Rejection.Line)
	assert.True(t, results[2].OK())
	assert.Equal(t, "Brown", results[2].Record.LastName)
}

func TestReader_OverlongLineIsRejectedAndReadContinues(t *testing.T) {
	input := "h\n" +
		"1," + strings.Repeat("x", 2*maxLineSize) + ",1,Acme\n" +
		"2,Bob Brown,1,Acme\n"

	r, err := NewReader(strings.NewReader(input), defaultSettings())
	require.NoError(t, err)

	results := collect(t, r)
	require.Len(t, results, 2)

	require.False(t, results[0].OK())
	assert.Equal(t, validation.ReasonMalformedRow, results[0].Rejection.Reason)
	assert.Equal(t, 2, results[0].Rejection.Line)
	assert.Less(t, len(results[0].Rejection.Raw), 1024)
	assert.True(t, strings.HasPrefix(results[0].Rejection.Raw, "1,xxx"))

	require.True(t, results[1].OK())
	assert.Equal(t, "2", results[1].Record.SubscriberID)
	assert.Equal(t, 3, r.LineNumber())
}

func TestReader_HeaderIsNotValidated(t *testing.T) {
	r, err := NewReader(strings.NewReader("garbage header\n1,A B,1,X\n"), defaultSettings())
	require.NoError(t, err)

	results := collect(t, r)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
}

func TestReader_Latin1(t *testing.T) {
	settings := defaultSettings()
	settings.Encoding = "ISO-8859-1"

	input := "h\n1,Jos\xe9 Garc\xeda,1,Acme\n"
	r, err := NewReader(strings.NewReader(input), settings)
	require.NoError(t, err)

	results := collect(t, r)
	require.Len(t, results, 1)
	assert.Equal(t, "José", results[0].Record.FirstName)
	assert.Equal(t, "García", results[0].Record.LastName)
}

func TestReader_StripsUTF8BOM(t *testing.T) {
	input := "\ufeffh\n1,Alice Adams,1,Acme\n"
	r, err := NewReader(strings.NewReader(input), defaultSettings())
	require.NoError(t, err)

	results := collect(t, r)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].Record.SubscriberID)
}

func TestReader_UnsupportedEncoding(t *testing.T) {
	settings := defaultSettings()
	settings.Encoding = "EBCDIC"

	_, err := NewReader(strings.NewReader(""), settings)
	require.Error(t, err)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.csv"), defaultSettings())
	require.Error(t, err)
	assert.ErrorIs(t, err, validation.ErrSourceUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("h\n1,Alice Adams,1,Acme\n"), 0o644))

	r, err := Open(path, defaultSettings())
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, path, r.Source())
	results := collect(t, r)
	require.Len(t, results, 1)
	assert.Equal(t, 2, r.LineNumber())
}
