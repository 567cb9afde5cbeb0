// =============================================================================
// Enrollment File Processor - CSV Parser Module
// =============================================================================
//
// This module turns raw enrollment lines into Records.
//
// INPUT FORMAT:
//   subscriberId,fullName,version,organization
//
// QUOTING POLICY:
//   Lines are split with a quote-aware reader: a field wrapped in double
//   quotes may contain the delimiter ("Adams, Alice"). Blanks around a quoted
//   field are dropped first, so ` "Acme" ` reads as Acme. Quotes are handled
//   leniently (lazy quotes); a line that still cannot be split is rejected as
//   a MalformedRow. Fields after the fourth are ignored.
//
// PER-ROW OUTCOME:
//   Every line yields a Result holding either a Record or a Rejection.
//   Rejections never abort the read; only an unreadable source does.
//
// =============================================================================

package csvparser

import (
	"encoding/csv"
	"strings"

	"github.com/ginjaninja78/enrollment-file-processor/internal/config"
	"github.com/ginjaninja78/enrollment-file-processor/internal/types"
	"github.com/ginjaninja78/enrollment-file-processor/internal/validation"
)

// =============================================================================
// RESULT
// =============================================================================

// Result is the outcome of parsing one row: exactly one of Record or
// Rejection is meaningful.
type Result struct {
	Record    types.Record
	Rejection *validation.Rejection
}

// OK reports whether the row produced a Record.
func (r Result) OK() bool {
	return r.Rejection == nil
}

func rejected(rej *validation.Rejection) Result {
	return Result{Rejection: rej}
}

// =============================================================================
// PARSER
// =============================================================================

// Parser parses single lines. It holds no state between calls.
type Parser struct {
	delimiter rune
}

// NewParser creates a parser for the given settings. The delimiter must have
// been validated by config.Validate; an invalid one falls back to a comma.
func NewParser(settings config.CSVSettings) *Parser {
	d, err := settings.DelimiterRune()
	if err != nil {
		d = ','
	}
	return &Parser{delimiter: d}
}

// Delimiter returns the field separator in use.
func (p *Parser) Delimiter() rune {
	return p.delimiter
}

// ParseLine parses one raw line.
//
// PARSING STEPS:
//   1. Split on the delimiter (quote-aware)
//   2. Reject with MalformedRow when fewer than 4 fields result
//   3. Trim fields, strip enclosing quotes from name and organization,
//      collapse whitespace runs in the name
//   4. Reject with MissingIdentifier when the identifier is empty
//   5. Reject with InvalidVersion when the version is not an integer
//   6. Derive first and last name
func (p *Parser) ParseLine(raw string) Result {
	fields, err := p.split(raw)
	if err != nil {
		return rejected(&validation.Rejection{
			Reason: validation.ReasonMalformedRow,
			Raw:    raw,
			Detail: err.Error(),
		})
	}
	return ParseFields(fields, raw)
}

// split breaks a line into fields the same way for every row.
func (p *Parser) split(raw string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(tidyQuotedFields(raw, p.delimiter)))
	reader.Comma = p.delimiter

	// Field count is checked by the caller so the rejection reason is ours.
	reader.FieldsPerRecord = -1

	// Allow quotes that don't follow strict CSV rules.
	reader.LazyQuotes = true

	// Leading space before a quoted field would hide the quote. A whitespace
	// delimiter must not be eaten, though.
	reader.TrimLeadingSpace = p.delimiter != '\t' && p.delimiter != ' '

	fields, err := reader.Read()
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// tidyQuotedFields removes blanks between the delimiters and a well-formed
// quoted field. encoding/csv only accepts a quoted field that starts right
// after the delimiter and ends right before the next one; in lazy mode a
// trailing blank would turn the closing quote into field text. Fields that are
// not cleanly quoted are copied unchanged.
func tidyQuotedFields(line string, delimiter rune) string {
	if !strings.ContainsRune(line, '"') {
		return line
	}

	isBlank := func(r rune) bool {
		return r != delimiter && (r == ' ' || r == '\t')
	}

	rs := []rune(line)
	n := len(rs)
	var b strings.Builder
	b.Grow(len(line))

	for i := 0; ; {
		// Look past leading blanks for an opening quote.
		start := i
		for start < n && isBlank(rs[start]) {
			start++
		}

		end := n
		if start < n && rs[start] == '"' {
			end = closingQuote(rs, start)
		}

		next := i
		if end < n {
			after := end + 1
			for after < n && isBlank(rs[after]) {
				after++
			}
			if after == n || rs[after] == delimiter {
				b.WriteString(string(rs[start : end+1]))
				next = after
			}
		}

		if next == i {
			// Unquoted or irregular: copy up to the next delimiter.
			for next < n && rs[next] != delimiter {
				next++
			}
			b.WriteString(string(rs[i:next]))
		}

		if next >= n {
			return b.String()
		}
		b.WriteRune(delimiter)
		i = next + 1
	}
}

// closingQuote returns the index of the quote closing the field opened at
// rs[open], skipping doubled quotes. It returns len(rs) when there is none.
func closingQuote(rs []rune, open int) int {
	for k := open + 1; k < len(rs); k++ {
		if rs[k] != '"' {
			continue
		}
		if k+1 < len(rs) && rs[k+1] == '"' {
			k++
			continue
		}
		return k
	}
	return len(rs)
}

// ParseFields builds a Result from already split fields. raw is echoed in
// any Rejection. It is shared by every input source.
func ParseFields(fields []string, raw string) Result {
	if rej := validation.CheckFieldCount(fields, raw); rej != nil {
		return rejected(rej)
	}

	id := strings.TrimSpace(fields[0])
	fullName := CleanName(fields[1])
	versionField := strings.TrimSpace(fields[2])
	organization := strings.TrimSpace(stripQuotes(strings.TrimSpace(fields[3])))

	if rej := validation.CheckIdentifier(id, raw); rej != nil {
		return rejected(rej)
	}

	version, rej := validation.ParseVersion(versionField, raw)
	if rej != nil {
		return rejected(rej)
	}

	first, last := SplitName(fullName)

	return Result{Record: types.NewRecord(id, first, last, version, organization)}
}

// =============================================================================
// NAME HANDLING
// =============================================================================

// CleanName trims the field, strips one pair of enclosing double quotes and
// collapses internal whitespace runs to single spaces.
func CleanName(field string) string {
	name := stripQuotes(strings.TrimSpace(field))
	return strings.Join(strings.Fields(name), " ")
}

// SplitName derives first and last name from a cleaned full name.
//
//   ""                 -> "", ""
//   "Plato"            -> "Plato", ""
//   "Alice Adams"      -> "Alice", "Adams"
//   "Mary Ann Smith"   -> "Mary", "Ann"   (tokens after the second are dropped)
func SplitName(fullName string) (first, last string) {
	parts := strings.Split(fullName, " ")
	switch {
	case fullName == "":
		return "", ""
	case len(parts) == 1:
		return parts[0], ""
	default:
		return parts[0], parts[1]
	}
}

// stripQuotes removes a single pair of enclosing double quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
