// =============================================================================
// Enrollment File Processor - Validation
// =============================================================================
//
// This package owns the error taxonomy of the pipeline and the field-level
// checks the parsers apply to every row.
//
// ERROR KINDS:
//   - Row level (recovered, logged, processing continues):
//       MalformedRow       fewer than 4 fields
//       MissingIdentifier  identifier empty after trimming
//       InvalidVersion     version is not a non-negative integer
//   - Source level (fatal for the run):
//       ErrSourceUnavailable  the input cannot be opened or read
//   - Output level (logged, other organizations still written):
//       WriteFailure          one organization's file could not be persisted
//
// Row-level problems are values (*Rejection), never panics, and never escape
// the parser as a returned error.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

// ErrSourceUnavailable marks an input that could not be opened or read at all.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrWriteFailure marks an organization whose output could not be persisted.
var ErrWriteFailure = errors.New("write failure")

// SourceUnavailable wraps err so that errors.Is(result, ErrSourceUnavailable)
// holds while the cause stays reachable.
func SourceUnavailable(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, path, err)
}

// =============================================================================
// ROW REJECTIONS
// =============================================================================

// Reason names why a row was rejected.
type Reason string

const (
	ReasonMalformedRow      Reason = "MalformedRow"
	ReasonMissingIdentifier Reason = "MissingIdentifier"
	ReasonInvalidVersion    Reason = "InvalidVersion"
)

// Reasons lists every rejection reason in a stable order.
var Reasons = []Reason{
	ReasonMalformedRow,
	ReasonMissingIdentifier,
	ReasonInvalidVersion,
}

// Rejection is the per-row failure outcome of parsing.
type Rejection struct {
	// Reason is the rejection kind.
	Reason Reason

	// Raw is the offending input line, verbatim.
	Raw string

	// Line is the 1-based line number in the source. Zero when the row was
	// parsed outside of a reader.
	Line int

	// Detail is a short human-readable explanation.
	Detail string
}

// Error implements the error interface so a Rejection can be logged or
// collected like any other error.
func (r *Rejection) Error() string {
	if r.Line > 0 {
		return fmt.Sprintf("%s at line %d: %s (raw: %q)", r.Reason, r.Line, r.Detail, r.Raw)
	}
	return fmt.Sprintf("%s: %s (raw: %q)", r.Reason, r.Detail, r.Raw)
}

// =============================================================================
// FIELD CHECKS
// =============================================================================

// RequiredFields is the number of columns a row must have.
const RequiredFields = 4

// CheckFieldCount rejects rows with fewer than RequiredFields columns.
func CheckFieldCount(fields []string, raw string) *Rejection {
	if len(fields) < RequiredFields {
		return &Rejection{
			Reason: ReasonMalformedRow,
			Raw:    raw,
			Detail: fmt.Sprintf("expected %d fields, got %d", RequiredFields, len(fields)),
		}
	}
	return nil
}

// CheckIdentifier rejects an identifier that is empty after trimming.
func CheckIdentifier(id, raw string) *Rejection {
	if strings.TrimSpace(id) == "" {
		return &Rejection{
			Reason: ReasonMissingIdentifier,
			Raw:    raw,
			Detail: "subscriber identifier is empty",
		}
	}
	return nil
}

// ParseVersion parses a version field. Anything other than a base-10,
// non-negative integer is rejected.
func ParseVersion(field, raw string) (int, *Rejection) {
	v, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, &Rejection{
			Reason: ReasonInvalidVersion,
			Raw:    raw,
			Detail: fmt.Sprintf("invalid version number %q", field),
		}
	}
	if v < 0 {
		return 0, &Rejection{
			Reason: ReasonInvalidVersion,
			Raw:    raw,
			Detail: fmt.Sprintf("negative version number %d", v),
		}
	}
	return v, nil
}

// =============================================================================
// WRITE FAILURES
// =============================================================================

// WriteFailure reports that one organization's output could not be persisted.
type WriteFailure struct {
	Organization string
	Path         string
	Err          error
}

func (w *WriteFailure) Error() string {
	return fmt.Sprintf("write failure for organization %q (%s): %v", w.Organization, w.Path, w.Err)
}

// Unwrap returns the underlying I/O error.
func (w *WriteFailure) Unwrap() error {
	return w.Err
}

// Is lets errors.Is(err, ErrWriteFailure) match any WriteFailure.
func (w *WriteFailure) Is(target error) bool {
	return target == ErrWriteFailure
}

// =============================================================================
// TALLY
// =============================================================================

// Tally counts rejections per reason.
type Tally map[Reason]int

// Add records one rejection.
func (t Tally) Add(r *Rejection) {
	if r == nil {
		return
	}
	t[r.Reason]++
}

// Total returns the number of rejections across all reasons.
func (t Tally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// String renders the non-zero counts, e.g. "InvalidVersion=1, MalformedRow=2".
func (t Tally) String() string {
	if t.Total() == 0 {
		return "none"
	}
	parts := make([]string, 0, len(t))
	for reason, c := range t {
		if c > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", reason, c))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
