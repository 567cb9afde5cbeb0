// =============================================================================
// Enrollment File Processor - CSV Writer Module
// =============================================================================
//
// This module writes one file per organization.
//
// OUTPUT FORMAT:
//   User ID,Full Name,Version,Insurance Company
//   1,Alice Adams,3,Acme
//   2,Bob Brown,1,Acme
//
//   Plain values are written bare. A value holding the delimiter or a double
//   quote is quoted so the quote-aware parser reads it back unchanged.
//
// FILE NAMING:
//   The organization name is sanitised: every character other than ASCII
//   letters, digits, '-', '_' and space becomes '_', then runs of spaces
//   become a single '_', then the extension is appended.
//     "A*c/m:e Insurance" -> "A_c_m_e_Insurance.csv"
//
// FAILURE ISOLATION:
//   Each file is written to a temporary file in the output directory and
//   renamed into place. A failure for one organization is logged and
//   reported; the remaining organizations are still written.
//
// =============================================================================

package csvwriter

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ginjaninja78/enrollment-file-processor/internal/types"
	"github.com/ginjaninja78/enrollment-file-processor/internal/validation"
)

// Header is the fixed first line of every output file.
var Header = []string{"User ID", "Full Name", "Version", "Insurance Company"}

var (
	invalidFileChars = regexp.MustCompile(`[^a-zA-Z0-9\-_ ]`)
	spaceRuns        = regexp.MustCompile(` +`)
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configure a Writer.
type Options struct {
	// Dir is the output directory. Created on demand.
	Dir string

	// Extension is appended to every file name. Default: ".csv"
	Extension string

	// Delimiter separates fields. Default: ','
	Delimiter rune

	// FilePerm / DirPerm default to 0644 / 0755.
	FilePerm os.FileMode
	DirPerm  os.FileMode
}

// Writer persists sorted groups. It holds no per-run state.
type Writer struct {
	dir       string
	ext       string
	delimiter rune
	permF     os.FileMode
	permD     os.FileMode
	logger    logrus.FieldLogger
}

// New creates a Writer. A nil logger discards log output.
func New(opts Options, logger logrus.FieldLogger) *Writer {
	if opts.Extension == "" {
		opts.Extension = ".csv"
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.FilePerm == 0 {
		opts.FilePerm = 0o644
	}
	if opts.DirPerm == 0 {
		opts.DirPerm = 0o755
	}
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Writer{
		dir:       opts.Dir,
		ext:       opts.Extension,
		delimiter: opts.Delimiter,
		permF:     opts.FilePerm,
		permD:     opts.DirPerm,
		logger:    logger,
	}
}

// =============================================================================
// FILE NAMING
// =============================================================================

// SanitizeFileName turns an organization name into a safe file name stem.
func SanitizeFileName(organization string) string {
	name := invalidFileChars.ReplaceAllString(organization, "_")
	return spaceRuns.ReplaceAllString(name, "_")
}

// FileName returns the output file name for an organization.
func (w *Writer) FileName(organization string) string {
	return SanitizeFileName(organization) + w.ext
}

// Path returns the full output path for an organization.
func (w *Writer) Path(organization string) string {
	return filepath.Join(w.dir, w.FileName(organization))
}

// =============================================================================
// WRITING
// =============================================================================

// Report summarises a WriteAll call.
type Report struct {
	// Written lists the paths of successfully written files, in group order.
	Written []string

	// Failures lists the organizations that could not be written.
	Failures []*validation.WriteFailure
}

// EnsureDir creates the output directory if it does not exist.
func (w *Writer) EnsureDir() error {
	if err := os.MkdirAll(w.dir, w.permD); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", w.dir, err)
	}
	return nil
}

// WriteAll writes every group. The output directory is created even when
// there are no groups; failing to create it is the only returned error.
// Per-organization failures are logged and collected in the Report.
func (w *Writer) WriteAll(groups []types.Group) (Report, error) {
	var report Report

	if err := w.EnsureDir(); err != nil {
		return report, err
	}

	seen := make(map[string]string, len(groups))
	for _, g := range groups {
		fileName := w.FileName(g.Organization)
		if prev, ok := seen[fileName]; ok {
			w.logger.WithFields(logrus.Fields{
				"organization": g.Organization,
				"previous":     prev,
				"file":         fileName,
			}).Warn("organizations share an output file name; the later one overwrites")
		}
		seen[fileName] = g.Organization

		path, err := w.WriteOrganization(g.Organization, g.Records)
		if err != nil {
			wf, ok := err.(*validation.WriteFailure)
			if !ok {
				wf = &validation.WriteFailure{Organization: g.Organization, Path: path, Err: err}
			}
			w.logger.WithFields(logrus.Fields{
				"organization": g.Organization,
				"file":         path,
				"error":        wf.Err,
			}).Error("failed to write organization file")
			report.Failures = append(report.Failures, wf)
			continue
		}

		w.logger.WithFields(logrus.Fields{
			"organization": g.Organization,
			"file":         path,
			"records":      len(g.Records),
		}).Info("wrote organization file")
		report.Written = append(report.Written, path)
	}

	return report, nil
}

// WriteOrganization writes one organization's Records, in the given order,
// to its file. Any failure is returned as a *validation.WriteFailure and
// leaves no partial file behind.
func (w *Writer) WriteOrganization(organization string, records []types.Record) (string, error) {
	path := w.Path(organization)
	fail := func(err error) (string, error) {
		return path, &validation.WriteFailure{Organization: organization, Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(w.dir, "."+SanitizeFileName(organization)+"-*.tmp")
	if err != nil {
		return fail(err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	buffered := bufio.NewWriter(tmp)
	if err := Encode(buffered, records, w.delimiter); err != nil {
		return fail(err)
	}
	if err := buffered.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Chmod(tmpName, w.permF); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fail(err)
	}
	committed = true

	return path, nil
}

// Encode writes the header and one line per Record to out.
func Encode(out io.Writer, records []types.Record, delimiter rune) error {
	cw := csv.NewWriter(out)
	cw.Comma = delimiter

	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.SubscriberID,
			r.FullName(),
			strconv.Itoa(r.Version),
			r.Organization,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
