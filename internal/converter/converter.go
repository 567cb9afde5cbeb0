// =============================================================================
// Enrollment File Processor - Converter Module
// =============================================================================
//
// This module contains the pipeline orchestration. It drives one run over a
// single input file, from reading to the per-organization output files.
//
// PROCESSING PIPELINE:
//   1. Read the input (CSV/TXT or XLSX) row by row
//   2. Log and count rejected rows, feed accepted Records to the grouper
//   3. Sort every organization's Records
//   4. Write one file per organization
//   5. Optionally write the workbook copy
//   6. Optionally archive the written files
//   7. Optionally write the summary log
//
// The stages run one after another: reading and grouping finish before any
// sorting starts, and sorting finishes before anything is written.
//
// =============================================================================

package converter

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ginjaninja78/enrollment-file-processor/internal/config"
	"github.com/ginjaninja78/enrollment-file-processor/internal/csvparser"
	"github.com/ginjaninja78/enrollment-file-processor/internal/csvwriter"
	"github.com/ginjaninja78/enrollment-file-processor/internal/grouper"
	"github.com/ginjaninja78/enrollment-file-processor/internal/sorter"
	"github.com/ginjaninja78/enrollment-file-processor/internal/types"
	"github.com/ginjaninja78/enrollment-file-processor/internal/validation"
	"github.com/ginjaninja78/enrollment-file-processor/internal/xlsxparser"
	"github.com/ginjaninja78/enrollment-file-processor/internal/xlsxwriter"
	"github.com/ginjaninja78/enrollment-file-processor/pkg/utils"
)

// =============================================================================
// INPUT SOURCES
// =============================================================================

// Source is a row-at-a-time input. csvparser.Reader and xlsxparser.Reader
// both satisfy it.
type Source interface {
	Next() bool
	Result() csvparser.Result
	LineNumber() int
	Source() string
	Err() error
	Close() error
}

// OpenSource opens path with the reader matching its extension: .xlsx files
// are read as workbooks, anything else as delimited text.
func OpenSource(path string, settings config.CSVSettings) (Source, error) {
	if xlsxparser.IsWorkbook(path) {
		r, err := xlsxparser.Open(path, settings.HeaderRows)
		if err != nil {
			return nil, err
		}
		return r, nil
	}

	r, err := csvparser.Open(path, settings)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// =============================================================================
// STATISTICS
// =============================================================================

// ProcessingStats contains statistics about one run.
type ProcessingStats struct {
	// RunID identifies the run in logs, the archive and the summary log.
	RunID string

	// LinesRead counts physical lines (or workbook rows), header included.
	LinesRead int

	// Accepted is the number of rows that produced a Record.
	Accepted int

	// Rejected counts skipped rows per reason.
	Rejected validation.Tally

	// Replaced counts Records that superseded a lower version.
	Replaced int

	// Discarded counts Records dropped in favour of an equal or higher version.
	Discarded int

	// Organizations is the number of buckets after grouping.
	Organizations int

	// FilesWritten and WriteFailures count per-organization outcomes.
	FilesWritten  int
	WriteFailures int

	// ProcessingTime is the wall time of the run.
	ProcessingTime time.Duration
}

// =============================================================================
// READ AND GROUP
// =============================================================================

// ReadAndGroup reads the input at path and groups the accepted Records.
//
// PARAMETERS:
//   - path: The input file (.csv, .txt or .xlsx).
//   - settings: Delimiter, encoding and header handling.
//   - opts: Organization matching policy.
//   - logger: Receives one WARN line per rejected row. May be nil.
//
// RETURNS:
//   - The organization buckets, in first-seen order.
//   - Read statistics (LinesRead, Accepted, Rejected, Replaced, Discarded,
//     Organizations).
//   - An error wrapping validation.ErrSourceUnavailable if the input cannot
//     be opened or read. Rejected rows are never returned as errors.
func ReadAndGroup(path string, settings config.CSVSettings, opts grouper.Options, logger logrus.FieldLogger) (*types.Buckets, ProcessingStats, error) {
	src, err := OpenSource(path, settings)
	if err != nil {
		return nil, ProcessingStats{Rejected: validation.Tally{}}, err
	}
	defer src.Close()

	return GroupSource(src, opts, logger)
}

// GroupSource drains src into a new Grouper. See ReadAndGroup.
func GroupSource(src Source, opts grouper.Options, logger logrus.FieldLogger) (*types.Buckets, ProcessingStats, error) {
	logger = orDiscard(logger)
	stats := ProcessingStats{Rejected: validation.Tally{}}
	g := grouper.New(opts)

	for src.Next() {
		res := src.Result()
		if !res.OK() {
			stats.Rejected.Add(res.Rejection)
			logRejection(logger, src.Source(), res.Rejection)
			continue
		}

		stats.Accepted++
		outcome := g.Add(res.Record)
		logger.WithFields(logrus.Fields{
			"subscriber_id": res.Record.SubscriberID,
			"organization":  res.Record.Organization,
			"version":       res.Record.Version,
			"outcome":       outcome.String(),
		}).Debug("grouped record")
	}

	stats.LinesRead = src.LineNumber()
	if err := src.Err(); err != nil {
		return nil, stats, err
	}

	stats.Replaced = g.Replaced()
	stats.Discarded = g.Discarded()
	stats.Organizations = g.Buckets().Len()

	return g.Buckets(), stats, nil
}

// logRejection writes the diagnostic line for one skipped row.
func logRejection(logger logrus.FieldLogger, source string, rej *validation.Rejection) {
	fields := logrus.Fields{
		"reason": string(rej.Reason),
		"line":   rej.Line,
		"raw":    rej.Raw,
		"source": source,
	}
	if rej.Detail != "" {
		fields["detail"] = rej.Detail
	}
	logger.WithFields(fields).Warn("skipping row")
}

func orDiscard(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger != nil {
		return logger
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of one run.
type Result struct {
	// InputFile is the path that was processed.
	InputFile string

	// Groups are the sorted organizations, in first-seen order.
	Groups []types.Group

	// Written lists the organization files that were written.
	Written []string

	// Failures lists organizations whose file could not be written. They do
	// not make the run fail.
	Failures []*validation.WriteFailure

	// Workbook is the path of the XLSX copy, if one was written.
	Workbook string

	// Archived lists the archive copies of Written.
	Archived []string

	// SummaryLog is the path of the summary file, if one was written.
	SummaryLog string

	// Success indicates whether the run completed.
	Success bool

	// Error contains the error that stopped the run. Nil on success.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Options adjust a single run.
type Options struct {
	// DryRun reads, groups and sorts but writes nothing.
	DryRun bool
}

// Converter runs the pipeline for one input file.
type Converter struct {
	cfg    *config.Config
	opts   Options
	logger logrus.FieldLogger

	// newRunID is replaceable for tests.
	newRunID func() string
}

// New creates a new Converter instance.
//
// PARAMETERS:
//   - cfg: The validated configuration. cfg.InputFile names the input.
//   - opts: Per-run options.
//   - logger: The run logger. May be nil.
func New(cfg *config.Config, opts Options, logger logrus.FieldLogger) *Converter {
	return &Converter{
		cfg:      cfg,
		opts:     opts,
		logger:   orDiscard(logger),
		newRunID: utils.GenerateRunID,
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline.
//
// RETURNS:
//   - A Result struct containing the outcome of the processing.
//
// Only an unreadable input or an output directory that cannot be created
// fails the run. Write failures for single organizations, and problems with
// the optional workbook, archive and summary log, are logged and reported.
func (c *Converter) Run() Result {
	startTime := time.Now()
	runID := c.newRunID()
	log := c.logger.WithField("run_id", runID)

	result := Result{InputFile: c.cfg.InputFile}
	result.Stats.RunID = runID

	// =========================================================================
	// STEP 1: READ AND GROUP
	// =========================================================================

	log.WithField("input", c.cfg.InputFile).Info("processing file")

	buckets, stats, err := ReadAndGroup(
		c.cfg.InputFile,
		c.cfg.CSVSettings,
		grouper.Options{CaseInsensitive: c.cfg.CaseInsensitiveOrganizations()},
		log,
	)
	stats.RunID = runID
	result.Stats = stats
	if err != nil {
		result.Error = fmt.Errorf("failed to read input: %w", err)
		result.Stats.ProcessingTime = time.Since(startTime)
		return result
	}

	log.WithFields(logrus.Fields{
		"accepted":      stats.Accepted,
		"rejected":      stats.Rejected.Total(),
		"organizations": stats.Organizations,
	}).Info("input grouped")

	// =========================================================================
	// STEP 2: SORT
	// =========================================================================

	result.Groups = sorter.SortAll(buckets)

	if c.opts.DryRun {
		log.Info("dry run: no files written")
		result.Success = true
		result.Stats.ProcessingTime = time.Since(startTime)
		return result
	}

	// =========================================================================
	// STEP 3: WRITE ORGANIZATION FILES
	// =========================================================================

	delimiter, err := c.cfg.CSVSettings.DelimiterRune()
	if err != nil {
		result.Error = err
		result.Stats.ProcessingTime = time.Since(startTime)
		return result
	}

	writer := csvwriter.New(csvwriter.Options{
		Dir:       c.cfg.OutputDir,
		Extension: c.cfg.Output.FileExtension,
		Delimiter: delimiter,
	}, log)

	report, err := writer.WriteAll(result.Groups)
	if err != nil {
		result.Error = err
		result.Stats.ProcessingTime = time.Since(startTime)
		return result
	}
	result.Written = report.Written
	result.Failures = report.Failures
	result.Stats.FilesWritten = len(report.Written)
	result.Stats.WriteFailures = len(report.Failures)

	// =========================================================================
	// STEP 4: OPTIONAL OUTPUTS
	// =========================================================================

	if c.cfg.Output.XLSXWorkbook {
		path := filepath.Join(c.cfg.OutputDir, c.cfg.Output.WorkbookName)
		if _, err := xlsxwriter.WriteWorkbook(path, result.Groups); err != nil {
			log.WithError(err).Warn("failed to write workbook")
		} else {
			result.Workbook = path
			log.WithField("file", path).Info("wrote workbook")
		}
	}

	if c.cfg.ArchiveOutputs {
		toArchive := result.Written
		if result.Workbook != "" {
			toArchive = append(append([]string(nil), toArchive...), result.Workbook)
		}

		fm := utils.NewFileManager(c.cfg.OutputDir, c.cfg.OutputArchiveDir)
		if err := fm.EnsureDirectories(); err != nil {
			log.WithError(err).Warn("failed to prepare archive directory")
		} else {
			archived, err := fm.ArchiveOutputFiles(runID, toArchive)
			result.Archived = archived
			if err != nil {
				log.WithError(err).Warn("failed to archive output files")
			} else if len(archived) > 0 {
				log.WithField("dir", fm.RunArchiveDir(runID)).Info("archived output files")
			}
		}
	}

	result.Success = true
	result.Stats.ProcessingTime = time.Since(startTime)

	if c.cfg.SummaryLog {
		path, err := utils.WriteSummaryLog(c.summary(result, startTime), c.cfg.OutputDir)
		if err != nil {
			log.WithError(err).Warn("failed to write summary log")
		} else {
			result.SummaryLog = path
		}
	}

	log.WithFields(logrus.Fields{
		"files_written":  result.Stats.FilesWritten,
		"write_failures": result.Stats.WriteFailures,
		"duration":       result.Stats.ProcessingTime.String(),
	}).Info("processing complete")

	return result
}

// summary converts a Result into the file manager's summary format.
func (c *Converter) summary(result Result, startTime time.Time) utils.ProcessingSummary {
	rejected := make(map[string]int, len(result.Stats.Rejected))
	for reason, n := range result.Stats.Rejected {
		rejected[string(reason)] = n
	}

	failed := make([]utils.FailedWriteInfo, 0, len(result.Failures))
	for _, f := range result.Failures {
		failed = append(failed, utils.FailedWriteInfo{
			Organization: f.Organization,
			OutputFile:   f.Path,
			ErrorMessage: f.Err.Error(),
		})
	}

	return utils.ProcessingSummary{
		RunID:         result.Stats.RunID,
		InputFile:     result.InputFile,
		StartTime:     startTime,
		EndTime:       startTime.Add(result.Stats.ProcessingTime),
		LinesRead:     result.Stats.LinesRead,
		Accepted:      result.Stats.Accepted,
		Rejected:      rejected,
		Replaced:      result.Stats.Replaced,
		Discarded:     result.Stats.Discarded,
		Organizations: result.Stats.Organizations,
		WrittenFiles:  result.Written,
		ArchivedFiles: result.Archived,
		FailedWrites:  failed,
	}
}
