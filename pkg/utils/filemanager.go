// =============================================================================
// Enrollment File Processor - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the processor:
//   - Directory management
//   - Run identifiers
//   - Output archival (copying written files into a per-run archive)
//   - Processing summary log generation
//
// ARCHIVAL STRATEGY:
//   - Output files stay in the output directory; archival copies them
//   - Each run gets its own archive directory, optionally below a date path:
//       output_archive/2024/01/15/<run-id>/Acme.csv
//   - Failed organizations have no file and are never archived
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations around a processing run.
type FileManager struct {
	// OutputDir is the directory where organization files are written.
	OutputDir string

	// OutputArchiveDir is the directory for archived output files.
	OutputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: output_archive/2024/01/15/<run-id>/Acme.csv
	UseTimestampSubdirs bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(outputDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		OutputDir:           outputDir,
		OutputArchiveDir:    outputArchiveDir,
		UseTimestampSubdirs: true,
		Now:                 time.Now,
	}
}

func (fm *FileManager) now() time.Time {
	if fm.Now == nil {
		return time.Now()
	}
	return fm.Now()
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output and archive directories if they don't
// exist. Empty entries are skipped.
//
// RETURNS:
//   - An error if any directory cannot be created.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.OutputDir, fm.OutputArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// RUN IDENTIFIERS
// =============================================================================

// GenerateRunID returns a new identifier for a processing run.
func GenerateRunID() string {
	return uuid.New().String()
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// RunArchiveDir returns the archive directory for a run.
func (fm *FileManager) RunArchiveDir(runID string) string {
	if fm.UseTimestampSubdirs {
		now := fm.now()
		return filepath.Join(
			fm.OutputArchiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			runID,
		)
	}
	return filepath.Join(fm.OutputArchiveDir, runID)
}

// ArchiveOutputFiles copies output files into the run's archive directory.
//
// PARAMETERS:
//   - runID: The run identifier, used as the last path element.
//   - files: The output files to archive.
//
// RETURNS:
//   - The paths of the archived copies, in input order.
//   - An error for the first file that could not be archived. Files before it
//     have been archived.
//
// NOTE: Output files are copied, not moved, so they remain in the output directory.
func (fm *FileManager) ArchiveOutputFiles(runID string, files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	archiveDir := fm.RunArchiveDir(runID)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	archived := make([]string, 0, len(files))
	for _, file := range files {
		archivePath := filepath.Join(archiveDir, filepath.Base(file))
		if err := copyFile(file, archivePath); err != nil {
			return archived, fmt.Errorf("failed to copy %s to archive: %w", file, err)
		}
		archived = append(archived, archivePath)
	}

	return archived, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	RunID         string
	InputFile     string
	StartTime     time.Time
	EndTime       time.Time
	LinesRead     int
	Accepted      int
	Rejected      map[string]int
	Replaced      int
	Discarded     int
	Organizations int
	WrittenFiles  []string
	ArchivedFiles []string
	FailedWrites  []FailedWriteInfo
}

// FailedWriteInfo describes an organization whose file could not be written.
type FailedWriteInfo struct {
	Organization string
	OutputFile   string
	ErrorMessage string
}

// TotalRejected sums the rejection counts.
func (s ProcessingSummary) TotalRejected() int {
	total := 0
	for _, n := range s.Rejected {
		total += n
	}
	return total
}

// WriteSummaryLog writes a processing summary to a log file.
//
// PARAMETERS:
//   - summary: The processing summary.
//   - dir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}

	// Generate summary file name.
	timestamp := summary.StartTime.Format("20060102_150405")
	summaryFileName := fmt.Sprintf("processing_summary_%s.txt", timestamp)
	if summary.RunID != "" {
		summaryFileName = fmt.Sprintf("processing_summary_%s_%s.txt", timestamp, shortID(summary.RunID))
	}
	summaryPath := filepath.Join(dir, summaryFileName)

	// Create the file.
	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	writeSummary(writer, summary)

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close summary file: %w", err)
	}

	return summaryPath, nil
}

func writeSummary(w io.Writer, summary ProcessingSummary) {
	const rule = "================================================================================\n"
	const thin = "--------------------------------------------------------------------------------\n"

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(w, "Enrollment File Processor - Processing Summary\n"+
		rule+"\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Input File:     %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Lines Read:         %d\n"+
		"  Accepted:           %d\n"+
		"  Rejected:           %d\n"+
		"  Replaced:           %d\n"+
		"  Discarded:          %d\n"+
		"  Organizations:      %d\n"+
		"  Files Written:      %d\n"+
		"  Write Failures:     %d\n\n",
		summary.RunID,
		summary.InputFile,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.LinesRead,
		summary.Accepted,
		summary.TotalRejected(),
		summary.Replaced,
		summary.Discarded,
		summary.Organizations,
		len(summary.WrittenFiles),
		len(summary.FailedWrites))

	if len(summary.Rejected) > 0 {
		fmt.Fprint(w, "Rejections by Reason:\n", thin)
		reasons := make([]string, 0, len(summary.Rejected))
		for reason := range summary.Rejected {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(w, "  %-20s %d\n", reason+":", summary.Rejected[reason])
		}
		fmt.Fprint(w, "\n")
	}

	if len(summary.WrittenFiles) > 0 {
		fmt.Fprint(w, "Written Files:\n", thin)
		for _, f := range summary.WrittenFiles {
			fmt.Fprintf(w, "  %s\n", f)
		}
		fmt.Fprint(w, "\n")
	}

	if len(summary.ArchivedFiles) > 0 {
		fmt.Fprint(w, "Archived Files:\n", thin)
		for _, f := range summary.ArchivedFiles {
			fmt.Fprintf(w, "  %s\n", f)
		}
		fmt.Fprint(w, "\n")
	}

	if len(summary.FailedWrites) > 0 {
		fmt.Fprint(w, "Failed Organizations:\n", thin)
		for _, fw := range summary.FailedWrites {
			fmt.Fprintf(w, "  Organization: %s\n", fw.Organization)
			fmt.Fprintf(w, "  File:         %s\n", fw.OutputFile)
			fmt.Fprintf(w, "  Error:        %s\n\n", fw.ErrorMessage)
		}
	}

	fmt.Fprint(w, rule, "End of Summary\n")
}

// shortID returns the first block of a UUID, for file names.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	if err != nil {
		return err
	}

	return destFile.Sync()
}
