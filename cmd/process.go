// =============================================================================
// Enrollment File Processor - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the whole pipeline for
// one enrollment file.
//
// COMMAND USAGE:
//   enrollment process [file] [flags]
//
// FLAGS:
//   --input                  : Input file (alternative to the positional argument)
//   --output                 : Output directory (overrides output_dir)
//   --dry-run                : Read, group and sort, but write nothing
//   --case-insensitive-orgs  : Group organizations ignoring case
//   --xlsx                   : Also write one workbook with a sheet per organization
//   --quiet                  : Do not print the per-organization report
//
// When no input is given on the command line or in the configuration, the
// command asks for it on standard input.
//
// PROCESSING PIPELINE:
//   1. Read and group the input (malformed rows are logged and skipped)
//   2. Sort every organization by last name, then first name
//   3. Write one file per organization
//   4. Print the per-organization report and the summary
//
// =============================================================================

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/enrollment-file-processor/internal/config"
	"github.com/ginjaninja78/enrollment-file-processor/internal/converter"
	"github.com/ginjaninja78/enrollment-file-processor/internal/types"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// inputPath is the file to process (--input).
var inputPath string

// outputDir overrides the configured output directory.
var outputDir string

// dryRun simulates processing without writing output files.
var dryRun bool

// caseInsensitiveOrgs groups organizations ignoring case.
var caseInsensitiveOrgs bool

// writeWorkbook also writes the XLSX workbook.
var writeWorkbook bool

// quiet suppresses the per-organization report.
var quiet bool

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process [file]",
	Short: "Split an enrollment file into one sorted CSV file per insurance company",
	Long: `The process command reads an enrollment file, keeps the highest version of
every subscriber within each insurance company, sorts each company's enrollees
by last name and then first name, and writes one CSV file per company.

Input lines have the form:
  subscriberId,fullName,version,organization

Rows with fewer than four fields, an empty subscriber id or a version that is
not a whole number are logged and skipped. Only an input file that cannot be
opened stops the run.

A company whose file cannot be written is reported; the other companies are
still written.`,
	Args: cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd, args)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init registers the process command with the root command and sets up flags.
func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to the enrollment file")
	processCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides output_dir)")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Read, group and sort without writing output files")
	processCmd.Flags().BoolVar(&caseInsensitiveOrgs, "case-insensitive-orgs", false, "Group organizations ignoring case")
	processCmd.Flags().BoolVar(&writeWorkbook, "xlsx", false, "Also write an XLSX workbook with one sheet per organization")
	processCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the per-organization report")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess applies the flags to the loaded configuration and runs the
// converter.
func runProcess(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg := *appConfig

	input, err := resolveInput(cmd, args, cfg.InputFile)
	if err != nil {
		return err
	}
	cfg.InputFile = input

	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if caseInsensitiveOrgs {
		cfg.OrganizationMatch = config.MatchCaseInsensitive
	}
	if writeWorkbook {
		cfg.Output.XLSXWorkbook = true
	}

	fmt.Fprintln(out, "\n=== Enrollment File Processor ===")
	fmt.Fprintf(out, "Input:  %s\n", cfg.InputFile)
	if dryRun {
		fmt.Fprintln(out, "Output: (dry run, nothing is written)")
	} else {
		fmt.Fprintf(out, "Output: %s\n", cfg.OutputDir)
	}

	result := converter.New(&cfg, converter.Options{DryRun: dryRun}, logger).Run()
	if result.Error != nil {
		return result.Error
	}

	fmt.Fprintln(out, "Successfully read and grouped enrollees by insurance company.")
	fmt.Fprintln(out, "Successfully sorted enrollees (last name, first name).")
	if !dryRun {
		if len(result.Failures) == 0 {
			fmt.Fprintf(out, "Successfully wrote sorted CSV files to: %s\n", cfg.OutputDir)
		} else {
			fmt.Fprintf(out, "Wrote %d of %d CSV files to: %s\n",
				len(result.Written), len(result.Groups), cfg.OutputDir)
		}
	}

	if !quiet {
		printGroups(out, result.Groups)
	}
	printSummary(out, result)

	return nil
}

// resolveInput picks the input path: positional argument, then --input, then
// the configuration, then a prompt on standard input.
func resolveInput(cmd *cobra.Command, args []string, configured string) (string, error) {
	switch {
	case len(args) == 1 && strings.TrimSpace(args[0]) != "":
		return strings.TrimSpace(args[0]), nil
	case inputPath != "":
		return inputPath, nil
	case configured != "":
		return configured, nil
	}

	fmt.Fprint(cmd.OutOrStdout(), "Enter the path to the CSV file: ")
	return promptLine(cmd.InOrStdin())
}

// promptLine reads one line and trims it.
func promptLine(in io.Reader) (string, error) {
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input path: %w", err)
	}

	path := strings.TrimSpace(line)
	if path == "" {
		return "", errors.New("no input file given")
	}
	return path, nil
}

// =============================================================================
// REPORTING
// =============================================================================

// printGroups lists every organization with its sorted enrollees.
func printGroups(out io.Writer, groups []types.Group) {
	fmt.Fprintln(out, "\nEnrollees by Insurance Company:")
	for _, g := range groups {
		fmt.Fprintf(out, "\n%s\n", g.Organization)
		fmt.Fprintln(out, strings.Repeat("=", len(g.Organization)))
		for _, r := range g.Records {
			fmt.Fprintf(out, "  %-10s | %-12s %-12s | v%-2d\n",
				r.SubscriberID, r.FirstName, r.LastName, r.Version)
		}
	}
}

// printSummary prints the run statistics.
func printSummary(out io.Writer, result converter.Result) {
	stats := result.Stats

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Run ID:          %s\n", stats.RunID)
	fmt.Fprintf(out, "Lines read:      %d\n", stats.LinesRead)
	fmt.Fprintf(out, "Accepted:        %d\n", stats.Accepted)
	fmt.Fprintf(out, "Rejected:        %d (%s)\n", stats.Rejected.Total(), stats.Rejected)
	fmt.Fprintf(out, "Replaced:        %d\n", stats.Replaced)
	fmt.Fprintf(out, "Discarded:       %d\n", stats.Discarded)
	fmt.Fprintf(out, "Organizations:   %d\n", stats.Organizations)
	fmt.Fprintf(out, "Files written:   %d\n", stats.FilesWritten)
	fmt.Fprintf(out, "Write failures:  %d\n", stats.WriteFailures)
	fmt.Fprintf(out, "Time elapsed:    %s\n", stats.ProcessingTime)

	for _, f := range result.Failures {
		fmt.Fprintf(out, "  ✗ %s -> %s: %v\n", f.Organization, f.Path, f.Err)
	}
	if result.Workbook != "" {
		fmt.Fprintf(out, "Workbook:        %s\n", result.Workbook)
	}
	if len(result.Archived) > 0 {
		fmt.Fprintf(out, "Archived:        %d file(s)\n", len(result.Archived))
	}
	if result.SummaryLog != "" {
		fmt.Fprintf(out, "Summary log:     %s\n", result.SummaryLog)
	}
}
