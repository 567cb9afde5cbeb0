// =============================================================================
// Enrollment File Processor - Validate Command
// =============================================================================
//
// This file defines the 'validate' command. It reads and groups an input file
// exactly like 'process' does, but writes nothing. Every rejected row is
// logged, and the command prints the counts per rejection reason.
//
// COMMAND USAGE:
//   enrollment validate [file] [flags]
//
// FLAGS:
//   --strict : Exit with an error when any row was rejected
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/enrollment-file-processor/internal/converter"
	"github.com/ginjaninja78/enrollment-file-processor/internal/grouper"
	"github.com/ginjaninja78/enrollment-file-processor/internal/validation"
)

// strict turns rejected rows into a failing exit status.
var strict bool

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check an enrollment file without writing output",
	Long: `The validate command reads an enrollment file and reports rows that would
be skipped by 'process', grouped by reason:

  MalformedRow       fewer than four fields
  MissingIdentifier  empty subscriber id
  InvalidVersion     version is not a whole number (or is negative)

It also reports how many organizations and subscribers would be written.`,
	Args: cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&strict, "strict", false, "Fail when any row is rejected")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	input, err := resolveInput(cmd, args, appConfig.InputFile)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "\n=== Enrollment File Validation ===")
	fmt.Fprintf(out, "Input: %s\n", input)

	opts := grouper.Options{CaseInsensitive: appConfig.CaseInsensitiveOrganizations()}
	buckets, stats, err := converter.ReadAndGroup(input, appConfig.CSVSettings, opts, logger)
	if err != nil {
		return err
	}

	subscribers := 0
	for _, key := range buckets.Keys() {
		subscribers += buckets.Get(key).Len()
	}

	fmt.Fprintf(out, "Lines read:      %d\n", stats.LinesRead)
	fmt.Fprintf(out, "Accepted:        %d\n", stats.Accepted)
	fmt.Fprintf(out, "Organizations:   %d\n", stats.Organizations)
	fmt.Fprintf(out, "Subscribers:     %d\n", subscribers)
	fmt.Fprintf(out, "Rejected:        %d\n", stats.Rejected.Total())
	for _, reason := range validation.Reasons {
		fmt.Fprintf(out, "  %-18s %d\n", reason, stats.Rejected[reason])
	}

	if strict && stats.Rejected.Total() > 0 {
		return fmt.Errorf("%d row(s) rejected", stats.Rejected.Total())
	}

	fmt.Fprintln(out, "Validation complete.")
	return nil
}
