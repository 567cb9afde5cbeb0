// =============================================================================
// Enrollment File Processor - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (enrollment)
//   ├── processCmd  (enrollment process)
//   ├── validateCmd (enrollment validate)
//   └── versionCmd  (enrollment version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads config.yaml (or the file given with --config), .env files and
//      ENROLLMENT_* environment variables
//   2. Applies the global flags (--verbose, --log-file)
//   3. Builds the logger
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/enrollment-file-processor/internal/config"
	"github.com/ginjaninja78/enrollment-file-processor/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// logFile copies log output to a file.
var logFile string

// appConfig and logger are set up by the root command before any
// subcommand runs.
var (
	appConfig *config.Config
	logger    *logrus.Logger
	logCloser io.Closer
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "enrollment",
	Short: "Enrollment File Processor - Split enrollment exports by insurance company",
	Long: `Enrollment File Processor reads an enrollment export (CSV, TXT or XLSX),
keeps the highest version of every subscriber per insurance company, sorts
each company's enrollees by last and first name, and writes one CSV file per
company.

Key Features:
  - Highest-version-wins deduplication per subscriber and company
  - Stable, case-insensitive name sorting
  - Malformed rows are logged and skipped, never fatal
  - Optional XLSX workbook, output archival and summary log

Example Usage:
  enrollment process enrollments.csv        # Process a file
  enrollment process                        # Prompt for the file path
  enrollment process --config ./my.yaml     # Use a custom configuration file
  enrollment validate enrollments.csv       # Report rejected rows only`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		return initApp(cmd)
	},

	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser == nil {
			return nil
		}
		err := logCloser.Close()
		logCloser = nil
		return err
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initApp loads the configuration and builds the logger.
func initApp(cmd *cobra.Command) error {
	// A config file given explicitly must exist; the default one is optional.
	required := cmd.Flags().Changed("config")

	cfg, err := config.Load(cfgFile, required)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}

	log, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	appConfig = cfg
	logger = log
	logCloser = closer

	logger.WithFields(logrus.Fields{
		"config":             cfgFile,
		"output_dir":         cfg.OutputDir,
		"organization_match": cfg.OrganizationMatch,
	}).Debug("configuration loaded")

	return nil
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init sets up the global flags.
func init() {
	// --config flag: Allows the user to specify a custom configuration file.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	// --verbose flag: Enables debug logging.
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)

	// --log-file flag: Also write log lines to a file.
	rootCmd.PersistentFlags().StringVar(
		&logFile,
		"log-file",
		"",
		"Also write log output to this file",
	)
}
