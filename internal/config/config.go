// =============================================================================
// Enrollment File Processor - Configuration Module
// =============================================================================
//
// This module loads and validates the application configuration.
//
// CONFIGURATION SOURCES (later sources override earlier ones):
//   1. Built-in defaults
//   2. The YAML file (config.yaml, or the path given with --config)
//   3. .env / .env.local files in the working directory, when present
//   4. ENROLLMENT_* environment variables
//   5. Command line flags (applied by the cmd package)
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "ENROLLMENT_"

// Organization matching policies.
const (
	MatchExact           = "exact"
	MatchCaseInsensitive = "case_insensitive"
)

// Supported input encodings, in their normalised spelling.
const (
	EncodingUTF8        = "UTF-8"
	EncodingISO88591    = "ISO-8859-1"
	EncodingWindows1252 = "WINDOWS-1252"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the application configuration.
type Config struct {
	// =========================================================================
	// INPUT / OUTPUT
	// =========================================================================

	// InputFile is the enrollment file to process (.csv, .txt or .xlsx).
	// When empty the CLI asks for it interactively.
	InputFile string `yaml:"input_file" env:"INPUT_FILE"`

	// OutputDir receives one file per organization.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`

	// OutputArchiveDir receives a copy of every file written by a run.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir" env:"OUTPUT_ARCHIVE_DIR"`

	// ArchiveOutputs enables copying written files into OutputArchiveDir.
	ArchiveOutputs bool `yaml:"archive_outputs" env:"ARCHIVE_OUTPUTS"`

	// SummaryLog writes a processing summary file into OutputDir.
	SummaryLog bool `yaml:"summary_log" env:"SUMMARY_LOG"`

	// =========================================================================
	// LOGGING
	// =========================================================================

	// LogFile additionally writes log lines to this file when set.
	LogFile string `yaml:"log_file" env:"LOG_FILE"`

	// LogLevel is one of "debug", "info", "warn", "error", "silent".
	// Default: "info"
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// LogFormat is "text" or "json".
	// Default: "text"
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	// =========================================================================
	// PROCESSING
	// =========================================================================

	// OrganizationMatch selects how organization names are compared when
	// grouping: "exact" (default) or "case_insensitive".
	OrganizationMatch string `yaml:"organization_match" env:"ORGANIZATION_MATCH"`

	// CSVSettings controls how the input file is read.
	CSVSettings CSVSettings `yaml:"csv_settings" envPrefix:"CSV_"`

	// Output controls the files produced per run.
	Output OutputSettings `yaml:"output" envPrefix:"OUTPUT_"`
}

// CSVSettings contains settings for reading the input file.
type CSVSettings struct {
	// Delimiter separates fields. Aliases: "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string `yaml:"delimiter" env:"DELIMITER"`

	// Encoding of the input. "UTF-8", "ISO-8859-1" or "Windows-1252".
	// A UTF-8 byte order mark is always stripped.
	// Default: "UTF-8"
	Encoding string `yaml:"encoding" env:"ENCODING"`

	// HeaderRows is the number of leading lines skipped without validation.
	// Default: 1
	HeaderRows int `yaml:"header_rows" env:"HEADER_ROWS"`
}

// OutputSettings contains settings for the produced files.
type OutputSettings struct {
	// FileExtension is appended to every sanitised organization name.
	// Default: ".csv"
	FileExtension string `yaml:"file_extension" env:"FILE_EXTENSION"`

	// XLSXWorkbook also writes one workbook with a sheet per organization.
	XLSXWorkbook bool `yaml:"xlsx_workbook" env:"XLSX_WORKBOOK"`

	// WorkbookName is the workbook file name inside OutputDir.
	// Default: "enrollments.xlsx"
	WorkbookName string `yaml:"workbook_name" env:"WORKBOOK_NAME"`
}

// =============================================================================
// LOADING
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load builds the configuration from the YAML file at configPath, the .env
// files and the environment.
//
// PARAMETERS:
//   - configPath: path to the YAML file. May be empty.
//   - required:   when false a missing file is not an error and defaults apply.
//
// RETURNS:
//   - The validated configuration.
//   - An error if the file cannot be read or parsed, or a value is invalid.
func Load(configPath string, required bool) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist) && !required:
			// Defaults apply.
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if _, err := LoadEnv([]string{".env", ".env.local"}); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadEnv loads the env files that exist and returns how many were found.
// Variables already set in the process environment win.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// applyDefaults sets default values for any unset option.
func applyDefaults(cfg *Config) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.OutputArchiveDir == "" {
		cfg.OutputArchiveDir = "./output_archive"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.OrganizationMatch == "" {
		cfg.OrganizationMatch = MatchExact
	}

	// CSV settings defaults.
	if cfg.CSVSettings.Delimiter == "" {
		cfg.CSVSettings.Delimiter = ","
	}
	if cfg.CSVSettings.Encoding == "" {
		cfg.CSVSettings.Encoding = EncodingUTF8
	}
	if cfg.CSVSettings.HeaderRows <= 0 {
		cfg.CSVSettings.HeaderRows = 1
	}

	// Output defaults.
	if cfg.Output.FileExtension == "" {
		cfg.Output.FileExtension = ".csv"
	}
	if !strings.HasPrefix(cfg.Output.FileExtension, ".") {
		cfg.Output.FileExtension = "." + cfg.Output.FileExtension
	}
	if cfg.Output.WorkbookName == "" {
		cfg.Output.WorkbookName = "enrollments.xlsx"
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks option values that defaults cannot repair.
func (c *Config) Validate() error {
	if _, err := c.CSVSettings.DelimiterRune(); err != nil {
		return err
	}
	if _, ok := NormalizeEncoding(c.CSVSettings.Encoding); !ok {
		return fmt.Errorf("unsupported encoding %q", c.CSVSettings.Encoding)
	}
	switch c.OrganizationMatch {
	case MatchExact, MatchCaseInsensitive:
	default:
		return fmt.Errorf("organization_match must be %q or %q, got %q",
			MatchExact, MatchCaseInsensitive, c.OrganizationMatch)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}
	return nil
}

// CaseInsensitiveOrganizations reports whether organization names are folded
// before grouping.
func (c *Config) CaseInsensitiveOrganizations() bool {
	return c.OrganizationMatch == MatchCaseInsensitive
}

// DelimiterRune resolves the configured delimiter to a single rune.
//
// Handles the usual aliases:
//   - "\t", "tab"         -> '\t'
//   - "pipe"              -> '|'
//   - "semicolon"         -> ';'
func (s CSVSettings) DelimiterRune() (rune, error) {
	switch strings.ToLower(s.Delimiter) {
	case "", ",":
		return ',', nil
	case "\\t", "\t", "tab":
		return '\t', nil
	case "pipe":
		return '|', nil
	case "semicolon":
		return ';', nil
	}

	if utf8.RuneCountInString(s.Delimiter) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(s.Delimiter)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter %q is not allowed", s.Delimiter)
	}
	return r, nil
}

// NormalizeEncoding maps the accepted spellings of an encoding name to one of
// the Encoding* constants.
func NormalizeEncoding(name string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "UTF-8", "UTF8":
		return EncodingUTF8, true
	case "ISO-8859-1", "ISO8859-1", "LATIN1", "LATIN-1":
		return EncodingISO88591, true
	case "WINDOWS-1252", "CP1252", "WINDOWS1252":
		return EncodingWindows1252, true
	}
	return "", false
}
