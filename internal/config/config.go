// =============================================================================
// Sales ETL - Configuration Module
// =============================================================================
//
// This module loads and validates the pipeline configuration.
//
// CONFIGURATION SOURCES (later sources win):
//   1. Built-in defaults (see Default)
//   2. The YAML configuration file (config.yaml by default, optional)
//   3. Environment variables, including any found in a .env file
//
// ENVIRONMENT OVERRIDES:
//   SALES_ETL_CSV_PATH    -> sources.csv_path
//   SALES_ETL_JSON_PATH   -> sources.json_path
//   SALES_ETL_DB_DRIVER   -> database.driver
//   SALES_ETL_DB_PATH     -> database.path
//   SALES_ETL_DB_DSN      -> database.dsn
//   SALES_ETL_LOG_LEVEL   -> log_level
//
// =============================================================================

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/sales-etl/internal/currency"
	"github.com/ginjaninja78/sales-etl/internal/dateparse"
)

// DefaultConfigFile is the file looked up when no --config flag is given.
const DefaultConfigFile = "config.yaml"

// =============================================================================
// CONFIGURATION STRUCTURES
// =============================================================================

// Config holds the whole pipeline configuration.
type Config struct {
	// Sources describes the two input files.
	Sources SourcesConfig `yaml:"sources"`

	// Database describes the relational target.
	Database DatabaseConfig `yaml:"database"`

	// Currency holds the static conversion table.
	Currency CurrencyConfig `yaml:"currency"`

	// Dates holds the date fallback chain.
	Dates DatesConfig `yaml:"dates"`

	// Output holds report and summary locations.
	Output OutputConfig `yaml:"output"`

	// Validation controls the checks run on transformed records.
	Validation ValidationConfig `yaml:"validation"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// ParallelExtract reads both sources concurrently. The merged order is
	// the same either way.
	// Default: true
	ParallelExtract *bool `yaml:"parallel_extract"`
}

// ValidationConfig controls post-transform validation.
type ValidationConfig struct {
	// Strict turns warnings, such as a duplicate id, into errors that fail
	// the transform stage.
	// Default: false
	Strict bool `yaml:"strict"`

	// StopOnFirstError stops checking records after the first error.
	// Default: false
	StopOnFirstError bool `yaml:"stop_on_first_error"`
}

// SourcesConfig locates the input files.
type SourcesConfig struct {
	// CSVPath is the comma-delimited export (source A). A path ending in
	// .xlsx is read as a workbook instead.
	// Default: "data/sales_data.csv"
	CSVPath string `yaml:"csv_path" validate:"required"`

	// JSONPath is the JSON record array (source B).
	// Default: "data/sales_data.json"
	JSONPath string `yaml:"json_path" validate:"required"`

	// CSVSettings contains settings for parsing source A.
	CSVSettings CSVSettings `yaml:"csv_settings"`
}

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter is the character used to separate fields.
	// Common values: "," (comma), "|" (pipe), "\t" (tab)
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// TrimSpace trims surrounding whitespace from every cell.
	// Default: false
	TrimSpace bool `yaml:"trim_space"`
}

// DatabaseConfig describes the storage target.
type DatabaseConfig struct {
	// Driver selects the gorm dialect.
	// Valid values: "sqlite", "postgres"
	// Default: "sqlite"
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`

	// Path is the SQLite database file.
	// Default: "database/sales.db"
	Path string `yaml:"path" validate:"required_if=Driver sqlite"`

	// DSN is the PostgreSQL connection string, used when Driver is postgres.
	DSN string `yaml:"dsn" validate:"required_if=Driver postgres"`

	// BatchSize is the number of rows per INSERT statement.
	// Default: 500
	BatchSize int `yaml:"batch_size" validate:"gte=1"`
}

// CurrencyConfig is the static conversion table.
type CurrencyConfig struct {
	// Base is the currency every price is converted into.
	// Default: "INR"
	Base string `yaml:"base" validate:"required,len=3"`

	// DefaultRate applies to codes missing from Rates.
	// Default: 1.0
	DefaultRate float64 `yaml:"default_rate" validate:"gt=0"`

	// Rates maps a currency code to its multiplier into Base.
	// Default: INR 1.0, USD 83.0, EUR 90.0
	Rates map[string]float64 `yaml:"rates" validate:"dive,keys,required,endkeys,gt=0"`
}

// DatesConfig is the date fallback chain.
type DatesConfig struct {
	// InputFormats are tried in order; the first match wins.
	// Default: ["YYYY-MM-DD", "MM-DD-YYYY", "YYYY/MM/DD"]
	InputFormats []string `yaml:"input_formats" validate:"min=1,dive,required"`

	// OutputFormat is the canonical rendering.
	// Default: "DD-MM-YYYY"
	OutputFormat string `yaml:"output_format" validate:"required"`
}

// OutputConfig locates generated files.
type OutputConfig struct {
	// ReportDir receives XLSX reports.
	// Default: "reports"
	ReportDir string `yaml:"report_dir" validate:"required"`

	// ReportFileFormat names report files.
	// Placeholders: {uuid}, {timestamp}, {date}
	// Default: "sales_report_{timestamp}.xlsx"
	ReportFileFormat string `yaml:"report_file_format" validate:"required"`

	// SummaryDir receives run summaries. Empty disables them.
	// Default: "logs"
	SummaryDir string `yaml:"summary_dir"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration.
//
// PARAMETERS:
//   - configPath: The path to the YAML file.
//   - required: When false, a missing file falls back to the defaults.
//
// RETURNS:
//   - The validated configuration.
//   - An error if the file cannot be read or parsed, or is invalid.
func Load(configPath string, required bool) (*Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// decode parses YAML and rejects unknown keys so typos do not silently fall
// back to defaults.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.Sources.CSVPath == "" {
		cfg.Sources.CSVPath = "data/sales_data.csv"
	}
	if cfg.Sources.JSONPath == "" {
		cfg.Sources.JSONPath = "data/sales_data.json"
	}
	if cfg.Sources.CSVSettings.Delimiter == "" {
		cfg.Sources.CSVSettings.Delimiter = ","
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = "database/sales.db"
	}
	if cfg.Database.BatchSize == 0 {
		cfg.Database.BatchSize = 500
	}

	if cfg.Currency.Base == "" {
		cfg.Currency.Base = currency.BaseCode
	}
	if cfg.Currency.DefaultRate == 0 {
		cfg.Currency.DefaultRate = currency.DefaultRate
	}
	if cfg.Currency.Rates == nil {
		cfg.Currency.Rates = make(map[string]float64, len(currency.DefaultRates))
		for k, v := range currency.DefaultRates {
			cfg.Currency.Rates[k] = v
		}
	}

	if len(cfg.Dates.InputFormats) == 0 {
		cfg.Dates.InputFormats = append([]string(nil), dateparse.DefaultPatterns...)
	}
	if cfg.Dates.OutputFormat == "" {
		cfg.Dates.OutputFormat = dateparse.CanonicalPattern
	}

	if cfg.Output.ReportDir == "" {
		cfg.Output.ReportDir = "reports"
	}
	if cfg.Output.ReportFileFormat == "" {
		cfg.Output.ReportFileFormat = "sales_report_{timestamp}.xlsx"
	}
	if cfg.Output.SummaryDir == "" {
		cfg.Output.SummaryDir = "logs"
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ParallelExtract == nil {
		parallel := true
		cfg.ParallelExtract = &parallel
	}
}

// applyEnvOverrides lets the environment override file values.
func applyEnvOverrides(cfg *Config) {
	cfg.Sources.CSVPath = getEnv("SALES_ETL_CSV_PATH", cfg.Sources.CSVPath)
	cfg.Sources.JSONPath = getEnv("SALES_ETL_JSON_PATH", cfg.Sources.JSONPath)
	cfg.Database.Driver = getEnv("SALES_ETL_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Path = getEnv("SALES_ETL_DB_PATH", cfg.Database.Path)
	cfg.Database.DSN = getEnv("SALES_ETL_DB_DSN", cfg.Database.DSN)
	cfg.LogLevel = strings.ToLower(getEnv("SALES_ETL_LOG_LEVEL", cfg.LogLevel))
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// =============================================================================
// VALIDATION
// =============================================================================

var validate = validator.New()

// Validate checks struct constraints and builds the currency table and date
// normalizer once so that bad values fail at load time.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.CurrencyTable(); err != nil {
		return fmt.Errorf("currency: %w", err)
	}
	if _, err := c.DateNormalizer(); err != nil {
		return fmt.Errorf("dates: %w", err)
	}
	return nil
}

// Parallel reports whether the sources are read concurrently.
func (c *Config) Parallel() bool {
	return c.ParallelExtract == nil || *c.ParallelExtract
}

// CurrencyTable builds the conversion table.
func (c *Config) CurrencyTable() (*currency.Table, error) {
	return currency.NewTable(c.Currency.Base, c.Currency.Rates, c.Currency.DefaultRate)
}

// DateNormalizer builds the date fallback chain.
func (c *Config) DateNormalizer() (*dateparse.Normalizer, error) {
	return dateparse.New(c.Dates.InputFormats, c.Dates.OutputFormat)
}
