// =============================================================================
// Sales ETL - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (salesetl)
//   ├── runCmd     (salesetl run)
//   ├── reportCmd  (salesetl report)
//   └── versionCmd (salesetl version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration for subcommands
//   3. Setting up logging
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sales-etl/internal/config"
	"github.com/ginjaninja78/sales-etl/internal/logger"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "salesetl",
	Short: "Sales ETL - Merge, normalize and load sales exports",
	Long: `Sales ETL reads the sales export files (a CSV or XLSX table and a JSON
record array), merges them, normalizes every record (missing values, numeric
coercion, date formats, currency conversion to INR) and replaces the contents
of the sales table with the result.

Example Usage:
  salesetl run                        # Run the pipeline with config.yaml
  salesetl run --dry-run              # Extract and transform only
  salesetl run --config ./prod.yaml   # Use a custom configuration file
  salesetl report --out ./reports     # Export the sales table to XLSX`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultConfigFile,
		"Path to the configuration file (optional unless set explicitly)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// setup loads the configuration and returns a context carrying the logger.
// A config file named with --config must exist; the default one may not.
func setup(cmd *cobra.Command) (*config.Config, context.Context, error) {
	explicit := cmd.Flags().Changed("config")

	cfg, err := config.Load(cfgFile, explicit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(cfg.LogLevel)
	if verbose {
		log = log.Level(zerolog.DebugLevel)
	}

	return cfg, logger.WithContext(cmd.Context(), log), nil
}
