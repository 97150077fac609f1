// =============================================================================
// Sales ETL - Run Command
// =============================================================================
//
// This file defines the 'run' command, which executes the pipeline once.
//
// COMMAND USAGE:
//   salesetl run [flags]
//
// FLAGS:
//   --csv      : Override the tabular source path (.csv or .xlsx)
//   --json     : Override the JSON source path
//   --db       : Override the SQLite database path
//   --dry-run  : Extract and transform only, do not touch the database
//   --strict   : Fail the transform on validation warnings (duplicate ids)
//
// PROCESSING PIPELINE:
//   1. Load configuration
//   2. Extract both sources and merge them
//   3. Transform and validate every record
//   4. Replace the sales table contents
//   5. Write the run summary
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sales-etl/internal/extractor"
	"github.com/ginjaninja78/sales-etl/internal/loader"
	"github.com/ginjaninja78/sales-etl/internal/pipeline"
	"github.com/ginjaninja78/sales-etl/internal/transformer"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	dryRun   bool
	strict   bool
	csvPath  string
	jsonPath string
	dbPath   string
)

// =============================================================================
// RUN COMMAND DEFINITION
// =============================================================================

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the extract, transform and load pipeline once",
	Long: `The run command reads both sales sources, merges them (tabular rows
first), normalizes every record and replaces the contents of the sales table.

Any stage failure stops the run and leaves the table unchanged. An empty
merged dataset is not loaded and is reported as a failure.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Extract and transform only, do not load")
	runCmd.Flags().BoolVar(&strict, "strict", false, "Treat validation warnings, such as duplicate ids, as errors")
	runCmd.Flags().StringVar(&csvPath, "csv", "", "Path to the tabular source (.csv or .xlsx)")
	runCmd.Flags().StringVar(&jsonPath, "json", "", "Path to the JSON source")
	runCmd.Flags().StringVar(&dbPath, "db", "", "Path to the SQLite database")
}

// =============================================================================
// RUN LOGIC
// =============================================================================

func runPipeline(cmd *cobra.Command) error {
	cfg, ctx, err := setup(cmd)
	if err != nil {
		return err
	}

	if csvPath != "" {
		cfg.Sources.CSVPath = csvPath
	}
	if jsonPath != "" {
		cfg.Sources.JSONPath = jsonPath
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if strict {
		cfg.Validation.Strict = true
	}

	tr, err := transformer.FromConfig(cfg)
	if err != nil {
		return err
	}

	p := pipeline.New(
		extractor.FromConfig(cfg),
		tr,
		loader.New(cfg.Database),
		pipeline.Options{DryRun: dryRun, SummaryDir: cfg.Output.SummaryDir},
	)

	report, runErr := p.Run(ctx)
	printReport(cmd, report)
	return runErr
}

func printReport(cmd *cobra.Command, r *pipeline.Report) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "========================================")
	fmt.Fprintln(out, "Sales ETL Run Summary")
	fmt.Fprintln(out, "========================================")
	fmt.Fprintf(out, "Run ID:   %s\n", r.RunID)
	fmt.Fprintf(out, "State:    %s\n", r.State)
	for _, s := range r.Sources {
		fmt.Fprintf(out, "Source:   %-5s %s (%d rows)\n", s.Name, s.Path, s.Rows)
	}
	for _, s := range r.Stages {
		fmt.Fprintf(out, "Stage:    %-9s %-7s %d rows in %s\n", s.Stage, s.Status, s.Rows, s.Duration)
	}
	if r.Stats.Records > 0 {
		fmt.Fprintf(out, "Coerced:  quantity %d, price %d, dates %d unparseable, %d unknown currency\n",
			r.Stats.QuantityCoerced, r.Stats.PriceCoerced, r.Stats.DatesUnparseable, r.Stats.UnknownCurrency)
	}
	if r.ErrorLogPath != "" {
		fmt.Fprintf(out, "Errors:   %s\n", r.ErrorLogPath)
	}
	if r.SummaryPath != "" {
		fmt.Fprintf(out, "Summary:  %s\n", r.SummaryPath)
	}
	fmt.Fprintln(out, "========================================")
}
