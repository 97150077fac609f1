// =============================================================================
// Sales ETL - Report Command
// =============================================================================
//
// This file defines the 'report' command, which exports the persisted sales
// table to an XLSX workbook with a per-region summary sheet.
//
// COMMAND USAGE:
//   salesetl report [--out DIR]
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sales-etl/internal/loader"
	"github.com/ginjaninja78/sales-etl/internal/report"
)

var reportDir string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the sales table to an XLSX report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, err := setup(cmd)
		if err != nil {
			return err
		}

		dir := cfg.Output.ReportDir
		if reportDir != "" {
			dir = reportDir
		}

		summary, err := report.Write(ctx, loader.New(cfg.Database), dir, cfg.Output.ReportFileFormat)
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Report written: %s (%d rows, %d regions)\n", summary.Path, summary.Rows, len(summary.Regions))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportDir, "out", "", "Directory for the report (default from config)")
}
