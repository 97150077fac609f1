// =============================================================================
// Sales ETL - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the pipeline, including:
//   - Directory management (database, report and summary directories)
//   - File naming utilities for generated reports
//   - Run summary generation
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all given directories if they don't exist.
// Empty entries are ignored.
//
// RETURNS:
//   - An error if any directory cannot be created.
func EnsureDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// EnsureParentDir creates the directory that will hold filePath.
func EnsureParentDir(filePath string) error {
	return EnsureDirectories(filepath.Dir(filePath))
}

// =============================================================================
// FILE NAMING
// =============================================================================

// GenerateOutputFileName generates a file name from a format string.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//   - params: Extra placeholder values, e.g. {"run": id} for "{run}".
//   - ext:    The required extension, e.g. ".xlsx". Appended when missing.
//
// RETURNS:
//   - The generated file name.
//
// EXAMPLE:
//   format: "sales_report_{timestamp}.xlsx"
//   output: "sales_report_20250802_143022.xlsx"
func GenerateOutputFileName(format string, params map[string]string, ext string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}

	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}

	return result
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary contains summary information about one pipeline run.
type RunSummary struct {
	RunID      string
	StartTime  time.Time
	EndTime    time.Time
	DryRun     bool
	Succeeded  bool
	FinalState string
	ErrorLog   string
	Sources    []SourceSummary
	Stages     []StageSummary
	Counters   []Counter
}

// SourceSummary describes one input file.
type SourceSummary struct {
	Name string
	Path string
	Rows int
}

// StageSummary describes the outcome of one stage.
type StageSummary struct {
	Name     string
	Status   string
	Rows     int
	Duration time.Duration
	Error    string
}

// Counter is a labelled count, such as the number of coerced prices.
type Counter struct {
	Label string
	Value int
}

// WriteSummaryLog writes a run summary to a log file.
//
// PARAMETERS:
//   - summary: The run summary.
//   - outputDir: The directory to write the summary file. Created if missing.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary RunSummary, outputDir string) (string, error) {
	if err := EnsureDirectories(outputDir); err != nil {
		return "", err
	}

	timestamp := summary.StartTime.Format("20060102_150405")
	summaryFileName := fmt.Sprintf("run_summary_%s_%s.txt", timestamp, shortID(summary.RunID))
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	outcome := "FAILED"
	if summary.Succeeded {
		outcome = "SUCCEEDED"
	}
	mode := "full run"
	if summary.DryRun {
		mode = "dry run"
	}

	duration := summary.EndTime.Sub(summary.StartTime)
	header := fmt.Sprintf("Sales ETL - Run Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Mode:           %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Outcome:        %s (%s)\n\n",
		summary.RunID,
		mode,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		outcome,
		summary.FinalState)
	writer.WriteString(header)

	if len(summary.Sources) > 0 {
		writer.WriteString("Sources:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, s := range summary.Sources {
			writer.WriteString(fmt.Sprintf("  %-6s %-50s %d rows\n", s.Name, s.Path, s.Rows))
		}
		writer.WriteString("\n")
	}

	if len(summary.Stages) > 0 {
		writer.WriteString("Stages:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, st := range summary.Stages {
			writer.WriteString(fmt.Sprintf("  %-10s %-8s rows=%-8d %s\n", st.Name, st.Status, st.Rows, st.Duration.String()))
			if st.Error != "" {
				writer.WriteString(fmt.Sprintf("             error: %s\n", st.Error))
			}
		}
		writer.WriteString("\n")
	}

	if summary.ErrorLog != "" {
		writer.WriteString(fmt.Sprintf("Validation errors written to: %s\n\n", summary.ErrorLog))
	}

	if len(summary.Counters) > 0 {
		writer.WriteString("Coercions:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, c := range summary.Counters {
			writer.WriteString(fmt.Sprintf("  %-22s %d\n", c.Label+":", c.Value))
		}
		writer.WriteString("\n")
	}

	footer := "================================================================================\n" +
		"End of Summary\n"
	writer.WriteString(footer)

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "norun"
	}
	return id
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
