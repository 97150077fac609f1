// =============================================================================
// Sales ETL - CSV Parser Module
// =============================================================================
//
// This module reads the comma-delimited sales export (source A) into rows
// keyed by header name. It is deliberately lenient about the shape of the
// file and strict only about things that make the rows ambiguous:
//   - Extra or missing columns are tolerated; missing cells become null
//   - Empty cells become null, the way tabular readers treat blanks
//   - Blank lines are skipped
//   - Duplicate header names are rejected (the column union would be ambiguous)
//   - A row with more cells than headers is rejected
//
// No value is interpreted here; numbers and dates stay strings until the
// transformer coerces them.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/sales-etl/internal/config"
	"github.com/ginjaninja78/sales-etl/internal/types"
)

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents the parsed CSV file.
type CSVData struct {
	// Headers contains the cleaned column headers in file order.
	Headers []string

	// Rows contains the data rows. Every row has a key for every header;
	// blank cells map to nil.
	Rows []types.RawRow

	// SourceFile is the path to the source CSV file, empty for readers.
	SourceFile string

	// RowCount is the number of data rows (blank lines excluded).
	RowCount int
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns the parsed data.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV parsing settings from the pipeline configuration.
//
// RETURNS:
//   - A pointer to the CSVData struct containing the parsed data.
//   - An error if the file cannot be read or parsed.
func Parse(filePath string, settings config.CSVSettings) (*CSVData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := ParseReader(bufio.NewReader(file), settings)
	if err != nil {
		return nil, err
	}
	data.SourceFile = filePath
	return data, nil
}

// ParseReader parses CSV content from any reader.
func ParseReader(r io.Reader, settings config.CSVSettings) (*CSVData, error) {
	csvReader := csv.NewReader(r)
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers, err := cleanHeaders(allRows[0])
	if err != nil {
		return nil, fmt.Errorf("failed to extract headers: %w", err)
	}

	rows, err := extractDataRows(allRows[1:], headers, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to extract data rows: %w", err)
	}

	return &CSVData{
		Headers:  headers,
		Rows:     rows,
		RowCount: len(rows),
	}, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Row width is checked against the header in extractDataRows so that
	// short rows can be padded with nulls.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// cleanHeaders trims header names, names empty headers by position and
// rejects duplicates.
func cleanHeaders(raw []string) ([]string, error) {
	cleaned := make([]string, len(raw))
	seen := make(map[string]int, len(raw))

	for i, header := range raw {
		header = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		if first, dup := seen[header]; dup {
			return nil, fmt.Errorf("duplicate header %q in columns %d and %d", header, first+1, i+1)
		}
		seen[header] = i
		cleaned[i] = header
	}

	return cleaned, nil
}

// extractDataRows converts records to rows keyed by header.
func extractDataRows(records [][]string, headers []string, settings config.CSVSettings) ([]types.RawRow, error) {
	rows := make([]types.RawRow, 0, len(records))

	for i, record := range records {
		if isRowEmpty(record) {
			continue
		}
		if len(record) > len(headers) {
			// +2: one for the header line, one for 1-based numbering.
			return nil, fmt.Errorf("line %d: expected at most %d fields, saw %d", i+2, len(headers), len(record))
		}

		row := make(types.RawRow, len(headers))
		for col, header := range headers {
			if col >= len(record) {
				row[header] = nil
				continue
			}
			value := record[col]
			if settings.TrimSpace {
				value = strings.TrimSpace(value)
			}
			if strings.TrimSpace(value) == "" {
				row[header] = nil
			} else {
				row[header] = value
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
