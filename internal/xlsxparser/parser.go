// =============================================================================
// Sales ETL - XLSX Source Parser
// =============================================================================
//
// This module reads a sales export saved as an Excel workbook. It is the
// alternative to the CSV reader for source A and produces rows of the same
// shape:
//   - The first non-empty row of the sheet is the header
//   - Every following non-empty row is a data row keyed by header
//   - Blank cells and missing trailing cells become null
//   - Cell values are read raw, not as displayed: a price formatted as
//     "1,200.50" arrives as "1200.5"
//   - Numeric cells carrying a date number format are converted from the
//     Excel serial to YYYY-MM-DD
//
// SHEET SELECTION:
//   By default the first sheet of the workbook is read. Set Options.Sheet to
//   read a named sheet instead.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sales-etl/internal/types"
)

// =============================================================================
// SHEET DATA STRUCTURE
// =============================================================================

// SheetData represents one parsed worksheet.
type SheetData struct {
	// Headers contains the cleaned column headers in sheet order.
	Headers []string

	// Rows contains the data rows; every row has a key for every header.
	Rows []types.RawRow

	// SourceFile is the path to the workbook.
	SourceFile string

	// SheetName is the worksheet the rows were read from.
	SheetName string

	// RowCount is the number of data rows.
	RowCount int
}

// Options controls which part of the workbook is read.
type Options struct {
	// Sheet is the worksheet name. Empty selects the first sheet.
	Sheet string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads the first sheet of a workbook.
//
// PARAMETERS:
//   - filePath: The path to the XLSX file.
//
// RETURNS:
//   - A pointer to the SheetData struct containing the parsed rows.
//   - An error if the file cannot be read or parsed.
func Parse(filePath string) (*SheetData, error) {
	return ParseWithOptions(filePath, Options{})
}

// ParseWithOptions reads a workbook using explicit options.
func ParseWithOptions(filePath string, opts Options) (*SheetData, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := opts.Sheet
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("workbook has no sheets")
		}
	} else if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheetName)
	}

	data, err := parseSheet(f, sheetName)
	if err != nil {
		return nil, fmt.Errorf("error parsing sheet '%s': %w", sheetName, err)
	}
	data.SourceFile = filePath
	return data, nil
}

// parseSheet reads the header and data rows from an open workbook.
func parseSheet(f *excelize.File, sheetName string) (*SheetData, error) {
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	dates, err := newDateCells(f, sheetName)
	if err != nil {
		return nil, err
	}

	headerRow := -1
	for i, row := range rows {
		if !isRowEmpty(row) {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, fmt.Errorf("sheet is empty")
	}

	headers, err := cleanHeaders(rows[headerRow])
	if err != nil {
		return nil, fmt.Errorf("failed to extract headers: %w", err)
	}

	data := &SheetData{
		Headers:   headers,
		Rows:      make([]types.RawRow, 0, len(rows)-headerRow-1),
		SheetName: sheetName,
	}

	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}
		if len(row) > len(headers) && !isRowEmpty(row[len(headers):]) {
			return nil, fmt.Errorf("row %d: has values beyond the %d header columns", i+1, len(headers))
		}

		rec := make(types.RawRow, len(headers))
		for col, header := range headers {
			var value string
			if col < len(row) {
				value = strings.TrimSpace(row[col])
			}
			if value != "" {
				if value, err = dates.convert(col+1, i+1, value); err != nil {
					return nil, fmt.Errorf("row %d: %w", i+1, err)
				}
			}
			if value == "" {
				rec[header] = nil
			} else {
				rec[header] = value
			}
		}
		data.Rows = append(data.Rows, rec)
	}

	data.RowCount = len(data.Rows)
	return data, nil
}

// =============================================================================
// DATE CELLS
// =============================================================================

// builtinDateFormats are the built-in number format ids that render a date.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// formatLiterals matches the parts of a custom number format that are not
// format codes: quoted text, escaped characters and bracketed sections.
var formatLiterals = regexp.MustCompile(`"[^"]*"|\\.|\[[^\]]*\]`)

// dateCells converts numeric cells with a date number format into dates.
type dateCells struct {
	f         *excelize.File
	sheet     string
	date1904  bool
	isDateFmt map[int]bool
}

func newDateCells(f *excelize.File, sheet string) (*dateCells, error) {
	props, err := f.GetWorkbookProps()
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook properties: %w", err)
	}
	d := &dateCells{f: f, sheet: sheet, isDateFmt: make(map[int]bool)}
	if props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d, nil
}

// convert returns value unchanged unless it is a number in a cell whose style
// formats it as a date.
func (d *dateCells) convert(col, row int, value string) (string, error) {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value, nil
	}

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	styleID, err := d.f.GetCellStyle(d.sheet, cell)
	if err != nil {
		return "", fmt.Errorf("failed to read style of %s: %w", cell, err)
	}

	isDate, err := d.styleIsDate(styleID)
	if err != nil || !isDate {
		return value, err
	}

	t, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return "", fmt.Errorf("cell %s: invalid date serial %s: %w", cell, value, err)
	}
	return t.Format("2006-01-02"), nil
}

// styleIsDate reports whether a cell style renders numbers as dates.
func (d *dateCells) styleIsDate(styleID int) (bool, error) {
	if isDate, ok := d.isDateFmt[styleID]; ok {
		return isDate, nil
	}

	style, err := d.f.GetStyle(styleID)
	if err != nil {
		return false, fmt.Errorf("failed to read style %d: %w", styleID, err)
	}

	isDate := builtinDateFormats[style.NumFmt] ||
		(style.CustomNumFmt != nil && isDateFormatCode(*style.CustomNumFmt))
	d.isDateFmt[styleID] = isDate
	return isDate, nil
}

// isDateFormatCode reports whether a custom number format code shows a day
// or a year.
func isDateFormatCode(code string) bool {
	code = strings.ToLower(formatLiterals.ReplaceAllString(code, ""))
	return strings.ContainsAny(code, "dy")
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// cleanHeaders trims header cells, names blanks by column letter and rejects
// duplicates.
func cleanHeaders(raw []string) ([]string, error) {
	// Trailing blank header cells carry no column.
	for len(raw) > 0 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}

	cleaned := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))

	for i, header := range raw {
		header = strings.TrimSpace(header)
		if header == "" {
			name, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return nil, err
			}
			header = "Column_" + name
		}
		if seen[header] {
			return nil, fmt.Errorf("duplicate header %q", header)
		}
		seen[header] = true
		cleaned[i] = header
	}

	return cleaned, nil
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
