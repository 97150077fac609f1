package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/sales-etl/internal/config"
	"github.com/ginjaninja78/sales-etl/internal/csvparser"
	"github.com/ginjaninja78/sales-etl/internal/jsonparser"
	"github.com/ginjaninja78/sales-etl/internal/types"
	"github.com/ginjaninja78/sales-etl/internal/xlsxparser"
)

// SourceData is the content of one source: its own columns in file order and
// its rows. Every row carries a key for every column.
type SourceData struct {
	Columns []string
	Rows    []types.RawRow
}

// Source is one input the extractor reads.
type Source interface {
	// Name is a short label used in logs and errors.
	Name() string
	// Path is the file the source reads.
	Path() string
	// Read loads the whole source.
	Read(ctx context.Context) (*SourceData, error)
}

// CSVSource reads a delimited text file.
type CSVSource struct {
	path     string
	settings config.CSVSettings
}

// NewCSVSource creates a CSV source.
func NewCSVSource(path string, settings config.CSVSettings) *CSVSource {
	return &CSVSource{path: path, settings: settings}
}

func (s *CSVSource) Name() string { return "csv" }
func (s *CSVSource) Path() string { return s.path }

func (s *CSVSource) Read(ctx context.Context) (*SourceData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := csvparser.Parse(s.path, s.settings)
	if err != nil {
		return nil, err
	}
	return &SourceData{Columns: data.Headers, Rows: data.Rows}, nil
}

// JSONSource reads a JSON array of objects.
type JSONSource struct {
	path string
}

// NewJSONSource creates a JSON source.
func NewJSONSource(path string) *JSONSource {
	return &JSONSource{path: path}
}

func (s *JSONSource) Name() string { return "json" }
func (s *JSONSource) Path() string { return s.path }

func (s *JSONSource) Read(ctx context.Context) (*SourceData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := jsonparser.Parse(s.path)
	if err != nil {
		return nil, err
	}
	return &SourceData{Columns: data.Keys, Rows: data.Rows}, nil
}

// XLSXSource reads the first (or a named) sheet of a workbook.
type XLSXSource struct {
	path  string
	sheet string
}

// NewXLSXSource creates a workbook source. An empty sheet selects the first.
func NewXLSXSource(path, sheet string) *XLSXSource {
	return &XLSXSource{path: path, sheet: sheet}
}

func (s *XLSXSource) Name() string { return "xlsx" }
func (s *XLSXSource) Path() string { return s.path }

func (s *XLSXSource) Read(ctx context.Context) (*SourceData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := xlsxparser.ParseWithOptions(s.path, xlsxparser.Options{Sheet: s.sheet})
	if err != nil {
		return nil, err
	}
	return &SourceData{Columns: data.Headers, Rows: data.Rows}, nil
}

// NewTabularSource picks the reader for the tabular export by file
// extension: .xlsx workbooks are read with excelize, anything else as CSV.
func NewTabularSource(path string, settings config.CSVSettings) Source {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return NewXLSXSource(path, "")
	}
	return NewCSVSource(path, settings)
}
