// =============================================================================
// Sales ETL - JSON Parser Module
// =============================================================================
//
// This module reads the JSON sales export (source B). The file must hold a
// single top-level array of flat objects:
//
//   [
//     {"id": 5, "date": "2025-08-05", "product": "Monitor", ...},
//     {"id": 6, "date": null, ...}
//   ]
//
// PARSING RULES:
//   - Object keys become columns, in order of first appearance
//   - A key absent from an object is null for that row
//   - JSON null is null; numbers are kept as json.Number so that integer ids
//     are not routed through float64
//   - Any element that is not an object fails the whole file
//
// =============================================================================

package jsonparser

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ginjaninja78/sales-etl/internal/types"
)

// =============================================================================
// JSON DATA STRUCTURE
// =============================================================================

// JSONData represents the parsed JSON file.
type JSONData struct {
	// Keys contains every object key in order of first appearance.
	Keys []string

	// Rows contains one entry per array element. Keys missing from an
	// element are filled with nil.
	Rows []types.RawRow

	// SourceFile is the path to the source file, empty for readers.
	SourceFile string

	// RowCount is the number of array elements.
	RowCount int
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a JSON file and returns the parsed data.
//
// PARAMETERS:
//   - filePath: The path to the JSON file.
//
// RETURNS:
//   - A pointer to the JSONData struct containing the parsed rows.
//   - An error if the file cannot be read or is not an array of objects.
func Parse(filePath string) (*JSONData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := ParseReader(bufio.NewReader(file))
	if err != nil {
		return nil, err
	}
	data.SourceFile = filePath
	return data, nil
}

// ParseReader parses JSON content from any reader.
func ParseReader(r io.Reader) (*JSONData, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return nil, fmt.Errorf("expected a top-level array: %w", err)
	}

	data := &JSONData{}
	seen := make(map[string]bool)

	for i := 0; dec.More(); i++ {
		row, keys, err := decodeObject(dec)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				data.Keys = append(data.Keys, k)
			}
		}
		data.Rows = append(data.Rows, row)
	}

	if err := expectDelim(dec, ']'); err != nil {
		return nil, fmt.Errorf("unterminated array: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after the top-level array")
	}

	// Pad rows so every row carries every key.
	for _, row := range data.Rows {
		for _, k := range data.Keys {
			if _, ok := row[k]; !ok {
				row[k] = nil
			}
		}
	}

	data.RowCount = len(data.Rows)
	return data, nil
}

// decodeObject reads one object from the stream, returning its keys in
// document order.
func decodeObject(dec *json.Decoder) (types.RawRow, []string, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, nil, fmt.Errorf("not an object: %w", err)
	}

	row := make(types.RawRow)
	var keys []string

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected key token %v", tok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, nil, fmt.Errorf("value of %q: %w", key, err)
		}

		if _, dup := row[key]; !dup {
			keys = append(keys, key)
		}
		row[key] = value
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, nil, err
	}
	return row, keys, nil
}

// expectDelim consumes the next token and checks it is the given delimiter.
func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("found %v, want %q", tok, want)
	}
	return nil
}
