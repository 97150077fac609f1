// =============================================================================
// Sales ETL - Shared Types
// =============================================================================
//
// This package contains the dataset types shared by every pipeline stage so
// that the stage packages do not import each other. Types defined here are
// used by:
//   - extractor   (produces RawDataset)
//   - transformer (consumes RawDataset, produces SalesDataset)
//   - validation  (checks SalesDataset)
//   - loader      (persists SalesDataset)
//
// =============================================================================

package types

import "strconv"

// =============================================================================
// COLUMN NAMES
// =============================================================================

// Canonical column names of the sales schema.
const (
	ColumnID               = "id"
	ColumnDate             = "date"
	ColumnProduct          = "product"
	ColumnQuantity         = "quantity"
	ColumnPrice            = "price"
	ColumnCurrency         = "currency"
	ColumnRegion           = "region"
	ColumnTotalSalesAmount = "total_sales_amount"
)

// SchemaColumns lists the persisted columns in table order.
var SchemaColumns = []string{
	ColumnID,
	ColumnDate,
	ColumnProduct,
	ColumnQuantity,
	ColumnPrice,
	ColumnCurrency,
	ColumnRegion,
	ColumnTotalSalesAmount,
}

// =============================================================================
// RAW (UNIFIED) DATASET
// =============================================================================

// RawRow is one extracted row keyed by column name.
// A nil value, or a missing key, means the cell is null.
type RawRow map[string]any

// SourceInfo describes one source that contributed rows to a RawDataset.
type SourceInfo struct {
	// Name is a short label for the source ("csv", "json", "xlsx").
	Name string

	// Path is the file the rows were read from.
	Path string

	// Columns are the source's own columns, in file order.
	Columns []string

	// Rows is the number of rows the source contributed.
	Rows int
}

// RawDataset is the unified, untyped dataset produced by the extractor.
// Rows are ordered by source and then by position within the source; the
// slice index is the row index and is unrelated to the id column.
type RawDataset struct {
	// Columns is the union of all source columns in first-seen order.
	Columns []string

	// Rows holds every row of every source. Each row carries a key for every
	// entry in Columns.
	Rows []RawRow

	// Sources records where the rows came from, in concatenation order.
	Sources []SourceInfo
}

// Len returns the number of rows, treating a nil dataset as empty.
func (d *RawDataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// HasColumn reports whether the dataset schema contains the column.
func (d *RawDataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// =============================================================================
// COERCION OUTCOMES
// =============================================================================

// Outcome tags how a field value was obtained during transformation, so that
// "was zero" can be told apart from "coerced to zero".
type Outcome int

const (
	// OutcomeParsed means the raw value was valid and used as-is.
	OutcomeParsed Outcome = iota
	// OutcomeDefaulted means the raw value was null or missing and the
	// documented default was used.
	OutcomeDefaulted
	// OutcomeCoerced means the raw value was present but invalid and was
	// replaced by the documented default.
	OutcomeCoerced
)

func (o Outcome) String() string {
	switch o {
	case OutcomeParsed:
		return "parsed"
	case OutcomeDefaulted:
		return "defaulted"
	case OutcomeCoerced:
		return "coerced"
	default:
		return "outcome(" + strconv.Itoa(int(o)) + ")"
	}
}

// Coercions records the outcome of each lossy conversion for one record.
type Coercions struct {
	ID       Outcome
	Quantity Outcome
	Price    Outcome
	Date     Outcome

	// DateLayout is the candidate layout that matched, empty when the date
	// is null.
	DateLayout string

	// RateKnown is false when the currency code was missing from the rate
	// table and the default rate was applied.
	RateKnown bool

	// SourceCurrency is the currency code the record carried before
	// conversion.
	SourceCurrency string
}

// =============================================================================
// TRANSFORMED DATASET
// =============================================================================

// SalesRecord is one normalized sales row.
type SalesRecord struct {
	ID               *int64
	Date             *string
	Product          *string
	Quantity         int64
	Price            float64
	Currency         string
	Region           *string
	TotalSalesAmount float64

	// Extra carries columns outside the sales schema unchanged.
	Extra map[string]any

	// Coercions is bookkeeping only and is never persisted.
	Coercions Coercions
}

// SalesDataset is the output of the transformer.
type SalesDataset struct {
	// Columns is the unified column set, with total_sales_amount appended
	// when it was not already present.
	Columns []string

	Records []SalesRecord
}

// Len returns the number of records, treating a nil dataset as empty.
func (d *SalesDataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Raw renders the dataset back into the untyped form accepted by the
// transformer. Null fields stay null.
func (d *SalesDataset) Raw() *RawDataset {
	if d == nil {
		return nil
	}

	raw := &RawDataset{
		Columns: append([]string(nil), d.Columns...),
		Rows:    make([]RawRow, len(d.Records)),
	}

	for i, rec := range d.Records {
		row := make(RawRow, len(d.Columns))
		for _, c := range d.Columns {
			row[c] = nil
		}
		for k, v := range rec.Extra {
			row[k] = v
		}
		if rec.ID != nil {
			row[ColumnID] = *rec.ID
		}
		if rec.Date != nil {
			row[ColumnDate] = *rec.Date
		}
		if rec.Product != nil {
			row[ColumnProduct] = *rec.Product
		}
		if rec.Region != nil {
			row[ColumnRegion] = *rec.Region
		}
		row[ColumnQuantity] = rec.Quantity
		row[ColumnPrice] = rec.Price
		row[ColumnCurrency] = rec.Currency
		row[ColumnTotalSalesAmount] = rec.TotalSalesAmount
		raw.Rows[i] = row
	}

	return raw
}
