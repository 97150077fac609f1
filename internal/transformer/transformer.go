// =============================================================================
// Sales ETL - Transformation Engine
// =============================================================================
//
// This module normalizes the unified dataset into typed sales records. Each
// record goes through the same steps, in order:
//   1. Missing quantity / price become 0
//   2. quantity is coerced to an integer, price to a real; values that are
//      not numeric, not finite or negative become 0
//   3. date is parsed with the ordered fallback chain and rendered in the
//      canonical layout; unparseable dates become null
//   4. price is converted into the base currency using the record's original
//      currency code (unknown codes use the table's default rate)
//   5. currency is set to the base currency
//   6. total_sales_amount = quantity * price; a converted price or total
//      that overflows to infinity coerces the price to 0
//
// Every lossy step records an outcome tag on the record (parsed, defaulted
// or coerced) so that "was zero" can be told apart from "coerced to zero".
// Per-field problems never abort the batch.
//
// The input dataset is never modified.
//
// =============================================================================

package transformer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ginjaninja78/sales-etl/internal/config"
	"github.com/ginjaninja78/sales-etl/internal/currency"
	"github.com/ginjaninja78/sales-etl/internal/dateparse"
	"github.com/ginjaninja78/sales-etl/internal/logger"
	"github.com/ginjaninja78/sales-etl/internal/types"
	"github.com/ginjaninja78/sales-etl/internal/validation"
)

var (
	// ErrNoInput is returned when Transform is called without a dataset.
	ErrNoInput = errors.New("no input dataset")

	// ErrInvariant is returned when a transformed record breaks an invariant.
	ErrInvariant = errors.New("transformed dataset violates invariants")
)

// InvariantError carries the validation findings of a rejected dataset.
// It matches ErrInvariant with errors.Is.
type InvariantError struct {
	Result *validation.ValidationResult
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvariant, firstError(e.Result))
}

func (e *InvariantError) Is(target error) bool { return target == ErrInvariant }

// schemaColumn reports whether a column is part of the sales schema.
var schemaColumn = func() map[string]bool {
	m := make(map[string]bool, len(types.SchemaColumns))
	for _, c := range types.SchemaColumns {
		m[c] = true
	}
	return m
}()

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer normalizes raw rows into sales records.
type Transformer struct {
	rates     *currency.Table
	dates     *dateparse.Normalizer
	validator *validation.Validator
}

// New creates a Transformer with the given conversion table and date chain.
func New(rates *currency.Table, dates *dateparse.Normalizer) *Transformer {
	return NewWithOptions(rates, dates, validation.ValidationOptions{})
}

// NewWithOptions creates a Transformer whose post-transform validation uses
// the given options.
func NewWithOptions(rates *currency.Table, dates *dateparse.Normalizer, opts validation.ValidationOptions) *Transformer {
	return &Transformer{
		rates:     rates,
		dates:     dates,
		validator: validation.NewValidatorWithOptions(rates.Base(), dates, opts),
	}
}

// Default creates a Transformer with the built-in INR table and date chain.
func Default() *Transformer {
	return New(currency.Default(), dateparse.Default())
}

// FromConfig creates a Transformer from the pipeline configuration.
func FromConfig(cfg *config.Config) (*Transformer, error) {
	rates, err := cfg.CurrencyTable()
	if err != nil {
		return nil, fmt.Errorf("failed to build currency table: %w", err)
	}
	dates, err := cfg.DateNormalizer()
	if err != nil {
		return nil, fmt.Errorf("failed to build date normalizer: %w", err)
	}
	return NewWithOptions(rates, dates, validation.ValidationOptions{
		StopOnFirstError:      cfg.Validation.StopOnFirstError,
		TreatWarningsAsErrors: cfg.Validation.Strict,
	}), nil
}

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

// Transform normalizes every row of raw.
//
// PARAMETERS:
//   - ctx: Checked between rows for cancellation.
//   - raw: The unified dataset from the extractor.
//
// RETURNS:
//   - The transformed dataset, one record per input row in the same order.
//   - ErrNoInput if raw is nil, an *InvariantError (matching ErrInvariant)
//     if the result fails validation, or the context error if cancelled.
func (t *Transformer) Transform(ctx context.Context, raw *types.RawDataset) (*types.SalesDataset, error) {
	if raw == nil {
		return nil, ErrNoInput
	}

	log := logger.FromContext(ctx)

	var missing []string
	for _, c := range types.SchemaColumns {
		if !raw.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 && raw.Len() > 0 {
		log.Warn().Strs("columns", missing).Msg("sources lack schema columns, values default")
	}

	out := &types.SalesDataset{
		Columns: append(append([]string(nil), raw.Columns...), missing...),
		Records: make([]types.SalesRecord, len(raw.Rows)),
	}

	for i, row := range raw.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out.Records[i] = t.TransformRow(row)
	}

	result := t.validator.ValidateAll(out)
	if !result.IsValid {
		return nil, &InvariantError{Result: result}
	}

	if result.WarningCount > 0 {
		log.Warn().Int("warnings", result.WarningCount).Msg(validation.FormatErrors(result.Errors))
	}

	stats := Summarize(out)
	log.Debug().
		Int("rows", out.Len()).
		Int("quantity_coerced", stats.QuantityCoerced).
		Int("price_coerced", stats.PriceCoerced).
		Int("dates_unparseable", stats.DatesUnparseable).
		Int("unknown_currency", stats.UnknownCurrency).
		Msg("rows transformed")

	return out, nil
}

// TransformRow normalizes a single row.
func (t *Transformer) TransformRow(row types.RawRow) types.SalesRecord {
	var rec types.SalesRecord

	rec.ID, rec.Coercions.ID = coerceID(row[types.ColumnID])
	rec.Quantity, rec.Coercions.Quantity = coerceQuantity(row[types.ColumnQuantity])
	price, priceOutcome := coercePrice(row[types.ColumnPrice])
	rec.Coercions.Price = priceOutcome

	rec.Date, rec.Coercions.Date, rec.Coercions.DateLayout = t.normalizeDate(row[types.ColumnDate])

	rec.Product = toText(row[types.ColumnProduct])
	rec.Region = toText(row[types.ColumnRegion])

	// Conversion uses the code the record arrived with.
	var code string
	if c := toText(row[types.ColumnCurrency]); c != nil {
		code = currency.NormalizeCode(*c)
	}
	rec.Coercions.SourceCurrency = code
	rec.Price, rec.Coercions.RateKnown = t.rates.Convert(price, code)
	rec.Currency = t.rates.Base()

	rec.TotalSalesAmount = float64(rec.Quantity) * rec.Price

	// A finite input can still overflow once converted or multiplied.
	if !isFinite(rec.Price) || !isFinite(rec.TotalSalesAmount) {
		rec.Price = 0
		rec.Coercions.Price = types.OutcomeCoerced
		rec.TotalSalesAmount = 0
	}

	for k, v := range row {
		if !schemaColumn[k] {
			if rec.Extra == nil {
				rec.Extra = make(map[string]any)
			}
			rec.Extra[k] = v
		}
	}

	return rec
}

// normalizeDate applies the fallback chain to a raw date cell.
func (t *Transformer) normalizeDate(value any) (*string, types.Outcome, string) {
	if value == nil {
		return nil, types.OutcomeDefaulted, ""
	}
	s, ok := value.(string)
	if !ok {
		return nil, types.OutcomeCoerced, ""
	}
	out, f, ok := t.dates.Normalize(s)
	if !ok {
		return nil, types.OutcomeCoerced, ""
	}
	return &out, types.OutcomeParsed, f.Pattern
}

func firstError(result *validation.ValidationResult) string {
	for _, e := range result.Errors {
		if e.Severity == validation.SeverityError {
			return fmt.Sprintf("%d violation(s), first: %s", result.ErrorCount, e.Error())
		}
	}
	return fmt.Sprintf("%d violation(s)", result.ErrorCount)
}

// =============================================================================
// STATISTICS
// =============================================================================

// Stats counts the outcome tags of a transformed dataset.
type Stats struct {
	Records           int `json:"records"`
	QuantityDefaulted int `json:"quantity_defaulted"`
	QuantityCoerced   int `json:"quantity_coerced"`
	PriceDefaulted    int `json:"price_defaulted"`
	PriceCoerced      int `json:"price_coerced"`
	DatesMissing      int `json:"dates_missing"`
	DatesUnparseable  int `json:"dates_unparseable"`
	InvalidIDs        int `json:"invalid_ids"`
	UnknownCurrency   int `json:"unknown_currency"`
}

// Summarize counts the outcome tags of ds.
func Summarize(ds *types.SalesDataset) Stats {
	var s Stats
	if ds == nil {
		return s
	}
	for i := range ds.Records {
		c := ds.Records[i].Coercions
		s.Records++
		switch c.Quantity {
		case types.OutcomeDefaulted:
			s.QuantityDefaulted++
		case types.OutcomeCoerced:
			s.QuantityCoerced++
		}
		switch c.Price {
		case types.OutcomeDefaulted:
			s.PriceDefaulted++
		case types.OutcomeCoerced:
			s.PriceCoerced++
		}
		switch c.Date {
		case types.OutcomeDefaulted:
			s.DatesMissing++
		case types.OutcomeCoerced:
			s.DatesUnparseable++
		}
		if c.ID == types.OutcomeCoerced {
			s.InvalidIDs++
		}
		if !c.RateKnown {
			s.UnknownCurrency++
		}
	}
	return s
}
