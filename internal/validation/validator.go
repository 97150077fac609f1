// =============================================================================
// Sales ETL - Validation Engine
// =============================================================================
//
// This module checks a transformed dataset against the invariants every
// normalized sales record must satisfy before it may be loaded:
//   - quantity is non-negative
//   - price is a finite, non-negative amount in the base currency
//   - currency is the base currency
//   - total_sales_amount equals quantity * price (within float tolerance)
//   - date is null or rendered in the canonical layout
//
// ERROR HANDLING:
//   - Errors are collected, not returned at the first failure
//   - Each error carries the row index, field, value and rule
//   - Duplicate ids are reported as warnings: the pipeline does not enforce
//     uniqueness, but the storage primary key will reject them
//
// =============================================================================

package validation

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/sales-etl/internal/dateparse"
	"github.com/ginjaninja78/sales-etl/internal/types"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule names.
const (
	RuleNonNegative   = "non_negative"
	RuleFinite        = "finite"
	RuleBaseCurrency  = "base_currency"
	RuleDerivedTotal  = "derived_total"
	RuleCanonicalDate = "canonical_date"
	RuleUniqueID      = "unique_id"
)

// totalTolerance is the relative tolerance for the derived total check.
const totalTolerance = 1e-9

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation error.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Field is the column that failed validation.
	Field string

	// Value is the offending value, rendered as text.
	Value string

	// Rule is the invariant that was violated.
	Rule string

	// Message is a human-readable error message.
	Message string

	// Row is the record's position in the dataset (0-based).
	Row int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] Row %d, Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.Row,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Errors contains all validation errors (including warnings).
	Errors []*ValidationError

	// ErrorCount is the number of fatal errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// RecordsValidated is the number of records checked.
	RecordsValidated int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks transformed records.
type Validator struct {
	base    string
	dates   *dateparse.Normalizer
	options ValidationOptions
}

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// StopOnFirstError stops validation after the first fatal error.
	// Default: false
	StopOnFirstError bool

	// TreatWarningsAsErrors treats warnings as fatal errors.
	// Default: false
	TreatWarningsAsErrors bool
}

// NewValidator creates a Validator for the given base currency and date
// normalizer. The normalizer's output layout defines the canonical date.
func NewValidator(base string, dates *dateparse.Normalizer) *Validator {
	return NewValidatorWithOptions(base, dates, ValidationOptions{})
}

// NewValidatorWithOptions creates a new Validator with custom options.
func NewValidatorWithOptions(base string, dates *dateparse.Normalizer, options ValidationOptions) *Validator {
	if dates == nil {
		dates = dateparse.Default()
	}
	return &Validator{
		base:    base,
		dates:   dates,
		options: options,
	}
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// ValidateAll validates every record of the dataset.
//
// PARAMETERS:
//   - ds: The transformed dataset. A nil dataset is trivially valid.
//
// RETURNS:
//   - The collected result.
func (v *Validator) ValidateAll(ds *types.SalesDataset) *ValidationResult {
	result := &ValidationResult{IsValid: true}
	if ds == nil {
		return result
	}

	seenIDs := make(map[int64]int, len(ds.Records))

	for i := range ds.Records {
		rec := &ds.Records[i]
		errs := v.ValidateRecord(i, rec)

		if rec.ID != nil {
			if first, dup := seenIDs[*rec.ID]; dup {
				errs = append(errs, &ValidationError{
					Severity: SeverityWarning,
					Field:    types.ColumnID,
					Value:    strconv.FormatInt(*rec.ID, 10),
					Rule:     RuleUniqueID,
					Message:  fmt.Sprintf("duplicate id, first seen at row %d", first),
					Row:      i,
				})
			} else {
				seenIDs[*rec.ID] = i
			}
		}

		result.RecordsValidated++
		for _, e := range errs {
			if v.options.TreatWarningsAsErrors {
				e.Severity = SeverityError
			}
			if e.Severity == SeverityError {
				result.ErrorCount++
				result.IsValid = false
			} else {
				result.WarningCount++
			}
			result.Errors = append(result.Errors, e)
		}

		if v.options.StopOnFirstError && !result.IsValid {
			break
		}
	}

	return result
}

// ValidateRecord checks a single record and returns its violations.
func (v *Validator) ValidateRecord(row int, rec *types.SalesRecord) []*ValidationError {
	var errs []*ValidationError
	fail := func(field, value, rule, msg string) {
		errs = append(errs, &ValidationError{
			Severity: SeverityError,
			Field:    field,
			Value:    value,
			Rule:     rule,
			Message:  msg,
			Row:      row,
		})
	}

	if rec.Quantity < 0 {
		fail(types.ColumnQuantity, strconv.FormatInt(rec.Quantity, 10), RuleNonNegative, "quantity must not be negative")
	}

	price := formatFloat(rec.Price)
	switch {
	case math.IsNaN(rec.Price) || math.IsInf(rec.Price, 0):
		fail(types.ColumnPrice, price, RuleFinite, "price must be a finite number")
	case rec.Price < 0:
		fail(types.ColumnPrice, price, RuleNonNegative, "price must not be negative")
	}

	if rec.Currency != v.base {
		fail(types.ColumnCurrency, rec.Currency, RuleBaseCurrency, fmt.Sprintf("currency must be %s", v.base))
	}

	want := float64(rec.Quantity) * rec.Price
	if !approxEqual(rec.TotalSalesAmount, want) {
		fail(types.ColumnTotalSalesAmount, formatFloat(rec.TotalSalesAmount), RuleDerivedTotal,
			fmt.Sprintf("total must equal quantity * price (%s)", formatFloat(want)))
	}

	if rec.Date != nil && !v.dates.IsCanonical(*rec.Date) {
		fail(types.ColumnDate, *rec.Date, RuleCanonicalDate, "date is not in the canonical layout")
	}

	return errs
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// approxEqual compares two amounts with a relative tolerance.
func approxEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	if a == b {
		return true
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= totalTolerance*scale
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
//
// PARAMETERS:
//   - errors: The validation errors to format.
//
// RETURNS:
//   - A formatted string containing all errors.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d error(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}

// WriteErrorLog writes validation errors to a log file.
//
// PARAMETERS:
//   - errors: The validation errors to write.
//   - filePath: The path to the output file.
//
// RETURNS:
//   - An error if writing fails.
func WriteErrorLog(errors []*ValidationError, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Validation report generated %s\n\n", time.Now().Format(time.RFC3339))
	writer.WriteString(FormatErrors(errors))
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return nil
}
