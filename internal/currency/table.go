// Package currency holds the static conversion table used to unify sales
// prices into the base currency.
package currency

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// BaseCode is the currency every price is converted into.
const BaseCode = "INR"

// DefaultRates are the multipliers into INR used when no configuration
// overrides them.
var DefaultRates = map[string]float64{
	"INR": 1.0,
	"USD": 83.0,
	"EUR": 90.0,
}

// DefaultRate is the multiplier applied to codes missing from the table.
const DefaultRate = 1.0

// Table maps a currency code to its multiplier into the base currency.
// A lookup miss yields the table's explicit default entry.
type Table struct {
	base        string
	rates       map[string]decimal.Decimal
	defaultRate decimal.Decimal
}

// NewTable builds a table. The base currency must map to exactly 1 (it is
// added when absent) and every rate, including the default, must be positive.
func NewTable(base string, rates map[string]float64, defaultRate float64) (*Table, error) {
	base = NormalizeCode(base)
	if base == "" {
		return nil, fmt.Errorf("base currency is required")
	}
	if defaultRate <= 0 {
		return nil, fmt.Errorf("default rate must be positive, got %v", defaultRate)
	}

	t := &Table{
		base:        base,
		rates:       make(map[string]decimal.Decimal, len(rates)+1),
		defaultRate: decimal.NewFromFloat(defaultRate),
	}

	for code, rate := range rates {
		code = NormalizeCode(code)
		if code == "" {
			return nil, fmt.Errorf("empty currency code in rate table")
		}
		if rate <= 0 {
			return nil, fmt.Errorf("rate for %s must be positive, got %v", code, rate)
		}
		if _, dup := t.rates[code]; dup {
			return nil, fmt.Errorf("duplicate rate for %s", code)
		}
		t.rates[code] = decimal.NewFromFloat(rate)
	}

	one := decimal.NewFromInt(1)
	if r, ok := t.rates[base]; !ok {
		t.rates[base] = one
	} else if !r.Equal(one) {
		return nil, fmt.Errorf("rate for base currency %s must be 1, got %s", base, r)
	}

	return t, nil
}

// Default returns the built-in INR table.
func Default() *Table {
	t, err := NewTable(BaseCode, DefaultRates, DefaultRate)
	if err != nil {
		panic(err)
	}
	return t
}

// NormalizeCode trims and upper-cases a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Base returns the base currency code.
func (t *Table) Base() string { return t.base }

// Rate returns the multiplier for code. The second result is false when the
// code is not in the table and the default entry was used.
func (t *Table) Rate(code string) (decimal.Decimal, bool) {
	if r, ok := t.rates[NormalizeCode(code)]; ok {
		return r, true
	}
	return t.defaultRate, false
}

// Convert multiplies amount by the rate for code.
func (t *Table) Convert(amount float64, code string) (float64, bool) {
	rate, known := t.Rate(code)
	f, _ := decimal.NewFromFloat(amount).Mul(rate).Float64()
	return f, known
}

// Codes lists the known currency codes in sorted order.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.rates))
	for c := range t.rates {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
