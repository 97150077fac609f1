package transformer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ginjaninja78/sales-etl/internal/types"
)

// =============================================================================
// NUMERIC COERCION
// =============================================================================

// toNumber reads a raw cell as a float. The second result is false for values
// that are present but not numeric.
func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		return parseFloat(v.String())
	case string:
		return parseFloat(v)
	default:
		return 0, false
	}
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// usable rejects NaN, infinities and negative amounts.
func usable(f float64) bool {
	return isFinite(f) && f >= 0
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// coerceQuantity returns a non-negative integer quantity. Fractional values
// truncate toward zero.
func coerceQuantity(value any) (int64, types.Outcome) {
	if value == nil {
		return 0, types.OutcomeDefaulted
	}
	if i, ok := exactInt(value); ok {
		if i < 0 {
			return 0, types.OutcomeCoerced
		}
		return i, types.OutcomeParsed
	}
	f, ok := toNumber(value)
	if !ok || !usable(f) || f >= math.MaxInt64 {
		return 0, types.OutcomeCoerced
	}
	return int64(math.Trunc(f)), types.OutcomeParsed
}

// coercePrice returns a finite, non-negative price.
func coercePrice(value any) (float64, types.Outcome) {
	if value == nil {
		return 0, types.OutcomeDefaulted
	}
	f, ok := toNumber(value)
	if !ok || !usable(f) {
		return 0, types.OutcomeCoerced
	}
	return f, types.OutcomeParsed
}

// coerceID returns the id when it is an integral number, nil otherwise.
func coerceID(value any) (*int64, types.Outcome) {
	if value == nil {
		return nil, types.OutcomeDefaulted
	}
	if i, ok := exactInt(value); ok {
		return &i, types.OutcomeParsed
	}
	f, ok := toNumber(value)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) ||
		f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, types.OutcomeCoerced
	}
	i := int64(f)
	return &i, types.OutcomeParsed
}

// exactInt reads integer cells without a float round trip so that large ids
// keep every digit.
func exactInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// =============================================================================
// TEXT COERCION
// =============================================================================

// toText renders a raw cell as text. Null stays null.
func toText(value any) *string {
	var s string
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		s = v
	case json.Number:
		s = v.String()
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s = fmt.Sprint(v)
	}
	return &s
}
