package transformer

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/ginjaninja78/sales-etl/internal/currency"
	"github.com/ginjaninja78/sales-etl/internal/dateparse"
	"github.com/ginjaninja78/sales-etl/internal/types"
	"github.com/ginjaninja78/sales-etl/internal/validation"
)

func dataset(rows ...types.RawRow) *types.RawDataset {
	return &types.RawDataset{
		Columns: []string{"id", "date", "product", "quantity", "price", "currency", "region"},
		Rows:    rows,
	}
}

func transformOne(t *testing.T, row types.RawRow) types.SalesRecord {
	t.Helper()
	out, err := Default().Transform(context.Background(), dataset(row))
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	return out.Records[0]
}

func TestTransform_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		row       types.RawRow
		wantDate  string
		wantPrice float64
		wantTotal float64
	}{
		{
			name:      "ambiguous date resolves month first",
			row:       types.RawRow{"date": "08-02-2025", "price": "1500", "currency": "INR", "quantity": "10"},
			wantDate:  "02-08-2025",
			wantPrice: 1500,
			wantTotal: 15000,
		},
		{
			name:      "usd converted to inr",
			row:       types.RawRow{"date": "2025-08-01", "price": json.Number("120"), "currency": "USD", "quantity": json.Number("2")},
			wantDate:  "01-08-2025",
			wantPrice: 9960,
			wantTotal: 19920,
		},
		{
			name:      "eur converted to inr",
			row:       types.RawRow{"date": "2025/08/06", "price": 10.5, "currency": "EUR", "quantity": 3},
			wantDate:  "06-08-2025",
			wantPrice: 945,
			wantTotal: 2835,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := transformOne(t, tt.row)
			if rec.Date == nil || *rec.Date != tt.wantDate {
				t.Errorf("date = %v, want %s", rec.Date, tt.wantDate)
			}
			if rec.Price != tt.wantPrice {
				t.Errorf("price = %v, want %v", rec.Price, tt.wantPrice)
			}
			if rec.Currency != "INR" {
				t.Errorf("currency = %q, want INR", rec.Currency)
			}
			if rec.TotalSalesAmount != tt.wantTotal {
				t.Errorf("total = %v, want %v", rec.TotalSalesAmount, tt.wantTotal)
			}
		})
	}
}

func TestTransform_QuantityCoercion(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int64
		outcome types.Outcome
	}{
		{"missing", nil, 0, types.OutcomeDefaulted},
		{"integer string", "4", 4, types.OutcomeParsed},
		{"json number", json.Number("7"), 7, types.OutcomeParsed},
		{"fraction truncates", "2.7", 2, types.OutcomeParsed},
		{"zero is parsed", "0", 0, types.OutcomeParsed},
		{"text", "two", 0, types.OutcomeCoerced},
		{"negative", "-3", 0, types.OutcomeCoerced},
		{"nan", "NaN", 0, types.OutcomeCoerced},
		{"infinite", math.Inf(1), 0, types.OutcomeCoerced},
		{"bool", true, 0, types.OutcomeCoerced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := transformOne(t, types.RawRow{"quantity": tt.value, "price": "5", "currency": "INR"})
			if rec.Quantity != tt.want || rec.Coercions.Quantity != tt.outcome {
				t.Errorf("quantity = %d (%s), want %d (%s)", rec.Quantity, rec.Coercions.Quantity, tt.want, tt.outcome)
			}
			if rec.TotalSalesAmount != float64(tt.want)*5 {
				t.Errorf("total = %v, want %v", rec.TotalSalesAmount, float64(tt.want)*5)
			}
		})
	}
}

func TestTransform_PriceCoercion(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    float64
		outcome types.Outcome
	}{
		{"missing", nil, 0, types.OutcomeDefaulted},
		{"decimal string", " 12.25 ", 12.25, types.OutcomeParsed},
		{"text", "free", 0, types.OutcomeCoerced},
		{"negative", -1.0, 0, types.OutcomeCoerced},
		{"nan", math.NaN(), 0, types.OutcomeCoerced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := transformOne(t, types.RawRow{"quantity": "1", "price": tt.value, "currency": "INR"})
			if rec.Price != tt.want || rec.Coercions.Price != tt.outcome {
				t.Errorf("price = %v (%s), want %v (%s)", rec.Price, rec.Coercions.Price, tt.want, tt.outcome)
			}
		})
	}
}

func TestTransform_IDCoercion(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    *int64
		outcome types.Outcome
	}{
		{"json number", json.Number("9007199254740993"), ptr(int64(9007199254740993)), types.OutcomeParsed},
		{"string", "12", ptr(int64(12)), types.OutcomeParsed},
		{"integral float", 5.0, ptr(int64(5)), types.OutcomeParsed},
		{"fractional", 1.5, nil, types.OutcomeCoerced},
		{"text", "A-1", nil, types.OutcomeCoerced},
		{"missing", nil, nil, types.OutcomeDefaulted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := transformOne(t, types.RawRow{"id": tt.value})
			if (rec.ID == nil) != (tt.want == nil) || (rec.ID != nil && *rec.ID != *tt.want) {
				t.Errorf("id = %v, want %v", deref(rec.ID), deref(tt.want))
			}
			if rec.Coercions.ID != tt.outcome {
				t.Errorf("id outcome = %s, want %s", rec.Coercions.ID, tt.outcome)
			}
		})
	}
}

func TestTransform_Dates(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    string
		outcome types.Outcome
		layout  string
	}{
		{"iso", "2025-08-10", "10-08-2025", types.OutcomeParsed, "YYYY-MM-DD"},
		{"unparseable", "10th Aug", "", types.OutcomeCoerced, ""},
		{"not a string", json.Number("20250810"), "", types.OutcomeCoerced, ""},
		{"null", nil, "", types.OutcomeDefaulted, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := transformOne(t, types.RawRow{"date": tt.value})
			got := ""
			if rec.Date != nil {
				got = *rec.Date
			}
			if got != tt.want || rec.Coercions.Date != tt.outcome || rec.Coercions.DateLayout != tt.layout {
				t.Errorf("date = %q (%s, %q), want %q (%s, %q)",
					got, rec.Coercions.Date, rec.Coercions.DateLayout, tt.want, tt.outcome, tt.layout)
			}
		})
	}
}

func TestTransform_Currency(t *testing.T) {
	tests := []struct {
		name      string
		code      any
		wantPrice float64
		wantKnown bool
		wantCode  string
	}{
		{"unknown code uses default rate", "GBP", 100, false, "GBP"},
		{"null code uses default rate", nil, 100, false, ""},
		{"code is normalized", " usd ", 8300, true, "USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := transformOne(t, types.RawRow{"price": "100", "quantity": "1", "currency": tt.code})
			if rec.Price != tt.wantPrice || rec.Coercions.RateKnown != tt.wantKnown {
				t.Errorf("price = %v (known=%v), want %v (known=%v)", rec.Price, rec.Coercions.RateKnown, tt.wantPrice, tt.wantKnown)
			}
			if rec.Coercions.SourceCurrency != tt.wantCode {
				t.Errorf("SourceCurrency = %q, want %q", rec.Coercions.SourceCurrency, tt.wantCode)
			}
			if rec.Currency != "INR" {
				t.Errorf("currency = %q, want INR", rec.Currency)
			}
		})
	}
}

func TestTransform_CurrencyIdempotence(t *testing.T) {
	tr := Default()
	raw := dataset(
		types.RawRow{"id": "1", "price": "120", "quantity": "2", "currency": "USD"},
		types.RawRow{"id": "2", "price": "0.1", "quantity": "3", "currency": "EUR"},
		types.RawRow{"id": "3", "price": "19.99", "quantity": "7", "currency": "INR"},
	)

	first, err := tr.Transform(context.Background(), raw)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	second, err := tr.Transform(context.Background(), first.Raw())
	if err != nil {
		t.Fatalf("second Transform() error = %v", err)
	}

	for i := range first.Records {
		a, b := first.Records[i], second.Records[i]
		if a.Price != b.Price || a.TotalSalesAmount != b.TotalSalesAmount || a.Quantity != b.Quantity {
			t.Errorf("record %d changed on re-transform: %+v -> %+v", i, a, b)
		}
	}
}

func TestTransform_DerivedTotal(t *testing.T) {
	raw := dataset(
		types.RawRow{"price": "19.99", "quantity": "3", "currency": "USD"},
		types.RawRow{"price": "abc", "quantity": "3", "currency": "EUR"},
		types.RawRow{"price": "5", "quantity": nil, "currency": "XYZ"},
	)
	out, err := Default().Transform(context.Background(), raw)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	for i, rec := range out.Records {
		if rec.TotalSalesAmount != float64(rec.Quantity)*rec.Price {
			t.Errorf("record %d total = %v, want %v", i, rec.TotalSalesAmount, float64(rec.Quantity)*rec.Price)
		}
	}
}

func TestTransform_ExtraColumnsAndSchema(t *testing.T) {
	raw := &types.RawDataset{
		Columns: []string{"id", "product", "channel"},
		Rows:    []types.RawRow{{"id": "1", "product": "Pen", "channel": "web"}},
	}

	out, err := Default().Transform(context.Background(), raw)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	if got := out.Records[0].Extra["channel"]; got != "web" {
		t.Errorf("Extra[channel] = %v, want web", got)
	}
	if _, ok := out.Records[0].Extra["product"]; ok {
		t.Error("schema columns must not be copied into Extra")
	}

	has := make(map[string]bool)
	for _, c := range out.Columns {
		has[c] = true
	}
	for _, c := range types.SchemaColumns {
		if !has[c] {
			t.Errorf("output columns missing %q: %v", c, out.Columns)
		}
	}
	if out.Columns[2] != "channel" {
		t.Errorf("input column order not kept: %v", out.Columns)
	}
}

func TestTransform_InputNotModified(t *testing.T) {
	row := types.RawRow{"price": "120", "currency": "USD", "quantity": "2", "date": "08-02-2025"}
	if _, err := Default().Transform(context.Background(), dataset(row)); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if row["price"] != "120" || row["currency"] != "USD" || row["date"] != "08-02-2025" {
		t.Errorf("input row modified: %v", row)
	}
	if _, ok := row["total_sales_amount"]; ok {
		t.Error("total added to input row")
	}
}

func TestTransform_Errors(t *testing.T) {
	if _, err := Default().Transform(context.Background(), nil); !errors.Is(err, ErrNoInput) {
		t.Errorf("Transform(nil) error = %v, want ErrNoInput", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Default().Transform(ctx, dataset(types.RawRow{})); !errors.Is(err, context.Canceled) {
		t.Errorf("Transform(cancelled) error = %v, want context.Canceled", err)
	}

	// A validator expecting another base currency rejects every record.
	tr := Default()
	tr.validator = validation.NewValidator("USD", nil)
	_, err := tr.Transform(context.Background(), dataset(types.RawRow{"price": "1"}))
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("Transform() error = %v, want ErrInvariant", err)
	}
	var ie *InvariantError
	if !errors.As(err, &ie) || ie.Result.ErrorCount != 1 {
		t.Errorf("Transform() error = %#v, want *InvariantError with 1 error", err)
	}
}

func TestTransform_StrictDuplicateIDs(t *testing.T) {
	raw := dataset(
		types.RawRow{"id": "7", "quantity": "1", "price": "1", "currency": "INR"},
		types.RawRow{"id": "7", "quantity": "2", "price": "1", "currency": "INR"},
	)

	if _, err := Default().Transform(context.Background(), raw); err != nil {
		t.Fatalf("Transform() error = %v, duplicate ids only warn by default", err)
	}

	strict := NewWithOptions(currency.Default(), dateparse.Default(), validation.ValidationOptions{TreatWarningsAsErrors: true})
	_, err := strict.Transform(context.Background(), raw)

	var ie *InvariantError
	if !errors.As(err, &ie) {
		t.Fatalf("Transform() error = %v, want *InvariantError", err)
	}
	if ie.Result.ErrorCount != 1 || ie.Result.Errors[0].Rule != validation.RuleUniqueID {
		t.Errorf("Result = %+v", ie.Result)
	}
}

func TestTransform_OverflowCoercesPrice(t *testing.T) {
	raw := dataset(
		types.RawRow{"id": "1", "quantity": "2", "price": "120", "currency": "USD"},
		types.RawRow{"id": "2", "quantity": "1", "price": "1e307", "currency": "EUR"},
		types.RawRow{"id": "3", "quantity": "1000", "price": "1e306", "currency": "INR"},
	)

	out, err := Default().Transform(context.Background(), raw)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", out.Len())
	}

	if r := out.Records[0]; r.Price != 9960 || r.TotalSalesAmount != 19920 {
		t.Errorf("normal row = %+v", r)
	}
	for _, r := range out.Records[1:] {
		if r.Price != 0 || r.TotalSalesAmount != 0 || r.Coercions.Price != types.OutcomeCoerced {
			t.Errorf("row %d: price = %v, total = %v, outcome = %v; want 0, 0, coerced",
				*r.ID, r.Price, r.TotalSalesAmount, r.Coercions.Price)
		}
	}
}

func TestTransform_Empty(t *testing.T) {
	out, err := Default().Transform(context.Background(), &types.RawDataset{})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("Len() = %d, want 0", out.Len())
	}
}

func TestSummarize(t *testing.T) {
	raw := dataset(
		types.RawRow{"id": "x", "quantity": nil, "price": "bad", "currency": "GBP", "date": "junk"},
		types.RawRow{"id": "2", "quantity": "-1", "price": nil, "currency": "INR"},
	)
	out, err := Default().Transform(context.Background(), raw)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	got := Summarize(out)
	want := Stats{
		Records:           2,
		QuantityDefaulted: 1,
		QuantityCoerced:   1,
		PriceDefaulted:    1,
		PriceCoerced:      1,
		DatesMissing:      1,
		DatesUnparseable:  1,
		InvalidIDs:        1,
		UnknownCurrency:   1,
	}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
}

func ptr[T any](v T) *T { return &v }

func deref(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
