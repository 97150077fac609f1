package xlsxparser

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatal(err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "sales.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse(t *testing.T) {
	path := writeWorkbook(t, "Sales", [][]any{
		{"id", "date", "product", "quantity", "price", "currency", "region"},
		{1, "2025-08-01", "Laptop", 2, 55000, "INR", "India"},
		{},
		{2, "08-02-2025", "Mouse", nil, nil, "USD"},
	})

	data, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if data.SheetName != "Sales" {
		t.Errorf("SheetName = %q, want Sales", data.SheetName)
	}
	if data.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", data.RowCount)
	}
	if len(data.Headers) != 7 {
		t.Errorf("Headers = %v", data.Headers)
	}

	first := data.Rows[0]
	if first["product"] != "Laptop" || first["quantity"] != "2" || first["price"] != "55000" {
		t.Errorf("first row = %v", first)
	}

	second := data.Rows[1]
	for _, col := range []string{"quantity", "price", "region"} {
		if v, ok := second[col]; !ok || v != nil {
			t.Errorf("second row %q = %v (present=%v), want nil", col, v, ok)
		}
	}
}

func TestParse_FormattedCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]any{
		{"id", "date", "price", "quantity", "shipped"},
		{1, 45870, 1200.5, 3, 45871},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}

	customDate := "dd/mm/yyyy"
	styles := []struct {
		cell  string
		style excelize.Style
	}{
		{"B2", excelize.Style{NumFmt: 14}},
		{"C2", excelize.Style{NumFmt: 4}},
		{"E2", excelize.Style{CustomNumFmt: &customDate}},
	}
	for _, s := range styles {
		id, err := f.NewStyle(&s.style)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetCellStyle("Sheet1", s.cell, s.cell, id); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "formatted.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	data, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if data.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1", data.RowCount)
	}

	want := map[string]string{
		"id":       "1",
		"date":     "2025-08-01",
		"price":    "1200.5",
		"quantity": "3",
		"shipped":  "2025-08-02",
	}
	for col, v := range want {
		if got := data.Rows[0][col]; got != v {
			t.Errorf("%s = %v, want %q", col, got, v)
		}
	}
}

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"yyyy-mm-dd", true},
		{"d-mmm", true},
		{"[$-409]mmm yy", true},
		{"#,##0.00", false},
		{"0.00\\ \"days\"", false},
		{"[Red]0.00", false},
		{"hh:mm", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := isDateFormatCode(tt.code); got != tt.want {
				t.Errorf("isDateFormatCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestParseWithOptions_MissingSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]any{{"id"}, {1}})
	if _, err := ParseWithOptions(path, Options{Sheet: "Nope"}); err == nil {
		t.Error("expected an error for a missing sheet")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		rows [][]any
	}{
		{"empty sheet", nil},
		{"duplicate header", [][]any{{"id", "id"}, {1, 2}}},
		{"value beyond headers", [][]any{{"id"}, {1, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(writeWorkbook(t, "Sheet1", tt.rows)); err == nil {
				t.Error("expected an error")
			}
		})
	}

	if _, err := Parse(filepath.Join(t.TempDir(), "missing.xlsx")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestCleanHeaders(t *testing.T) {
	got, err := cleanHeaders([]string{" id ", "", "price", " "})
	if err != nil {
		t.Fatalf("cleanHeaders() error = %v", err)
	}
	want := []string{"id", "Column_B", "price"}
	if len(got) != len(want) {
		t.Fatalf("cleanHeaders() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("header %d = %q, want %q", i, got[i], want[i])
		}
	}
}
