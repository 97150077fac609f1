// =============================================================================
// Sales ETL - XLSX Report
// =============================================================================
//
// This module exports the persisted sales table to an Excel workbook with
// two sheets:
//   - "Sales":     every row of the table, one column per table column
//   - "By Region": orders, units and revenue per region, highest revenue
//                  first
//
// Revenue is summed with decimal arithmetic so the totals do not drift with
// the number of rows.
//
// =============================================================================

package report

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sales-etl/internal/loader"
	"github.com/ginjaninja78/sales-etl/internal/types"
	"github.com/ginjaninja78/sales-etl/pkg/utils"
)

// Sheet names.
const (
	SalesSheet  = "Sales"
	RegionSheet = "By Region"
)

// NoRegion labels rows without a region.
const NoRegion = "(none)"

// RowSource supplies the persisted rows.
type RowSource interface {
	All(ctx context.Context) ([]loader.Row, error)
}

// RegionTotal aggregates the rows of one region.
type RegionTotal struct {
	Region  string
	Orders  int
	Units   int64
	Revenue decimal.Decimal
}

// Summary describes a written report.
type Summary struct {
	Path    string
	Rows    int
	Regions []RegionTotal
}

// =============================================================================
// EXPORT
// =============================================================================

// Write exports the table into dir, naming the file from format (see
// utils.GenerateOutputFileName).
func Write(ctx context.Context, src RowSource, dir, format string) (Summary, error) {
	if err := utils.EnsureDirectories(dir); err != nil {
		return Summary{}, err
	}
	path := filepath.Join(dir, utils.GenerateOutputFileName(format, nil, ".xlsx"))
	return Export(ctx, src, path)
}

// Export writes the workbook to path.
//
// RETURNS:
//   - The report summary.
//   - An error if the rows cannot be read or the workbook cannot be saved.
func Export(ctx context.Context, src RowSource, path string) (Summary, error) {
	rows, err := src.All(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read sales rows: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SalesSheet); err != nil {
		return Summary{}, err
	}
	if _, err := f.NewSheet(RegionSheet); err != nil {
		return Summary{}, err
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return Summary{}, err
	}

	if err := writeSalesSheet(f, rows, header); err != nil {
		return Summary{}, fmt.Errorf("failed to write %s sheet: %w", SalesSheet, err)
	}

	totals := Totals(rows)
	if err := writeRegionSheet(f, totals, header); err != nil {
		return Summary{}, fmt.Errorf("failed to write %s sheet: %w", RegionSheet, err)
	}

	if err := f.SaveAs(path); err != nil {
		return Summary{}, fmt.Errorf("failed to save report: %w", err)
	}

	return Summary{Path: path, Rows: len(rows), Regions: totals}, nil
}

func writeSalesSheet(f *excelize.File, rows []loader.Row, header int) error {
	if err := writeRow(f, SalesSheet, 1, toAny(types.SchemaColumns)); err != nil {
		return err
	}
	if err := styleHeader(f, SalesSheet, len(types.SchemaColumns), header); err != nil {
		return err
	}

	for i, r := range rows {
		values := []any{
			deref(r.ID),
			deref(r.Date),
			deref(r.Product),
			r.Quantity,
			r.Price,
			r.Currency,
			deref(r.Region),
			r.TotalSalesAmount,
		}
		if err := writeRow(f, SalesSheet, i+2, values); err != nil {
			return err
		}
	}

	return f.SetColWidth(SalesSheet, "A", "H", 16)
}

func writeRegionSheet(f *excelize.File, totals []RegionTotal, header int) error {
	if err := writeRow(f, RegionSheet, 1, []any{"region", "orders", "units", "revenue"}); err != nil {
		return err
	}
	if err := styleHeader(f, RegionSheet, 4, header); err != nil {
		return err
	}

	for i, t := range totals {
		revenue, _ := t.Revenue.Float64()
		if err := writeRow(f, RegionSheet, i+2, []any{t.Region, t.Orders, t.Units, revenue}); err != nil {
			return err
		}
	}

	return f.SetColWidth(RegionSheet, "A", "D", 16)
}

// Totals aggregates rows per region, ordered by revenue (highest first) and
// then by region name.
func Totals(rows []loader.Row) []RegionTotal {
	byRegion := make(map[string]*RegionTotal)
	for _, r := range rows {
		name := NoRegion
		if r.Region != nil && *r.Region != "" {
			name = *r.Region
		}
		t, ok := byRegion[name]
		if !ok {
			t = &RegionTotal{Region: name}
			byRegion[name] = t
		}
		t.Orders++
		t.Units += r.Quantity
		t.Revenue = t.Revenue.Add(decimal.NewFromFloat(r.TotalSalesAmount))
	}

	totals := make([]RegionTotal, 0, len(byRegion))
	for _, t := range byRegion {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool {
		if c := totals[i].Revenue.Cmp(totals[j].Revenue); c != 0 {
			return c > 0
		}
		return totals[i].Region < totals[j].Region
	})
	return totals
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func styleHeader(f *excelize.File, sheet string, columns, style int) error {
	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// deref returns the pointed-to value, or nil for an empty cell.
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
