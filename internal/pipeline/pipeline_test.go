package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/sales-etl/internal/config"
	"github.com/ginjaninja78/sales-etl/internal/extractor"
	"github.com/ginjaninja78/sales-etl/internal/loader"
	"github.com/ginjaninja78/sales-etl/internal/transformer"
	"github.com/ginjaninja78/sales-etl/internal/types"
	"github.com/ginjaninja78/sales-etl/internal/validation"
)

// =============================================================================
// STAGE DOUBLES
// =============================================================================

type fakeExtractor struct {
	ds    *types.RawDataset
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context) (*types.RawDataset, error) {
	f.calls++
	return f.ds, f.err
}

type fakeTransformer struct {
	err   error
	calls int
}

func (f *fakeTransformer) Transform(ctx context.Context, raw *types.RawDataset) (*types.SalesDataset, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return transformer.Default().Transform(ctx, raw)
}

type fakeLoader struct {
	err   error
	calls int
	got   *types.SalesDataset
}

func (f *fakeLoader) Load(ctx context.Context, ds *types.SalesDataset) (loader.Result, error) {
	f.calls++
	f.got = ds
	if ds.Len() == 0 {
		return loader.Result{Status: loader.StatusSkipped}, loader.ErrNothingToLoad
	}
	if f.err != nil {
		return loader.Result{Status: loader.StatusFailed}, f.err
	}
	return loader.Result{Status: loader.StatusLoaded, Inserted: ds.Len()}, nil
}

func oneRow() *types.RawDataset {
	return &types.RawDataset{
		Columns: []string{"id", "price", "quantity", "currency"},
		Rows:    []types.RawRow{{"id": "1", "price": "120", "quantity": "2", "currency": "USD"}},
		Sources: []types.SourceInfo{{Name: "csv", Path: "a.csv", Rows: 1}},
	}
}

// =============================================================================
// TESTS
// =============================================================================

func TestRun_Success(t *testing.T) {
	e, tr, l := &fakeExtractor{ds: oneRow()}, &fakeTransformer{}, &fakeLoader{}

	report, err := New(e, tr, l, Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.State != StateLoaded || !report.Succeeded() {
		t.Errorf("State = %s, Succeeded = %v", report.State, report.Succeeded())
	}
	if report.RunID == "" {
		t.Error("expected a run id")
	}
	if len(report.Stages) != 3 {
		t.Fatalf("Stages = %+v", report.Stages)
	}
	for _, s := range report.Stages {
		if s.Status != StatusOK || s.Rows != 1 {
			t.Errorf("stage %s = %+v", s.Stage, s)
		}
	}
	if l.got.Records[0].Price != 9960 {
		t.Errorf("loader received price %v, want 9960", l.got.Records[0].Price)
	}
	if report.Stats.Records != 1 || len(report.Sources) != 1 {
		t.Errorf("Stats = %+v, Sources = %+v", report.Stats, report.Sources)
	}
}

func TestRun_ShortCircuits(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name          string
		e             *fakeExtractor
		tr            *fakeTransformer
		l             *fakeLoader
		wantStage     string
		wantStatus    string
		wantTransform int
		wantLoad      int
		wantErr       error
	}{
		{
			name:      "extract fails",
			e:         &fakeExtractor{err: boom},
			tr:        &fakeTransformer{},
			l:         &fakeLoader{},
			wantStage: StageExtract, wantStatus: StatusFailed,
			wantTransform: 0, wantLoad: 0, wantErr: boom,
		},
		{
			name:      "transform fails",
			e:         &fakeExtractor{ds: oneRow()},
			tr:        &fakeTransformer{err: transformer.ErrInvariant},
			l:         &fakeLoader{},
			wantStage: StageTransform, wantStatus: StatusFailed,
			wantTransform: 1, wantLoad: 0, wantErr: transformer.ErrInvariant,
		},
		{
			name:      "load fails",
			e:         &fakeExtractor{ds: oneRow()},
			tr:        &fakeTransformer{},
			l:         &fakeLoader{err: loader.ErrStorage},
			wantStage: StageLoad, wantStatus: StatusFailed,
			wantTransform: 1, wantLoad: 1, wantErr: loader.ErrStorage,
		},
		{
			name:      "empty dataset skips load",
			e:         &fakeExtractor{ds: &types.RawDataset{}},
			tr:        &fakeTransformer{},
			l:         &fakeLoader{},
			wantStage: StageLoad, wantStatus: StatusSkipped,
			wantTransform: 1, wantLoad: 1, wantErr: loader.ErrNothingToLoad,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := New(tt.e, tt.tr, tt.l, Options{}).Run(context.Background())

			if !errors.Is(err, ErrStageFailed) || !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want ErrStageFailed wrapping %v", err, tt.wantErr)
			}
			if report.State != StateFailed || report.Succeeded() {
				t.Errorf("State = %s, Succeeded = %v", report.State, report.Succeeded())
			}
			if tt.tr.calls != tt.wantTransform || tt.l.calls != tt.wantLoad {
				t.Errorf("transform calls = %d, load calls = %d", tt.tr.calls, tt.l.calls)
			}

			last := report.Stages[len(report.Stages)-1]
			if last.Stage != tt.wantStage || last.Status != tt.wantStatus {
				t.Errorf("last stage = %s/%s, want %s/%s", last.Stage, last.Status, tt.wantStage, tt.wantStatus)
			}
		})
	}
}

func TestRun_WritesValidationErrorLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	rejected := &transformer.InvariantError{Result: &validation.ValidationResult{
		ErrorCount: 1,
		Errors: []*validation.ValidationError{{
			Severity: validation.SeverityError,
			Field:    "id",
			Value:    "7",
			Rule:     validation.RuleUniqueID,
			Message:  "duplicate id, first seen at row 0",
			Row:      1,
		}},
	}}

	report, err := New(&fakeExtractor{ds: oneRow()}, &fakeTransformer{err: rejected}, &fakeLoader{}, Options{SummaryDir: dir}).
		Run(context.Background())
	if !errors.Is(err, transformer.ErrInvariant) {
		t.Fatalf("Run() error = %v, want ErrInvariant", err)
	}
	if report.ErrorLogPath == "" || filepath.Dir(report.ErrorLogPath) != dir {
		t.Fatalf("ErrorLogPath = %q", report.ErrorLogPath)
	}

	data, err := os.ReadFile(report.ErrorLogPath)
	if err != nil {
		t.Fatalf("error log not written: %v", err)
	}
	if !strings.Contains(string(data), "duplicate id") {
		t.Errorf("error log = %s", data)
	}

	summary, err := os.ReadFile(report.SummaryPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(summary), report.ErrorLogPath) {
		t.Error("summary does not point at the error log")
	}
}

func TestRun_DryRun(t *testing.T) {
	l := &fakeLoader{}
	report, err := New(&fakeExtractor{ds: oneRow()}, &fakeTransformer{}, l, Options{DryRun: true}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if l.calls != 0 {
		t.Error("dry run must not load")
	}
	if report.State != StateTransformed || !report.Succeeded() {
		t.Errorf("State = %s, Succeeded = %v", report.State, report.Succeeded())
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := &fakeExtractor{ds: oneRow()}
	_, err := New(e, &fakeTransformer{}, &fakeLoader{}, Options{}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if e.calls != 0 {
		t.Error("no stage should run on a cancelled context")
	}
}

func TestMachine(t *testing.T) {
	m := &machine{}
	for _, want := range []State{StateExtracted, StateTransformed, StateLoaded} {
		if err := m.advance(); err != nil || m.state != want {
			t.Fatalf("advance() = %v, state %s, want %s", err, m.state, want)
		}
	}
	if err := m.advance(); err == nil {
		t.Error("expected no transition out of loaded")
	}

	m.fail()
	if err := m.advance(); err == nil || m.state != StateFailed {
		t.Error("failed must be absorbing")
	}
}

// TestRun_EndToEnd runs the real stages against files and a SQLite database.
func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "sales_data.csv")
	jsonPath := filepath.Join(dir, "sales_data.json")

	csv := "id,date,product,quantity,price,currency,region\n" +
		"1,08-02-2025,Laptop,10,1500,INR,India\n" +
		"2,2025-08-03,Mouse,,abc,USD,USA\n"
	js := `[{"id": 3, "date": "2025/08/04", "product": "Desk", "quantity": 2, "price": 120, "currency": "USD", "region": "USA"}]`
	if err := os.WriteFile(csvPath, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jsonPath, []byte(js), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Sources.CSVPath = csvPath
	cfg.Sources.JSONPath = jsonPath
	cfg.Database.Path = filepath.Join(dir, "database", "sales.db")

	tr, err := transformer.FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	l := loader.New(cfg.Database)
	summaryDir := filepath.Join(dir, "logs")

	report, err := New(extractor.FromConfig(cfg), tr, l, Options{SummaryDir: summaryDir}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.Succeeded() || report.Load.Inserted != 3 {
		t.Errorf("report = %+v", report)
	}

	rows, err := l.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("table holds %d rows, want 3", len(rows))
	}
	if *rows[0].Date != "02-08-2025" || rows[0].TotalSalesAmount != 15000 {
		t.Errorf("row 1 = %+v", rows[0])
	}
	if rows[1].Quantity != 0 || rows[1].Price != 0 || rows[1].TotalSalesAmount != 0 {
		t.Errorf("row 2 = %+v", rows[1])
	}
	if rows[2].Price != 9960 || rows[2].TotalSalesAmount != 19920 || rows[2].Currency != "INR" {
		t.Errorf("row 3 = %+v", rows[2])
	}

	if report.Stats.QuantityDefaulted != 1 || report.Stats.PriceCoerced != 1 {
		t.Errorf("Stats = %+v", report.Stats)
	}

	summary, err := os.ReadFile(report.SummaryPath)
	if err != nil {
		t.Fatalf("summary not written: %v", err)
	}
	if !strings.Contains(string(summary), report.RunID) {
		t.Error("summary does not mention the run id")
	}
}
