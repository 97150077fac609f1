// =============================================================================
// Sales ETL - Loader
// =============================================================================
//
// The loader persists a transformed dataset into the `sales` table with
// full-replace semantics:
//   1. An empty or absent dataset is skipped; the database is not opened
//   2. The database handle is opened for this load only and always closed
//   3. Inside one transaction: create the table if needed, delete every
//      existing row, insert the incoming rows in batches
//   4. Any failure rolls the transaction back, so the previous contents
//      survive a failed load
//
// SQLite (the default) and PostgreSQL are supported through gorm.
//
// =============================================================================

package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ginjaninja78/sales-etl/internal/config"
	"github.com/ginjaninja78/sales-etl/internal/logger"
	"github.com/ginjaninja78/sales-etl/internal/types"
	"github.com/ginjaninja78/sales-etl/pkg/utils"
)

// TableName is the persisted table.
const TableName = "sales"

var (
	// ErrNothingToLoad is returned when the dataset is empty or absent.
	ErrNothingToLoad = errors.New("nothing to load")

	// ErrStorage marks a failure to open, create or write the table.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// RESULT
// =============================================================================

// Status is the outcome of a load.
type Status string

const (
	StatusLoaded  Status = "loaded"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result describes a finished load.
type Result struct {
	Status Status

	// Inserted is the number of rows written.
	Inserted int

	// Replaced is the number of rows deleted before the insert.
	Replaced int64

	Duration time.Duration
}

// =============================================================================
// TABLE MODEL
// =============================================================================

// Row is one persisted sales row.
type Row struct {
	ID               *int64  `gorm:"column:id;primaryKey"`
	Date             *string `gorm:"column:date"`
	Product          *string `gorm:"column:product"`
	Quantity         int64   `gorm:"column:quantity"`
	Price            float64 `gorm:"column:price"`
	Currency         string  `gorm:"column:currency"`
	Region           *string `gorm:"column:region"`
	TotalSalesAmount float64 `gorm:"column:total_sales_amount"`
}

// TableName implements gorm's tabler interface.
func (Row) TableName() string { return TableName }

// RowFromRecord maps a transformed record to its table row.
func RowFromRecord(rec types.SalesRecord) Row {
	return Row{
		ID:               rec.ID,
		Date:             rec.Date,
		Product:          rec.Product,
		Quantity:         rec.Quantity,
		Price:            rec.Price,
		Currency:         rec.Currency,
		Region:           rec.Region,
		TotalSalesAmount: rec.TotalSalesAmount,
	}
}

// createTableSQL returns the DDL for the dialect.
func createTableSQL(dialect string) string {
	if dialect == "postgres" {
		return `CREATE TABLE IF NOT EXISTS sales (
			id BIGSERIAL PRIMARY KEY,
			date TEXT,
			product TEXT,
			quantity BIGINT,
			price DOUBLE PRECISION,
			currency TEXT,
			region TEXT,
			total_sales_amount DOUBLE PRECISION
		)`
	}
	return `CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY,
		date TEXT,
		product TEXT,
		quantity INTEGER,
		price REAL,
		currency TEXT,
		region TEXT,
		total_sales_amount REAL
	)`
}

// resyncSequenceSQL returns the statement that moves the id sequence past the
// largest stored id, or "" when the dialect assigns ids from the table itself.
// Explicit ids do not advance a postgres BIGSERIAL sequence.
func resyncSequenceSQL(dialect string) string {
	if dialect != "postgres" {
		return ""
	}
	return `SELECT setval(pg_get_serial_sequence('sales', 'id'), COALESCE(MAX(id), 1)) FROM sales`
}

// =============================================================================
// LOADER
// =============================================================================

// Loader writes datasets to the configured database.
type Loader struct {
	cfg config.DatabaseConfig
}

// New creates a Loader. Nothing is opened until a load or read.
func New(cfg config.DatabaseConfig) *Loader {
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Loader{cfg: cfg}
}

// Target describes the database for logs, without credentials.
func (l *Loader) Target() string {
	if l.cfg.Driver == "postgres" {
		return "postgres"
	}
	return "sqlite:" + l.cfg.Path
}

// open acquires a database handle. For SQLite the parent directory of the
// database file is created first.
func (l *Loader) open() (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch l.cfg.Driver {
	case "sqlite":
		if err := utils.EnsureParentDir(l.cfg.Path); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(l.cfg.Path)
	case "postgres":
		dialector = postgres.Open(l.cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", l.cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// release releases the handle's connection pool.
func release(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// Load replaces the table contents with ds.
//
// PARAMETERS:
//   - ctx: Bounds every database call.
//   - ds: The transformed dataset.
//
// RETURNS:
//   - The load result.
//   - ErrNothingToLoad for an empty or nil dataset, or an error wrapping
//     ErrStorage if the database rejected the load.
func (l *Loader) Load(ctx context.Context, ds *types.SalesDataset) (Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	if ds.Len() == 0 {
		log.Warn().Msg("dataset is empty, load skipped")
		return Result{Status: StatusSkipped}, ErrNothingToLoad
	}

	fail := func(err error) (Result, error) {
		return Result{Status: StatusFailed, Duration: time.Since(start)}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	db, err := l.open()
	if err != nil {
		return fail(err)
	}
	defer release(db)

	var replaced int64
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(createTableSQL(db.Dialector.Name())).Error; err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}

		res := tx.Exec("DELETE FROM " + TableName)
		if res.Error != nil {
			return fmt.Errorf("failed to clear table: %w", res.Error)
		}
		replaced = res.RowsAffected

		for _, run := range splitByID(ds.Records) {
			if err := tx.CreateInBatches(run, l.cfg.BatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert rows: %w", err)
			}
		}

		if stmt := resyncSequenceSQL(db.Dialector.Name()); stmt != "" {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to resync id sequence: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if id, ok := firstDuplicateID(ds.Records); ok {
			err = fmt.Errorf("%w (id %d appears more than once and id is the primary key)", err, id)
		}
		return fail(err)
	}

	result := Result{
		Status:   StatusLoaded,
		Inserted: ds.Len(),
		Replaced: replaced,
		Duration: time.Since(start),
	}
	log.Debug().
		Str("target", l.Target()).
		Int("inserted", result.Inserted).
		Int64("replaced", result.Replaced).
		Msg("table replaced")
	return result, nil
}

// splitByID groups consecutive records into runs that either all carry an id
// or all lack one. A batch insert then either lists the id column for every
// row or leaves it to the database for every row.
func splitByID(records []types.SalesRecord) [][]Row {
	var runs [][]Row
	var current []Row

	for i, rec := range records {
		if i > 0 && (rec.ID == nil) != (records[i-1].ID == nil) {
			runs = append(runs, current)
			current = nil
		}
		current = append(current, RowFromRecord(rec))
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}

// firstDuplicateID returns the first id carried by more than one record.
func firstDuplicateID(records []types.SalesRecord) (int64, bool) {
	seen := make(map[int64]bool, len(records))
	for _, rec := range records {
		if rec.ID == nil {
			continue
		}
		if seen[*rec.ID] {
			return *rec.ID, true
		}
		seen[*rec.ID] = true
	}
	return 0, false
}

// =============================================================================
// READ HELPERS
// =============================================================================

// missingFile reports whether the SQLite database file does not exist yet.
// Reads then return nothing instead of creating an empty database.
func (l *Loader) missingFile() bool {
	return l.cfg.Driver == "sqlite" && !utils.FileExists(l.cfg.Path)
}

// Count returns the number of persisted rows; 0 when the table does not
// exist yet.
func (l *Loader) Count(ctx context.Context) (int64, error) {
	if l.missingFile() {
		return 0, nil
	}
	db, err := l.open()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	defer release(db)

	db = db.WithContext(ctx)
	if !db.Migrator().HasTable(TableName) {
		return 0, nil
	}

	var n int64
	if err := db.Model(&Row{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("%w: failed to count rows: %w", ErrStorage, err)
	}
	return n, nil
}

// All returns every persisted row ordered by id; nil when the table does not
// exist yet.
func (l *Loader) All(ctx context.Context) ([]Row, error) {
	if l.missingFile() {
		return nil, nil
	}
	db, err := l.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	defer release(db)

	db = db.WithContext(ctx)
	if !db.Migrator().HasTable(TableName) {
		return nil, nil
	}

	var rows []Row
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to read rows: %w", ErrStorage, err)
	}
	return rows, nil
}
