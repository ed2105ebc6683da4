package store

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/ansel1/merry"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial catalog, register and production tables
// 2 - production_batches table and production_records(date) index
const currentSchemaVersion = 2

// Driver names accepted by Options.Driver.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

// Seed values inserted on every schema creation, insert-if-absent by name.
var (
	SeedAdditiveCategories = []string{
		"Kultury starterowe", "Podpuszczka", "Lizozym", "Chlorek wapnia", "Przyprawy", "Proszki",
	}
	SeedProductCategories = []string{
		"Ser", "Napoje fermentowane", "Ser twarogowy", "Ser zwarowy", "Mleko", "Serwatka", "Lody", "Inne",
	}
	SeedPackagingCategories = []string{
		"Słoiki", "Worki", "Pudełka", "Papier", "Inne",
	}
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// DetailTable describes one per-kind protocol detail table. Every column is
// TEXT; production_record_id and id are implicit.
type DetailTable struct {
	Name    string
	Columns []string
}

// Options configures Open.
type Options struct {
	Path          string
	Driver        string // DriverMattn (default) or DriverModernc
	BusyTimeoutMS int    // default 5000
	DetailTables  []DetailTable
}

// Store provides access to the serownia database.
// It holds a single connection; SQLite allows one writer at a time.
type Store struct {
	db      *sqlx.DB
	details map[string]DetailTable
	order   []string
}

// Open creates or opens the database at opts.Path, applies pragmas and
// runs CreateSchema.
//
// The database is configured with:
//   - WAL mode for concurrent readers from other processes
//   - NORMAL synchronous mode
//   - a busy timeout for lock contention
//   - foreign key enforcement
//
// Open is idempotent; reopening an existing file leaves its data intact.
func Open(opts Options) (*Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverMattn
	}
	if driver != DriverMattn && driver != DriverModernc {
		return nil, merry.Errorf("unknown sqlite driver %q", driver)
	}
	busy := opts.BusyTimeoutMS
	if busy <= 0 {
		busy = 5000
	}

	details := make(map[string]DetailTable, len(opts.DetailTables))
	order := make([]string, 0, len(opts.DetailTables))
	for _, dt := range opts.DetailTables {
		if err := validateDetailTable(dt); err != nil {
			return nil, err
		}
		if _, dup := details[dt.Name]; dup {
			return nil, merry.Errorf("detail table %q registered twice", dt.Name)
		}
		details[dt.Name] = dt
		order = append(order, dt.Name)
	}

	db, err := sqlx.Open(driver, opts.Path)
	if err != nil {
		return nil, merry.Prepend(err, "failed to open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, merry.Prepend(err, "failed to connect to database")
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, busy); err != nil {
		db.Close()
		return nil, merry.Prepend(err, "failed to apply pragmas")
	}

	s := &Store{db: db, details: details, order: order}
	if err := s.CreateSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func validateDetailTable(dt DetailTable) error {
	if !identRe.MatchString(dt.Name) {
		return merry.Errorf("detail table name %q is not a plain identifier", dt.Name)
	}
	if len(dt.Columns) == 0 {
		return merry.Errorf("detail table %s has no columns", dt.Name)
	}
	seen := map[string]bool{"id": true, "production_record_id": true}
	for _, c := range dt.Columns {
		if !identRe.MatchString(c) {
			return merry.Errorf("detail table %s: column %q is not a plain identifier", dt.Name, c)
		}
		if seen[c] {
			return merry.Errorf("detail table %s: column %q is reserved or duplicated", dt.Name, c)
		}
		seen[c] = true
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DetailTables returns the registered detail tables in registration order.
func (s *Store) DetailTables() []DetailTable {
	out := make([]DetailTable, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.details[name])
	}
	return out
}

func (s *Store) detailTable(name string) (DetailTable, error) {
	dt, ok := s.details[name]
	if !ok {
		return DetailTable{}, merry.Errorf("unknown detail table %q", name)
	}
	return dt, nil
}

func applyPragmas(db *sqlx.DB, busyTimeoutMS int) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS),
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return merry.Prependf(err, "failed to execute %q", pragma)
		}
	}
	return nil
}

// CreateSchema creates missing tables, adds missing detail columns, runs
// migrations and seeds the category lists. Safe to call on every start.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return merry.Prepend(err, "failed to execute schema")
	}
	if err := s.runMigrations(ctx); err != nil {
		return merry.Prepend(err, "failed to run migrations")
	}
	for _, name := range s.order {
		if err := s.syncDetailTable(ctx, s.details[name]); err != nil {
			return merry.Prependf(err, "detail table %s", name)
		}
	}
	if err := s.seed(ctx); err != nil {
		return merry.Prepend(err, "failed to seed categories")
	}
	return nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	var version int
	if err := s.db.GetContext(ctx, &version, "PRAGMA user_version"); err != nil {
		return merry.Prepend(err, "get user_version")
	}

	if version < 2 {
		if err := migrateToV2(ctx, s.db); err != nil {
			return err
		}
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return merry.Prepend(err, "set user_version")
	}
	return nil
}

// migrateToV2 adds the batch ledger and the index used by series lookups.
func migrateToV2(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS production_batches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			production_record_id INTEGER NOT NULL,
			lot TEXT,
			weight TEXT,
			comment TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_production_records_date
		ON production_records(date)
	`)
	if err != nil {
		return merry.Prepend(err, "migrate to v2")
	}
	return nil
}

// syncDetailTable creates the table if absent and adds any schema column
// the existing table lacks. Existing columns are never dropped or altered.
func (s *Store) syncDetailTable(ctx context.Context, dt DetailTable) error {
	cols := make([]string, 0, len(dt.Columns)+2)
	cols = append(cols, "id INTEGER PRIMARY KEY AUTOINCREMENT", "production_record_id INTEGER NOT NULL")
	for _, c := range dt.Columns {
		cols = append(cols, c+" TEXT")
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", dt.Name, strings.Join(cols, ",\n\t"))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return merry.Prepend(err, "create")
	}

	existing, err := s.tableColumns(ctx, dt.Name)
	if err != nil {
		return err
	}
	for _, c := range dt.Columns {
		if existing[c] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", dt.Name, c)); err != nil {
			return merry.Prependf(err, "add column %s", c)
		}
	}
	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, "SELECT name FROM pragma_table_info(?)", table); err != nil {
		return nil, merry.Prependf(err, "table info %s", table)
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}

func (s *Store) seed(ctx context.Context) error {
	seeds := []struct {
		table string
		names []string
	}{
		{CategoryAdditive.table(), SeedAdditiveCategories},
		{CategoryProduct.table(), SeedProductCategories},
		{CategoryPackaging.table(), SeedPackagingCategories},
	}
	for _, sd := range seeds {
		for _, name := range sd.names {
			if _, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO "+sd.table+" (name) VALUES (?)", name); err != nil {
				return merry.Prependf(err, "seed %s %q", sd.table, name)
			}
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.Get(&value, "PRAGMA "+name); err != nil {
		return merry.Prependf(err, "failed to query %s", name)
	}
	if value != expected {
		return merry.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
