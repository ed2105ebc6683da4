// Package store provides SQLite-backed storage for the dairy records.
//
// The database holds:
//   - Catalogs: additives, products, packaging and their category lists
//   - Recipes: per-product additive dosages per 100 units of raw material
//   - Registers: dated receipts of additives and packaging
//   - Production: records, per-kind detail rows, additive snapshots and lots
//   - Users: account credentials
//
// # Conventions
//
// Numeric catalog and register values (price, stock, quantity, dosage) are
// TEXT and stored as entered; callers validate them.
//
// Child rows of a production record reference it softly. Deleting only the
// record leaves them as orphans (see ListOrphans); DeleteProtocol removes
// everything in one transaction.
//
// Detail tables are declared by the caller through Options.DetailTables.
// Open creates missing tables and adds missing columns but never drops
// anything.
//
// Driver errors are classified into ErrNotFound, ErrDuplicate and
// ErrConstraint; check them with the IsX helpers.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (default 5 seconds)
//   - foreign_keys=ON: Enforce catalog references
//
// Both github.com/mattn/go-sqlite3 and the pure-Go modernc.org/sqlite
// drivers are registered; Options.Driver picks one.
package store
