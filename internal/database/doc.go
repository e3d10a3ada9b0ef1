// Package database provides SQLite-based storage for audit run history.
//
// This package implements the HistoryDB, which stores:
//   - One record per completed audit run with its aggregate counters
//   - One row per analyzed report for trend analysis across runs
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
