package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/vizscan/vizscan/internal/model"
)

// HistoryDB provides SQLite-based storage for audit run history.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file for all runs rather
// than one file per run. This simplifies trend queries across runs and
// backup/restore operations.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, "vizscan.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build connection string
	// We use modernc.org/sqlite which uses a different connection string format.
	// When CreateIfNotExists is false, we use mode=rw to prevent creating new files.
	// When CreateIfNotExists is true, we use mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	// SQLite doesn't benefit from multiple connections for writes,
	// but multiple readers can improve performance
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- Scan runs store one record per completed audit run
	CREATE TABLE IF NOT EXISTS scan_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		total_reports INTEGER NOT NULL,
		reports_with_custom_visuals INTEGER NOT NULL,
		directlake_reports INTEGER NOT NULL,
		successful_exports INTEGER NOT NULL,
		cleanup_failures INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON scan_runs(started_at);

	-- Scan results store one row per analyzed report
	CREATE TABLE IF NOT EXISTS scan_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES scan_runs(id),
		workspace_id TEXT NOT NULL,
		workspace TEXT NOT NULL,
		capacity_id TEXT,
		report_id TEXT NOT NULL,
		report TEXT NOT NULL,
		method TEXT NOT NULL,
		num_pages INTEGER NOT NULL,
		is_directlake TEXT NOT NULL,
		total_visuals INTEGER NOT NULL,
		custom_visuals INTEGER NOT NULL,
		custom_visual_records TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON scan_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_report ON scan_results(report_id);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a completed run and its results, returning the run ID.
func (hdb *HistoryDB) SaveRun(ctx context.Context, summary model.RunSummary, results []model.ScanResult) (int64, error) {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO scan_runs (started_at, total_reports, reports_with_custom_visuals, directlake_reports, successful_exports, cleanup_failures)
	VALUES (?, ?, ?, ?, ?, ?)
	`,
		summary.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		summary.TotalReports,
		summary.ReportsWithCustomVisuals,
		summary.DirectLakeReports,
		summary.SuccessfulExports,
		summary.CleanupFailures,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	insert := `
	INSERT INTO scan_results (run_id, workspace_id, workspace, capacity_id, report_id, report, method, num_pages, is_directlake, total_visuals, custom_visuals, custom_visual_records)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, r := range results {
		var recordsJSON []byte
		if len(r.CustomVisualRecords) > 0 {
			recordsJSON, err = json.Marshal(r.CustomVisualRecords)
			if err != nil {
				return 0, fmt.Errorf("failed to serialize visual records: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, insert,
			runID,
			r.WorkspaceID,
			r.WorkspaceName,
			r.CapacityID,
			r.ReportID,
			r.ReportName,
			r.Method.String(),
			r.NumPages,
			r.DirectLake.String(),
			r.TotalVisuals,
			r.CustomVisuals,
			string(recordsJSON),
		); err != nil {
			return 0, fmt.Errorf("failed to insert result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// RunMetadata contains summary information about a stored run.
// This is used for displaying run history without loading every result.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// StartedAt is when the run began.
	StartedAt time.Time

	// Summary holds the run's aggregate counters.
	Summary model.RunSummary
}

// ListRuns returns metadata for all stored runs, newest first.
func (hdb *HistoryDB) ListRuns(ctx context.Context) ([]RunMetadata, error) {
	query := `
	SELECT id, started_at, total_reports, reports_with_custom_visuals, directlake_reports, successful_exports, cleanup_failures
	FROM scan_runs
	ORDER BY started_at DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string

		if err := rows.Scan(
			&meta.ID,
			&startedAt,
			&meta.Summary.TotalReports,
			&meta.Summary.ReportsWithCustomVisuals,
			&meta.Summary.DirectLakeReports,
			&meta.Summary.SuccessfulExports,
			&meta.Summary.CleanupFailures,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run metadata: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		meta.Summary.StartedAt = meta.StartedAt
		results = append(results, meta)
	}

	return results, rows.Err()
}

// RunResults retrieves every result row stored for a run.
func (hdb *HistoryDB) RunResults(ctx context.Context, runID int64) ([]model.ScanResult, error) {
	query := `
	SELECT workspace_id, workspace, capacity_id, report_id, report, method, num_pages, is_directlake, total_visuals, custom_visuals, custom_visual_records
	FROM scan_results
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := hdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run results: %w", err)
	}
	defer rows.Close()

	var results []model.ScanResult
	for rows.Next() {
		var r model.ScanResult
		var method, directLake string
		var capacityID, recordsJSON sql.NullString

		if err := rows.Scan(
			&r.WorkspaceID,
			&r.WorkspaceName,
			&capacityID,
			&r.ReportID,
			&r.ReportName,
			&method,
			&r.NumPages,
			&directLake,
			&r.TotalVisuals,
			&r.CustomVisuals,
			&recordsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		r.CapacityID = capacityID.String
		r.Method = parseMethod(method)
		r.DirectLake = parseTriState(directLake)
		if recordsJSON.Valid && recordsJSON.String != "" {
			if err := json.Unmarshal([]byte(recordsJSON.String), &r.CustomVisualRecords); err != nil {
				r.CustomVisualRecords = nil
			}
		}

		results = append(results, r)
	}

	return results, rows.Err()
}

// LatestRun returns the most recent run's metadata, or nil when no run
// has been stored yet.
func (hdb *HistoryDB) LatestRun(ctx context.Context) (*RunMetadata, error) {
	runs, err := hdb.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// parseMethod maps a stored method label back to its enum value.
func parseMethod(s string) model.Method {
	for _, m := range []model.Method{
		model.MethodDirectExport,
		model.MethodDirectExportNoVisuals,
		model.MethodPageListingOnly,
		model.MethodTenantScan,
		model.MethodFailed,
	} {
		if m.String() == s {
			return m
		}
	}
	return model.MethodFailed
}

// parseTriState maps a stored flag label back to its enum value.
func parseTriState(s string) model.TriState {
	switch s {
	case "Yes":
		return model.Yes
	case "No":
		return model.No
	default:
		return model.Unknown
	}
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	// Return zero time if no format matches
	// This is a fallback to avoid breaking functionality for edge cases
	return time.Time{}
}
