package database

import (
	"context"
	"testing"
	"time"

	"github.com/vizscan/vizscan/internal/model"
)

// openTestDB opens a HistoryDB in a temporary directory.
func openTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	hdb, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := hdb.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})
	return hdb
}

func sampleRun() (model.RunSummary, []model.ScanResult) {
	results := []model.ScanResult{
		{
			WorkspaceID:   "ws-1",
			WorkspaceName: "Finance",
			CapacityID:    "cap-1",
			ReportID:      "r-1",
			ReportName:    "Quarterly",
			Method:        model.MethodDirectExport,
			NumPages:      2,
			DirectLake:    model.No,
			TotalVisuals:  4,
			CustomVisuals: 1,
			CustomVisualRecords: []model.VisualRecord{
				{Name: "widget1", Type: "PBI_CV_E1A2B3C4", Page: "Overview", Custom: true},
			},
		},
		{
			WorkspaceID:   "ws-2",
			WorkspaceName: "Sales",
			ReportID:      "r-2",
			ReportName:    "Forecast",
			Method:        model.MethodPageListingOnly,
			NumPages:      3,
			DirectLake:    model.Yes,
		},
	}

	summary := model.NewRunSummary(results)
	summary.StartedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return summary, results
}

// TestOpen tests database creation behavior.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates a new database", func(t *testing.T) {
		t.Parallel()

		hdb := openTestDB(t)
		if hdb == nil {
			t.Fatal("expected non-nil database")
		}
	})

	t.Run("refuses a missing database without create option", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected an error for a missing database")
		}
	})
}

// TestSaveRun tests storing and reading back a run.
func TestSaveRun(t *testing.T) {
	t.Parallel()

	t.Run("round-trips a run and its results", func(t *testing.T) {
		t.Parallel()

		hdb := openTestDB(t)
		ctx := context.Background()
		summary, results := sampleRun()

		runID, err := hdb.SaveRun(ctx, summary, results)
		if err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		if runID == 0 {
			t.Fatal("expected a non-zero run id")
		}

		stored, err := hdb.RunResults(ctx, runID)
		if err != nil {
			t.Fatalf("failed to read results: %v", err)
		}
		if len(stored) != 2 {
			t.Fatalf("expected 2 results, got %d", len(stored))
		}

		first := stored[0]
		if first.ReportName != "Quarterly" {
			t.Errorf("expected first result Quarterly, got %q", first.ReportName)
		}
		if first.Method != model.MethodDirectExport {
			t.Errorf("expected method %q, got %q", model.MethodDirectExport, first.Method)
		}
		if len(first.CustomVisualRecords) != 1 || first.CustomVisualRecords[0].Type != "PBI_CV_E1A2B3C4" {
			t.Errorf("expected custom visual records to round-trip, got %v", first.CustomVisualRecords)
		}
		if stored[1].DirectLake != model.Yes {
			t.Errorf("expected DirectLake Yes, got %s", stored[1].DirectLake)
		}
	})

	t.Run("lists runs newest first", func(t *testing.T) {
		t.Parallel()

		hdb := openTestDB(t)
		ctx := context.Background()

		older, results := sampleRun()
		if _, err := hdb.SaveRun(ctx, older, results); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}

		newer := older
		newer.StartedAt = older.StartedAt.Add(24 * time.Hour)
		if _, err := hdb.SaveRun(ctx, newer, results); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}

		runs, err := hdb.ListRuns(ctx)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(runs))
		}
		if !runs[0].StartedAt.After(runs[1].StartedAt) {
			t.Errorf("expected newest run first, got %v then %v", runs[0].StartedAt, runs[1].StartedAt)
		}
		if runs[0].Summary.TotalReports != 2 {
			t.Errorf("expected summary counters to round-trip, got %+v", runs[0].Summary)
		}
	})

	t.Run("latest run is nil on an empty database", func(t *testing.T) {
		t.Parallel()

		hdb := openTestDB(t)

		latest, err := hdb.LatestRun(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if latest != nil {
			t.Errorf("expected nil latest run, got %+v", latest)
		}
	})
}

// TestParseTimestamp tests timestamp parsing across SQLite formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{name: "sqlite default format", input: "2025-06-01 10:00:00"},
		{name: "iso 8601 with Z", input: "2025-06-01T10:00:00Z"},
		{name: "garbage yields zero time", input: "not a timestamp", zero: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q) zero=%v, want %v", tt.input, got.IsZero(), tt.zero)
			}
		})
	}
}
