package scan

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/vizscan/vizscan/internal/model"
)

// mockRowSink is a test helper that implements the RowSink interface.
type mockRowSink struct {
	rows       []model.ScanResult
	writeCalls int
	failNext   bool
}

// WriteRows implements RowSink.WriteRows.
func (m *mockRowSink) WriteRows(results []model.ScanResult) error {
	m.writeCalls++
	if m.failNext {
		m.failNext = false
		return errors.New("sink unavailable")
	}
	m.rows = append(m.rows, results...)
	return nil
}

func resultNamed(name string) model.ScanResult {
	return model.ScanResult{
		WorkspaceID: "ws-1",
		ReportID:    name,
		ReportName:  name,
		Method:      model.MethodDirectExport,
	}
}

// TestAggregatorFlush tests incremental flushing semantics.
func TestAggregatorFlush(t *testing.T) {
	t.Parallel()

	t.Run("incremental flushes equal one final flush", func(t *testing.T) {
		t.Parallel()

		results := make([]model.ScanResult, 7)
		for i := range results {
			results[i] = resultNamed(fmt.Sprintf("report-%d", i))
		}

		incremental := &mockRowSink{}
		a := NewAggregator(incremental)
		for i, r := range results {
			a.Record(r)
			// Flush at arbitrary points, including back to back.
			if i%2 == 0 {
				if err := a.Flush(); err != nil {
					t.Fatalf("unexpected flush error: %v", err)
				}
			}
		}
		if err := a.Flush(); err != nil {
			t.Fatalf("unexpected flush error: %v", err)
		}

		single := &mockRowSink{}
		b := NewAggregator(single)
		for _, r := range results {
			b.Record(r)
		}
		if err := b.Flush(); err != nil {
			t.Fatalf("unexpected flush error: %v", err)
		}

		if !reflect.DeepEqual(incremental.rows, single.rows) {
			t.Errorf("incremental flushes diverged from single flush:\n%v\nvs\n%v", incremental.rows, single.rows)
		}
	})

	t.Run("flushing with nothing pending does not touch the sink", func(t *testing.T) {
		t.Parallel()

		sink := &mockRowSink{}
		a := NewAggregator(sink)

		if err := a.Flush(); err != nil {
			t.Fatalf("unexpected flush error: %v", err)
		}
		a.Record(resultNamed("report-0"))
		if err := a.Flush(); err != nil {
			t.Fatalf("unexpected flush error: %v", err)
		}
		if err := a.Flush(); err != nil {
			t.Fatalf("unexpected flush error: %v", err)
		}

		if sink.writeCalls != 1 {
			t.Errorf("expected 1 sink write, got %d", sink.writeCalls)
		}
	})

	t.Run("failed flush keeps results pending for retry", func(t *testing.T) {
		t.Parallel()

		sink := &mockRowSink{failNext: true}
		a := NewAggregator(sink)
		a.Record(resultNamed("report-0"))
		a.Record(resultNamed("report-1"))

		if err := a.Flush(); err == nil {
			t.Fatal("expected flush error")
		}
		a.Record(resultNamed("report-2"))
		if err := a.Flush(); err != nil {
			t.Fatalf("unexpected retry error: %v", err)
		}

		if len(sink.rows) != 3 {
			t.Fatalf("expected 3 rows after retry, got %d", len(sink.rows))
		}
		for i, want := range []string{"report-0", "report-1", "report-2"} {
			if sink.rows[i].ReportName != want {
				t.Errorf("row %d: expected %q, got %q", i, want, sink.rows[i].ReportName)
			}
		}
	})
}

// TestAggregatorSummary tests summary derivation from recorded results.
func TestAggregatorSummary(t *testing.T) {
	t.Parallel()

	a := NewAggregator(&mockRowSink{})
	a.Record(model.ScanResult{Method: model.MethodDirectExport, TotalVisuals: 5, CustomVisuals: 2, DirectLake: model.No})
	a.Record(model.ScanResult{Method: model.MethodDirectExportNoVisuals, DirectLake: model.Yes})
	a.Record(model.ScanResult{Method: model.MethodPageListingOnly, NumPages: 3, CloneLeaked: true})
	a.Record(model.ScanResult{Method: model.MethodFailed})

	s := a.Summary()

	if s.TotalReports != 4 {
		t.Errorf("expected 4 total reports, got %d", s.TotalReports)
	}
	if s.ReportsWithCustomVisuals != 1 {
		t.Errorf("expected 1 report with custom visuals, got %d", s.ReportsWithCustomVisuals)
	}
	if s.DirectLakeReports != 1 {
		t.Errorf("expected 1 DirectLake report, got %d", s.DirectLakeReports)
	}
	if s.SuccessfulExports != 2 {
		t.Errorf("expected 2 successful exports, got %d", s.SuccessfulExports)
	}
	if s.CleanupFailures != 1 {
		t.Errorf("expected 1 cleanup failure, got %d", s.CleanupFailures)
	}
	if s.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}
}
