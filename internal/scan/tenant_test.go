package scan

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vizscan/vizscan/internal/model"
	"github.com/vizscan/vizscan/internal/powerbi"
)

// mockScannerAPI is a test helper that implements the ScannerAPI interface.
type mockScannerAPI struct {
	mockTenantAPI

	startFunc func(ctx context.Context, workspaceIDs []string) (string, error)
	waitFunc  func(ctx context.Context, scanID string) (*powerbi.TenantScan, error)

	startCalls [][]string
}

// StartWorkspaceScan implements ScannerAPI.StartWorkspaceScan.
func (m *mockScannerAPI) StartWorkspaceScan(ctx context.Context, workspaceIDs []string) (string, error) {
	m.startCalls = append(m.startCalls, workspaceIDs)
	if m.startFunc != nil {
		return m.startFunc(ctx, workspaceIDs)
	}
	return "scan-1", nil
}

// WaitForScan implements ScannerAPI.WaitForScan.
func (m *mockScannerAPI) WaitForScan(ctx context.Context, scanID string, _, _ time.Duration) (*powerbi.TenantScan, error) {
	if m.waitFunc != nil {
		return m.waitFunc(ctx, scanID)
	}
	return &powerbi.TenantScan{}, nil
}

// TestTenantRunnerRun tests the scanner-based audit path.
func TestTenantRunnerRun(t *testing.T) {
	t.Parallel()

	t.Run("converts scanned visuals into classified results", func(t *testing.T) {
		t.Parallel()

		api := &mockScannerAPI{}
		api.workspacesFunc = func(_ context.Context, _ powerbi.ListWorkspacesOptions) ([]model.Workspace, error) {
			return []model.Workspace{{ID: "ws-1", Name: "Finance", CapacityID: "cap-1"}}, nil
		}
		api.waitFunc = func(_ context.Context, _ string) (*powerbi.TenantScan, error) {
			return &powerbi.TenantScan{
				Workspaces: []powerbi.ScannedWorkspace{
					{
						ID:   "ws-1",
						Name: "Finance",
						Reports: []powerbi.ScannedReport{
							{
								ID:   "r-1",
								Name: "Quarterly",
								Pages: []powerbi.ScannedPage{
									{
										Name:        "ReportSection1",
										DisplayName: "Overview",
										Visuals: []powerbi.ScannedVisual{
											{Name: "v1", VisualType: "barChart"},
											{Name: "v2", VisualType: "PBI_CV_E1A2B3C4"},
										},
									},
									{
										Name: "ReportSection2",
										Visuals: []powerbi.ScannedVisual{
											{Name: "v3", VisualType: ""},
										},
									},
								},
							},
						},
					},
				},
			}, nil
		}

		sink := &mockRowSink{}
		runner := NewTenantRunner(api, NewAggregator(sink))

		summary, err := runner.Run(context.Background(), powerbi.ListWorkspacesOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if summary.TotalReports != 1 {
			t.Fatalf("expected 1 report, got %d", summary.TotalReports)
		}
		row := sink.rows[0]
		if row.Method != model.MethodTenantScan {
			t.Errorf("expected method %q, got %q", model.MethodTenantScan, row.Method)
		}
		if row.DirectLake != model.Unknown {
			t.Errorf("scanner path must leave DirectLake Unknown, got %s", row.DirectLake)
		}
		if row.TotalVisuals != 3 {
			t.Errorf("expected 3 total visuals, got %d", row.TotalVisuals)
		}
		if row.CustomVisuals != 1 {
			t.Errorf("expected 1 custom visual, got %d", row.CustomVisuals)
		}
		if row.NumPages != 2 {
			t.Errorf("expected 2 pages, got %d", row.NumPages)
		}
		if row.CapacityID != "cap-1" {
			t.Errorf("expected capacity from the enumerated snapshot, got %q", row.CapacityID)
		}
		if len(row.CustomVisualRecords) != 1 || row.CustomVisualRecords[0].Page != "Overview" {
			t.Errorf("expected one custom visual on page Overview, got %v", row.CustomVisualRecords)
		}
	})

	t.Run("splits large tenants into scanner-sized batches", func(t *testing.T) {
		t.Parallel()

		workspaces := make([]model.Workspace, 150)
		for i := range workspaces {
			workspaces[i] = model.Workspace{ID: fmt.Sprintf("ws-%d", i), Name: fmt.Sprintf("Workspace %d", i)}
		}

		api := &mockScannerAPI{}
		api.workspacesFunc = func(_ context.Context, _ powerbi.ListWorkspacesOptions) ([]model.Workspace, error) {
			return workspaces, nil
		}

		runner := NewTenantRunner(api, NewAggregator(&mockRowSink{}))
		if _, err := runner.Run(context.Background(), powerbi.ListWorkspacesOptions{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(api.startCalls) != 2 {
			t.Fatalf("expected 2 scanner jobs, got %d", len(api.startCalls))
		}
		if got := len(api.startCalls[0]); got != powerbi.MaxScanBatchSize {
			t.Errorf("expected first batch of %d, got %d", powerbi.MaxScanBatchSize, got)
		}
		if got := len(api.startCalls[1]); got != 50 {
			t.Errorf("expected second batch of 50, got %d", got)
		}
	})

	t.Run("skips leftover analysis clones in scan results", func(t *testing.T) {
		t.Parallel()

		api := &mockScannerAPI{}
		api.workspacesFunc = func(_ context.Context, _ powerbi.ListWorkspacesOptions) ([]model.Workspace, error) {
			return []model.Workspace{{ID: "ws-1", Name: "Finance"}}, nil
		}
		api.waitFunc = func(_ context.Context, _ string) (*powerbi.TenantScan, error) {
			return &powerbi.TenantScan{
				Workspaces: []powerbi.ScannedWorkspace{
					{
						ID: "ws-1",
						Reports: []powerbi.ScannedReport{
							{ID: "r-1", Name: "Quarterly"},
							{ID: "r-2", Name: "temp_analysis_01234567"},
						},
					},
				},
			}, nil
		}

		runner := NewTenantRunner(api, NewAggregator(&mockRowSink{}))
		summary, err := runner.Run(context.Background(), powerbi.ListWorkspacesOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if summary.TotalReports != 1 {
			t.Errorf("expected clone to be skipped, got %d reports", summary.TotalReports)
		}
	})

	t.Run("a failed scanner job skips the batch without killing the run", func(t *testing.T) {
		t.Parallel()

		api := &mockScannerAPI{}
		api.workspacesFunc = func(_ context.Context, _ powerbi.ListWorkspacesOptions) ([]model.Workspace, error) {
			return []model.Workspace{{ID: "ws-1", Name: "Finance"}}, nil
		}
		api.startFunc = func(_ context.Context, _ []string) (string, error) {
			return "", errors.New("scanner unavailable")
		}

		runner := NewTenantRunner(api, NewAggregator(&mockRowSink{}))
		summary, err := runner.Run(context.Background(), powerbi.ListWorkspacesOptions{})
		if err != nil {
			t.Fatalf("expected the run to survive a scanner failure, got %v", err)
		}
		if summary.TotalReports != 0 {
			t.Errorf("expected 0 reports from the failed batch, got %d", summary.TotalReports)
		}
	})

	t.Run("fails when workspaces cannot be listed", func(t *testing.T) {
		t.Parallel()

		api := &mockScannerAPI{}
		api.workspacesFunc = func(_ context.Context, _ powerbi.ListWorkspacesOptions) ([]model.Workspace, error) {
			return nil, errors.New("unauthorized")
		}

		runner := NewTenantRunner(api, NewAggregator(&mockRowSink{}))
		if _, err := runner.Run(context.Background(), powerbi.ListWorkspacesOptions{}); err == nil {
			t.Fatal("expected an error when workspace enumeration fails")
		}
	})
}
