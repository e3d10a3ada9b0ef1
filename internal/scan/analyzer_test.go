package scan

import (
	"context"
	"errors"
	"testing"

	"github.com/vizscan/vizscan/internal/model"
	"github.com/vizscan/vizscan/internal/powerbi"
)

// mockReportAPI is a test helper that implements the ReportAPI interface.
type mockReportAPI struct {
	exportFunc func(ctx context.Context, workspaceID, reportID string) ([]byte, error)
	cloneFunc  func(ctx context.Context, workspaceID, reportID, name string) (string, error)
	deleteFunc func(ctx context.Context, workspaceID, reportID string) error
	pagesFunc  func(ctx context.Context, workspaceID, reportID string) ([]model.Page, error)

	deleteCalls []string
}

// ExportReport implements ReportAPI.ExportReport.
func (m *mockReportAPI) ExportReport(ctx context.Context, workspaceID, reportID string) ([]byte, error) {
	if m.exportFunc != nil {
		return m.exportFunc(ctx, workspaceID, reportID)
	}
	return nil, errors.New("export not configured")
}

// CloneReport implements ReportAPI.CloneReport.
func (m *mockReportAPI) CloneReport(ctx context.Context, workspaceID, reportID, name string) (string, error) {
	if m.cloneFunc != nil {
		return m.cloneFunc(ctx, workspaceID, reportID, name)
	}
	return "", errors.New("clone not configured")
}

// DeleteReport implements ReportAPI.DeleteReport.
func (m *mockReportAPI) DeleteReport(ctx context.Context, workspaceID, reportID string) error {
	m.deleteCalls = append(m.deleteCalls, reportID)
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, workspaceID, reportID)
	}
	return nil
}

// Pages implements ReportAPI.Pages.
func (m *mockReportAPI) Pages(ctx context.Context, workspaceID, reportID string) ([]model.Page, error) {
	if m.pagesFunc != nil {
		return m.pagesFunc(ctx, workspaceID, reportID)
	}
	return nil, errors.New("pages not configured")
}

// restrictedError builds the storage-mode restriction failure the
// export endpoint returns for DirectLake datasets.
func restrictedError() error {
	return &powerbi.APIError{
		Kind:       powerbi.KindExportRestricted,
		StatusCode: 400,
		Code:       "ExportData_DisabledForModelWithDirectLakeMode",
	}
}

func testWorkspace() model.Workspace {
	return model.Workspace{ID: "ws-1", Name: "Finance", CapacityID: "cap-1"}
}

func testReport() model.Report {
	return model.Report{ID: "0123456789abcdef", Name: "Quarterly", WorkspaceID: "ws-1"}
}

// staticParser returns a parseFunc yielding fixed records.
func staticParser(records []model.VisualRecord, err error) parseFunc {
	return func([]byte) ([]model.VisualRecord, error) {
		return records, err
	}
}

// TestCloneName tests the deterministic clone naming scheme.
func TestCloneName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		reportID string
		want     string
	}{
		{
			name:     "truncates long report IDs to eight characters",
			reportID: "0123456789abcdef",
			want:     "temp_analysis_01234567",
		},
		{
			name:     "keeps short report IDs whole",
			reportID: "abc",
			want:     "temp_analysis_abc",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := CloneName(tt.reportID); got != tt.want {
				t.Errorf("CloneName(%q) = %q, want %q", tt.reportID, got, tt.want)
			}
		})
	}
}

// TestIsAnalysisClone tests clone detection across naming schemes.
func TestIsAnalysisClone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		reportName string
		want       bool
	}{
		{name: "detects current clone prefix", reportName: "temp_analysis_01234567", want: true},
		{name: "detects legacy clone prefix", reportName: "temp_clone_for_analysis_Quarterly", want: true},
		{name: "ignores regular report names", reportName: "Quarterly Sales", want: false},
		{name: "ignores names merely containing temp", reportName: "temporary figures", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsAnalysisClone(tt.reportName); got != tt.want {
				t.Errorf("IsAnalysisClone(%q) = %v, want %v", tt.reportName, got, tt.want)
			}
		})
	}
}

// TestAnalyzeReportDirectExport tests the happy path where the first
// export attempt succeeds.
func TestAnalyzeReportDirectExport(t *testing.T) {
	t.Parallel()

	t.Run("resolves via direct export with visual counts", func(t *testing.T) {
		t.Parallel()

		api := &mockReportAPI{
			exportFunc: func(_ context.Context, _, _ string) ([]byte, error) {
				return []byte("archive"), nil
			},
		}
		records := []model.VisualRecord{
			{Name: "v1", Type: "barChart", Page: "Overview"},
			{Name: "v2", Type: "PBI_CV_WIDGET", Page: "Overview", Custom: true},
			{Name: "v3", Type: "lineChart", Page: "Detail"},
		}
		a := NewAnalyzer(api, WithParser(staticParser(records, nil)), WithCloneWait(0))

		result := a.AnalyzeReport(context.Background(), testWorkspace(), testReport())

		if result.Method != model.MethodDirectExport {
			t.Errorf("expected method %q, got %q", model.MethodDirectExport, result.Method)
		}
		if result.TotalVisuals != 3 {
			t.Errorf("expected 3 total visuals, got %d", result.TotalVisuals)
		}
		if result.CustomVisuals != 1 {
			t.Errorf("expected 1 custom visual, got %d", result.CustomVisuals)
		}
		if result.NumPages != 2 {
			t.Errorf("expected 2 pages, got %d", result.NumPages)
		}
		if result.DirectLake != model.No {
			t.Errorf("expected DirectLake No after successful export, got %s", result.DirectLake)
		}
		if len(api.deleteCalls) != 0 {
			t.Errorf("expected no clone deletions, got %d", len(api.deleteCalls))
		}
		if result.CustomVisuals > result.TotalVisuals {
			t.Errorf("custom visuals %d exceeds total %d", result.CustomVisuals, result.TotalVisuals)
		}
	})

	t.Run("reports no visuals when the archive yields none", func(t *testing.T) {
		t.Parallel()

		api := &mockReportAPI{
			exportFunc: func(_ context.Context, _, _ string) ([]byte, error) {
				return []byte("archive"), nil
			},
		}
		a := NewAnalyzer(api, WithParser(staticParser(nil, nil)), WithCloneWait(0))

		result := a.AnalyzeReport(context.Background(), testWorkspace(), testReport())

		if result.Method != model.MethodDirectExportNoVisuals {
			t.Errorf("expected method %q, got %q", model.MethodDirectExportNoVisuals, result.Method)
		}
		if result.TotalVisuals != 0 {
			t.Errorf("expected 0 total visuals, got %d", result.TotalVisuals)
		}
	})

	t.Run("treats an unparsable archive as a no-visual export", func(t *testing.T) {
		t.Parallel()

		api := &mockReportAPI{
			exportFunc: func(_ context.Context, _, _ string) ([]byte, error) {
				return []byte("not a zip"), nil
			},
		}
		a := NewAnalyzer(api, WithParser(staticParser(nil, errors.New("malformed archive"))), WithCloneWait(0))

		result := a.AnalyzeReport(context.Background(), testWorkspace(), testReport())

		if result.Method != model.MethodDirectExportNoVisuals {
			t.Errorf("expected method %q, got %q", model.MethodDirectExportNoVisuals, result.Method)
		}
	})
}

// TestAnalyzeReportCloneFallback tests the clone-then-export strategy.
func TestAnalyzeReportCloneFallback(t *testing.T) {
	t.Parallel()

	t.Run("restricted export resolves via clone and marks DirectLake", func(t *testing.T) {
		t.Parallel()

		api := &mockReportAPI{}
		api.exportFunc = func(_ context.Context, _, reportID string) ([]byte, error) {
			if reportID == "clone-1" {
				return []byte("archive"), nil
			}
			return nil, restrictedError()
		}
		api.cloneFunc = func(_ context.Context, _, _, name string) (string, error) {
			if name != "temp_analysis_01234567" {
				t.Errorf("unexpected clone name %q", name)
			}
			return "clone-1", nil
		}
		records := []model.VisualRecord{{Name: "v1", Type: "barChart", Page: "Overview"}}
		a := NewAnalyzer(api, WithParser(staticParser(records, nil)), WithCloneWait(0))

		result := a.AnalyzeReport(context.Background(), testWorkspace(), testReport())

		if result.Method != model.MethodDirectExport {
			t.Errorf("expected method %q, got %q", model.MethodDirectExport, result.Method)
		}
		if result.DirectLake != model.Yes {
			t.Errorf("expected DirectLake Yes after restriction marker, got %s", result.DirectLake)
		}
		if len(api.deleteCalls) != 1 || api.deleteCalls[0] != "clone-1" {
			t.Errorf("expected exactly one deletion of clone-1, got %v", api.deleteCalls)
		}
		if result.CloneLeaked {
			t.Error("expected no clone leak after successful deletion")
		}
	})

	t.Run("deletes the clone exactly once even when parsing fails", func(t *testing.T) {
		t.Parallel()

		api := &mockReportAPI{}
		api.exportFunc = func(_ context.Context, _, reportID string) ([]byte, error) {
			if reportID == "clone-1" {
				return []byte("archive"), nil
			}
			return nil, restrictedError()
		}
		api.cloneFunc = func(_ context.Context, _, _, _ string) (string, error) {
			return "clone-1", nil
		}
		a := NewAnalyzer(api, WithParser(staticParser(nil, errors.New("malformed archive"))), WithCloneWait(0))

		result := a.AnalyzeReport(context.Background(), testWorkspace(), testReport())

		if result.Method != model.MethodDirectExportNoVisuals {
			t.Errorf("expected method %q, got %q", model.MethodDirectExportNoVisuals, result.Method)
		}
		if result.DirectLake != model.Yes {
			t.Errorf("expected DirectLake Yes to stick through parse failure, got %s", result.DirectLake)
		}
		if len(api.deleteCalls) != 1 {
			t.Errorf("expected exactly one clone deletion, got %d", len(api.deleteCalls))
		}
	})

	t.Run("deletes the clone when its export fails", func(t *testing.T) {
		t.Parallel()

		api := &mockReportAPI{}
		api.exportFunc = func(_ context.Context, _, _ string) ([]byte, error) {
			return nil, errors.New("export unavailable")
		}
		api.cloneFunc = func(_ context.Context, _, _, _ string) (string, error) {
			return "clone-1", nil
		}
		api.pagesFunc = func(_ context.Context, _, _ string) ([]model.Page, error) {
			return []model.Page{{Name: "ReportSection1", DisplayName: "Overview"}}, nil
		}
		a := NewAnalyzer(api, WithCloneWait(0))

		result := a.AnalyzeReport(context.Background(), testWorkspace(), testReport())

		if result.Method != model.MethodPageListingOnly {
			t.Errorf("expected method %q, got %q", model.MethodPageListingOnly, result.Method)
		}
		if len(api.deleteCalls) != 1 {
			t.Errorf("expected exactly one clone deletion, got %d", len(api.deleteCalls))
		}
	})

	t.Run("records a leak when clone deletion fails", func(t *testing.T) {
		t.Parallel()

		api := &mockReportAPI{}
		api.exportFunc = func(_ context.Context, _, reportID string) ([]byte, error) {
			if reportID == "clone-1" {
				return []byte("archive"), nil
			}
			return nil, restrictedError()
		}
		api.cloneFunc = func(_ context.Context, _, _, _ string) (string, error) {
			return "clone-1", nil
		}
		api.deleteFunc = func(_ context.Context, _, _ string) error {
			return errors.New("delete forbidden")
		}
		records := []model.VisualRecord{{Name: "v1", Type: "barChart", Page: "Overview"}}
		a := NewAnalyzer(api, WithParser(staticParser(records, nil)), WithCloneWait(0))

		result := a.AnalyzeReport(context.Background(), testWorkspace(), testReport())

		if !result.CloneLeaked {
			t.Error("expected CloneLeaked to be recorded")
		}
		if result.Method != model.MethodDirectExport {
			t.Errorf("deletion failure must not change the method, got %q", result.Method)
		}
	})
}

// TestAnalyzeReportPageListingFallback tests the last-resort strategies.
func TestAnalyzeReportPageListingFallback(t *testing.T) {
	t.Parallel()

	t.Run("falls back to page listing when cloning fails", func(t *testing.T) {
		t.Parallel()

		api := &mockReportAPI{
			exportFunc: func(_ context.Context, _, _ string) ([]byte, error) {
				return nil, errors.New("export unavailable")
			},
			cloneFunc: func(_ context.Context, _, _, _ string) (string, error) {
				return "", errors.New("clone forbidden")
			},
			pagesFunc: func(_ context.Context, _, _ string) ([]model.Page, error) {
				return []model.Page{
					{Name: "ReportSection1", DisplayName: "Overview"},
					{Name: "ReportSection2", DisplayName: "Detail"},
				}, nil
			},
		}
		a := NewAnalyzer(api, WithCloneWait(0))

		result := a.AnalyzeReport(context.Background(), testWorkspace(), testReport())

		if result.Method != model.MethodPageListingOnly {
			t.Errorf("expected method %q, got %q", model.MethodPageListingOnly, result.Method)
		}
		if result.NumPages != 2 {
			t.Errorf("expected 2 pages, got %d", result.NumPages)
		}
		if result.TotalVisuals != 0 {
			t.Errorf("page listing must not report visuals, got %d", result.TotalVisuals)
		}
		if result.DirectLake != model.Unknown {
			t.Errorf("expected DirectLake Unknown without export, got %s", result.DirectLake)
		}
		if len(api.deleteCalls) != 0 {
			t.Errorf("no clone was created, yet %d deletions happened", len(api.deleteCalls))
		}
	})

	t.Run("marks the report failed when every strategy fails", func(t *testing.T) {
		t.Parallel()

		api := &mockReportAPI{
			exportFunc: func(_ context.Context, _, _ string) ([]byte, error) {
				return nil, errors.New("export unavailable")
			},
			cloneFunc: func(_ context.Context, _, _, _ string) (string, error) {
				return "", errors.New("clone forbidden")
			},
			pagesFunc: func(_ context.Context, _, _ string) ([]model.Page, error) {
				return nil, errors.New("pages forbidden")
			},
		}
		a := NewAnalyzer(api, WithCloneWait(0))

		result := a.AnalyzeReport(context.Background(), testWorkspace(), testReport())

		if result.Method != model.MethodFailed {
			t.Errorf("expected method %q, got %q", model.MethodFailed, result.Method)
		}
		if result.DirectLake != model.Unknown {
			t.Errorf("expected DirectLake Unknown, got %s", result.DirectLake)
		}
	})

	t.Run("treats an empty page listing as failure", func(t *testing.T) {
		t.Parallel()

		api := &mockReportAPI{
			exportFunc: func(_ context.Context, _, _ string) ([]byte, error) {
				return nil, errors.New("export unavailable")
			},
			cloneFunc: func(_ context.Context, _, _, _ string) (string, error) {
				return "", errors.New("clone forbidden")
			},
			pagesFunc: func(_ context.Context, _, _ string) ([]model.Page, error) {
				return []model.Page{}, nil
			},
		}
		a := NewAnalyzer(api, WithCloneWait(0))

		result := a.AnalyzeReport(context.Background(), testWorkspace(), testReport())

		if result.Method != model.MethodFailed {
			t.Errorf("expected method %q, got %q", model.MethodFailed, result.Method)
		}
	})
}
