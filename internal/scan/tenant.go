package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vizscan/vizscan/internal/model"
	"github.com/vizscan/vizscan/internal/powerbi"
	"github.com/vizscan/vizscan/internal/visual"
)

// DefaultPollInterval is the delay between scanner job status checks.
const DefaultPollInterval = 5 * time.Second

// DefaultPollTimeout bounds how long one scanner job may run.
const DefaultPollTimeout = 10 * time.Minute

// ScannerAPI is the slice of the Power BI client the tenant-scan path
// needs. The scanner job returns page/visual metadata directly, so
// this path never touches the archive parser.
type ScannerAPI interface {
	TenantAPI

	// StartWorkspaceScan submits an asynchronous scanner job.
	StartWorkspaceScan(ctx context.Context, workspaceIDs []string) (string, error)

	// WaitForScan polls a job to completion and fetches its result.
	WaitForScan(ctx context.Context, scanID string, interval, timeout time.Duration) (*powerbi.TenantScan, error)
}

// TenantRunner audits via the asynchronous tenant scanner instead of
// per-report export. Workspaces are scanned in batches of the API's
// maximum job size.
type TenantRunner struct {
	api          ScannerAPI
	aggregator   *Aggregator
	logger       *slog.Logger
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// TenantRunnerOption configures a TenantRunner.
type TenantRunnerOption func(*TenantRunner)

// WithPollInterval sets the scanner status polling interval.
func WithPollInterval(d time.Duration) TenantRunnerOption {
	return func(r *TenantRunner) {
		r.pollInterval = d
	}
}

// WithPollTimeout bounds each scanner job's duration.
func WithPollTimeout(d time.Duration) TenantRunnerOption {
	return func(r *TenantRunner) {
		r.pollTimeout = d
	}
}

// WithTenantRunnerLogger sets the structured logger.
func WithTenantRunnerLogger(logger *slog.Logger) TenantRunnerOption {
	return func(r *TenantRunner) {
		r.logger = logger
	}
}

// NewTenantRunner creates a TenantRunner.
func NewTenantRunner(api ScannerAPI, aggregator *Aggregator, opts ...TenantRunnerOption) *TenantRunner {
	r := &TenantRunner{
		api:          api,
		aggregator:   aggregator,
		pollInterval: DefaultPollInterval,
		pollTimeout:  DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run audits the tenant through the scanner API. A failed scanner
// batch downgrades to skipped workspaces (logged), not a dead run;
// only workspace enumeration failure is fatal.
func (r *TenantRunner) Run(ctx context.Context, opts powerbi.ListWorkspacesOptions) (model.RunSummary, error) {
	workspaces, err := r.api.Workspaces(ctx, opts)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("failed to list workspaces: %w", err)
	}

	r.logger.Info("starting tenant scan", "workspaces", len(workspaces))

	byID := make(map[string]model.Workspace, len(workspaces))
	ids := make([]string, 0, len(workspaces))
	for _, ws := range workspaces {
		byID[ws.ID] = ws
		ids = append(ids, ws.ID)
	}

	for start := 0; start < len(ids); start += powerbi.MaxScanBatchSize {
		if err := ctx.Err(); err != nil {
			return r.aggregator.Summary(), err
		}

		end := min(start+powerbi.MaxScanBatchSize, len(ids))
		r.scanBatch(ctx, ids[start:end], byID)

		if err := r.aggregator.Flush(); err != nil {
			r.logger.Error("failed to flush results", "error", err)
		}
	}

	if err := r.aggregator.Flush(); err != nil {
		return r.aggregator.Summary(), fmt.Errorf("failed to flush results: %w", err)
	}
	return r.aggregator.Summary(), nil
}

// scanBatch submits one scanner job and records its results.
func (r *TenantRunner) scanBatch(ctx context.Context, workspaceIDs []string, byID map[string]model.Workspace) {
	scanID, err := r.api.StartWorkspaceScan(ctx, workspaceIDs)
	if err != nil {
		r.logger.Warn("failed to submit scanner job, skipping batch",
			"workspaces", len(workspaceIDs),
			"error", err,
		)
		return
	}

	r.logger.Info("scanner job submitted", "scanID", scanID, "workspaces", len(workspaceIDs))

	scan, err := r.api.WaitForScan(ctx, scanID, r.pollInterval, r.pollTimeout)
	if err != nil {
		r.logger.Warn("scanner job did not complete, skipping batch",
			"scanID", scanID,
			"error", err,
		)
		return
	}

	for _, ws := range scan.Workspaces {
		// Prefer the enumerated snapshot: the scanner result omits
		// capacity info for some workspace kinds.
		snapshot, ok := byID[ws.ID]
		if !ok {
			snapshot = model.Workspace{ID: ws.ID, Name: ws.Name, CapacityID: ws.CapacityID}
		}

		for _, rep := range ws.Reports {
			if IsAnalysisClone(rep.Name) {
				continue
			}
			r.aggregator.Record(resultFromScannedReport(snapshot, rep))
		}
	}
}

// resultFromScannedReport converts one scanned report into a
// ScanResult, running the classifier over its visuals. The scanner
// path makes no export attempt, so DirectLake stays Unknown.
func resultFromScannedReport(ws model.Workspace, rep powerbi.ScannedReport) model.ScanResult {
	result := model.NewScanResult(ws, model.Report{ID: rep.ID, Name: rep.Name, WorkspaceID: ws.ID})
	result.Method = model.MethodTenantScan
	result.NumPages = len(rep.Pages)

	for _, page := range rep.Pages {
		pageName := page.DisplayName
		if pageName == "" {
			pageName = page.Name
		}
		for _, v := range page.Visuals {
			visualType := v.VisualType
			if visualType == "" {
				visualType = "Unknown"
			}
			record := model.VisualRecord{
				Name:   v.Name,
				Type:   visualType,
				Page:   pageName,
				Custom: visual.IsCustom(visualType),
			}
			result.TotalVisuals++
			if record.Custom {
				result.CustomVisuals++
				result.CustomVisualRecords = append(result.CustomVisualRecords, record)
			}
		}
	}
	return result
}
