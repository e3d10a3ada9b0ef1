package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vizscan/vizscan/internal/model"
	"github.com/vizscan/vizscan/internal/powerbi"
)

// TenantAPI is the slice of the Power BI client the runner needs for
// enumeration.
type TenantAPI interface {
	// Workspaces lists workspaces per the given options.
	Workspaces(ctx context.Context, opts powerbi.ListWorkspacesOptions) ([]model.Workspace, error)

	// Reports lists the reports in a workspace.
	Reports(ctx context.Context, workspaceID string) ([]model.Report, error)
}

// Runner walks every workspace and report sequentially, resolves each
// report through the Analyzer, and records the outcome. Results are
// flushed after each completed workspace so a partial run still leaves
// usable output behind.
type Runner struct {
	api        TenantAPI
	analyzer   *Analyzer
	aggregator *Aggregator
	logger     *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(api TenantAPI, analyzer *Analyzer, aggregator *Aggregator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		api:        api,
		analyzer:   analyzer,
		aggregator: aggregator,
		logger:     logger,
	}
}

// Run executes a full tenant audit. Workspace enumeration failure is
// fatal (nothing can be scanned); everything below that level is
// downgraded to per-item outcomes and the run continues.
func (r *Runner) Run(ctx context.Context, opts powerbi.ListWorkspacesOptions) (model.RunSummary, error) {
	workspaces, err := r.api.Workspaces(ctx, opts)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("failed to list workspaces: %w", err)
	}

	r.logger.Info("starting tenant audit", "workspaces", len(workspaces))

	for _, ws := range workspaces {
		if err := ctx.Err(); err != nil {
			return r.aggregator.Summary(), err
		}

		r.scanWorkspace(ctx, ws)

		if err := r.aggregator.Flush(); err != nil {
			r.logger.Error("failed to flush results",
				"workspace", ws.Name,
				"error", err,
			)
		}
	}

	if err := r.aggregator.Flush(); err != nil {
		return r.aggregator.Summary(), fmt.Errorf("failed to flush results: %w", err)
	}
	return r.aggregator.Summary(), nil
}

// scanWorkspace analyzes every report in one workspace. A report
// listing failure skips the workspace; it cannot produce result rows
// because the reports themselves are unknown.
func (r *Runner) scanWorkspace(ctx context.Context, ws model.Workspace) {
	r.logger.Info("scanning workspace", "workspace", ws.Name, "workspaceID", ws.ID)

	reports, err := r.api.Reports(ctx, ws.ID)
	if err != nil {
		r.logger.Warn("failed to list reports, skipping workspace",
			"workspace", ws.Name,
			"error", err,
		)
		return
	}

	for _, rep := range reports {
		if err := ctx.Err(); err != nil {
			return
		}
		if IsAnalysisClone(rep.Name) {
			r.logger.Debug("skipping leftover analysis clone", "report", rep.Name)
			continue
		}
		r.aggregator.Record(r.analyzer.AnalyzeReport(ctx, ws, rep))
	}
}
