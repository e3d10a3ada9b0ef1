package scan

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/vizscan/vizscan/internal/model"
	"github.com/vizscan/vizscan/internal/pbix"
	"github.com/vizscan/vizscan/internal/powerbi"
)

// CloneNamePrefix marks ephemeral analysis clones. Reports carrying it
// are skipped during enumeration so a crashed earlier run cannot cause
// clones to be audited (or cloned again).
const CloneNamePrefix = "temp_analysis_"

// legacyClonePrefix is an older clone naming scheme; still skipped so
// leftovers from previous tool versions are not audited.
const legacyClonePrefix = "temp_clone_for_analysis"

// DefaultCloneWait is how long the analyzer waits after cloning before
// exporting the clone. A freshly cloned report is not immediately
// exportable.
const DefaultCloneWait = 2 * time.Second

// ReportAPI is the slice of the Power BI client the analyzer needs.
type ReportAPI interface {
	// ExportReport downloads a report's full definition.
	ExportReport(ctx context.Context, workspaceID, reportID string) ([]byte, error)

	// CloneReport duplicates a report into the same workspace.
	CloneReport(ctx context.Context, workspaceID, reportID, name string) (string, error)

	// DeleteReport removes a report. Used only for analysis clones.
	DeleteReport(ctx context.Context, workspaceID, reportID string) error

	// Pages lists a report's pages.
	Pages(ctx context.Context, workspaceID, reportID string) ([]model.Page, error)
}

// parseFunc decodes an exported definition into visual records.
type parseFunc func(blob []byte) ([]model.VisualRecord, error)

// Analyzer resolves single reports to scan results. One Analyzer is
// shared across a run; it holds no per-report state.
type Analyzer struct {
	api       ReportAPI
	parse     parseFunc
	logger    *slog.Logger
	cloneWait time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithAnalyzerLogger sets the structured logger.
func WithAnalyzerLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithCloneWait sets the delay between cloning and exporting the clone.
func WithCloneWait(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		a.cloneWait = d
	}
}

// WithParser overrides the archive parser.
func WithParser(parse parseFunc) AnalyzerOption {
	return func(a *Analyzer) {
		a.parse = parse
	}
}

// NewAnalyzer creates an Analyzer using the given API client.
func NewAnalyzer(api ReportAPI, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		api:       api,
		cloneWait: DefaultCloneWait,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.parse == nil {
		parser := pbix.NewParser(pbix.WithLogger(a.logger))
		a.parse = parser.Parse
	}
	return a
}

// CloneName returns the deterministic name for a report's analysis
// clone.
func CloneName(reportID string) string {
	id := reportID
	if len(id) > 8 {
		id = id[:8]
	}
	return CloneNamePrefix + id
}

// IsAnalysisClone reports whether a report name marks it as an
// ephemeral analysis clone.
func IsAnalysisClone(name string) bool {
	return strings.Contains(name, CloneNamePrefix) || strings.Contains(name, legacyClonePrefix)
}

// AnalyzeReport resolves one report to a ScanResult. It never returns
// an error: every failure mode is folded into the result's method and
// counters so the run always produces a row per report.
//
// If a clone is created it is deleted exactly once before this method
// returns, whatever path the analysis takes. A failed deletion is
// logged and recorded on the result, never swallowed.
func (a *Analyzer) AnalyzeReport(ctx context.Context, ws model.Workspace, rep model.Report) (result model.ScanResult) {
	result = model.NewScanResult(ws, rep)

	a.logger.Info("analyzing report",
		"workspace", ws.Name,
		"report", rep.Name,
		"reportID", rep.ID,
	)

	var cloneID string
	defer func() {
		if cloneID == "" {
			return
		}
		if err := a.api.DeleteReport(ctx, ws.ID, cloneID); err != nil {
			result.CloneLeaked = true
			a.logger.Warn("failed to delete analysis clone; manual cleanup required",
				"workspace", ws.Name,
				"report", rep.Name,
				"cloneID", cloneID,
				"error", err,
			)
			return
		}
		a.logger.Debug("analysis clone deleted", "cloneID", cloneID)
	}()

	blob, err := a.api.ExportReport(ctx, ws.ID, rep.ID)
	if err != nil {
		if powerbi.IsExportRestricted(err) {
			// The restriction marker is the one signal that positively
			// identifies DirectLake storage mode.
			result.DirectLake = model.Yes
			a.logger.Info("direct export restricted by storage mode",
				"report", rep.Name,
			)
		} else {
			a.logger.Info("direct export failed, trying clone",
				"report", rep.Name,
				"error", err,
			)
		}

		blob = a.exportViaClone(ctx, ws, rep, &cloneID)
	}

	if blob != nil {
		a.resolveFromArchive(blob, &result)
		return result
	}

	a.resolveFromPageListing(ctx, ws, rep, &result)
	return result
}

// exportViaClone clones the report and exports the clone. Returns nil
// when either step fails; the caller falls through to page listing.
// The created clone ID, if any, is stored through cloneID so the
// deferred cleanup in AnalyzeReport owns it on every path.
func (a *Analyzer) exportViaClone(ctx context.Context, ws model.Workspace, rep model.Report, cloneID *string) []byte {
	id, err := a.api.CloneReport(ctx, ws.ID, rep.ID, CloneName(rep.ID))
	if err != nil {
		a.logger.Info("clone creation failed, falling back to page listing",
			"report", rep.Name,
			"error", err,
		)
		return nil
	}
	*cloneID = id

	a.sleep(ctx, a.cloneWait)

	blob, err := a.api.ExportReport(ctx, ws.ID, id)
	if err != nil {
		a.logger.Info("clone export failed, falling back to page listing",
			"report", rep.Name,
			"cloneID", id,
			"error", err,
		)
		return nil
	}
	return blob
}

// resolveFromArchive parses an exported definition and fills in the
// result. An archive that cannot be opened, or opens but declares no
// visuals, is a "(No Visuals)" success: the export itself worked.
func (a *Analyzer) resolveFromArchive(blob []byte, result *model.ScanResult) {
	records, err := a.parse(blob)
	if err != nil {
		a.logger.Warn("exported definition could not be parsed",
			"report", result.ReportName,
			"error", err,
		)
	}

	if len(records) == 0 {
		result.Method = model.MethodDirectExportNoVisuals
	} else {
		result.Method = model.MethodDirectExport
		result.TotalVisuals = len(records)
		result.CustomVisuals = model.CountCustom(records)
		result.NumPages = model.CountPages(records)
		for _, r := range records {
			if r.Custom {
				result.CustomVisualRecords = append(result.CustomVisualRecords, r)
			}
		}
	}

	// A successful export resolves the storage-mode question unless
	// the restriction marker already answered it.
	if result.DirectLake != model.Yes {
		result.DirectLake = model.No
	}
}

// resolveFromPageListing fills in the result from the pages endpoint,
// the last-resort strategy with no visual detail.
func (a *Analyzer) resolveFromPageListing(ctx context.Context, ws model.Workspace, rep model.Report, result *model.ScanResult) {
	pages, err := a.api.Pages(ctx, ws.ID, rep.ID)
	if err != nil || len(pages) == 0 {
		result.Method = model.MethodFailed
		a.logger.Warn("page listing failed; no information available for report",
			"workspace", ws.Name,
			"report", rep.Name,
			"error", err,
		)
		return
	}

	result.Method = model.MethodPageListingOnly
	result.NumPages = len(pages)
	a.logger.Info("resolved via page listing only",
		"report", rep.Name,
		"pages", len(pages),
		"webURL", rep.WebURL,
	)
}

// sleepContext sleeps for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
