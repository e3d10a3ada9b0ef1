package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/vizscan/vizscan/internal/model"
)

// SummaryWriter outputs a human-readable run summary.
// This format is designed for terminal display after a run finishes.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SummaryWriter struct {
	baseWriter

	// showEmpty controls whether reports without custom visuals are listed.
	showEmpty bool

	// verbose enables per-visual detail in the output.
	verbose bool
}

// SummaryWriterOption configures a SummaryWriter.
type SummaryWriterOption func(*SummaryWriter)

// WithShowEmpty configures the writer to list reports without custom
// visuals too.
func WithShowEmpty(show bool) SummaryWriterOption {
	return func(w *SummaryWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with per-visual details.
func WithVerbose(verbose bool) SummaryWriterOption {
	return func(w *SummaryWriter) {
		w.verbose = verbose
	}
}

// NewSummaryWriter creates a SummaryWriter that outputs to the given writer.
func NewSummaryWriter(output io.Writer, opts ...SummaryWriterOption) *SummaryWriter {
	w := &SummaryWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run summary in human-readable format.
func (w *SummaryWriter) Write(summary model.RunSummary, results []model.ScanResult) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	w.writeCustomVisuals(&sb, results)
	w.writeFailures(&sb, results)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the summary header with run information.
func (w *SummaryWriter) writeHeader(sb *strings.Builder, summary model.RunSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      CUSTOM VISUAL AUDIT SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Run Started:  %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString("\n")
}

// writeCounts writes the aggregate counters.
func (w *SummaryWriter) writeCounts(sb *strings.Builder, summary model.RunSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("TOTALS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Reports analyzed:            %d\n", summary.TotalReports))
	sb.WriteString(fmt.Sprintf("  Reports with custom visuals: %d\n", summary.ReportsWithCustomVisuals))
	sb.WriteString(fmt.Sprintf("  DirectLake reports:          %d\n", summary.DirectLakeReports))
	sb.WriteString(fmt.Sprintf("  Successful exports:          %d\n", summary.SuccessfulExports))

	if summary.CleanupFailures > 0 {
		sb.WriteString(fmt.Sprintf("  Clone cleanup failures:      %d  (manual cleanup required)\n", summary.CleanupFailures))
	}
	sb.WriteString("\n")
}

// writeCustomVisuals lists every report carrying custom visuals.
func (w *SummaryWriter) writeCustomVisuals(sb *strings.Builder, results []model.ScanResult) {
	var flagged []model.ScanResult
	for _, r := range results {
		if r.CustomVisuals > 0 || w.showEmpty {
			flagged = append(flagged, r)
		}
	}
	if len(flagged) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("REPORTS WITH CUSTOM VISUALS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, r := range flagged {
		sb.WriteString(fmt.Sprintf("  [%s] %s / %s: %d of %d visuals custom\n",
			r.Method, r.WorkspaceName, r.ReportName, r.CustomVisuals, r.TotalVisuals))
		if w.verbose {
			for _, v := range r.CustomVisualRecords {
				sb.WriteString(fmt.Sprintf("      - %s (%s) on page %q\n", v.Name, v.Type, v.Page))
			}
		}
	}
	sb.WriteString("\n")
}

// writeFailures lists reports the run could not fully resolve.
func (w *SummaryWriter) writeFailures(sb *strings.Builder, results []model.ScanResult) {
	var degraded []model.ScanResult
	for _, r := range results {
		if r.Method == model.MethodFailed || r.Method == model.MethodPageListingOnly || r.CloneLeaked {
			degraded = append(degraded, r)
		}
	}
	if len(degraded) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("DEGRADED RESULTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, r := range degraded {
		note := r.Method.String()
		if r.CloneLeaked {
			note += ", analysis clone not deleted"
		}
		sb.WriteString(fmt.Sprintf("  * %s / %s: %s\n", r.WorkspaceName, r.ReportName, note))
	}
	sb.WriteString("\n")
}

// writeFooter writes the summary footer.
func (w *SummaryWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by vizscan\n")
	sb.WriteString("https://github.com/vizscan/vizscan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
