package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/vizscan/vizscan/internal/model"
)

// MarkdownWriter outputs run summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(summary model.RunSummary, results []model.ScanResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeMethodChart(md, results)
	w.writeAlert(md, summary)
	w.writeCustomVisuals(md, results)
	w.writeResults(md, results)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the summary header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary model.RunSummary) {
	md.H1("Custom Visual Audit")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Reports Analyzed", strconv.Itoa(summary.TotalReports)},
			{"Reports With Custom Visuals", strconv.Itoa(summary.ReportsWithCustomVisuals)},
			{"DirectLake Reports", strconv.Itoa(summary.DirectLakeReports)},
			{"Successful Exports", strconv.Itoa(summary.SuccessfulExports)},
			{"Clone Cleanup Failures", strconv.Itoa(summary.CleanupFailures)},
		},
	})
	md.PlainText("")
}

// writeMethodChart writes a mermaid pie chart over acquisition methods.
func (w *MarkdownWriter) writeMethodChart(md *markdown.Markdown, results []model.ScanResult) {
	if len(results) == 0 {
		return
	}

	counts := make(map[string]uint64)
	for _, r := range results {
		counts[r.Method.String()]++
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Acquisition Method Distribution"),
		piechart.WithShowData(true),
	)
	for _, method := range []model.Method{
		model.MethodDirectExport,
		model.MethodDirectExportNoVisuals,
		model.MethodPageListingOnly,
		model.MethodTenantScan,
		model.MethodFailed,
	} {
		if n := counts[method.String()]; n > 0 {
			chart.LabelAndIntValue(method.String(), n)
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary model.RunSummary) {
	switch {
	case summary.CleanupFailures > 0:
		md.Cautionf(
			"%d analysis clone(s) could not be deleted and require manual cleanup.",
			summary.CleanupFailures,
		)
	case summary.ReportsWithCustomVisuals > 0:
		md.Warningf(
			"%d report(s) contain custom visuals and should be reviewed.",
			summary.ReportsWithCustomVisuals,
		)
	case summary.TotalReports > 0:
		md.Tip("No custom visuals detected across the tenant.")
	default:
		md.Note("No reports were analyzed.")
	}
	md.PlainText("")
}

// writeCustomVisuals writes a table of every detected custom visual.
func (w *MarkdownWriter) writeCustomVisuals(md *markdown.Markdown, results []model.ScanResult) {
	md.H2("Custom Visuals")
	md.PlainText("")

	var rows [][]string
	for _, r := range results {
		for _, v := range r.CustomVisualRecords {
			rows = append(rows, []string{
				r.WorkspaceName,
				r.ReportName,
				truncateString(v.Page, 40),
				truncateString(v.Name, 40),
				"`" + truncateString(v.Type, 50) + "`",
			})
		}
	}

	if len(rows) == 0 {
		md.PlainText("No custom visuals detected.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Workspace", "Report", "Page", "Visual", "Type"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeResults writes the per-report result table.
func (w *MarkdownWriter) writeResults(md *markdown.Markdown, results []model.ScanResult) {
	md.H2("Reports")
	md.PlainText("")

	if len(results) == 0 {
		md.PlainText("No reports were analyzed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{
			r.WorkspaceName,
			r.ReportName,
			r.Method.String(),
			strconv.Itoa(r.NumPages),
			r.DirectLake.String(),
			strconv.Itoa(r.TotalVisuals),
			strconv.Itoa(r.CustomVisuals),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Workspace", "Report", "Method", "Pages", "DirectLake", "Visuals", "Custom"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the summary footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [vizscan](https://github.com/vizscan/vizscan)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
