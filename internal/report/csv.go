package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/vizscan/vizscan/internal/model"
)

// csvHeader is the fixed column order of the results file. It never
// changes between runs so downstream tooling can rely on it.
var csvHeader = []string{
	"workspace",
	"workspace_id",
	"capacity_id",
	"report",
	"report_id",
	"method",
	"num_pages",
	"is_directlake",
	"total_visuals",
	"custom_visuals",
}

// CSVSink streams scan results to CSV, one row per report. It
// satisfies the scan package's row sink: rows are appended in the
// order they arrive and each row is written exactly once, so partial
// runs leave a readable file behind.
type CSVSink struct {
	writer        *csv.Writer
	headerWritten bool
}

// NewCSVSink creates a CSVSink writing to output. The header row is
// written lazily with the first batch.
func NewCSVSink(output io.Writer) *CSVSink {
	return &CSVSink{writer: csv.NewWriter(output)}
}

// WriteRows appends the given results and flushes them to the
// underlying writer.
func (s *CSVSink) WriteRows(results []model.ScanResult) error {
	if !s.headerWritten {
		if err := s.writer.Write(csvHeader); err != nil {
			return err
		}
		s.headerWritten = true
	}

	for _, r := range results {
		row := []string{
			r.WorkspaceName,
			r.WorkspaceID,
			r.CapacityID,
			r.ReportName,
			r.ReportID,
			r.Method.String(),
			strconv.Itoa(r.NumPages),
			r.DirectLake.String(),
			strconv.Itoa(r.TotalVisuals),
			strconv.Itoa(r.CustomVisuals),
		}
		if err := s.writer.Write(row); err != nil {
			return err
		}
	}

	s.writer.Flush()
	return s.writer.Error()
}
