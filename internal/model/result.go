package model

import (
	"strings"
	"time"
)

// Method identifies which acquisition strategy produced a report's
// scan result.
type Method int

const (
	// MethodFailed means no strategy produced any information.
	MethodFailed Method = iota

	// MethodDirectExport means a definition export succeeded (against
	// the original report or its clone) and visuals were extracted.
	MethodDirectExport

	// MethodDirectExportNoVisuals means the export succeeded but no
	// visuals could be extracted from the archive.
	MethodDirectExportNoVisuals

	// MethodPageListingOnly means only page names could be retrieved;
	// visual details were unavailable.
	MethodPageListingOnly

	// MethodTenantScan means visual metadata came from the asynchronous
	// tenant scanner API rather than a definition export.
	MethodTenantScan
)

// String returns the method label used in result rows.
func (m Method) String() string {
	switch m {
	case MethodDirectExport:
		return "Direct Export"
	case MethodDirectExportNoVisuals:
		return "Direct Export (No Visuals)"
	case MethodPageListingOnly:
		return "Page Listing Only"
	case MethodTenantScan:
		return "Tenant Scan"
	case MethodFailed:
		return "Failed"
	default:
		return "Failed"
	}
}

// MentionsExport reports whether the method label names an export path.
// Used by the run summary to count successful definition exports.
func (m Method) MentionsExport() bool {
	return strings.Contains(m.String(), "Export")
}

// TriState is a yes/no/unknown flag. It is used for the DirectLake
// storage-mode verdict, which stays Unknown until an export attempt
// resolves it one way or the other.
type TriState int

const (
	// Unknown means no signal has resolved the flag yet.
	Unknown TriState = iota

	// Yes means the flag was positively resolved.
	Yes

	// No means the flag was negatively resolved.
	No
)

// String returns the flag value used in result rows.
func (t TriState) String() string {
	switch t {
	case Yes:
		return "Yes"
	case No:
		return "No"
	default:
		return "Unknown"
	}
}

// ScanResult is the outcome of analyzing one report. Exactly one
// ScanResult is produced per discovered report, whatever strategy
// resolved (or failed to resolve) it.
//
// Invariants: CustomVisuals <= TotalVisuals, and TotalVisuals == 0
// whenever Method is MethodPageListingOnly or MethodFailed.
type ScanResult struct {
	// WorkspaceID is the GUID of the workspace containing the report.
	WorkspaceID string `json:"workspace_id"`

	// WorkspaceName is the workspace display name.
	WorkspaceName string `json:"workspace"`

	// CapacityID is the workspace's capacity GUID, if any.
	CapacityID string `json:"capacity_id,omitempty"`

	// ReportID is the report GUID.
	ReportID string `json:"report_id"`

	// ReportName is the report display name.
	ReportName string `json:"report"`

	// Method is the acquisition strategy that resolved this report.
	Method Method `json:"method"`

	// NumPages is the number of report pages. For export methods this
	// is the number of distinct pages hosting visuals; for page listing
	// it is the length of the pages endpoint response.
	NumPages int `json:"num_pages"`

	// DirectLake records whether the report's dataset runs in DirectLake
	// storage mode, as far as the export attempts could tell.
	DirectLake TriState `json:"is_directlake"` //nolint:tagliatelle // matches the CSV column name

	// TotalVisuals is the number of visuals extracted from the report.
	TotalVisuals int `json:"total_visuals"`

	// CustomVisuals is the number of visuals classified as custom.
	CustomVisuals int `json:"custom_visuals"`

	// CustomVisualRecords holds the custom visuals themselves for
	// summary output. Not part of the CSV row.
	CustomVisualRecords []VisualRecord `json:"custom_visual_records,omitempty"`

	// CloneLeaked is true when an ephemeral analysis clone could not be
	// deleted. Surfaced in logs and the run summary; not a CSV column.
	CloneLeaked bool `json:"clone_leaked,omitempty"`
}

// NewScanResult creates the initial result for a report, before any
// acquisition strategy has been attempted.
func NewScanResult(ws Workspace, rep Report) ScanResult {
	return ScanResult{
		WorkspaceID:   ws.ID,
		WorkspaceName: ws.Name,
		CapacityID:    ws.CapacityID,
		ReportID:      rep.ID,
		ReportName:    rep.Name,
		Method:        MethodFailed,
		DirectLake:    Unknown,
	}
}

// RunSummary is the read-only aggregate over all scan results of a run.
// It is always derived from the result list and never persisted on its
// own.
type RunSummary struct {
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// TotalReports is the number of reports analyzed.
	TotalReports int `json:"total_reports"`

	// ReportsWithCustomVisuals counts results with CustomVisuals > 0.
	ReportsWithCustomVisuals int `json:"reports_with_custom_visuals"`

	// DirectLakeReports counts results resolved as DirectLake.
	DirectLakeReports int `json:"directlake_reports"`

	// SuccessfulExports counts results whose method names an export path.
	SuccessfulExports int `json:"successful_exports"`

	// CleanupFailures counts analysis clones that could not be deleted.
	// Anything above zero is a resource leak the operator must resolve.
	CleanupFailures int `json:"cleanup_failures"`
}

// NewRunSummary computes the summary over the given results.
func NewRunSummary(results []ScanResult) RunSummary {
	var s RunSummary
	s.TotalReports = len(results)
	for _, r := range results {
		if r.CustomVisuals > 0 {
			s.ReportsWithCustomVisuals++
		}
		if r.DirectLake == Yes {
			s.DirectLakeReports++
		}
		if r.Method.MentionsExport() {
			s.SuccessfulExports++
		}
		if r.CloneLeaked {
			s.CleanupFailures++
		}
	}
	return s
}
