package model

// VisualRecord is a single visual element extracted from a report
// definition or from a tenant scan result. Records are immutable once
// created.
type VisualRecord struct {
	// Name is the visual's internal identifier within the report.
	Name string `json:"name"`

	// Type is the raw visual type identifier (e.g. "lineChart" or a
	// vendor-qualified custom visual name).
	Type string `json:"type"`

	// Page is the display name of the page hosting the visual.
	Page string `json:"page"`

	// Custom is true when the type identifier was classified as a
	// third-party (custom) visual.
	Custom bool `json:"custom"`
}

// CountCustom returns the number of custom visuals in records.
func CountCustom(records []VisualRecord) int {
	var n int
	for _, r := range records {
		if r.Custom {
			n++
		}
	}
	return n
}

// CountPages returns the number of distinct pages that host at least
// one of the given visuals. Page order follows encounter order, which
// is all the layout format guarantees.
func CountPages(records []VisualRecord) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.Page] = struct{}{}
	}
	return len(seen)
}
