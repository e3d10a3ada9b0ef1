package model

// WorkspaceType distinguishes regular (group) workspaces from personal
// workspaces ("My Workspace"). The Power BI API reports personal
// workspaces with type "PersonalGroup".
type WorkspaceType string

const (
	// WorkspaceTypeRegular is a normal shared workspace.
	WorkspaceTypeRegular WorkspaceType = "Workspace"

	// WorkspaceTypePersonal is a user's personal workspace.
	// Personal workspaces are usually excluded from tenant audits.
	WorkspaceTypePersonal WorkspaceType = "PersonalGroup"
)

// Workspace is a Power BI workspace as returned by the groups API.
// It is an immutable snapshot; vizscan never modifies workspaces.
type Workspace struct {
	// ID is the workspace GUID.
	ID string `json:"id"`

	// Name is the workspace display name.
	Name string `json:"name"`

	// Type is the workspace kind. Empty when the API omits it
	// (the non-admin groups endpoint does not always include it).
	Type WorkspaceType `json:"type,omitempty"`

	// CapacityID is the GUID of the capacity the workspace is assigned to.
	// Empty for workspaces on shared capacity.
	CapacityID string `json:"capacityId,omitempty"` //nolint:tagliatelle // Power BI API field name
}

// IsPersonal reports whether the workspace is a personal workspace.
func (w Workspace) IsPersonal() bool {
	return w.Type == WorkspaceTypePersonal
}

// Report is a Power BI report as returned by the reports API.
// Like Workspace, it is an immutable snapshot. A report may be paired
// with at most one ephemeral clone during analysis; the clone is owned
// by the analyzer and never appears in result rows.
type Report struct {
	// ID is the report GUID.
	ID string `json:"id"`

	// Name is the report display name.
	Name string `json:"name"`

	// WorkspaceID is the GUID of the workspace containing the report.
	// Populated by the enumerator; the API response omits it.
	WorkspaceID string `json:"-"`

	// WebURL is the report's browser link, when the API provides one.
	WebURL string `json:"webUrl,omitempty"` //nolint:tagliatelle // Power BI API field name
}

// Page is a single report page as returned by the pages API.
// Only names are available through this endpoint; visual details
// require a full definition export.
type Page struct {
	// Name is the internal page identifier (e.g. "ReportSection1").
	Name string `json:"name"`

	// DisplayName is the page title shown to report consumers.
	DisplayName string `json:"displayName"` //nolint:tagliatelle // Power BI API field name

	// Order is the page position within the report.
	Order int `json:"order,omitempty"`
}
