package powerbi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Tenant scan job states as reported by the scanStatus endpoint.
const (
	ScanStatusNotStarted = "NotStarted"
	ScanStatusRunning    = "Running"
	ScanStatusSucceeded  = "Succeeded"
	ScanStatusFailed     = "Failed"
)

// MaxScanBatchSize is the scanner API's limit on workspaces per job.
const MaxScanBatchSize = 100

// scanRequest is the getInfo request body. All metadata options are
// enabled; visual-level detail additionally requires the tenant
// setting "Enhance admin APIs responses with detailed metadata".
type scanRequest struct {
	Workspaces         []string `json:"workspaces"`
	DatasetExpressions bool     `json:"datasetExpressions"` //nolint:tagliatelle // Power BI API field name
	DatasetSchema      bool     `json:"datasetSchema"`      //nolint:tagliatelle // Power BI API field name
	DatasourceDetails  bool     `json:"datasourceDetails"`  //nolint:tagliatelle // Power BI API field name
	GetArtifactUsers   bool     `json:"getArtifactUsers"`   //nolint:tagliatelle // Power BI API field name
	Lineage            bool     `json:"lineage"`
}

// scanStatusResponse is the scanStatus endpoint body.
type scanStatusResponse struct {
	Status string `json:"status"`
}

// TenantScan is a completed scanner job result, pruned to the fields
// visual auditing needs.
type TenantScan struct {
	Workspaces []ScannedWorkspace `json:"workspaces"`
}

// ScannedWorkspace is one workspace within a tenant scan.
type ScannedWorkspace struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type,omitempty"`
	CapacityID string          `json:"capacityId,omitempty"` //nolint:tagliatelle // Power BI API field name
	Reports    []ScannedReport `json:"reports,omitempty"`
}

// ScannedReport is one report within a scanned workspace.
type ScannedReport struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Pages []ScannedPage `json:"pages,omitempty"`
}

// ScannedPage is one page within a scanned report. Visuals are only
// present when the tenant's detailed-metadata setting is enabled.
type ScannedPage struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"displayName,omitempty"` //nolint:tagliatelle // Power BI API field name
	Visuals     []ScannedVisual `json:"visuals,omitempty"`
}

// ScannedVisual is one visual within a scanned page.
type ScannedVisual struct {
	Name       string `json:"name"`
	VisualType string `json:"visualType"` //nolint:tagliatelle // Power BI API field name
}

// StartWorkspaceScan submits an asynchronous scanner job for up to
// MaxScanBatchSize workspaces and returns the scan ID.
func (c *Client) StartWorkspaceScan(ctx context.Context, workspaceIDs []string) (string, error) {
	if len(workspaceIDs) == 0 {
		return "", fmt.Errorf("no workspaces to scan")
	}
	if len(workspaceIDs) > MaxScanBatchSize {
		return "", fmt.Errorf("scanner accepts at most %d workspaces per job, got %d", MaxScanBatchSize, len(workspaceIDs))
	}

	payload, err := json.Marshal(scanRequest{
		Workspaces:         workspaceIDs,
		DatasetExpressions: true,
		DatasetSchema:      true,
		DatasourceDetails:  true,
		GetArtifactUsers:   true,
		Lineage:            true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode scan request: %w", err)
	}

	endpoint := c.baseURL + "/admin/workspaces/getInfo"
	body, headers, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return "", err
	}

	// A 202 carries the scan ID in the Location header; some responses
	// also include it in the body.
	if location := headers.Get("Location"); location != "" {
		parts := strings.Split(strings.TrimRight(location, "/"), "/")
		return parts[len(parts)-1], nil
	}

	var accepted struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &accepted); err == nil && accepted.ID != "" {
		return accepted.ID, nil
	}
	return "", fmt.Errorf("scan accepted but no scan id was returned")
}

// ScanStatus returns the current state of a scanner job.
func (c *Client) ScanStatus(ctx context.Context, scanID string) (string, error) {
	endpoint := c.baseURL + "/admin/workspaces/scanStatus/" + url.PathEscape(scanID)
	body, _, err := c.get(ctx, endpoint)
	if err != nil {
		return "", err
	}

	var status scanStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return "", fmt.Errorf("failed to decode scan status: %w", err)
	}
	return status.Status, nil
}

// ScanResult fetches the result of a completed scanner job.
func (c *Client) ScanResult(ctx context.Context, scanID string) (*TenantScan, error) {
	endpoint := c.baseURL + "/admin/workspaces/scanResult/" + url.PathEscape(scanID)
	body, _, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var scan TenantScan
	if err := json.Unmarshal(body, &scan); err != nil {
		return nil, fmt.Errorf("failed to decode scan result: %w", err)
	}
	return &scan, nil
}

// WaitForScan polls a scanner job until it succeeds, fails, or the
// timeout elapses, then fetches the result.
func (c *Client) WaitForScan(ctx context.Context, scanID string, interval, timeout time.Duration) (*TenantScan, error) {
	deadline := time.Now().Add(timeout)
	for {
		status, err := c.ScanStatus(ctx, scanID)
		if err != nil {
			return nil, err
		}

		switch status {
		case ScanStatusSucceeded:
			return c.ScanResult(ctx, scanID)
		case ScanStatusFailed:
			return nil, fmt.Errorf("tenant scan %s failed", scanID)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("tenant scan %s did not complete within %s (last status %s)", scanID, timeout, status)
		}
		if err := c.sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}
