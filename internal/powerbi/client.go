package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vizscan/vizscan/internal/model"
)

// DefaultBaseURL is the Power BI REST API root.
const DefaultBaseURL = "https://api.powerbi.com/v1.0/myorg"

// Default client tuning. Export calls move whole report definitions,
// so the request timeout is generous; the retry and pacing defaults
// keep a tenant-wide scan inside the API's throttling limits.
const (
	// DefaultTimeout bounds a single HTTP request including body read.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is how many times a transient failure is
	// retried before it is reported.
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay is the first backoff delay; it doubles on
	// each subsequent attempt.
	DefaultRetryBaseDelay = 500 * time.Millisecond

	// DefaultRequestsPerSecond paces outgoing calls.
	DefaultRequestsPerSecond = 4

	// adminWorkspacePageSize is the $top value for the admin groups
	// endpoint, matching its documented maximum.
	adminWorkspacePageSize = 5000
)

// Client is a Power BI REST API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
	logger     *slog.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root. Used for sovereign clouds and
// in tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithMaxRetries bounds retries of transient failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBaseDelay sets the first backoff delay.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryBase = d
	}
}

// WithRateLimit sets the request pacing in requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithClientLogger sets the structured logger.
func WithClientLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client using the given token source.
func NewClient(tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		maxRetries: DefaultMaxRetries,
		retryBase:  DefaultRetryBaseDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// ListWorkspacesOptions controls workspace enumeration.
type ListWorkspacesOptions struct {
	// UseAdminAPI lists every workspace in the tenant via the admin
	// endpoint instead of only workspaces the caller can access.
	UseAdminAPI bool

	// ExcludePersonal drops personal workspaces from the result.
	ExcludePersonal bool

	// CapacityIDs, when non-empty, keeps only workspaces assigned to
	// one of these capacities. Matching is case-insensitive.
	CapacityIDs []string
}

// valueEnvelope is the API's standard collection wrapper.
type valueEnvelope[T any] struct {
	Value []T `json:"value"`
}

// Workspaces lists workspaces per opts.
func (c *Client) Workspaces(ctx context.Context, opts ListWorkspacesOptions) ([]model.Workspace, error) {
	endpoint := c.baseURL + "/groups"
	if opts.UseAdminAPI {
		endpoint = c.baseURL + "/admin/groups?$top=" + strconv.Itoa(adminWorkspacePageSize)
	}

	body, _, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var env valueEnvelope[model.Workspace]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode workspace list: %w", err)
	}

	return filterWorkspaces(env.Value, opts), nil
}

// filterWorkspaces applies the personal-workspace and capacity filters.
func filterWorkspaces(workspaces []model.Workspace, opts ListWorkspacesOptions) []model.Workspace {
	wanted := make(map[string]struct{}, len(opts.CapacityIDs))
	for _, id := range opts.CapacityIDs {
		wanted[strings.ToLower(id)] = struct{}{}
	}

	filtered := make([]model.Workspace, 0, len(workspaces))
	for _, ws := range workspaces {
		if opts.ExcludePersonal && ws.IsPersonal() {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[strings.ToLower(ws.CapacityID)]; !ok {
				continue
			}
		}
		filtered = append(filtered, ws)
	}
	return filtered
}

// Reports lists the reports in a workspace.
func (c *Client) Reports(ctx context.Context, workspaceID string) ([]model.Report, error) {
	endpoint := fmt.Sprintf("%s/groups/%s/reports", c.baseURL, url.PathEscape(workspaceID))
	body, _, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var env valueEnvelope[model.Report]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode report list: %w", err)
	}

	for i := range env.Value {
		env.Value[i].WorkspaceID = workspaceID
	}
	return env.Value, nil
}

// Pages lists the pages of a report. Only names are available; visual
// details require a definition export.
func (c *Client) Pages(ctx context.Context, workspaceID, reportID string) ([]model.Page, error) {
	endpoint := fmt.Sprintf("%s/groups/%s/reports/%s/pages",
		c.baseURL, url.PathEscape(workspaceID), url.PathEscape(reportID))
	body, _, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var env valueEnvelope[model.Page]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode page list: %w", err)
	}
	return env.Value, nil
}

// ExportReport downloads a report's full definition (a PBIX archive).
// A storage-mode restriction surfaces as an *APIError with
// KindExportRestricted.
func (c *Client) ExportReport(ctx context.Context, workspaceID, reportID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/groups/%s/reports/%s/Export",
		c.baseURL, url.PathEscape(workspaceID), url.PathEscape(reportID))
	body, _, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// cloneRequest is the Clone endpoint's request body.
type cloneRequest struct {
	Name              string `json:"name"`
	TargetWorkspaceID string `json:"targetWorkspaceId"` //nolint:tagliatelle // Power BI API field name
}

// cloneResponse is the Clone endpoint's response body.
type cloneResponse struct {
	ID string `json:"id"`
}

// CloneReport duplicates a report into the same workspace under the
// given name and returns the new report's ID.
func (c *Client) CloneReport(ctx context.Context, workspaceID, reportID, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/groups/%s/reports/%s/Clone",
		c.baseURL, url.PathEscape(workspaceID), url.PathEscape(reportID))

	payload, err := json.Marshal(cloneRequest{Name: name, TargetWorkspaceID: workspaceID})
	if err != nil {
		return "", fmt.Errorf("failed to encode clone request: %w", err)
	}

	body, _, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return "", err
	}

	var cr cloneResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("failed to decode clone response: %w", err)
	}
	if cr.ID == "" {
		return "", fmt.Errorf("clone response did not include a report id")
	}
	return cr.ID, nil
}

// DeleteReport deletes a report. Used only to remove analysis clones.
func (c *Client) DeleteReport(ctx context.Context, workspaceID, reportID string) error {
	endpoint := fmt.Sprintf("%s/groups/%s/reports/%s",
		c.baseURL, url.PathEscape(workspaceID), url.PathEscape(reportID))
	_, _, err := c.do(ctx, http.MethodDelete, endpoint, nil)
	return err
}

// get issues a GET request through the retry/pacing machinery.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, http.Header, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil)
}

// do issues one API call with rate limiting and bounded
// exponential-backoff retry of transient failures. The request body is
// passed as bytes so it can be replayed on retry.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, http.Header, error) {
	var lastErr *APIError

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(c.retryBase, attempt, lastErr)
			c.logger.Debug("retrying request",
				"method", method,
				"url", endpoint,
				"attempt", attempt,
				"delay", delay,
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, nil, err
			}
		}

		body, headers, err := c.doOnce(ctx, method, endpoint, payload)
		if err == nil {
			return body, headers, nil
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		lastErr = err
		if !err.Kind.Retryable() {
			return nil, nil, err
		}
	}

	return nil, nil, lastErr
}

// doOnce performs a single paced request.
func (c *Client) doOnce(ctx context.Context, method, endpoint string, payload []byte) ([]byte, http.Header, *APIError) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, transportError(err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, nil, &APIError{Kind: KindUnauthorized, Message: err.Error()}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, nil, transportError(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := classifyResponse(resp.StatusCode, body)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, convErr := strconv.Atoi(ra); convErr == nil {
				apiErr.retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, nil, apiErr
	}

	return body, resp.Header, nil
}

// backoffDelay computes the wait before the given retry attempt.
// A Retry-After hint from the service takes precedence over the
// doubling schedule.
func backoffDelay(base time.Duration, attempt int, lastErr *APIError) time.Duration {
	if lastErr != nil && lastErr.retryAfter > 0 {
		return lastErr.retryAfter
	}
	return base << (attempt - 1)
}

// sleepContext sleeps for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
