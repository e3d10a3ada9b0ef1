package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen based on observed Power BI REST API behavior
// and Microsoft's documented throttling limits where applicable.
const (
	// DefaultBaseURL is the Power BI REST API root for the caller's
	// organization.
	DefaultBaseURL = "https://api.powerbi.com/v1.0/myorg"

	// DefaultTimeout is the per-request HTTP timeout. Definition exports
	// can take a while for large reports, so this is generous.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the number of attempts for retryable API
	// failures (throttling, 5xx, transport errors).
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay is the base delay for exponential backoff
	// between retries. Doubled per attempt unless the service sends a
	// Retry-After hint.
	DefaultRetryBaseDelay = 500 * time.Millisecond

	// DefaultRequestsPerSecond is the client-side rate limit. The Power
	// BI API throttles aggressive callers, so we stay well under the
	// documented limits.
	DefaultRequestsPerSecond = 4

	// DefaultCloneWait is the delay between cloning a report and
	// exporting the clone. A freshly cloned report is not immediately
	// exportable.
	DefaultCloneWait = 2 * time.Second

	// DefaultPollInterval is the delay between tenant scanner job
	// status checks.
	DefaultPollInterval = 5 * time.Second

	// DefaultPollTimeout bounds how long one tenant scanner job may run.
	DefaultPollTimeout = 10 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "vizscan"
)

// Environment variable names for credentials. Secrets are read from
// the environment rather than flags so they stay out of shell history
// and process listings.
const (
	// EnvAccessToken carries a pre-acquired bearer token.
	EnvAccessToken = "VIZSCAN_ACCESS_TOKEN"

	// EnvTenantID carries the Entra tenant ID for client-credential auth.
	EnvTenantID = "VIZSCAN_TENANT_ID"

	// EnvClientID carries the service principal's application ID.
	EnvClientID = "VIZSCAN_CLIENT_ID"

	// EnvClientSecret carries the service principal's secret.
	EnvClientSecret = "VIZSCAN_CLIENT_SECRET"
)

// Config holds all configuration options for vizscan.
// This struct is designed to be populated from CLI flags, the config
// file, and the environment, then passed through the application via
// dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., AuthConfig, OutputConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
// If the configuration grows significantly, consider refactoring into sub-structs.
type Config struct {
	// AccessToken is a pre-acquired Power BI bearer token.
	// When set, client-credential fields are ignored.
	AccessToken string

	// TenantID is the Entra tenant for client-credential authentication.
	TenantID string

	// ClientID is the service principal application ID.
	ClientID string

	// ClientSecret is the service principal secret.
	ClientSecret string

	// BaseURL is the Power BI REST API root. Overridable for sovereign
	// clouds (e.g., api.powerbigov.us).
	BaseURL string

	// UseAdminAPI switches workspace enumeration to the admin endpoint,
	// which sees every workspace in the tenant rather than only those
	// the caller is a member of. Requires tenant admin rights.
	UseAdminAPI bool

	// ExcludePersonal skips personal ("My Workspace") workspaces during
	// enumeration. Only meaningful with UseAdminAPI.
	ExcludePersonal bool

	// CapacityIDs restricts the audit to workspaces on the given
	// capacities. Empty means all workspaces.
	CapacityIDs []string

	// OutputPath is the CSV results file path. When empty, a timestamped
	// file name is generated in the current directory.
	OutputPath string

	// MarkdownSummary enables Markdown summary output instead of the
	// human-readable text summary.
	MarkdownSummary bool

	// JSONSummary enables JSON summary output instead of the
	// human-readable text summary. Mutually exclusive with
	// MarkdownSummary.
	JSONSummary bool

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// MaxRetries is the number of attempts for retryable API failures.
	MaxRetries int

	// RequestsPerSecond is the client-side rate limit.
	RequestsPerSecond float64

	// CloneWait is the delay between cloning a report and exporting
	// the clone.
	CloneWait time.Duration

	// PollInterval is the tenant scanner status polling interval.
	PollInterval time.Duration

	// PollTimeout bounds each tenant scanner job's duration.
	PollTimeout time.Duration

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only info and above are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .vizscan in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// DBDir is the directory path for storing the SQLite history database.
	// When set, run results are saved for historical comparison.
	// Defaults to XDG data directory (~/.local/share/vizscan on Linux).
	DBDir string

	// SaveToDB indicates whether to save run results to the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, retry
// counts). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           DefaultTimeout,
		MaxRetries:        DefaultMaxRetries,
		RequestsPerSecond: DefaultRequestsPerSecond,
		CloneWait:         DefaultCloneWait,
		PollInterval:      DefaultPollInterval,
		PollTimeout:       DefaultPollTimeout,
	}
}

// HasClientCredentials reports whether the service principal fields
// are all present.
func (c *Config) HasClientCredentials() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}

// XDGDataDir returns the XDG data directory for vizscan.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/vizscan
// On macOS: ~/Library/Application Support/vizscan
// On Windows: %LOCALAPPDATA%\vizscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for vizscan.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/vizscan
// On macOS: ~/Library/Application Support/vizscan
// On Windows: %APPDATA%\vizscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any API calls begin.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// We need either a ready token or a full set of client credentials
	if c.AccessToken == "" && !c.HasClientCredentials() {
		return ErrNoCredentials
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// Retries must be non-negative; zero means one attempt, no retries
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	// Rate limit must be positive; zero would block every request
	if c.RequestsPerSecond <= 0 {
		return ErrInvalidRateLimit
	}

	// Clone wait must be non-negative
	if c.CloneWait < 0 {
		return ErrInvalidCloneWait
	}

	// MarkdownSummary and JSONSummary are mutually exclusive
	if c.MarkdownSummary && c.JSONSummary {
		return ErrConflictingSummaryFormats
	}

	// Capacity filtering only works through the admin enumeration path
	if len(c.CapacityIDs) > 0 && !c.UseAdminAPI {
		return ErrCapacityFilterNeedsAdmin
	}

	return nil
}
