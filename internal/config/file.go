package config

import "time"

// File represents the structure of the .vizscan configuration file.
// Every field is optional; file values fill in whatever flags and the
// environment left unset. Secrets deliberately have no file fields so
// they never end up committed alongside project configuration.
type File struct {
	// BaseURL overrides the Power BI REST API root.
	BaseURL string `yaml:"baseUrl,omitempty"`

	// TenantID is the Entra tenant for client-credential authentication.
	TenantID string `yaml:"tenantId,omitempty"`

	// ClientID is the service principal application ID.
	ClientID string `yaml:"clientId,omitempty"`

	// UseAdminAPI enables admin-scope workspace enumeration.
	UseAdminAPI bool `yaml:"useAdminApi,omitempty"`

	// ExcludePersonal skips personal workspaces during enumeration.
	ExcludePersonal bool `yaml:"excludePersonal,omitempty"`

	// CapacityIDs restricts the audit to the given capacities.
	CapacityIDs []string `yaml:"capacityIds,omitempty"`

	// Output is the CSV results file path.
	Output string `yaml:"output,omitempty"`

	// Timeout is the per-request HTTP timeout (e.g. "60s").
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MaxRetries is the number of attempts for retryable API failures.
	MaxRetries int `yaml:"maxRetries,omitempty"`

	// RequestsPerSecond is the client-side rate limit.
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`

	// CloneWait is the delay between cloning a report and exporting it.
	CloneWait time.Duration `yaml:"cloneWait,omitempty"`

	// DBDir is the directory for the SQLite history database.
	DBDir string `yaml:"dbDir,omitempty"`
}

// ApplyTo copies file values into cfg for every field cfg still holds
// at its default. Flags and environment variables always win over the
// file.
func (cf *File) ApplyTo(cfg *Config) {
	if cf.BaseURL != "" && cfg.BaseURL == DefaultBaseURL {
		cfg.BaseURL = cf.BaseURL
	}
	if cf.TenantID != "" && cfg.TenantID == "" {
		cfg.TenantID = cf.TenantID
	}
	if cf.ClientID != "" && cfg.ClientID == "" {
		cfg.ClientID = cf.ClientID
	}
	if cf.UseAdminAPI {
		cfg.UseAdminAPI = true
	}
	if cf.ExcludePersonal {
		cfg.ExcludePersonal = true
	}
	if len(cf.CapacityIDs) > 0 && len(cfg.CapacityIDs) == 0 {
		cfg.CapacityIDs = cf.CapacityIDs
	}
	if cf.Output != "" && cfg.OutputPath == "" {
		cfg.OutputPath = cf.Output
	}
	if cf.Timeout > 0 && cfg.Timeout == DefaultTimeout {
		cfg.Timeout = cf.Timeout
	}
	if cf.MaxRetries > 0 && cfg.MaxRetries == DefaultMaxRetries {
		cfg.MaxRetries = cf.MaxRetries
	}
	if cf.RequestsPerSecond > 0 && cfg.RequestsPerSecond == DefaultRequestsPerSecond {
		cfg.RequestsPerSecond = cf.RequestsPerSecond
	}
	if cf.CloneWait > 0 && cfg.CloneWait == DefaultCloneWait {
		cfg.CloneWait = cf.CloneWait
	}
	if cf.DBDir != "" && cfg.DBDir == "" {
		cfg.DBDir = cf.DBDir
		cfg.SaveToDB = true
	}
}
