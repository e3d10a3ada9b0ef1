package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoCredentials is returned when neither an access token nor a
	// full set of client credentials is configured.
	ErrNoCredentials = errors.New("no credentials: set " + EnvAccessToken + " or " + EnvTenantID + ", " + EnvClientID + " and " + EnvClientSecret)

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxRetries is returned when the retry count is negative.
	// Use 0 for a single attempt without retries.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidRateLimit is returned when the requests-per-second limit
	// is not positive. A zero limit would block every request forever.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be positive")

	// ErrInvalidCloneWait is returned when the clone wait is negative.
	// Use 0 to export clones immediately after creation.
	ErrInvalidCloneWait = errors.New("invalid clone wait: must be non-negative")

	// ErrConflictingSummaryFormats is returned when both --markdown and
	// --json are specified. Only one summary format can be used at a time.
	ErrConflictingSummaryFormats = errors.New("conflicting summary formats: --json and --markdown cannot be used together")

	// ErrCapacityFilterNeedsAdmin is returned when capacity filtering is
	// requested without the admin enumeration API. The non-admin groups
	// endpoint does not expose capacity assignments reliably.
	ErrCapacityFilterNeedsAdmin = errors.New("capacity filtering requires --admin")
)
