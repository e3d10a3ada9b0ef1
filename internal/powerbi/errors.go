package powerbi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// exportRestrictedCode is the error code the export endpoint returns
// when the dataset's storage mode forbids definition export.
const exportRestrictedCode = "ExportData_DisabledForModelWithDirectLakeMode"

// FailureKind classifies an API failure into the closed set the
// orchestrator branches on.
type FailureKind int

const (
	// KindUnknown covers failures that fit no other class.
	KindUnknown FailureKind = iota

	// KindUnauthorized is an authentication failure (401).
	KindUnauthorized

	// KindForbidden is an authorization failure (403): the credential
	// is valid but lacks access to the item.
	KindForbidden

	// KindNotFound is a missing workspace, report, or scan (404).
	KindNotFound

	// KindExportRestricted means definition export is disabled for the
	// dataset's storage mode. Expected, handled by the fallback chain.
	KindExportRestricted

	// KindRateLimited is a throttling response (429). Retryable.
	KindRateLimited

	// KindServerError is a 5xx response. Retryable.
	KindServerError

	// KindTransport is a network-level failure before any response
	// arrived. Retryable.
	KindTransport
)

// String returns a short label for the failure kind.
func (k FailureKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindExportRestricted:
		return "export restricted"
	case KindRateLimited:
		return "rate limited"
	case KindServerError:
		return "server error"
	case KindTransport:
		return "transport failure"
	default:
		return "unknown failure"
	}
}

// Retryable reports whether a failure of this kind may succeed on a
// later attempt.
func (k FailureKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServerError, KindTransport:
		return true
	default:
		return false
	}
}

// APIError is a classified Power BI API failure.
type APIError struct {
	// Kind is the failure class.
	Kind FailureKind

	// StatusCode is the HTTP status, or zero for transport failures.
	StatusCode int

	// Code is the service error code from the response body, if any.
	Code string

	// Message is the service error message or transport error text.
	Message string

	// retryAfter is the service's Retry-After hint, if it sent one.
	retryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("powerbi: %s (status %d, code %s): %s", e.Kind, e.StatusCode, e.Code, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("powerbi: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("powerbi: %s: %s", e.Kind, e.Message)
}

// errorEnvelope mirrors the API's error response body.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// classifyResponse converts a non-2xx response into an *APIError.
func classifyResponse(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	switch {
	case isExportRestrictedBody(apiErr.Code, body):
		apiErr.Kind = KindExportRestricted
	case statusCode == http.StatusUnauthorized:
		apiErr.Kind = KindUnauthorized
	case statusCode == http.StatusForbidden:
		apiErr.Kind = KindForbidden
	case statusCode == http.StatusNotFound:
		apiErr.Kind = KindNotFound
	case statusCode == http.StatusTooManyRequests:
		apiErr.Kind = KindRateLimited
	case statusCode >= 500:
		apiErr.Kind = KindServerError
	default:
		apiErr.Kind = KindUnknown
	}

	return apiErr
}

// isExportRestrictedBody checks for the storage-mode restriction
// marker. The marker has been observed both as the structured error
// code and embedded in plain-text bodies, so both are checked.
func isExportRestrictedBody(code string, body []byte) bool {
	return code == exportRestrictedCode || strings.Contains(string(body), exportRestrictedCode)
}

// transportError wraps a network-level failure as an *APIError.
func transportError(err error) *APIError {
	return &APIError{Kind: KindTransport, Message: err.Error()}
}

// IsExportRestricted reports whether err signals that definition
// export is disabled for the dataset's storage mode.
func IsExportRestricted(err error) bool {
	return isKind(err, KindExportRestricted)
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return isKind(err, KindUnauthorized)
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind.Retryable()
	}
	return false
}

func isKind(err error, kind FailureKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
