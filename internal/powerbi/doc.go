// Package powerbi is a minimal client for the Power BI REST API
// covering the calls vizscan needs: workspace/report/page enumeration,
// report definition export, report cloning and deletion, and the
// asynchronous tenant scanner job.
//
// Every call returns either a decoded result or an *APIError carrying
// a closed FailureKind, so callers branch on failure classes instead
// of inspecting response text. Transient failures (429, 5xx,
// transport errors) are retried with bounded exponential backoff
// before being reported, and all requests are paced by a client-side
// rate limiter.
package powerbi
