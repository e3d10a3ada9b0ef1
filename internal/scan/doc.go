// Package scan drives a tenant audit. The Analyzer resolves one
// report to a ScanResult by working through the export strategies
// (direct export, clone-then-export, page-listing fallback), the
// Runner walks workspaces and reports sequentially, the TenantRunner
// does the same from an asynchronous tenant-scanner result, and the
// Aggregator accumulates results and flushes them incrementally to a
// row sink.
package scan
