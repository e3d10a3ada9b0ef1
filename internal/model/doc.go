// Package model defines the core data types shared across vizscan:
// workspaces, reports, extracted visuals, per-report scan results,
// and the derived run summary.
//
// Workspaces and reports are read-only snapshots fetched once per run.
// A ScanResult is mutated only by the analyzer while a report's analysis
// is in progress and becomes immutable once handed to the aggregator.
package model
