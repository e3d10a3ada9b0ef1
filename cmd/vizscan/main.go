// Package main provides the entry point for the vizscan CLI.
//
// vizscan audits Power BI tenants for custom visual usage. It walks
// every reachable workspace, acquires each report's definition, and
// reports which reports embed marketplace or organizational visuals.
//
// Usage:
//
//	vizscan scan
//	vizscan tenantscan
//
// See --help for all available options.
package main

// main is the entry point for vizscan.
func main() {
	Execute()
}
