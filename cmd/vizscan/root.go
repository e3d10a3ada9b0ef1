// Package main provides the entry point for the vizscan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for vizscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vizscan",
		Short: "Audit Power BI tenants for custom visual usage",
		Long: `vizscan audits Power BI tenants for custom visual usage.
It enumerates workspaces, acquires each report's definition, and inventories
the visuals found inside, flagging marketplace and organizational visuals.

By default, vizscan exports each report's definition directly. Reports whose
storage mode blocks export are cloned and the clone is exported instead.
Use the tenantscan command for the admin scanner API path, which needs no
exports at all.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewTenantScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
