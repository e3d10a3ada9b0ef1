package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vizscan/vizscan/internal/config"
	"github.com/vizscan/vizscan/internal/database"
	"github.com/vizscan/vizscan/internal/report"
)

// NewHistoryCmd creates the history command.
// This command lists and displays audit runs stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and display past audit runs",
		Long: `History displays audit runs stored in the local database.

Every scan and tenantscan run is recorded unless --no-history was given.
Without flags this command lists all stored runs, newest first. Use --run
or --latest to print the full summary of one run.

Examples:
  # List all stored runs
  vizscan history

  # Show the most recent run
  vizscan history --latest

  # Show a specific run by ID (use the list to see available IDs)
  vizscan history --run 5

  # Show a run as Markdown
  vizscan history --run 5 --markdown`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	// Run selection flags
	cmd.Flags().Int64P("run", "r", 0,
		"Show the run with this ID")
	cmd.Flags().BoolP("latest", "l", false,
		"Show the most recent run")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output the run summary in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the run summary in Markdown format")

	// Database location
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	runID, err := cmd.Flags().GetInt64("run")
	if err != nil {
		return err
	}
	latest, err := cmd.Flags().GetBool("latest")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate flag combinations before opening the database
	if jsonOutput && markdownOutput {
		return errors.New("--json and --markdown are mutually exclusive")
	}
	if runID > 0 && latest {
		return errors.New("--run and --latest are mutually exclusive")
	}

	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if latest {
		meta, err := db.LatestRun(ctx)
		if err != nil {
			return fmt.Errorf("failed to find latest run: %w", err)
		}
		if meta == nil {
			return errors.New("no runs found in the history database")
		}
		return showRun(ctx, db, *meta, jsonOutput, markdownOutput)
	}

	if runID > 0 {
		meta, err := findRun(ctx, db, runID)
		if err != nil {
			return err
		}
		return showRun(ctx, db, meta, jsonOutput, markdownOutput)
	}

	return listRunHistory(ctx, db)
}

// findRun locates run metadata by ID.
func findRun(ctx context.Context, db *database.HistoryDB, runID int64) (database.RunMetadata, error) {
	runs, err := db.ListRuns(ctx)
	if err != nil {
		return database.RunMetadata{}, fmt.Errorf("failed to list runs: %w", err)
	}
	for _, meta := range runs {
		if meta.ID == runID {
			return meta, nil
		}
	}
	return database.RunMetadata{}, fmt.Errorf("run with ID %d not found (use 'vizscan history' to list runs)", runID)
}

// listRunHistory lists all stored runs, newest first.
func listRunHistory(ctx context.Context, db *database.HistoryDB) error {
	runs, err := db.ListRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found in the history database.")
		fmt.Println("\nUse 'vizscan scan' or 'vizscan tenantscan' to audit a tenant.")
		return nil
	}

	fmt.Printf("Audit history (%d runs):\n\n", len(runs))
	fmt.Printf("  %-6s  %-20s  %-8s  %-8s  %-10s  %s\n",
		"ID", "Date", "Reports", "Custom", "DirectLake", "Cleanup Issues")
	fmt.Println("  " + strings.Repeat("-", 70))

	for _, meta := range runs {
		fmt.Printf("  %-6d  %-20s  %-8d  %-8d  %-10d  %d\n",
			meta.ID,
			meta.StartedAt.Format("2006-01-02 15:04:05"),
			meta.Summary.TotalReports,
			meta.Summary.ReportsWithCustomVisuals,
			meta.Summary.DirectLakeReports,
			meta.Summary.CleanupFailures,
		)
	}

	fmt.Println("\nUse 'vizscan history --run <id>' to see the full summary of a run.")

	return nil
}

// showRun prints the full summary of one stored run.
func showRun(ctx context.Context, db *database.HistoryDB, meta database.RunMetadata, jsonOutput, markdownOutput bool) error {
	results, err := db.RunResults(ctx, meta.ID)
	if err != nil {
		return fmt.Errorf("failed to load run %d: %w", meta.ID, err)
	}

	var writer report.Writer
	switch {
	case jsonOutput:
		writer = report.NewJSONWriter(os.Stdout, report.WithVersion(getVersion()))
	case markdownOutput:
		writer = report.NewMarkdownWriter(os.Stdout)
	default:
		writer = report.NewSummaryWriter(os.Stdout)
	}

	_, err = writer.Write(meta.Summary, results)
	return err
}
