package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vizscan/vizscan/internal/config"
	"github.com/vizscan/vizscan/internal/database"
	"github.com/vizscan/vizscan/internal/log"
	"github.com/vizscan/vizscan/internal/model"
	"github.com/vizscan/vizscan/internal/powerbi"
	"github.com/vizscan/vizscan/internal/report"
	"github.com/vizscan/vizscan/internal/scan"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Audit reports by exporting their definitions",
		Long: `Scan audits every reachable workspace for custom visual usage.

For each report it exports the definition and inventories the visuals found
inside. Reports whose storage mode blocks export (DirectLake) are cloned and
the clone is exported instead; the clone is deleted afterwards. When both
paths fail, the report falls back to a page count with no visual detail.

Credentials come from flags, the environment, or the config file:
  VIZSCAN_ACCESS_TOKEN                   pre-acquired bearer token
  VIZSCAN_TENANT_ID, VIZSCAN_CLIENT_ID,
  VIZSCAN_CLIENT_SECRET                  service principal credentials

Examples:
  # Audit every workspace you are a member of
  vizscan scan

  # Audit the whole tenant via the admin API, skipping personal workspaces
  vizscan scan --admin --exclude-personal

  # Restrict the audit to specific capacities
  vizscan scan --admin --capacity aaaa-bbbb --capacity cccc-dddd

  # Write results to a named file and print a Markdown summary
  vizscan scan -o results.csv --markdown

  # Use a custom configuration file
  vizscan scan -c myconfig.yaml`,
		Args: cobra.NoArgs,
		RunE: runScanCmd,
	}

	addAuditFlags(cmd)

	cmd.Flags().DurationP("clone-wait", "w", config.DefaultCloneWait,
		"Delay between cloning a report and exporting the clone")

	return cmd
}

// addAuditFlags registers the flags shared by the scan and tenantscan
// commands.
func addAuditFlags(cmd *cobra.Command) {
	// Workspace enumeration flags
	cmd.Flags().BoolP("admin", "a", false,
		"Enumerate every workspace in the tenant via the admin API (requires admin rights)")
	cmd.Flags().Bool("exclude-personal", false,
		"Skip personal (My Workspace) workspaces (admin API only)")
	cmd.Flags().StringSlice("capacity", nil,
		"Restrict the audit to workspaces on this capacity ID (repeatable, admin API only)")

	// API tuning flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each API request")
	cmd.Flags().Int("max-retries", config.DefaultMaxRetries,
		"Number of retries for throttled or failed API requests")
	cmd.Flags().Float64("rps", config.DefaultRequestsPerSecond,
		"Maximum API requests per second")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .vizscan in current or home directory)")

	// Output flags
	cmd.Flags().StringP("output", "o", "",
		"Write CSV results to specified file path (default: timestamped file in current directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Print the run summary as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the run summary as Markdown (mutually exclusive with --json)")

	// History flags
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the history database")
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, _ []string) error {
	// Build config from flags, config file, and environment
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with credential masking
	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runScan(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags, the config
// file, and the environment. Precedence: flags > environment > file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	// Get flag values
	var err error

	cfg.UseAdminAPI, err = cmd.Flags().GetBool("admin")
	if err != nil {
		return nil, err
	}

	cfg.ExcludePersonal, err = cmd.Flags().GetBool("exclude-personal")
	if err != nil {
		return nil, err
	}

	cfg.CapacityIDs, err = cmd.Flags().GetStringSlice("capacity")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MaxRetries, err = cmd.Flags().GetInt("max-retries")
	if err != nil {
		return nil, err
	}

	cfg.RequestsPerSecond, err = cmd.Flags().GetFloat64("rps")
	if err != nil {
		return nil, err
	}

	cfg.OutputPath, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.JSONSummary, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownSummary, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Command-specific tuning flags; only present on the command that
	// uses them
	if f := cmd.Flags().Lookup("clone-wait"); f != nil {
		cfg.CloneWait, err = cmd.Flags().GetDuration("clone-wait")
		if err != nil {
			return nil, err
		}
	}
	if f := cmd.Flags().Lookup("poll-interval"); f != nil {
		cfg.PollInterval, err = cmd.Flags().GetDuration("poll-interval")
		if err != nil {
			return nil, err
		}
	}
	if f := cmd.Flags().Lookup("poll-timeout"); f != nil {
		cfg.PollTimeout, err = cmd.Flags().GetDuration("poll-timeout")
		if err != nil {
			return nil, err
		}
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}

	// Load defaults from the config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently skip when no file is found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cf.ApplyTo(cfg)
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	// Credentials come from the environment when flags left them empty
	config.ApplyEnv(cfg)

	cfg.Verbose = getVerboseFlag(cmd)

	// Save to the history database unless explicitly disabled
	if noHistory {
		cfg.SaveToDB = false
	} else {
		cfg.SaveToDB = true
		if cfg.DBDir == "" {
			cfg.DBDir = config.XDGDataDir()
		}
	}

	return cfg, nil
}

// setupLogger creates a structured logger based on verbosity setting.
// The logger masks tokens and client secrets before they reach the
// output.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewSecureLogger(os.Stderr, verbose)
}

// buildTokenSource selects the token source from the configured
// credentials. A pre-acquired token wins over client credentials.
func buildTokenSource(cfg *config.Config) powerbi.TokenSource {
	if cfg.AccessToken != "" {
		return powerbi.NewStaticTokenSource(cfg.AccessToken)
	}
	return powerbi.NewClientCredentialsTokenSource(cfg.TenantID, cfg.ClientID, cfg.ClientSecret)
}

// newAPIClient creates the Power BI client from the configuration.
func newAPIClient(cfg *config.Config, tokens powerbi.TokenSource, logger *slog.Logger) *powerbi.Client {
	return powerbi.NewClient(tokens,
		powerbi.WithBaseURL(cfg.BaseURL),
		powerbi.WithTimeout(cfg.Timeout),
		powerbi.WithMaxRetries(cfg.MaxRetries),
		powerbi.WithRateLimit(cfg.RequestsPerSecond),
		powerbi.WithClientLogger(logger),
	)
}

// listOptions converts the configuration into workspace enumeration
// options.
func listOptions(cfg *config.Config) powerbi.ListWorkspacesOptions {
	return powerbi.ListWorkspacesOptions{
		UseAdminAPI:     cfg.UseAdminAPI,
		ExcludePersonal: cfg.ExcludePersonal,
		CapacityIDs:     cfg.CapacityIDs,
	}
}

// resolveOutputPath returns the CSV results path, generating a
// timestamped name in the current directory when none was configured.
func resolveOutputPath(cfg *config.Config) string {
	if cfg.OutputPath != "" {
		return cfg.OutputPath
	}
	return fmt.Sprintf("pbi_custom_visuals_report_%s.csv", time.Now().Format("20060102_150405"))
}

// createOutputFile creates the CSV results file with secure permissions.
// Results may reveal tenant structure, so only the owner can read them.
func createOutputFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// writeSummary prints the run summary in the requested format.
func writeSummary(cfg *config.Config, output io.Writer, summary model.RunSummary, results []model.ScanResult) error {
	var writer report.Writer
	switch {
	case cfg.JSONSummary:
		writer = report.NewJSONWriter(output, report.WithVersion(getVersion()))
	case cfg.MarkdownSummary:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSummaryWriter(output, report.WithVerbose(cfg.Verbose))
	}

	_, err := writer.Write(summary, results)
	return err
}

// saveRun records the run in the history database if enabled.
func saveRun(ctx context.Context, cfg *config.Config, summary model.RunSummary, results []model.ScanResult, logger *slog.Logger) error {
	if !cfg.SaveToDB {
		return nil
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	runID, err := db.SaveRun(ctx, summary, results)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	logger.Info("run saved to history database", "runID", runID, "dir", cfg.DBDir)
	return nil
}

// runScan executes the export-based audit.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tokens := buildTokenSource(cfg)

	// Fail fast on bad credentials before any enumeration work
	if _, err := tokens.Token(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	client := newAPIClient(cfg, tokens, logger)

	outputPath := resolveOutputPath(cfg)
	f, err := createOutputFile(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	aggregator := scan.NewAggregator(report.NewCSVSink(f))
	analyzer := scan.NewAnalyzer(client,
		scan.WithAnalyzerLogger(logger),
		scan.WithCloneWait(cfg.CloneWait),
	)
	runner := scan.NewRunner(client, analyzer, aggregator, logger)

	fmt.Println("Starting custom visual audit...")
	startTime := time.Now()

	summary, err := runner.Run(ctx, listOptions(cfg))
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	elapsed := time.Since(startTime)
	fmt.Printf("Audit completed in %s\n\n", elapsed.Round(time.Millisecond))

	if err := writeSummary(cfg, os.Stdout, summary, aggregator.Results()); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	fmt.Printf("\nResults written to %s\n", outputPath)

	return saveRun(ctx, cfg, summary, aggregator.Results(), logger)
}
