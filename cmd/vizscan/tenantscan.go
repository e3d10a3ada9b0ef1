package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vizscan/vizscan/internal/config"
	"github.com/vizscan/vizscan/internal/report"
	"github.com/vizscan/vizscan/internal/scan"
)

// NewTenantScanCmd creates the tenantscan command.
func NewTenantScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenantscan",
		Short: "Audit the tenant via the admin scanner API",
		Long: `Tenantscan audits the whole tenant through the asynchronous scanner API.

The scanner returns page and visual metadata for every report without
exporting anything, so it is faster and lighter than the scan command, but
it cannot resolve storage modes and needs tenant admin rights. Workspaces
are scanned in batches up to the API's job size limit.

Examples:
  # Scan the whole tenant
  vizscan tenantscan

  # Skip personal workspaces and restrict to one capacity
  vizscan tenantscan --exclude-personal --capacity aaaa-bbbb

  # Poll scanner jobs every 10 seconds
  vizscan tenantscan --poll-interval 10s`,
		Args: cobra.NoArgs,
		RunE: runTenantScanCmd,
	}

	addAuditFlags(cmd)

	cmd.Flags().Duration("poll-interval", config.DefaultPollInterval,
		"Delay between scanner job status checks")
	cmd.Flags().Duration("poll-timeout", config.DefaultPollTimeout,
		"Maximum time to wait for one scanner job")

	return cmd
}

// runTenantScanCmd executes the tenantscan command.
func runTenantScanCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	// The scanner API is admin-only, so admin enumeration is implied
	cfg.UseAdminAPI = true

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runTenantScan(ctx, cfg, logger)
}

// runTenantScan executes the scanner-based audit.
func runTenantScan(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tokens := buildTokenSource(cfg)

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
	runner := scan.NewTenantRunner(client, aggregator,
		scan.WithPollInterval(cfg.PollInterval),
		scan.WithPollTimeout(cfg.PollTimeout),
		scan.WithTenantRunnerLogger(logger),
	)

	fmt.Println("Starting tenant scan...")
	startTime := time.Now()

	summary, err := runner.Run(ctx, listOptions(cfg))
	if err != nil {
		return fmt.Errorf("tenant scan failed: %w", err)
	}

	elapsed := time.Since(startTime)
	fmt.Printf("Tenant scan completed in %s\n\n", elapsed.Round(time.Millisecond))

	if err := writeSummary(cfg, os.Stdout, summary, aggregator.Results()); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	fmt.Printf("\nResults written to %s\n", outputPath)

	return saveRun(ctx, cfg, summary, aggregator.Results(), logger)
}
