// Package main запускает поиск виртуальных туров по сайтам университетов.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tourscan/internal/app"
	"tourscan/internal/config"
	"tourscan/internal/service"
	"tourscan/pkg/logger"
)

var (
	limit           int
	offset          int
	workers         int
	noAI            bool
	includeExisting bool
	dryRun          bool
	reportDir       string

	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "tourscan",
	Short: "Find campus virtual tours on university websites",
	Long: `Scan university websites for Google Maps, Yandex and 2GIS virtual tour links,
check that each link is alive and save the validated tour for every university.

A Markdown report tour-scan-YYYY-MM-DD.md is written to the report directory
(stdout if the directory is not writable). Exit code is 1 if any university failed
and 130 if the run was interrupted.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScan,
}

func init() {
	rootCmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of universities to process")
	rootCmd.Flags().IntVar(&offset, "offset", 0, "Number of universities to skip")
	rootCmd.Flags().IntVar(&workers, "workers", 1, "Universities processed in parallel")
	rootCmd.Flags().BoolVar(&noAI, "no-ai", false, "Disable AI analysis and use heuristics only")
	rootCmd.Flags().BoolVar(&includeExisting, "include-existing", false, "Re-scan universities that already have a tour")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the scan without saving tours")
	rootCmd.Flags().StringVar(&reportDir, "report-dir", "", "Report directory (default REPORT_DIR or ./reports)")
}

func runScan(cmd *cobra.Command, args []string) error {
	if limit < 1 {
		return fmt.Errorf("--limit must be positive")
	}
	if offset < 0 {
		return fmt.Errorf("--offset must not be negative")
	}
	if workers < 1 {
		return fmt.Errorf("--workers must be at least 1")
	}

	log := logger.New()
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if reportDir != "" {
		cfg.ReportDir = reportDir
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory, err := app.NewComponentFactory(cfg, log)
	if err != nil {
		return err
	}

	scanner, err := app.NewScannerWithFactory(ctx, factory, !noAI)
	if err != nil {
		return err
	}
	defer scanner.Close()

	result, err := scanner.Run(ctx, service.Options{
		Limit:        limit,
		Offset:       offset,
		SkipExisting: !includeExisting,
		UseAI:        !noAI,
		Workers:      workers,
		DryRun:       dryRun,
	})
	if err != nil {
		return err
	}

	log.Info("Scan finished",
		zap.String("run_id", result.RunID),
		zap.Int("failed", result.Failed),
		zap.Int("interrupted", result.Interrupted))
	exitCode = result.ExitCode()
	if result.Interrupted > 0 {
		exitCode = 130
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}
