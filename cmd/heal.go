// File: cmd/heal.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcastell/healctl/internal/audit"
	"github.com/rcastell/healctl/internal/backup"
	"github.com/rcastell/healctl/internal/config"
	"github.com/rcastell/healctl/internal/healing"
	"github.com/rcastell/healctl/internal/llmclient"
	"github.com/rcastell/healctl/internal/mutate"
	"github.com/rcastell/healctl/internal/observability"
	"github.com/rcastell/healctl/internal/ratelimit"
	"github.com/rcastell/healctl/internal/reporting"
	"github.com/rcastell/healctl/internal/results"
	"github.com/rcastell/healctl/internal/verify"
)

var (
	inputPath string
	autoFix   bool
)

func newHealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heal [test title filter]",
		Short: "Analyze failing tests and optionally apply verified fixes.",
		Long: `Reads the runner's JSON results, classifies each failure, and asks the
analysis service for a corrected test file. Without --auto-fix the run stops
after validating candidates; with it, candidates are applied atomically,
re-verified, and rolled back when the re-run still fails.

An optional positional argument restricts the run to tests whose title or file
contains the given substring.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			if err := cfg.Validate(); err != nil {
				return err
			}

			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}
			return runHeal(cmd.Context(), cfg, observability.GetLogger(), filter)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "test-results.json", "path to the runner's JSON results document")
	cmd.Flags().BoolVarP(&autoFix, "auto-fix", "a", false, "apply validated fixes and verify them by re-running each test")
	return cmd
}

func init() {
	rootCmd.AddCommand(newHealCmd())
}

// runHeal wires the pipeline and drives one full run. A completed run exits
// zero even when fixes failed; the report and exit path only go non-zero for
// startup problems where no test was processed.
func runHeal(ctx context.Context, cfg *config.Config, logger *zap.Logger, filter string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read results document: %w", err)
	}
	failures, err := results.Parse(data)
	if err != nil {
		return err
	}
	failures = filterFailures(failures, filter)
	if len(failures) == 0 {
		logger.Info("No failing tests to heal.", zap.String("input", inputPath), zap.String("filter", filter))
		fmt.Println("No failing tests to heal.")
		return nil
	}

	auditor, err := audit.NewLogger(cfg.Healing.AuditLogPath, logger)
	if err != nil {
		return err
	}
	defer auditor.Close()

	backups, err := backup.NewStore(cfg.Healing.BackupDir, cfg.Healing.BackupRetentionDays, cfg.Healing.MaxBackupsPerFile, auditor, logger)
	if err != nil {
		return err
	}

	limiter := ratelimit.NewWindow(cfg.Analysis.RateLimitPerMinute, time.Minute)
	client, err := llmclient.NewGeminiClient(cfg.Analysis, limiter, logger)
	if err != nil {
		return err
	}

	orch := healing.NewOrchestrator(
		cfg,
		client,
		mutate.NewMutator(backups, auditor, logger),
		verify.NewRunner(cfg.Verify.Command, cfg.Verify.Timeout, logger),
		auditor,
		backups,
		autoFix,
		logger,
	)

	report, err := orch.Run(ctx, failures)
	if err != nil {
		return err
	}

	if err := backups.Prune(); err != nil {
		logger.Warn("Backup pruning failed.", zap.Error(err))
	}

	if written, err := reporting.WriteErrorReport(cfg.Healing.ErrorReportPath, report, logger); err != nil {
		logger.Warn("Failed to write error report.", zap.Error(err))
	} else if written {
		fmt.Printf("Unfixed tests recorded in %s\n", cfg.Healing.ErrorReportPath)
	}

	reporting.PrintSummary(os.Stdout, report, autoFix)
	return nil
}

// filterFailures keeps failures whose title or file contains the substring.
func filterFailures(failures []results.RawFailure, filter string) []results.RawFailure {
	if filter == "" {
		return failures
	}
	var kept []results.RawFailure
	for _, f := range failures {
		if strings.Contains(f.Title, filter) || strings.Contains(f.File, filter) {
			kept = append(kept, f)
		}
	}
	return kept
}
