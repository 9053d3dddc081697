package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	raereport "rae-agent/agents/rae-report"
	"rae-agent/shared/config"
	"rae-agent/shared/logging"
	"rae-agent/shared/scheduler"
)

var (
	once       bool
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "rae-report",
	Short: "Daily rig telemetry health (RAE) report",
	Long: `rae-report polls the WellData API for every selected rig, classifies the
health of its sensor channels, collects the latest morning report and mails
the result as an xlsx workbook.

Without --once it runs on the configured cron schedule and serves /health,
/status and /metrics.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().BoolVar(&once, "once", false, "run a single report and exit")
	rootCmd.Flags().StringVar(&configFile, "config", "", "path to config.yaml (overrides CONFIG_FILE)")
}

func run(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
			return fmt.Errorf("failed to set config path: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// Create context that responds to signals
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agent := raereport.NewRAEAgent(cfg, logger)
	s := scheduler.New(cfg, agent, logger)

	if once {
		logger.Info("Running once")
		if err := agent.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize agent: %w", err)
		}
		if err := s.RunOnce(ctx); err != nil {
			return fmt.Errorf("failed to run: %w", err)
		}
		return nil
	}

	logger.Info("Starting scheduler", zap.String("schedule", cfg.Schedule))
	if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler failed: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
