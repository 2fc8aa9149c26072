// Package main provides the supplyradar CLI: one-shot runs, operator
// feedback, the HTTP API and scheduled runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"SupplyRadar/internal/app"
	"SupplyRadar/internal/config"
	"SupplyRadar/internal/logging"
	"SupplyRadar/internal/usecase"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "supplyradar",
	Short:         "Stockout risk pipeline",
	Long:          "supplyradar screens inventory cover, correlates external risk signals and produces a ranked, feedback-aware risk decision.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config (default $"+config.ConfigPathEnv+")")
}

// exitCode distinguishes pipeline failures from usage and setup errors.
func exitCode(err error) int {
	var stageErr *usecase.StageError
	if errors.As(err, &stageErr) {
		return 2
	}
	return 1
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

func openApp(ctx context.Context, cfg config.Config) (*app.Application, error) {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	return app.New(ctx, cfg, logger)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		var stageErr *usecase.StageError
		if !errors.As(err, &stageErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}
