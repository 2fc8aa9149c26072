package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and print the decision as JSON",
	RunE:  runOnce,
}

var (
	runThreshold float64
	runTopK      int
	runTimeout   time.Duration
)

func init() {
	runCmd.Flags().Float64Var(&runThreshold, "threshold", 4, "Weeks-of-cover screening threshold")
	runCmd.Flags().IntVar(&runTopK, "top-k", 3, "Evidence snippets kept per entity")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 15*time.Second, "Timeout for each external call")

	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Pipeline.Threshold = runThreshold
	}
	if cmd.Flags().Changed("top-k") {
		cfg.Correlator.TopK = runTopK
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Pipeline.CallTimeout = runTimeout
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	state, err := application.Run(ctx)
	if err != nil {
		if stageErr := state.Err(); stageErr != nil {
			_ = enc.Encode(stageErr)
		}
		return err
	}
	decision, _ := state.Decision()
	return enc.Encode(decision)
}
