package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"SupplyRadar/internal/infrastructure/memory"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Manage the external risk signal store",
}

var signalsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Embed and store the signals of a fixture-format YAML file",
	RunE:  runSignalsLoad,
}

var signalsFile string

func init() {
	signalsLoadCmd.Flags().StringVarP(&signalsFile, "file", "f", "", "YAML file with a signals list (required)")
	_ = signalsLoadCmd.MarkFlagRequired("file")

	signalsCmd.AddCommand(signalsLoadCmd)
	rootCmd.AddCommand(signalsCmd)
}

func runSignalsLoad(cmd *cobra.Command, _ []string) error {
	docs, err := memory.LoadFixtures(signalsFile)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	application, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	n, err := application.IngestSignals(cmd.Context(), docs.Signals)
	if err != nil {
		return fmt.Errorf("load signals: %w", err)
	}
	application.Logger().Info("signals stored", "file", signalsFile, "count", n)
	fmt.Fprintf(cmd.OutOrStdout(), "stored %d signal(s)\n", n)
	return nil
}
