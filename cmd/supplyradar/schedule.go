package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline now and then on every scheduler interval",
	RunE:  runSchedule,
}

var scheduleInterval time.Duration

func init() {
	scheduleCmd.Flags().DurationVar(&scheduleInterval, "interval", 24*time.Hour, "Time between runs")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("interval") {
		cfg.Scheduler.Interval = scheduleInterval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	sched, driver := application.Scheduler()
	if err := sched.Start(ctx); err != nil {
		return err
	}
	application.Logger().Info("scheduler started",
		"interval", cfg.Scheduler.Interval.String(),
		"next_run", time.Now().Add(cfg.Scheduler.Interval).In(cfg.Scheduler.Location()).Format(time.RFC3339))

	select {
	case <-ctx.Done():
	case <-driver.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.CallTimeout*4)
	defer cancel()
	return sched.Stop(stopCtx)
}
