package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/snadboy/homelab-scripts/internal/metrics"
	"github.com/snadboy/homelab-scripts/internal/monitor"
	"github.com/snadboy/homelab-scripts/internal/notifier"
	"github.com/snadboy/homelab-scripts/internal/state"
)

func newArrHealthCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "arr-health",
		Short: "Check the media services, resume a paused SABnzbd queue and send notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return runArrHealth(cmd.Context(), cmd.OutOrStdout(), a, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Check only: never resume, never notify, never save state")
	return cmd
}

func runArrHealth(ctx context.Context, w io.Writer, a *app, dryRun bool) error {
	cfg := a.cfg

	st, err := state.Open(ctx, cfg.Monitor.StateFile, cfg.Monitor.NotifyCooldown)
	if err != nil {
		return err
	}
	defer st.Close()

	notifiers, err := notifier.InitializeNotifiers(cfg.NotificationChannels, a.http)
	if err != nil {
		return fmt.Errorf("failed to initialize notifiers: %w", err)
	}

	dispatcher := notifier.NewDispatcher(notifiers)
	slog.Info("notification channels initialized", "count", dispatcher.Len())

	recorder := metrics.NewPrometheusRecorder(nil)
	engine := monitor.NewEngine(
		monitor.NewSABnzbd(cfg.Services.SABnzbd, cfg.Monitor.MinDiskSpaceGB, a.http),
		monitor.DefaultServices(cfg.Services, a.http),
		st,
		dispatcher,
		monitor.Options{
			DryRun:          dryRun,
			SummaryTemplate: cfg.Templates.DailySummary,
			Recorder:        recorder,
		},
	)

	report := engine.Run(ctx)
	report.Print(w)

	if !dryRun {
		if err := st.Save(); err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}
	}
	if cfg.Monitor.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.Monitor.MetricsFile); err != nil {
			slog.Warn("failed to write metrics", "file", cfg.Monitor.MetricsFile, "err", err)
		}
	}

	if !report.Healthy() {
		return monitor.ErrUnhealthy
	}
	return nil
}
