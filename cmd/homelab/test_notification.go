package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/snadboy/homelab-scripts/internal/notifier"
)

func newTestNotificationCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notification [channel]",
		Short: "Send a test message to every notification channel, or to one by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			var channel string
			if len(args) == 1 {
				channel = args[0]
			}
			configured := make([]string, 0, len(a.cfg.NotificationChannels))
			for _, nc := range a.cfg.NotificationChannels {
				configured = append(configured, nc.Name)
			}
			notifiers, err := notifier.InitializeNotifiers(a.cfg.NotificationChannels, a.http)
			if err != nil {
				return fmt.Errorf("failed to initialize notifiers: %w", err)
			}
			return testNotification(cmd.Context(), cmd.OutOrStdout(), notifiers, configured, channel)
		},
	}
}

// testNotification sends one message through the named channel, or through all of them when
// channel is empty. It fails when nothing was delivered.
func testNotification(ctx context.Context, w io.Writer, notifiers map[string]notifier.Notifier, configured []string, channel string) error {
	msg := notifier.Message{
		Title:    "Homelab Test Notification",
		Body:     fmt.Sprintf("This is a test message sent at %s.", time.Now().Format(time.RFC3339)),
		Priority: notifier.PriorityNormal,
	}

	if channel != "" {
		n, ok := notifiers[channel]
		if !ok {
			for _, name := range configured {
				if name == channel {
					return fmt.Errorf("channel '%s' was not successfully initialized", channel)
				}
			}
			if len(configured) == 0 {
				return fmt.Errorf("channel '%s' not found and no notification channels configured", channel)
			}
			return fmt.Errorf("channel '%s' not found in configuration. Available channels: %s",
				channel, strings.Join(configured, ", "))
		}
		if err := n.Send(ctx, msg); err != nil {
			return fmt.Errorf("failed to send test notification to channel '%s': %w", channel, err)
		}
		fmt.Fprintf(w, "%s Test notification sent to channel: %s\n", green("OK"), channel)
		return nil
	}

	if len(notifiers) == 0 {
		return fmt.Errorf("no notification channels were successfully initialized")
	}

	names := make([]string, 0, len(notifiers))
	for name := range notifiers {
		names = append(names, name)
	}
	sort.Strings(names)

	successCount := 0
	for _, name := range names {
		if err := notifiers[name].Send(ctx, msg); err != nil {
			slog.Error("test notification failed", "channel", name, "err", err)
			fmt.Fprintf(w, "%s %s: %v\n", red("FAILED"), name, err)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", green("OK"), name)
		successCount++
	}
	fmt.Fprintf(w, "Test completed: %d/%d channels successful\n", successCount, len(notifiers))
	if successCount == 0 {
		return fmt.Errorf("all notification channels failed")
	}
	return nil
}
