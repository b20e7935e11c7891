package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/snadboy/homelab-scripts/internal/config"
	"github.com/snadboy/homelab-scripts/internal/gdrive"
	"github.com/snadboy/homelab-scripts/internal/metrics"
	"github.com/snadboy/homelab-scripts/internal/portainer"
	"github.com/snadboy/homelab-scripts/internal/remote"
)

func newPortainerBackupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "portainer-backup",
		Short: "Export all Portainer stacks to a timestamped backup and apply retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return runPortainerBackup(cmd.Context(), cmd.OutOrStdout(), a, time.Now)
		},
	}
}

func runPortainerBackup(ctx context.Context, w io.Writer, a *app, now func() time.Time) error {
	cfg := a.cfg.Portainer
	rule := strings.Repeat("=", 50)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Portainer Stack Backup")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Timestamp: %s\n", now().Format(time.RFC3339))
	fmt.Fprintf(w, "Backup location: %s\n\n", cfg.BackupDir)

	client, err := portainer.NewClient(a.cfg.Services.Portainer, a.http)
	if err != nil {
		return err
	}

	target, err := newRemoteTarget(ctx, a.cfg)
	if err != nil {
		slog.Error("remote target unavailable, keeping the backup local", "type", cfg.Remote.Type, "err", err)
	}

	recorder := metrics.NewPrometheusRecorder(nil)
	report, err := portainer.Run(ctx, client, portainer.Options{
		BackupDir:     cfg.BackupDir,
		RetentionDays: cfg.RetentionDays,
		MaxBackups:    cfg.MaxBackups,
		Remote:        target,
		Recorder:      recorder,
		Now:           now,
	})
	if cfg.MetricsFile != "" {
		if werr := recorder.WriteTextfile(cfg.MetricsFile); werr != nil {
			slog.Warn("failed to write metrics", "file", cfg.MetricsFile, "err", werr)
		}
	}
	if errors.Is(err, portainer.ErrNoStacks) {
		fmt.Fprintln(w, red("No stacks found!"))
		return err
	}
	if err != nil {
		return err
	}

	res := report.Backup
	fmt.Fprintf(w, "Found %d stacks, saved %d compose files (%s)\n", res.Stacks, res.ComposeFiles, humanize.Bytes(uint64(res.SizeBytes)))
	if len(report.Removed) == 0 {
		fmt.Fprintln(w, "No old backups to clean up")
	} else {
		for _, name := range report.Removed {
			fmt.Fprintf(w, "  Removed: %s\n", name)
		}
		fmt.Fprintf(w, "Cleaned up %d old backup(s)\n", len(report.Removed))
	}
	if target != nil {
		if report.RemoteFailure != nil {
			fmt.Fprintf(w, "%s %s: %v\n", red("Remote copy failed"), target.Name(), report.RemoteFailure)
		} else {
			fmt.Fprintf(w, "Uploaded %s to %s", report.Archive, target.Name())
			if len(report.RemotePruned) > 0 {
				fmt.Fprintf(w, " (pruned %d)", len(report.RemotePruned))
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintln(w, green("Backup completed successfully!"))
	fmt.Fprintf(w, "Location: %s\n", res.Path)
	fmt.Fprintf(w, "Retention: %d days / max %d backups\n", cfg.RetentionDays, cfg.MaxBackups)
	fmt.Fprintln(w, rule)
	return nil
}

// newRemoteTarget builds the configured remote. It returns nil when no remote is configured.
func newRemoteTarget(ctx context.Context, cfg *config.Config) (remote.Target, error) {
	rc := cfg.Portainer.Remote
	switch rc.Type {
	case "gdrive":
		paths := cfg.GDrive.CredentialsPaths
		if rc.CredentialsFile != "" {
			paths = []string{rc.CredentialsFile}
		}
		credentials, err := gdrive.FindCredentials(paths)
		if err != nil {
			return nil, err
		}
		oauthCfg, err := gdrive.LoadOAuthConfig(credentials)
		if err != nil {
			return nil, err
		}
		svc, err := gdrive.NewService(ctx, oauthCfg, rc.TokenFile)
		if err != nil {
			return nil, err
		}
		return remote.NewGDrive(svc, rc.Folder), nil
	case "s3":
		s3, err := remote.NewS3(ctx, remote.S3Options{
			Bucket:    rc.Bucket,
			Prefix:    rc.Prefix,
			Region:    rc.Region,
			Endpoint:  rc.Endpoint,
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, nil
	}
}
