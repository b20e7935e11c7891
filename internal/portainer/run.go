package portainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/snadboy/homelab-scripts/internal/metrics"
	"github.com/snadboy/homelab-scripts/internal/remote"
)

var ErrNoStacks = errors.New("no stacks found")

type Options struct {
	BackupDir     string
	RetentionDays int
	MaxBackups    int
	// Remote is optional. When set the backup is archived and uploaded.
	Remote   remote.Target
	Recorder metrics.Recorder
	Now      func() time.Time
}

type Report struct {
	Backup        *Result
	Removed       []string
	Archive       string
	RemotePruned  []string
	RemoteFailure error
}

// Run fetches every stack, writes a new backup and applies retention locally and remotely. A
// remote failure is reported but does not fail the run: the local backup already exists.
func Run(ctx context.Context, src StackSource, opts Options) (*Report, error) {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	started := opts.Now()

	report, err := run(ctx, src, opts, started)
	elapsed := opts.Now().Sub(started)
	if err != nil {
		opts.Recorder.ObserveBackup(0, 0, 0, elapsed, false)
		return nil, err
	}
	opts.Recorder.ObserveBackup(report.Backup.Stacks, report.Backup.ComposeFiles, report.Backup.SizeBytes, elapsed, true)
	return report, nil
}

func run(ctx context.Context, src StackSource, opts Options, now time.Time) (*Report, error) {
	stacks, err := FetchStacks(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stacks: %w", err)
	}
	if len(stacks) == 0 {
		return nil, ErrNoStacks
	}

	res, err := CreateBackup(opts.BackupDir, stacks, now)
	if err != nil {
		return nil, err
	}
	slog.Info("backup written", "path", res.Path, "stacks", res.Stacks, "compose_files", res.ComposeFiles)

	report := &Report{Backup: res}
	report.Removed, err = Cleanup(opts.BackupDir, opts.RetentionDays, opts.MaxBackups, now)
	if err != nil {
		return nil, err
	}
	if len(report.Removed) == 0 {
		slog.Info("no old backups to clean up")
	}

	if opts.Remote != nil {
		report.RemoteFailure = pushRemote(ctx, opts, res, report)
		if report.RemoteFailure != nil {
			slog.Error("remote copy failed", "target", opts.Remote.Name(), "err", report.RemoteFailure)
		}
	}
	return report, nil
}

func pushRemote(ctx context.Context, opts Options, res *Result, report *Report) error {
	archive := filepath.Join(os.TempDir(), res.Name+".tar.gz")
	if err := Archive(res.Path, archive); err != nil {
		return err
	}
	defer os.Remove(archive)
	report.Archive = filepath.Base(archive)

	if err := opts.Remote.Upload(ctx, archive, report.Archive); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	slog.Info("uploaded backup", "target", opts.Remote.Name(), "name", report.Archive)

	pruned, err := remote.Prune(ctx, opts.Remote, BackupPrefix, opts.MaxBackups)
	report.RemotePruned = pruned
	return err
}
