package portainer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type backupDir struct {
	name    string
	modTime time.Time
}

// Cleanup removes local backups beyond maxBackups or older than retentionDays. The newest backup
// is always kept. It returns the removed directory names.
func Cleanup(dir string, retentionDays, maxBackups int, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []backupDir
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), BackupPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		backups = append(backups, backupDir{name: e.Name(), modTime: info.ModTime()})
	}
	sort.Slice(backups, func(i, j int) bool {
		if backups[i].modTime.Equal(backups[j].modTime) {
			return backups[i].name > backups[j].name
		}
		return backups[i].modTime.After(backups[j].modTime)
	})

	var removed []string
	for i, b := range backups {
		if i == 0 {
			continue
		}
		reason := ""
		switch {
		case i >= maxBackups:
			reason = "max backups exceeded"
		case ageDays(now, b.modTime) > retentionDays:
			reason = fmt.Sprintf("older than %d days", retentionDays)
		default:
			continue
		}
		slog.Info("removing old backup", "backup", b.name, "reason", reason)
		if err := os.RemoveAll(filepath.Join(dir, b.name)); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", b.name, err)
		}
		removed = append(removed, b.name)
	}
	return removed, nil
}

// ageDays counts whole days.
func ageDays(now, t time.Time) int {
	return int(now.Sub(t).Hours() / 24)
}
