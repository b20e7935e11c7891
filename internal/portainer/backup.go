package portainer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const (
	BackupPrefix     = "portainer_backup_"
	backupTimeLayout = "20060102_150405"
	fetchConcurrency = 4
	fullBackupFile   = "stacks_full.json"
	composeDir       = "compose_files"
	summaryFile      = "summary.txt"
	summaryRuleWidth = 50
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// StackBackup is one stack as written to stacks_full.json.
type StackBackup struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	EndpointID     int             `json:"endpoint_id"`
	Status         *int            `json:"status"`
	Type           *int            `json:"type"`
	GitConfig      json.RawMessage `json:"git_config"`
	ComposeContent string          `json:"compose_content"`
}

// Result describes a finished backup directory.
type Result struct {
	Name         string
	Path         string
	Stacks       int
	ComposeFiles int
	SizeBytes    int64
}

// FetchStacks lists the stacks and downloads their compose files, a few at a time. A failed file
// download leaves the content empty.
func FetchStacks(ctx context.Context, src StackSource) ([]StackBackup, error) {
	stacks, err := src.ListStacks(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("found stacks", "count", len(stacks))

	out := make([]StackBackup, len(stacks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, s := range stacks {
		out[i] = StackBackup{
			ID:         s.ID,
			Name:       s.Name,
			EndpointID: s.EndpointID,
			Status:     s.Status,
			Type:       s.Type,
			GitConfig:  s.GitConfig,
		}
		g.Go(func() error {
			content, err := src.StackFile(gctx, s.ID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("could not get file content", "stack", s.Name, "err", err)
				return nil
			}
			out[i].ComposeContent = content
			slog.Info("fetched stack", "stack", s.Name, "endpoint", s.EndpointID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBackup writes stacks into a new portainer_backup_<timestamp> directory under dir.
func CreateBackup(dir string, stacks []StackBackup, now time.Time) (*Result, error) {
	name := BackupPrefix + now.Format(backupTimeLayout)
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Join(path, composeDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	raw, err := json.MarshalIndent(stacks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode stacks: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, fullBackupFile), raw, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", fullBackupFile, err)
	}

	res := &Result{Name: name, Path: path, Stacks: len(stacks)}
	for _, s := range stacks {
		if s.ComposeContent == "" {
			continue
		}
		var doc yaml.Node
		if err := yaml.Unmarshal([]byte(s.ComposeContent), &doc); err != nil {
			slog.Warn("compose file is not valid YAML, saving anyway", "stack", s.Name, "err", err)
		}
		file := filepath.Join(path, composeDir, SanitizeName(s.Name)+".yml")
		if err := os.WriteFile(file, []byte(s.ComposeContent), 0644); err != nil {
			return nil, fmt.Errorf("failed to write compose file for %s: %w", s.Name, err)
		}
		res.ComposeFiles++
	}

	if err := os.WriteFile(filepath.Join(path, summaryFile), []byte(Summary(stacks, now)), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", summaryFile, err)
	}

	res.SizeBytes, err = dirSize(path)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Summary renders summary.txt: totals and stack names grouped by endpoint.
func Summary(stacks []StackBackup, now time.Time) string {
	byEndpoint := make(map[int][]string)
	for _, s := range stacks {
		byEndpoint[s.EndpointID] = append(byEndpoint[s.EndpointID], s.Name)
	}
	endpoints := make([]int, 0, len(byEndpoint))
	for id := range byEndpoint {
		endpoints = append(endpoints, id)
	}
	sort.Ints(endpoints)

	var b strings.Builder
	fmt.Fprintf(&b, "Portainer Backup - %s\n", now.Format(time.RFC3339))
	b.WriteString(strings.Repeat("=", summaryRuleWidth) + "\n\n")
	fmt.Fprintf(&b, "Total stacks: %d\n\n", len(stacks))
	b.WriteString("Stacks by endpoint:\n")
	for _, id := range endpoints {
		names := byEndpoint[id]
		sort.Strings(names)
		fmt.Fprintf(&b, "\n  Endpoint %d:\n", id)
		for _, n := range names {
			fmt.Fprintf(&b, "    - %s\n", n)
		}
	}
	return b.String()
}

// SanitizeName makes a stack name safe to use as a file name.
func SanitizeName(name string) string {
	s := unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "unnamed"
	}
	return s
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure backup: %w", err)
	}
	return size, nil
}
