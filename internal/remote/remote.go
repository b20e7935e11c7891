// Package remote copies backup archives to off-site storage and keeps the newest few.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Object is a stored archive.
type Object struct {
	ID       string
	Name     string
	Size     int64
	Modified time.Time
}

// Target is a storage backend for archives.
type Target interface {
	Name() string
	Upload(ctx context.Context, localPath, name string) error
	List(ctx context.Context) ([]Object, error)
	Delete(ctx context.Context, obj Object) error
}

// Prune deletes the objects whose name starts with prefix beyond the newest keep. It returns the
// deleted names.
func Prune(ctx context.Context, t Target, prefix string, keep int) ([]string, error) {
	objects, err := t.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: list: %w", t.Name(), err)
	}

	var matching []Object
	for _, o := range objects {
		if strings.HasPrefix(o.Name, prefix) {
			matching = append(matching, o)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].Modified.Equal(matching[j].Modified) {
			return matching[i].Name > matching[j].Name
		}
		return matching[i].Modified.After(matching[j].Modified)
	})

	if keep < 1 {
		keep = 1
	}
	var deleted []string
	for i := keep; i < len(matching); i++ {
		o := matching[i]
		if err := t.Delete(ctx, o); err != nil {
			return deleted, fmt.Errorf("%s: delete %s: %w", t.Name(), o.Name, err)
		}
		slog.Info("pruned remote backup", "target", t.Name(), "name", o.Name)
		deleted = append(deleted, o.Name)
	}
	return deleted, nil
}
