// Package state persists the notification debounce cache of the health monitor.
//
// The file maps service -> issue key -> IssueRecord. A key exists only while its condition is
// active, and LastNotified moves only when a notification was delivered.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofrs/flock"
)

// ErrLocked is returned when another run holds the state file.
var ErrLocked = errors.New("state: file is locked by another run")

const lockRetryDelay = 100 * time.Millisecond

type IssueRecord struct {
	Active       bool       `json:"active"`
	Since        Timestamp  `json:"since"`
	LastNotified *Timestamp `json:"last_notified"`
}

type File struct {
	Services         map[string]map[string]IssueRecord `json:"services"`
	LastDailySummary *Timestamp                        `json:"last_daily_summary"`
}

func newFile() File {
	return File{Services: make(map[string]map[string]IssueRecord)}
}

type Manager struct {
	path     string
	cooldown time.Duration
	now      func() time.Time
	lock     *flock.Flock
	data     File
}

type Option func(*Manager)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New returns an unlocked manager over an empty state. Load or Open fill it from disk.
func New(path string, cooldown time.Duration, opts ...Option) *Manager {
	m := &Manager{
		path:     path,
		cooldown: cooldown,
		now:      time.Now,
		data:     newFile(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open locks <path>.lock, waiting until ctx is done, and loads the state file.
func Open(ctx context.Context, path string, cooldown time.Duration, opts ...Option) (*Manager, error) {
	m := New(path, cooldown, opts...)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	m.lock = flock.New(path + ".lock")
	locked, err := m.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to lock state file: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	m.Load()
	return m, nil
}

// Load reads the state file. A missing file leaves an empty state; an unreadable one is logged
// and replaced by an empty state.
func (m *Manager) Load() {
	m.data = newFile()

	raw, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		slog.Warn("could not load state file", "path", m.path, "err", err)
		return
	}

	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		slog.Warn("could not load state file", "path", m.path, "err", err)
		return
	}
	if f.Services == nil {
		f.Services = make(map[string]map[string]IssueRecord)
	}
	m.data = f
}

// Save writes the state atomically.
func (m *Manager) Save() error {
	raw, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), filepath.Base(m.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Close releases the file lock.
func (m *Manager) Close() error {
	if m.lock == nil || !m.lock.Locked() {
		return nil
	}
	return m.lock.Unlock()
}

// ShouldNotify reports whether a notification is due for service/key given the current condition.
func (m *Manager) ShouldNotify(service, key string, hasIssue bool) bool {
	prev, wasIssue := m.issue(service, key)
	if hasIssue != wasIssue {
		return true
	}
	if !hasIssue {
		return false
	}
	if prev.LastNotified == nil {
		return true
	}
	return m.now().Sub(prev.LastNotified.Time) > m.cooldown
}

// UpdateIssue records the current condition. notified marks a delivered notification.
func (m *Manager) UpdateIssue(service, key string, hasIssue, notified bool) {
	issues := m.data.Services[service]

	if !hasIssue {
		if issues != nil {
			delete(issues, key)
			if len(issues) == 0 {
				delete(m.data.Services, service)
			}
		}
		return
	}

	if issues == nil {
		issues = make(map[string]IssueRecord)
		m.data.Services[service] = issues
	}

	now := m.now()
	rec, existed := issues[key]
	if !existed || !rec.Active {
		rec = IssueRecord{Since: Timestamp{Time: now}}
	}
	rec.Active = true
	if notified {
		rec.LastNotified = NewTimestamp(now)
	}
	issues[key] = rec
}

// Issue returns the stored record of service/key.
func (m *Manager) Issue(service, key string) (IssueRecord, bool) {
	return m.issue(service, key)
}

func (m *Manager) issue(service, key string) (IssueRecord, bool) {
	rec, ok := m.data.Services[service][key]
	if !ok || !rec.Active {
		return IssueRecord{}, false
	}
	return rec, true
}

// ShouldSendDailySummary is true when no summary was sent yet or the last one was on an earlier
// calendar day.
func (m *Manager) ShouldSendDailySummary() bool {
	if m.data.LastDailySummary == nil {
		return true
	}
	now := m.now()
	last := m.data.LastDailySummary.In(now.Location())
	ly, lm, ld := last.Date()
	ny, nm, nd := now.Date()
	lastDay := time.Date(ly, lm, ld, 0, 0, 0, 0, now.Location())
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, now.Location())
	return lastDay.Before(today)
}

func (m *Manager) MarkDailySummarySent() {
	m.data.LastDailySummary = NewTimestamp(m.now())
}

// Snapshot returns a copy of the in-memory state.
func (m *Manager) Snapshot() File {
	out := File{Services: make(map[string]map[string]IssueRecord, len(m.data.Services))}
	for svc, issues := range m.data.Services {
		cp := make(map[string]IssueRecord, len(issues))
		for k, v := range issues {
			cp[k] = v
		}
		out.Services[svc] = cp
	}
	if m.data.LastDailySummary != nil {
		out.LastDailySummary = NewTimestamp(m.data.LastDailySummary.Time)
	}
	return out
}
