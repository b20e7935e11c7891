// Package monitor checks the media services, resumes a paused SABnzbd queue and notifies about
// problems through the debounce state.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/snadboy/homelab-scripts/internal/metrics"
	"github.com/snadboy/homelab-scripts/internal/notifier"
)

// Issue keys stored in the state file.
const (
	IssueUnreachable   = "unreachable"
	IssuePaused        = "paused"
	IssuePausedLowDisk = "paused_low_disk"
	IssueResumeFailed  = "resume_failed"
	IssueHealth        = "health_issues"
)

const dailySummaryTitle = "ARR Services Daily Summary"

// ErrUnhealthy is returned by callers when a run found at least one issue.
var ErrUnhealthy = errors.New("issues found")

// QueueService is the download client the monitor remediates.
type QueueService interface {
	Key() string
	Name() string
	CheckQueue(ctx context.Context) SABnzbdStatus
	Resume(ctx context.Context) error
}

// Debouncer decides when an issue is worth a notification.
type Debouncer interface {
	ShouldNotify(service, key string, hasIssue bool) bool
	UpdateIssue(service, key string, hasIssue, notified bool)
	ShouldSendDailySummary() bool
	MarkDailySummarySent()
}

// SummaryData is passed to the daily summary template.
type SummaryData struct {
	AllHealthy bool
	Services   []string
	Issues     []string
	Actions    []string
}

type Options struct {
	DryRun          bool
	SummaryTemplate string
	Recorder        metrics.Recorder
}

type Engine struct {
	queue      QueueService
	services   []Checker
	state      Debouncer
	dispatcher *notifier.Dispatcher
	opts       Options
	now        func() time.Time
}

func NewEngine(queue QueueService, services []Checker, st Debouncer, dispatcher *notifier.Dispatcher, opts Options) *Engine {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &Engine{
		queue:      queue,
		services:   services,
		state:      st,
		dispatcher: dispatcher,
		opts:       opts,
		now:        time.Now,
	}
}

// Report is the result of one run.
type Report struct {
	StartedAt     time.Time
	SABnzbd       SABnzbdStatus
	Services      []ServiceStatus
	Issues        []string
	Actions       []string
	Notifications int
	SummarySent   bool
	DryRun        bool
}

func (r *Report) Healthy() bool {
	return len(r.Issues) == 0
}

// Run performs one pass over every service. It never fails: unreachable services and failed
// notifications end up in the report.
func (e *Engine) Run(ctx context.Context) *Report {
	report := &Report{StartedAt: e.now(), DryRun: e.opts.DryRun}

	e.checkQueue(ctx, report)
	for _, svc := range e.services {
		e.checkService(ctx, svc, report)
	}
	e.dailySummary(ctx, report)

	e.opts.Recorder.ObserveMonitorRun(report.StartedAt, report.Healthy())
	return report
}

func (e *Engine) checkQueue(ctx context.Context, report *Report) {
	key, name := e.queue.Key(), e.queue.Name()
	slog.Info("checking service", "service", name)

	st := e.queue.CheckQueue(ctx)
	report.SABnzbd = st
	report.Services = append(report.Services, st.ServiceStatus)
	e.opts.Recorder.ObserveService(key, st.Reachable, len(st.Issues))

	if !st.Reachable {
		slog.Warn("service unreachable", "service", name, "reason", strings.Join(st.Issues, "; "))
		report.Issues = append(report.Issues, name+": Unreachable")
		e.raise(ctx, report, key, IssueUnreachable, notifier.Message{
			Title:    name + " Unreachable",
			Body:     name + " is not responding. Container may need restart.",
			Priority: notifier.PriorityCritical,
		})
		return
	}
	e.clear(key, IssueUnreachable)
	e.opts.Recorder.ObserveSABnzbd(st.DiskSpaceGB, st.QueueCount, st.Paused)
	slog.Info("queue status", "service", name, "status", st.QueueStatus, "items", st.QueueCount,
		"disk_gb", fmt.Sprintf("%.1f", st.DiskSpaceGB))

	if !st.Paused {
		e.clear(key, IssuePaused)
		e.clear(key, IssuePausedLowDisk)
		e.clear(key, IssueResumeFailed)
		return
	}

	if !st.DiskSpaceOK {
		slog.Warn("queue paused with low disk space, not resuming", "service", name, "disk_gb", st.DiskSpaceGB)
		report.Issues = append(report.Issues, fmt.Sprintf("%s: Paused (low disk: %.1f GB)", name, st.DiskSpaceGB))
		e.clear(key, IssuePaused)
		e.clear(key, IssueResumeFailed)
		e.raise(ctx, report, key, IssuePausedLowDisk, notifier.Message{
			Title: name + " Paused - Low Disk Space",
			Body: fmt.Sprintf("%s is paused due to low disk space (%.1f GB). Manual intervention required.",
				name, st.DiskSpaceGB),
			Priority: notifier.PriorityHigh,
		})
		return
	}

	if e.opts.DryRun {
		slog.Info("dry run: not resuming paused queue", "service", name)
		report.Issues = append(report.Issues, name+": Paused (dry run, not resumed)")
		e.clear(key, IssuePausedLowDisk)
		e.clear(key, IssueResumeFailed)
		return
	}

	slog.Info("queue paused, attempting auto-resume", "service", name)
	if err := e.queue.Resume(ctx); err != nil {
		slog.Error("auto-resume failed", "service", name, "err", err)
		report.Issues = append(report.Issues, name+": Paused (resume failed)")
		e.clear(key, IssuePaused)
		e.clear(key, IssuePausedLowDisk)
		e.raise(ctx, report, key, IssueResumeFailed, notifier.Message{
			Title:    name + " Resume Failed",
			Body:     fmt.Sprintf("%s is paused and could not be resumed: %v", name, err),
			Priority: notifier.PriorityHigh,
		})
		return
	}

	slog.Info("queue resumed", "service", name)
	report.Actions = append(report.Actions, name+": Auto-resumed")
	e.send(ctx, report, notifier.Message{
		Title:    name + " Auto-Resumed",
		Body:     fmt.Sprintf("%s was paused and has been automatically resumed. Disk space: %.1f GB", name, st.DiskSpaceGB),
		Priority: notifier.PriorityNormal,
	})
	e.clear(key, IssuePaused)
	e.clear(key, IssuePausedLowDisk)
	e.clear(key, IssueResumeFailed)
}

func (e *Engine) checkService(ctx context.Context, svc Checker, report *Report) {
	key, name := svc.Key(), svc.Name()
	slog.Info("checking service", "service", name)

	st := svc.Check(ctx)
	report.Services = append(report.Services, st)
	e.opts.Recorder.ObserveService(key, st.Reachable, len(st.Issues))

	if !st.Reachable {
		slog.Warn("service unreachable", "service", name, "reason", strings.Join(st.Issues, "; "))
		report.Issues = append(report.Issues, name+": Unreachable")
		e.raise(ctx, report, key, IssueUnreachable, notifier.Message{
			Title:    name + " Unreachable",
			Body:     name + " is not responding. Container may need restart.",
			Priority: notifier.PriorityCritical,
		})
		return
	}
	e.clear(key, IssueUnreachable)

	version := st.Version
	if version == "" {
		version = "unknown"
	}
	slog.Info("service ok", "service", name, "version", version)

	if len(st.Issues) == 0 {
		e.clear(key, IssueHealth)
		return
	}
	for _, issue := range st.Issues {
		slog.Warn("health issue", "service", name, "issue", issue)
		report.Issues = append(report.Issues, name+": "+issue)
	}
	e.raise(ctx, report, key, IssueHealth, notifier.Message{
		Title:    name + " Health Issues",
		Body:     strings.Join(st.Issues, "\n"),
		Priority: notifier.PriorityElevated,
	})
}

func (e *Engine) dailySummary(ctx context.Context, report *Report) {
	if !e.state.ShouldSendDailySummary() {
		return
	}

	data := SummaryData{
		AllHealthy: report.Healthy(),
		Issues:     report.Issues,
		Actions:    report.Actions,
	}
	for _, st := range report.Services {
		data.Services = append(data.Services, st.Name)
	}
	body, err := notifier.RenderTemplate("daily_summary", e.opts.SummaryTemplate, data)
	if err != nil {
		slog.Error("failed to render daily summary", "err", err)
		return
	}

	priority := notifier.PriorityNormal
	if data.AllHealthy {
		priority = notifier.PriorityLow
	}
	if e.send(ctx, report, notifier.Message{Title: dailySummaryTitle, Body: body, Priority: priority}) {
		e.state.MarkDailySummarySent()
		report.SummarySent = true
		slog.Info("daily summary sent")
	}
}

// raise records an active issue and notifies when the debounce rule allows it.
func (e *Engine) raise(ctx context.Context, report *Report, service, key string, msg notifier.Message) {
	if !e.state.ShouldNotify(service, key, true) {
		slog.Debug("notification suppressed by cooldown", "service", service, "issue", key)
		e.state.UpdateIssue(service, key, true, false)
		return
	}
	delivered := e.send(ctx, report, msg)
	e.state.UpdateIssue(service, key, true, delivered)
}

func (e *Engine) clear(service, key string) {
	e.state.UpdateIssue(service, key, false, false)
}

func (e *Engine) send(ctx context.Context, report *Report, msg notifier.Message) bool {
	if e.opts.DryRun {
		slog.Info("dry run: notification not sent", "title", msg.Title, "priority", msg.Priority)
		return false
	}
	delivered := e.dispatcher.Notify(ctx, msg)
	e.opts.Recorder.IncNotification(delivered)
	if delivered {
		report.Notifications++
	}
	return delivered
}
