package notifier

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	gotexttemplate "text/template"

	"github.com/snadboy/homelab-scripts/internal/config"
	"github.com/snadboy/homelab-scripts/internal/httpclient"
)

// Gotify-style priorities used across the tools.
const (
	PriorityLow      = 3
	PriorityNormal   = 5
	PriorityElevated = 6
	PriorityHigh     = 7
	PriorityCritical = 8
)

// Message is what every channel delivers: a title, a plain-text body and a priority.
type Message struct {
	Title    string
	Body     string
	Priority int
}

// Notifier is the interface for all notification channel types.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Name() string // Returns the configured channel name
}

// RenderTemplate executes a text/template against data. Missing fields are errors.
func RenderTemplate(templateName string, templateStr string, data any) (string, error) {
	tmpl, err := gotexttemplate.New(templateName).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse notification template '%s': %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute notification template '%s': %w", templateName, err)
	}
	return buf.String(), nil
}

// InitializeNotifiers builds one Notifier per configured channel. Channels with incomplete
// settings are logged and skipped so one broken channel does not silence the others.
func InitializeNotifiers(channels []config.NotificationChannelConfig, httpOpts httpclient.Options) (map[string]Notifier, error) {
	notifiers := make(map[string]Notifier)
	for _, ncCfg := range channels {
		var instance Notifier
		var err error
		switch ncCfg.Type {
		case "gotify":
			gotifyCfg, convErr := config.GetGotifyChannelConfig(ncCfg)
			if convErr != nil {
				slog.Warn("skipping gotify channel", "channel", ncCfg.Name, "err", convErr)
				continue
			}
			instance, err = NewGotifyNotifier(ncCfg.Name, *gotifyCfg, httpOpts)
		case "email":
			emailCfg, convErr := config.GetEmailChannelConfig(ncCfg)
			if convErr != nil {
				slog.Warn("skipping email channel", "channel", ncCfg.Name, "err", convErr)
				continue
			}
			instance, err = NewEmailNotifier(ncCfg.Name, *emailCfg)
		case "telegram":
			telegramCfg, convErr := config.GetTelegramChannelConfig(ncCfg)
			if convErr != nil {
				slog.Warn("skipping telegram channel", "channel", ncCfg.Name, "err", convErr)
				continue
			}
			instance, err = NewTelegramNotifier(ncCfg.Name, *telegramCfg, httpOpts)
		case "stdout":
			instance, err = NewStdoutNotifier(ncCfg.Name)
		default:
			slog.Warn("unsupported notification channel type", "channel", ncCfg.Name, "type", ncCfg.Type)
			continue
		}

		if err != nil {
			slog.Warn("failed to initialize notifier", "channel", ncCfg.Name, "type", ncCfg.Type, "err", err)
			continue
		}
		if _, exists := notifiers[ncCfg.Name]; exists {
			return nil, fmt.Errorf("duplicate notification channel name defined: %s", ncCfg.Name)
		}
		notifiers[ncCfg.Name] = instance
		slog.Debug("initialized notifier", "channel", ncCfg.Name, "type", ncCfg.Type)
	}
	return notifiers, nil
}

// Dispatcher fans a message out to every channel.
type Dispatcher struct {
	notifiers []Notifier
}

func NewDispatcher(notifiers map[string]Notifier) *Dispatcher {
	names := make([]string, 0, len(notifiers))
	for name := range notifiers {
		names = append(names, name)
	}
	sort.Strings(names)

	d := &Dispatcher{}
	for _, name := range names {
		d.notifiers = append(d.notifiers, notifiers[name])
	}
	return d
}

func (d *Dispatcher) Len() int {
	return len(d.notifiers)
}

// Notify reports whether at least one channel accepted the message.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) bool {
	if len(d.notifiers) == 0 {
		slog.Warn("notifications not configured, skipping", "title", msg.Title)
		return false
	}

	delivered := false
	for _, n := range d.notifiers {
		if err := n.Send(ctx, msg); err != nil {
			slog.Error("failed to send notification", "channel", n.Name(), "title", msg.Title, "err", err)
			continue
		}
		slog.Info("notification sent", "channel", n.Name(), "title", msg.Title)
		delivered = true
	}
	return delivered
}
