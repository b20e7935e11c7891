package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/imroc/req/v3"

	"github.com/snadboy/homelab-scripts/internal/config"
	"github.com/snadboy/homelab-scripts/internal/httpclient"
)

type TelegramNotifier struct {
	name   string
	config config.TelegramChannelConfig
	client *req.Client
}

func NewTelegramNotifier(name string, cfg config.TelegramChannelConfig, httpOpts httpclient.Options) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram notifier '%s' is missing bot_token (from ENV) or chat_id", name)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}
	httpOpts.BaseURL = strings.TrimRight(cfg.APIURL, "/")
	return &TelegramNotifier{
		name:   name,
		config: cfg,
		client: httpclient.New(httpOpts),
	}, nil
}

func (tn *TelegramNotifier) Name() string {
	return tn.name
}

// Send delivers the message with MarkdownV2; the title is bold, everything is escaped.
func (tn *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	text := "*" + escapeTextForMarkdownV2(msg.Title) + "*\n" + escapeTextForMarkdownV2(msg.Body)

	payload := map[string]any{
		"chat_id":    tn.config.ChatID,
		"text":       text,
		"parse_mode": "MarkdownV2",
	}
	if msg.Priority < PriorityNormal {
		payload["disable_notification"] = true
	}

	resp, err := tn.client.R().
		SetContext(ctx).
		SetBodyJsonMarshal(payload).
		Post("/bot" + tn.config.BotToken + "/sendMessage")
	return httpclient.Check(resp, err, "telegram sendMessage")
}

// escapeTextForMarkdownV2 escapes text for Telegram MarkdownV2.
// Telegram requires escaping: _ * [ ] ( ) ~ ` > # + - = | { } . !
func escapeTextForMarkdownV2(text string) string {
	const escapeChars = "_*[]()~`>#+-=|{}.!\\"
	var result strings.Builder
	for _, r := range text {
		if strings.ContainsRune(escapeChars, r) {
			result.WriteRune('\\')
		}
		result.WriteRune(r)
	}
	return result.String()
}
