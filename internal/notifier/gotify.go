package notifier

import (
	"context"
	"fmt"

	"github.com/imroc/req/v3"

	"github.com/snadboy/homelab-scripts/internal/config"
	"github.com/snadboy/homelab-scripts/internal/httpclient"
)

type GotifyNotifier struct {
	name   string
	config config.GotifyChannelConfig
	client *req.Client
}

type gotifyMessage struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

func NewGotifyNotifier(name string, cfg config.GotifyChannelConfig, httpOpts httpclient.Options) (*GotifyNotifier, error) {
	if cfg.URL == "" || cfg.Token == "" {
		return nil, fmt.Errorf("gotify notifier '%s' is missing url or token (from ENV)", name)
	}
	httpOpts.BaseURL = cfg.URL
	return &GotifyNotifier{
		name:   name,
		config: cfg,
		client: httpclient.New(httpOpts),
	}, nil
}

func (gn *GotifyNotifier) Name() string {
	return gn.name
}

// Send posts the message to {url}/message, authenticated by the application token.
func (gn *GotifyNotifier) Send(ctx context.Context, msg Message) error {
	priority := msg.Priority
	if priority == 0 {
		priority = gn.config.Priority
	}
	if priority == 0 {
		priority = PriorityNormal
	}

	resp, err := gn.client.R().
		SetContext(ctx).
		SetHeader("X-Gotify-Key", gn.config.Token).
		SetBodyJsonMarshal(gotifyMessage{Title: msg.Title, Message: msg.Body, Priority: priority}).
		Post("/message")
	return httpclient.Check(resp, err, "gotify message")
}
