// Package portainer exports Portainer stacks into timestamped local backups.
package portainer

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/imroc/req/v3"

	"github.com/snadboy/homelab-scripts/internal/config"
	"github.com/snadboy/homelab-scripts/internal/httpclient"
)

// Stack is an entry of GET /api/stacks.
type Stack struct {
	ID         int             `json:"Id"`
	Name       string          `json:"Name"`
	EndpointID int             `json:"EndpointId"`
	Status     *int            `json:"Status"`
	Type       *int            `json:"Type"`
	GitConfig  json.RawMessage `json:"GitConfig"`
}

type stackFileResponse struct {
	StackFileContent string `json:"StackFileContent"`
}

// StackSource is the subset of the Portainer API a backup needs.
type StackSource interface {
	ListStacks(ctx context.Context) ([]Stack, error)
	StackFile(ctx context.Context, id int) (string, error)
}

type Client struct {
	client *req.Client
}

// NewClient returns config.ErrNotConfigured when the URL or API key is missing.
func NewClient(endpoint config.Endpoint, opts httpclient.Options) (*Client, error) {
	if !endpoint.Configured(true) {
		return nil, fmt.Errorf("PORTAINER_URL or PORTAINER_API_KEY: %w", config.ErrNotConfigured)
	}
	opts.BaseURL = endpoint.URL
	c := httpclient.New(opts).SetCommonHeader("X-API-Key", endpoint.APIKey)
	return &Client{client: c}, nil
}

func (c *Client) ListStacks(ctx context.Context) ([]Stack, error) {
	var stacks []Stack
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&stacks).
		Get("/api/stacks")
	if err := httpclient.Check(resp, err, "list stacks"); err != nil {
		return nil, err
	}
	return stacks, nil
}

func (c *Client) StackFile(ctx context.Context, id int) (string, error) {
	var file stackFileResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&file).
		Get(fmt.Sprintf("/api/stacks/%d/file", id))
	if err := httpclient.Check(resp, err, fmt.Sprintf("stack %d file", id)); err != nil {
		return "", err
	}
	return file.StackFileContent, nil
}
