package monitor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"

	"github.com/snadboy/homelab-scripts/internal/config"
	"github.com/snadboy/homelab-scripts/internal/httpclient"
)

const notConfigured = "Not configured"

// Checker is a service that can report its health.
type Checker interface {
	Key() string
	Name() string
	Check(ctx context.Context) ServiceStatus
}

type versionResponse struct {
	Version string `json:"version"`
}

type arrHealthEntry struct {
	Source  string `json:"source"`
	Type    string `json:"type"`
	Message string `json:"message"`
	WikiURL string `json:"wikiUrl"`
}

// ArrChecker checks Sonarr, Radarr and Prowlarr through system/status and health.
type ArrChecker struct {
	key        string
	name       string
	apiVersion string
	endpoint   config.Endpoint
	client     *req.Client
}

func NewArrChecker(key, name, apiVersion string, endpoint config.Endpoint, opts httpclient.Options) *ArrChecker {
	opts.BaseURL = endpoint.URL
	return &ArrChecker{
		key:        key,
		name:       name,
		apiVersion: apiVersion,
		endpoint:   endpoint,
		client:     httpclient.New(opts),
	}
}

func (c *ArrChecker) Key() string  { return c.key }
func (c *ArrChecker) Name() string { return c.name }

func (c *ArrChecker) Check(ctx context.Context) ServiceStatus {
	st := ServiceStatus{Key: c.key, Name: c.name}
	if !c.endpoint.Configured(true) {
		st.Issues = append(st.Issues, notConfigured)
		return st
	}

	var status versionResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.endpoint.APIKey).
		SetSuccessResult(&status).
		Get(fmt.Sprintf("/api/%s/system/status", c.apiVersion))
	if err := httpclient.Check(resp, err, "system status"); err != nil {
		st.Issues = append(st.Issues, "Connection error: "+err.Error())
		return st
	}
	st.Reachable = true
	st.Version = status.Version

	var health []arrHealthEntry
	resp, err = c.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.endpoint.APIKey).
		SetSuccessResult(&health).
		Get(fmt.Sprintf("/api/%s/health", c.apiVersion))
	if err := httpclient.Check(resp, err, "health"); err != nil {
		st.Issues = append(st.Issues, "Connection error: "+err.Error())
		return st
	}
	for _, h := range health {
		typ, msg := h.Type, h.Message
		if typ == "" {
			typ = "unknown"
		}
		if msg == "" {
			msg = "Unknown issue"
		}
		st.Issues = append(st.Issues, fmt.Sprintf("[%s] %s", typ, msg))
	}
	return st
}

// OverseerrChecker only verifies the status endpoint answers.
type OverseerrChecker struct {
	endpoint config.Endpoint
	client   *req.Client
}

func NewOverseerrChecker(endpoint config.Endpoint, opts httpclient.Options) *OverseerrChecker {
	opts.BaseURL = endpoint.URL
	return &OverseerrChecker{endpoint: endpoint, client: httpclient.New(opts)}
}

func (c *OverseerrChecker) Key() string  { return "overseerr" }
func (c *OverseerrChecker) Name() string { return "Overseerr" }

func (c *OverseerrChecker) Check(ctx context.Context) ServiceStatus {
	st := ServiceStatus{Key: c.Key(), Name: c.Name()}
	if !c.endpoint.Configured(true) {
		st.Issues = append(st.Issues, notConfigured)
		return st
	}

	var status versionResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.endpoint.APIKey).
		SetSuccessResult(&status).
		Get("/api/v1/status")
	if err := httpclient.Check(resp, err, "status"); err != nil {
		st.Issues = append(st.Issues, "Connection error: "+err.Error())
		return st
	}
	st.Reachable = true
	st.Version = status.Version
	return st
}

// AgregarrChecker has no API to query; any answer below 500 counts as up.
type AgregarrChecker struct {
	endpoint config.Endpoint
	client   *req.Client
}

func NewAgregarrChecker(endpoint config.Endpoint, opts httpclient.Options) *AgregarrChecker {
	return &AgregarrChecker{endpoint: endpoint, client: httpclient.New(opts)}
}

func (c *AgregarrChecker) Key() string  { return "agregarr" }
func (c *AgregarrChecker) Name() string { return "Agregarr" }

func (c *AgregarrChecker) Check(ctx context.Context) ServiceStatus {
	st := ServiceStatus{Key: c.Key(), Name: c.Name()}
	if !c.endpoint.Configured(false) {
		st.Issues = append(st.Issues, notConfigured)
		return st
	}

	resp, err := c.client.R().SetContext(ctx).Get(c.endpoint.URL)
	if err != nil {
		st.Issues = append(st.Issues, "Connection error: "+err.Error())
		return st
	}
	st.Reachable = resp.StatusCode < http.StatusInternalServerError
	if !st.Reachable {
		st.Issues = append(st.Issues, fmt.Sprintf("Server error: status %d", resp.StatusCode))
	}
	return st
}

// DefaultServices returns the checkers run after SABnzbd, in report order.
func DefaultServices(eps config.ServiceEndpoints, opts httpclient.Options) []Checker {
	return []Checker{
		NewArrChecker("sonarr", "Sonarr", "v3", eps.Sonarr, opts),
		NewArrChecker("radarr", "Radarr", "v3", eps.Radarr, opts),
		NewArrChecker("prowlarr", "Prowlarr", "v1", eps.Prowlarr, opts),
		NewOverseerrChecker(eps.Overseerr, opts),
		NewAgregarrChecker(eps.Agregarr, opts),
	}
}
