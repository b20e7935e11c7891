package monitor

import (
	"context"
	"log/slog"

	"github.com/imroc/req/v3"

	"github.com/snadboy/homelab-scripts/internal/config"
	"github.com/snadboy/homelab-scripts/internal/httpclient"
)

type sabQueueResponse struct {
	Queue struct {
		Paused     bool       `json:"paused"`
		Status     string     `json:"status"`
		NoOfSlots  flexNumber `json:"noofslots"`
		DiskSpace1 flexNumber `json:"diskspace1"`
	} `json:"queue"`
}

// SABnzbd checks the download queue and can resume it.
type SABnzbd struct {
	endpoint       config.Endpoint
	minDiskSpaceGB float64
	client         *req.Client
}

func NewSABnzbd(endpoint config.Endpoint, minDiskSpaceGB float64, opts httpclient.Options) *SABnzbd {
	opts.BaseURL = endpoint.URL
	return &SABnzbd{
		endpoint:       endpoint,
		minDiskSpaceGB: minDiskSpaceGB,
		client:         httpclient.New(opts),
	}
}

func (s *SABnzbd) Key() string  { return "sabnzbd" }
func (s *SABnzbd) Name() string { return "SABnzbd" }

func (s *SABnzbd) CheckQueue(ctx context.Context) SABnzbdStatus {
	st := SABnzbdStatus{
		ServiceStatus: ServiceStatus{Key: s.Key(), Name: s.Name()},
		QueueStatus:   "unknown",
	}
	if !s.endpoint.Configured(true) {
		st.Issues = append(st.Issues, notConfigured)
		return st
	}

	var queue sabQueueResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"mode":   "queue",
			"apikey": s.endpoint.APIKey,
			"output": "json",
		}).
		SetSuccessResult(&queue).
		Get("/api")
	if err := httpclient.Check(resp, err, "queue"); err != nil {
		st.Issues = append(st.Issues, "Connection error: "+err.Error())
		return st
	}

	st.Reachable = true
	st.Paused = queue.Queue.Paused
	if queue.Queue.Status != "" {
		st.QueueStatus = queue.Queue.Status
	}
	st.QueueCount = int(queue.Queue.NoOfSlots.value)
	st.DiskSpaceGB = queue.Queue.DiskSpace1.value
	st.DiskSpaceOK = queue.Queue.DiskSpace1.Valid() && st.DiskSpaceGB >= s.minDiskSpaceGB
	if !queue.Queue.DiskSpace1.Valid() {
		slog.Warn("unreadable disk space in queue response", "service", s.Name())
	}
	return st
}

// Resume unpauses the queue.
func (s *SABnzbd) Resume(ctx context.Context) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"mode":   "resume",
			"apikey": s.endpoint.APIKey,
		}).
		Get("/api")
	return httpclient.Check(resp, err, "resume")
}
