// Package httpclient builds the req clients every integration uses and normalizes their errors.
package httpclient

import (
	"fmt"
	"runtime"
	"time"

	json "github.com/goccy/go-json"
	"github.com/imroc/req/v3"
)

var UserAgent = fmt.Sprintf("homelab-scripts (%s; %s)", runtime.GOOS, runtime.GOARCH)

type Options struct {
	Timeout  time.Duration
	Insecure bool
	BaseURL  string
}

// New returns a client with the common settings applied. Retries are left off: a failed call is
// reported and the next scheduled run tries again.
func New(opts Options) *req.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := req.C().
		SetTimeout(timeout).
		SetUserAgent(UserAgent).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	if opts.Insecure {
		c.EnableInsecureSkipVerify()
	}
	if opts.BaseURL != "" {
		c.SetBaseURL(opts.BaseURL)
	}
	return c
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Check folds a transport error or a non-2xx response into one error naming the operation.
func Check(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%s: %w", operation, requestErr)
	}
	if resp == nil || resp.Response == nil {
		return fmt.Errorf("%s: no response", operation)
	}
	if !resp.IsSuccessState() {
		return &StatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(resp.String()),
		}
	}
	return nil
}

func truncateBody(s string) string {
	const max = 200
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
