package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"version":"4.0.1"}`))
		case "/long":
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(strings.Repeat("x", 500)))
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(Options{Timeout: time.Second, BaseURL: server.URL})

	var body struct {
		Version string `json:"version"`
	}
	resp, err := client.R().SetContext(context.Background()).SetSuccessResult(&body).Get("/ok")
	require.NoError(t, Check(resp, err, "status"))
	assert.Equal(t, "4.0.1", body.Version)

	resp, err = client.R().Get("/missing")
	err = Check(resp, err, "missing")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "missing: unexpected status 404")

	resp, err = client.R().Get("/long")
	err = Check(resp, err, "long")
	require.True(t, errors.As(err, &statusErr))
	assert.Len(t, statusErr.Body, 203)
}

func TestCheckTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(Options{Timeout: time.Second})
	resp, err := client.R().Get(url)
	err = Check(resp, err, "closed")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "closed: "))
}
