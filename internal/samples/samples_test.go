package samples

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snadboy/homelab-scripts/internal/httpclient"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

var demoNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestFetchJoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"type":"general","setup":"Why did the scarecrow win an award?","punchline":"He was outstanding in his field.","id":12}`)
	}))
	defer server.Close()

	joke, err := FetchJoke(context.Background(), httpclient.New(httpclient.Options{Timeout: time.Second}), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Why did the scarecrow win an award?", joke.Setup)
	assert.Equal(t, "He was outstanding in his field.", joke.Punchline)
	assert.Contains(t, joke.Raw, "\n  \"id\": 12")

	var out bytes.Buffer
	PrintJoke(&out, joke, demoNow)
	assert.Contains(t, out.String(), "Setup: Why did the scarecrow win an award?")
	assert.Contains(t, out.String(), "Raw JSON response:")
}

func TestFetchJokeMissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":1}`)
	}))
	defer server.Close()

	joke, err := FetchJoke(context.Background(), httpclient.New(httpclient.Options{Timeout: time.Second}), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "N/A", joke.Setup)
	assert.Equal(t, "N/A", joke.Punchline)
}

func TestFetchJokeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := FetchJoke(context.Background(), httpclient.New(httpclient.Options{Timeout: time.Second}), server.URL)
	assert.ErrorContains(t, err, "503")
}

func TestGenerateRecordsDeterministic(t *testing.T) {
	first := GenerateRecords(demoNow)
	second := GenerateRecords(demoNow)
	require.Len(t, first, demoRecords)
	assert.Equal(t, first, second)

	for i, r := range first {
		assert.Equal(t, demoNow.Add(-time.Duration(i)*time.Hour), r.Timestamp)
		assert.Contains(t, demoServers, r.Server)
		assert.True(t, r.CPUPercent >= 10 && r.CPUPercent <= 95, r.CPUPercent)
		assert.True(t, r.MemoryPercent >= 20 && r.MemoryPercent <= 85, r.MemoryPercent)
		assert.True(t, r.DiskIOMB >= 5 && r.DiskIOMB <= 500, r.DiskIOMB)
		assert.True(t, r.NetworkMB >= 1 && r.NetworkMB <= 100, r.NetworkMB)
		assert.True(t, r.RequestsPerSec >= 100 && r.RequestsPerSec < 5000, r.RequestsPerSec)
	}
}

func TestAnalyze(t *testing.T) {
	records := []ServerRecord{
		{Timestamp: demoNow, Server: "web-01", CPUPercent: 90, MemoryPercent: 50, RequestsPerSec: 1000},
		{Timestamp: demoNow.Add(-time.Hour), Server: "web-01", CPUPercent: 70, MemoryPercent: 60, RequestsPerSec: 3000},
		{Timestamp: demoNow.Add(-2 * time.Hour), Server: "db-01", CPUPercent: 20.5, MemoryPercent: 80, RequestsPerSec: 200},
		{Timestamp: demoNow.Add(-10 * time.Hour), Server: "db-01", CPUPercent: 85, MemoryPercent: 30, RequestsPerSec: 400},
	}

	a, err := Analyze(records, demoNow)
	require.NoError(t, err)
	require.Len(t, a.Servers, 2)

	db, web := a.Servers[0], a.Servers[1]
	assert.Equal(t, "db-01", db.Server)
	assert.Equal(t, 52.75, db.CPUMean)
	assert.Equal(t, 85.0, db.CPUMax)
	assert.Equal(t, 600.0, db.RequestsSum)
	assert.False(t, db.SustainedLoad, "only the 2h-old sample is inside the window")

	assert.Equal(t, "web-01", web.Server)
	assert.Equal(t, 80.0, web.CPUMean)
	assert.Equal(t, 60.0, web.MemoryMax)
	assert.Equal(t, 2000.0, web.RequestsMean)
	assert.True(t, web.SustainedLoad)

	assert.Equal(t, OverallStats{
		TotalRecords:      4,
		UniqueServers:     2,
		AvgCPU:            66.38,
		MaxCPU:            90,
		AvgMemory:         55,
		TotalRequests:     4600,
		AvgRequestsPerSec: 1150,
	}, a.Overall)

	require.Len(t, a.HighCPU, 2)
	assert.Equal(t, 90.0, a.HighCPU[0].CPUPercent)
	assert.Equal(t, 85.0, a.HighCPU[1].CPUPercent)
}

func TestPrintMetricsDemo(t *testing.T) {
	records := GenerateRecords(demoNow)
	a, err := Analyze(records, demoNow)
	require.NoError(t, err)

	var out bytes.Buffer
	PrintMetricsDemo(&out, records, a, demoNow)
	s := out.String()
	assert.Contains(t, s, "Sample Data (last 5 records):")
	assert.Contains(t, s, "Statistics by Server:")
	assert.Contains(t, s, "total_records: 20")
	assert.True(t, strings.Contains(s, "High CPU Alerts") || strings.Contains(s, "No high CPU alerts detected."))
	assert.Contains(t, s, "Analysis complete!")
}

func TestSelfTest(t *testing.T) {
	t.Setenv("TZ", "Europe/Zurich")
	t.Setenv("USER", "")
	require.NoError(t, os.Unsetenv("USER"))

	var out bytes.Buffer
	res, err := SelfTest(&out, demoNow)
	require.NoError(t, err)
	assert.Equal(t, 5050, res.TestResult)
	assert.Equal(t, "success", res.Status)
	assert.Contains(t, out.String(), "Sum of 1-100: 5050")
	assert.Contains(t, out.String(), "TZ: Europe/Zurich")
	assert.Contains(t, out.String(), "USER: not set")
	assert.Contains(t, out.String(), `"test_result": 5050`)
}

func TestPrintSystemInfo(t *testing.T) {
	info := &SystemInfo{
		Platform:        "linux",
		PlatformRelease: "6.8.0",
		PlatformVersion: strings.Repeat("v", 80),
		Architecture:    "x86_64",
		Hostname:        "arr",
		GoVersion:       "go1.24.3",
		Compiler:        "gc",
		BootTime:        demoNow.Add(-72 * time.Hour),
	}
	t.Setenv("PATH", strings.Repeat("/usr/bin:", 20))

	var out bytes.Buffer
	PrintSystemInfo(&out, info, demoNow)
	s := out.String()
	assert.Contains(t, s, "System Information Report")
	assert.Contains(t, s, "Key Environment Variables")
	assert.Contains(t, s, strings.Repeat("v", 47)+"...")
	assert.NotContains(t, s, strings.Repeat("v", 48))
	assert.Contains(t, s, "3 days ago")
}

func TestCollectSystemInfo(t *testing.T) {
	info, err := CollectSystemInfo(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, info.Hostname)
	assert.NotEmpty(t, info.GoVersion)
}
