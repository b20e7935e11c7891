package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	pr := NewPrometheusRecorder(nil)

	pr.ObserveService("sonarr", true, 2)
	pr.ObserveService("radarr", false, 0)
	pr.ObserveSABnzbd(42.5, 7, true)
	pr.IncNotification(true)
	pr.IncNotification(true)
	pr.IncNotification(false)
	pr.ObserveMonitorRun(time.Unix(1700000000, 0), false)

	assert.Equal(t, 1.0, testutil.ToFloat64(pr.serviceUp.WithLabelValues("sonarr")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pr.serviceIssues.WithLabelValues("sonarr")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pr.serviceUp.WithLabelValues("radarr")))
	assert.Equal(t, 42.5, testutil.ToFloat64(pr.sabDiskFree))
	assert.Equal(t, 7.0, testutil.ToFloat64(pr.sabQueueSlots))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.sabPaused))
	assert.Equal(t, 2.0, testutil.ToFloat64(pr.notifications.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.notifications.WithLabelValues("failed")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(pr.monitorLast))
	assert.Equal(t, 0.0, testutil.ToFloat64(pr.monitorHealth))
}

func TestObserveBackup(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.ObserveBackup(4, 3, 2048, 1500*time.Millisecond, true)

	assert.Equal(t, 4.0, testutil.ToFloat64(pr.backupStacks))
	assert.Equal(t, 3.0, testutil.ToFloat64(pr.backupFiles))
	assert.Equal(t, 2048.0, testutil.ToFloat64(pr.backupSize))
	assert.Equal(t, 1.5, testutil.ToFloat64(pr.backupSeconds))
	assert.Greater(t, testutil.ToFloat64(pr.backupLast.WithLabelValues("success")), 0.0)
}

func TestWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.ObserveService("overseerr", true, 0)

	path := filepath.Join(t.TempDir(), "textfile", "homelab.prom")
	require.NoError(t, pr.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `homelab_service_up{service="overseerr"} 1`))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveService("sonarr", true, 0)
		pr.IncNotification(true)
		pr.ObserveBackup(1, 1, 1, time.Second, true)
	})
}

var _ Recorder = (*PrometheusRecorder)(nil)
var _ Recorder = NoopRecorder{}
