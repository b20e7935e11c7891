// Package metrics exposes run results as Prometheus metrics written to a node_exporter textfile.
package metrics

import (
	"time"
)

// Recorder receives observations from the health monitor and the backup job.
type Recorder interface {
	ObserveService(service string, up bool, issues int)
	ObserveSABnzbd(diskFreeGB float64, queueSlots int, paused bool)
	IncNotification(delivered bool)
	ObserveMonitorRun(at time.Time, healthy bool)
	ObserveBackup(stacks, composeFiles int, sizeBytes int64, d time.Duration, success bool)
}

// NoopRecorder drops every observation.
type NoopRecorder struct{}

func (NoopRecorder) ObserveService(string, bool, int) {}
func (NoopRecorder) ObserveSABnzbd(float64, int, bool) {}
func (NoopRecorder) IncNotification(bool) {}
func (NoopRecorder) ObserveMonitorRun(time.Time, bool) {}
func (NoopRecorder) ObserveBackup(int, int, int64, time.Duration, bool) {}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
