package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "homelab"

// PrometheusRecorder implements Recorder on a private registry.
type PrometheusRecorder struct {
	once          sync.Once
	registry      *prom.Registry
	serviceUp     *prom.GaugeVec
	serviceIssues *prom.GaugeVec
	sabDiskFree   prom.Gauge
	sabQueueSlots prom.Gauge
	sabPaused     prom.Gauge
	notifications *prom.CounterVec
	monitorLast   prom.Gauge
	monitorHealth prom.Gauge
	backupStacks  prom.Gauge
	backupFiles   prom.Gauge
	backupSize    prom.Gauge
	backupSeconds prom.Gauge
	backupLast    *prom.GaugeVec
}

func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.serviceUp = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "service_up",
			Help:      "Whether the service answered its status endpoint",
		}, []string{"service"})
		pr.serviceIssues = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "service_issues",
			Help:      "Number of health issues reported by the service",
		}, []string{"service"})
		pr.sabDiskFree = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sabnzbd",
			Name:      "disk_free_gigabytes",
			Help:      "Free space on the SABnzbd download volume",
		})
		pr.sabQueueSlots = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sabnzbd",
			Name:      "queue_slots",
			Help:      "Items in the SABnzbd queue",
		})
		pr.sabPaused = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sabnzbd",
			Name:      "paused",
			Help:      "Whether the SABnzbd queue was paused when checked",
		})
		pr.notifications = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by delivery result",
		}, []string{"result"})
		pr.monitorLast = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last health monitor run",
		})
		pr.monitorHealth = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "healthy",
			Help:      "Whether the last monitor run found no issues",
		})
		pr.backupStacks = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "stacks",
			Help:      "Stacks included in the last backup",
		})
		pr.backupFiles = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "compose_files",
			Help:      "Compose files written by the last backup",
		})
		pr.backupSize = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "size_bytes",
			Help:      "Size of the last backup directory",
		})
		pr.backupSeconds = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "duration_seconds",
			Help:      "Duration of the last backup run",
		})
		pr.backupLast = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last backup run by result",
		}, []string{"result"})
		reg.MustRegister(pr.serviceUp, pr.serviceIssues, pr.sabDiskFree, pr.sabQueueSlots, pr.sabPaused,
			pr.notifications, pr.monitorLast, pr.monitorHealth,
			pr.backupStacks, pr.backupFiles, pr.backupSize, pr.backupSeconds, pr.backupLast)
	})
	return pr
}

func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveService(service string, up bool, issues int) {
	if p == nil || p.serviceUp == nil {
		return
	}
	p.serviceUp.WithLabelValues(service).Set(boolGauge(up))
	p.serviceIssues.WithLabelValues(service).Set(float64(issues))
}

func (p *PrometheusRecorder) ObserveSABnzbd(diskFreeGB float64, queueSlots int, paused bool) {
	if p == nil || p.sabDiskFree == nil {
		return
	}
	p.sabDiskFree.Set(diskFreeGB)
	p.sabQueueSlots.Set(float64(queueSlots))
	p.sabPaused.Set(boolGauge(paused))
}

func (p *PrometheusRecorder) IncNotification(delivered bool) {
	if p == nil || p.notifications == nil {
		return
	}
	res := "failed"
	if delivered {
		res = "delivered"
	}
	p.notifications.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) ObserveMonitorRun(at time.Time, healthy bool) {
	if p == nil || p.monitorLast == nil {
		return
	}
	p.monitorLast.Set(float64(at.Unix()))
	p.monitorHealth.Set(boolGauge(healthy))
}

func (p *PrometheusRecorder) ObserveBackup(stacks, composeFiles int, sizeBytes int64, d time.Duration, success bool) {
	if p == nil || p.backupStacks == nil {
		return
	}
	p.backupStacks.Set(float64(stacks))
	p.backupFiles.Set(float64(composeFiles))
	p.backupSize.Set(float64(sizeBytes))
	p.backupSeconds.Set(d.Seconds())
	res := "failed"
	if success {
		res = "success"
	}
	p.backupLast.WithLabelValues(res).SetToCurrentTime()
}

// WriteTextfile writes the registry in text exposition format for the node exporter textfile
// collector. path is replaced atomically.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prom.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("failed to write metrics file %s: %w", path, err)
	}
	return nil
}
