package samples

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/scylladb/termtables"

	"github.com/snadboy/homelab-scripts/internal/series"
)

const (
	demoSeed      = 42
	demoRecords   = 20
	highCPULimit  = 80
	sustainWindow = 6 * time.Hour
	sustainLimit  = 60
)

var demoServers = []string{"web-01", "web-02", "db-01", "cache-01", "api-01"}

// ServerRecord is one hourly sample of a generated server.
type ServerRecord struct {
	Timestamp      time.Time
	Server         string
	CPUPercent     float64
	MemoryPercent  float64
	DiskIOMB       float64
	NetworkMB      float64
	RequestsPerSec int
}

// GenerateRecords draws demoRecords hourly samples ending at now from a fixed seed, so every run
// shows the same data. Records are returned newest first.
func GenerateRecords(now time.Time) []ServerRecord {
	rng := rand.New(rand.NewPCG(demoSeed, demoSeed))
	uniform := func(lo, hi float64, digits int) float64 {
		p := math.Pow(10, float64(digits))
		return math.Round((lo+rng.Float64()*(hi-lo))*p) / p
	}

	records := make([]ServerRecord, demoRecords)
	for i := range records {
		records[i].Timestamp = now.Add(-time.Duration(i) * time.Hour)
		records[i].Server = demoServers[rng.IntN(len(demoServers))]
	}
	for i := range records {
		records[i].CPUPercent = uniform(10, 95, 1)
	}
	for i := range records {
		records[i].MemoryPercent = uniform(20, 85, 1)
	}
	for i := range records {
		records[i].DiskIOMB = uniform(5, 500, 2)
	}
	for i := range records {
		records[i].NetworkMB = uniform(1, 100, 2)
	}
	for i := range records {
		records[i].RequestsPerSec = 100 + rng.IntN(4900)
	}
	return records
}

// ServerStats aggregates the samples of one server.
type ServerStats struct {
	Server        string
	CPUMean       float64
	CPUMax        float64
	MemoryMean    float64
	MemoryMax     float64
	RequestsSum   float64
	RequestsMean  float64
	SustainedLoad bool
}

type OverallStats struct {
	TotalRecords      int
	UniqueServers     int
	AvgCPU            float64
	MaxCPU            float64
	AvgMemory         float64
	TotalRequests     int
	AvgRequestsPerSec float64
}

type MetricsAnalysis struct {
	Servers []ServerStats
	Overall OverallStats
	HighCPU []ServerRecord
}

func seriesName(server, metric string) string {
	return server + "/" + metric
}

// Analyze loads the records into a series buffer and reduces them per server and overall.
func Analyze(records []ServerRecord, now time.Time) (*MetricsAnalysis, error) {
	buf := series.NewBuffer(time.Duration(len(records))*time.Hour, time.Hour)
	all := series.NewBuffer(time.Duration(len(records))*time.Hour, time.Hour)

	ordered := append([]ServerRecord(nil), records...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Timestamp.Before(ordered[j].Timestamp) })
	for _, r := range ordered {
		buf.Add(seriesName(r.Server, "cpu"), r.CPUPercent, r.Timestamp)
		buf.Add(seriesName(r.Server, "memory"), r.MemoryPercent, r.Timestamp)
		buf.Add(seriesName(r.Server, "requests"), float64(r.RequestsPerSec), r.Timestamp)
		all.Add("cpu", r.CPUPercent, r.Timestamp)
		all.Add("memory", r.MemoryPercent, r.Timestamp)
		all.Add("requests", float64(r.RequestsPerSec), r.Timestamp)
	}

	servers := map[string]bool{}
	for _, r := range records {
		servers[r.Server] = true
	}
	names := make([]string, 0, len(servers))
	for s := range servers {
		names = append(names, s)
	}
	sort.Strings(names)

	out := &MetricsAnalysis{}
	for _, s := range names {
		st := ServerStats{Server: s}
		var err error
		cpu := buf.All(seriesName(s, "cpu"))
		mem := buf.All(seriesName(s, "memory"))
		req := buf.All(seriesName(s, "requests"))
		for _, step := range []struct {
			dst    *float64
			points []series.Point
			agg    series.Aggregation
		}{
			{&st.CPUMean, cpu, series.Average},
			{&st.CPUMax, cpu, series.Max},
			{&st.MemoryMean, mem, series.Average},
			{&st.MemoryMax, mem, series.Max},
			{&st.RequestsSum, req, series.Sum},
			{&st.RequestsMean, req, series.Average},
		} {
			if *step.dst, err = series.Aggregate(step.points, step.agg); err != nil {
				return nil, err
			}
			*step.dst = round2(*step.dst)
		}

		rule := series.Rule{
			Series:      seriesName(s, "cpu"),
			Window:      sustainWindow,
			Aggregation: series.Average,
			Condition:   ">",
			Threshold:   sustainLimit,
		}
		met, _, err := rule.Evaluate(buf, now)
		if err == nil {
			st.SustainedLoad = met
		}
		out.Servers = append(out.Servers, st)
	}

	cpuAll, memAll, reqAll := all.All("cpu"), all.All("memory"), all.All("requests")
	avgCPU, err := series.Aggregate(cpuAll, series.Average)
	if err != nil {
		return nil, err
	}
	maxCPU, _ := series.Aggregate(cpuAll, series.Max)
	avgMem, _ := series.Aggregate(memAll, series.Average)
	totalReq, _ := series.Aggregate(reqAll, series.Sum)
	avgReq, _ := series.Aggregate(reqAll, series.Average)
	out.Overall = OverallStats{
		TotalRecords:      len(records),
		UniqueServers:     len(names),
		AvgCPU:            round2(avgCPU),
		MaxCPU:            round2(maxCPU),
		AvgMemory:         round2(avgMem),
		TotalRequests:     int(totalReq),
		AvgRequestsPerSec: round2(avgReq),
	}

	above := series.Condition(">")
	for _, r := range records {
		if hit, _ := above.Holds(r.CPUPercent, highCPULimit); hit {
			out.HighCPU = append(out.HighCPU, r)
		}
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func PrintMetricsDemo(w io.Writer, records []ServerRecord, a *MetricsAnalysis, now time.Time) {
	banner(w, "Server Metrics Analysis", ruleWidth)
	fmt.Fprintf(w, "Timestamp: %s\n\n", now.Format(time.RFC3339))

	section(w, "Sample Data (last 5 records):")
	sample := termtables.CreateTable()
	sample.AddHeaders("timestamp", "server", "cpu_percent", "memory_percent", "disk_io_mb", "network_mb", "requests_per_sec")
	start := len(records) - 5
	if start < 0 {
		start = 0
	}
	for _, r := range records[start:] {
		sample.AddRow(r.Timestamp.Format("2006-01-02 15:04"), r.Server,
			fmt.Sprintf("%.1f", r.CPUPercent), fmt.Sprintf("%.1f", r.MemoryPercent),
			fmt.Sprintf("%.2f", r.DiskIOMB), fmt.Sprintf("%.2f", r.NetworkMB), r.RequestsPerSec)
	}
	fmt.Fprintln(w, sample.Render())

	section(w, "Statistics by Server:")
	stats := termtables.CreateTable()
	stats.AddHeaders("server", "cpu_mean", "cpu_max", "memory_mean", "memory_max", "requests_sum", "requests_mean", "sustained_load")
	for _, s := range a.Servers {
		load := "no"
		if s.SustainedLoad {
			load = "YES"
		}
		stats.AddRow(s.Server, s.CPUMean, s.CPUMax, s.MemoryMean, s.MemoryMax, int(s.RequestsSum), s.RequestsMean, load)
	}
	fmt.Fprintln(w, stats.Render())

	section(w, "Overall Statistics:")
	o := a.Overall
	fmt.Fprintf(w, "  total_records: %d\n", o.TotalRecords)
	fmt.Fprintf(w, "  unique_servers: %d\n", o.UniqueServers)
	fmt.Fprintf(w, "  avg_cpu: %.2f\n", o.AvgCPU)
	fmt.Fprintf(w, "  max_cpu: %.2f\n", o.MaxCPU)
	fmt.Fprintf(w, "  avg_memory: %.2f\n", o.AvgMemory)
	fmt.Fprintf(w, "  total_requests: %d\n", o.TotalRequests)
	fmt.Fprintf(w, "  avg_requests_per_sec: %.2f\n\n", o.AvgRequestsPerSec)

	if len(a.HighCPU) == 0 {
		fmt.Fprintln(w, "No high CPU alerts detected.")
	} else {
		section(w, fmt.Sprintf("High CPU Alerts (>%d%%): %d instances", highCPULimit, len(a.HighCPU)))
		alerts := termtables.CreateTable()
		alerts.AddHeaders("timestamp", "server", "cpu_percent")
		for _, r := range a.HighCPU {
			alerts.AddRow(r.Timestamp.Format("2006-01-02 15:04"), r.Server, fmt.Sprintf("%.1f", r.CPUPercent))
		}
		fmt.Fprintln(w, alerts.Render())
	}
	fmt.Fprintln(w)
	success.Fprintln(w, "Analysis complete!")
}
