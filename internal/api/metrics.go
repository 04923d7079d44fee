package api

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-pm/internal/record"
	"github.com/nerrad567/gray-logic-pm/internal/supervisor"
)

const metricsNamespace = "graypm"

// collectTimeout bounds the table read made on each scrape.
const collectTimeout = 5 * time.Second

// Metrics owns the Prometheus registry exposed at /metrics.
//
// It doubles as a supervisor.EventPublisher so outcomes produced by any
// caller (HTTP, MQTT commands, autorun) are counted once.
type Metrics struct {
	registry *prometheus.Registry
	outcomes *prometheus.CounterVec
	once     sync.Once
}

// NewMetrics creates a registry with the Go runtime and process collectors
// plus the outcome counter.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "outcomes_total",
				Help:      "Lifecycle outcomes by operation, code and severity.",
			},
			[]string{"op", "code", "severity"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.outcomes,
	)
	return m
}

// PublishOutcome counts o. It implements supervisor.EventPublisher.
func (m *Metrics) PublishOutcome(o supervisor.Outcome) error {
	m.outcomes.WithLabelValues(o.Op, string(o.Code), string(o.Severity)).Inc()
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// watch registers the per-record collector for sup. Only the first call
// has an effect.
func (m *Metrics) watch(sup Supervisor) {
	m.once.Do(func() {
		m.registry.MustRegister(newRecordCollector(sup))
	})
}

// recordCollector exports one series per record, read at scrape time.
type recordCollector struct {
	sup        Supervisor
	up         *prometheus.Desc
	restarts   *prometheus.Desc
	maxRestart *prometheus.Desc
	handles    *prometheus.Desc
}

func newRecordCollector(sup Supervisor) *recordCollector {
	labels := []string{"id", "name"}
	return &recordCollector{
		sup: sup,
		up: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "process", "up"),
			"Whether the record's stored pid resolves to its live process.",
			labels, nil,
		),
		restarts: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "process", "restarts"),
			"Starts counted against the record's restart ceiling.",
			labels, nil,
		),
		maxRestart: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "process", "max_restarts"),
			"The record's restart ceiling.",
			labels, nil,
		),
		handles: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "handles"),
			"Children spawned by this daemon and not yet reaped.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *recordCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.restarts
	ch <- c.maxRestart
	ch <- c.handles
}

// Collect implements prometheus.Collector.
func (c *recordCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.handles, prometheus.GaugeValue, float64(c.sup.Ping().Handles))

	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	entries, err := c.sup.List(ctx, record.ParseSelector(record.SelectAllWithHidden))
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.up, err)
		return
	}
	for _, e := range entries {
		id := strconv.Itoa(e.Record.ID)
		up := 0.0
		if e.View.Running {
			up = 1
		}
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up, id, e.Record.Name)
		ch <- prometheus.MustNewConstMetric(c.restarts, prometheus.GaugeValue, float64(e.Record.RestartCount), id, e.Record.Name)
		ch <- prometheus.MustNewConstMetric(c.maxRestart, prometheus.GaugeValue, float64(e.Record.MaxRestart), id, e.Record.Name)
	}
}

// SystemMetrics is the JSON summary served at /api/v1/system.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Handles       int            `json:"handles"`
	Runtime       RuntimeMetrics `json:"runtime"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// handleSystem returns daemon runtime statistics.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	writeJSON(w, http.StatusOK, SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Handles:       s.supervisor.Ping().Handles,
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	})
}
