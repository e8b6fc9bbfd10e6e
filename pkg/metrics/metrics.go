// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors used by report rendering and the export worker.
type Metrics struct {
	registry     *prometheus.Registry
	queryLatency *prometheus.HistogramVec
	countHits    *prometheus.CounterVec
	exportJobs   *prometheus.CounterVec
}

// New creates collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webcast",
			Name:      "report_query_seconds",
			Help:      "Latency of report page and count queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table", "kind"}),
		countHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webcast",
			Name:      "report_count_cache_total",
			Help:      "Count-query cache lookups by result.",
		}, []string{"result"}),
		exportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webcast",
			Name:      "export_jobs_total",
			Help:      "Report export jobs by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.queryLatency, m.countHits, m.exportJobs)
	return m
}

// ObserveQuery records how long a query of kind ("page" or "count") took.
func (m *Metrics) ObserveQuery(table, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.queryLatency.WithLabelValues(table, kind).Observe(d.Seconds())
}

// CountCache records a count-cache hit or miss.
func (m *Metrics) CountCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.countHits.WithLabelValues(result).Inc()
}

// ExportJob records the outcome of an export job.
func (m *Metrics) ExportJob(outcome string) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
