// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"budgeteer/internal/cache"
)

const namespace = "budgeteer"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_processed_total",
		Help:      "Worker events handled by type and outcome",
	}, []string{"type", "outcome"})

	tipsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tips_generated_total",
		Help:      "Tip sets generated by source",
	}, []string{"source"})

	periodResets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "period_resets_total",
		Help:      "Budget periods reset and archived",
	})

	archivesExported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archives_exported_total",
		Help:      "Archived periods appended to the spreadsheet",
	})
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// ObserveRequest records one completed HTTP request. Route should be the
// matched pattern, not the raw path, to keep label cardinality bounded.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// EventProcessed records a worker event outcome ("ok", "error", "skipped").
func EventProcessed(eventType, outcome string) {
	eventsProcessed.WithLabelValues(eventType, outcome).Inc()
}

func TipsGenerated(source string) { tipsGenerated.WithLabelValues(source).Inc() }

func PeriodReset() { periodResets.Inc() }

func ArchiveExported() { archivesExported.Inc() }

// CacheCollector exposes cache.Stats for a named cache.
type CacheCollector struct {
	stats     func() cache.Stats
	size      func() int
	hits      *prometheus.Desc
	misses    *prometheus.Desc
	evictions *prometheus.Desc
	entries   *prometheus.Desc
}

func NewCacheCollector(name string, stats func() cache.Stats, size func() int) *CacheCollector {
	labels := prometheus.Labels{"cache": name}
	return &CacheCollector{
		stats:     stats,
		size:      size,
		hits:      prometheus.NewDesc(namespace+"_cache_hits_total", "Cache hits", nil, labels),
		misses:    prometheus.NewDesc(namespace+"_cache_misses_total", "Cache misses", nil, labels),
		evictions: prometheus.NewDesc(namespace+"_cache_evictions_total", "Cache evictions", nil, labels),
		entries:   prometheus.NewDesc(namespace+"_cache_entries", "Entries currently cached", nil, labels),
	}
}

func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.entries
}

func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(c.size()))
}
