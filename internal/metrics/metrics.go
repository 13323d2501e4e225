// Package metrics exposes server and cache measurements to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/and161185/shopfloor/internal/repository/cached"
)

const namespace = "shopfloor"

// Metrics holds the application collectors on a private registry.
// It implements tcpserver.Observer.
type Metrics struct {
	Registry *prometheus.Registry

	connsOpen   prometheus.Gauge
	connsTotal  prometheus.Counter
	requests    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
}

// New registers the server collectors together with process and Go runtime
// collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		connsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "open_connections",
			Help:      "Connections currently being served.",
		}),
		connsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "connections_total",
			Help:      "Accepted connections.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "requests_total",
			Help:      "Handled requests by kind and response code.",
		}, []string{"kind", "code"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"kind"}),
	}
	m.Registry.MustRegister(
		m.connsOpen,
		m.connsTotal,
		m.requests,
		m.reqDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// ConnOpened counts an accepted connection.
func (m *Metrics) ConnOpened() {
	m.connsOpen.Inc()
	m.connsTotal.Inc()
}

// ConnClosed marks a connection as finished.
func (m *Metrics) ConnClosed() { m.connsOpen.Dec() }

// Request records one handled request by kind and status code.
func (m *Metrics) Request(kind string, status int, d time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	m.requests.WithLabelValues(kind, strconv.Itoa(status)).Inc()
	m.reqDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// StatsSource is a repository reporting its cache state.
type StatsSource interface {
	Kind() string
	Stats() cached.Stats
}

// WatchRepositories registers a collector sampling each source on scrape.
func (m *Metrics) WatchRepositories(srcs ...StatsSource) error {
	return m.Registry.Register(&repoCollector{srcs: srcs})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

var (
	descHits = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "hits_total"),
		"Cache lookups that found an entry.", []string{"kind"}, nil)
	descMisses = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "misses_total"),
		"Cache lookups that found nothing.", []string{"kind"}, nil)
	descEvictions = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "evictions_total"),
		"Entries evicted by capacity or TTL.", []string{"kind"}, nil)
	descCapacity = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "capacity"),
		"Configured cache capacity.", []string{"kind"}, nil)
	descPending = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "pending_entries"),
		"Entries waiting for the next refresh.", []string{"kind"}, nil)
	descRunning = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "refresh_running"),
		"1 while the refresh task is active.", []string{"kind"}, nil)
)

type repoCollector struct {
	srcs []StatsSource
}

func (c *repoCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descHits
	ch <- descMisses
	ch <- descEvictions
	ch <- descCapacity
	ch <- descPending
	ch <- descRunning
}

func (c *repoCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.srcs {
		st, kind := s.Stats(), s.Kind()
		running := 0.0
		if st.Running {
			running = 1
		}
		ch <- prometheus.MustNewConstMetric(descHits, prometheus.CounterValue, float64(st.Hits), kind)
		ch <- prometheus.MustNewConstMetric(descMisses, prometheus.CounterValue, float64(st.Misses), kind)
		ch <- prometheus.MustNewConstMetric(descEvictions, prometheus.CounterValue, float64(st.Evictions), kind)
		ch <- prometheus.MustNewConstMetric(descCapacity, prometheus.GaugeValue, float64(st.Capacity), kind)
		ch <- prometheus.MustNewConstMetric(descPending, prometheus.GaugeValue, float64(st.Pending), kind)
		ch <- prometheus.MustNewConstMetric(descRunning, prometheus.GaugeValue, running, kind)
	}
}
