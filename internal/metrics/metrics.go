package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the chat pipeline, search and cache
type Metrics struct {
	registry *prometheus.Registry

	framesTotal   *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	fetchTotal    *prometheus.CounterVec
	tierTotal     *prometheus.CounterVec
	cacheTotal    *prometheus.CounterVec
	llmTotal      *prometheus.CounterVec
}

// New creates the collectors on a private registry
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "houser_chat_frames_total",
			Help: "Total number of streamed chat frames by type",
		},
		[]string{"type"},
	)
	m.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "houser_fetch_duration_seconds",
			Help:    "Duration of background data fetches",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 7, 10},
		},
		[]string{"kind"},
	)
	m.fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "houser_fetch_total",
			Help: "Background data fetches by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	m.tierTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "houser_search_tier_total",
			Help: "Search tiers executed",
		},
		[]string{"tier"},
	)
	m.cacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "houser_cache_requests_total",
			Help: "Cache lookups by namespace and result",
		},
		[]string{"namespace", "result"},
	)
	m.llmTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "houser_llm_calls_total",
			Help: "Language model calls by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	m.registry.MustRegister(
		m.framesTotal,
		m.fetchDuration,
		m.fetchTotal,
		m.tierTotal,
		m.cacheTotal,
		m.llmTotal,
		collectors.NewGoCollector(),
	)

	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// All recorders accept a nil receiver so callers may run without metrics.

func (m *Metrics) Frame(frameType string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(frameType).Inc()
}

// Fetch records one background fetch. outcome is ok, error or timeout.
func (m *Metrics) Fetch(kind, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(kind, outcome).Inc()
	m.fetchDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) Tier(tier string) {
	if m == nil {
		return
	}
	m.tierTotal.WithLabelValues(tier).Inc()
}

func (m *Metrics) CacheHit(namespace string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(namespace, "hit").Inc()
}

func (m *Metrics) CacheMiss(namespace string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(namespace, "miss").Inc()
}

func (m *Metrics) LLMCall(purpose, outcome string) {
	if m == nil {
		return
	}
	m.llmTotal.WithLabelValues(purpose, outcome).Inc()
}
