package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "speakdown"

// Metrics holds the pipeline's Prometheus collectors. Each instance has its
// own registry so tests and embedded pipelines never collide.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	conversions     *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheEvictions  *prometheus.CounterVec
	chunksPerDoc    prometheus.Histogram
	validationFails *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"stage"}, // normalize, parse, classify, annotate, serialize, render, validate
		),
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of document conversions",
			},
			[]string{"platform", "doc_type", "valid"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Element cache lookups by result",
			},
			[]string{"result"}, // hit, miss
		),
		cacheEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_evictions_total",
				Help:      "Element cache entries removed, by reason",
			},
			[]string{"reason"},
		),
		chunksPerDoc: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "document_chunks",
				Help:      "Number of chunks a document was split into",
				Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
			},
		),
		validationFails: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Rendered SSML documents that failed validation",
			},
			[]string{"platform"},
		),
	}
	m.registry.MustRegister(
		m.stageDuration, m.conversions, m.cacheLookups,
		m.cacheEvictions, m.chunksPerDoc, m.validationFails,
	)
	return m
}

// ObserveStage records the duration of one stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// CacheEviction counts an entry removed from the cache.
func (m *Metrics) CacheEviction(reason string) {
	m.cacheEvictions.WithLabelValues(reason).Inc()
}

// Conversion counts a finished conversion.
func (m *Metrics) Conversion(platform, docType string, valid bool, chunks int) {
	m.conversions.WithLabelValues(platform, docType, strconv.FormatBool(valid)).Inc()
	m.chunksPerDoc.Observe(float64(chunks))
	if !valid {
		m.validationFails.WithLabelValues(platform).Inc()
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
