// Package metrics holds the Prometheus collectors of the page dispatcher.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "simplecms"

// Dispatch outcomes.
const (
	OutcomeRedirect = "redirect"
	OutcomeDelegate = "delegate"
	OutcomeRender   = "render"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics holds the dispatcher collectors.
type Metrics struct {
	DispatchTotal  *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	CacheTotal     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates and registers the collectors on reg. A nil reg uses a fresh
// private registry so tests never collide on the global one.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Page requests by dispatch outcome",
			},
			[]string{"outcome"},
		),
		RenderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Time spent rendering page templates",
				Buckets:   prometheus.DefBuckets,
			},
		),
		CacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_cache_total",
				Help:      "Rendered page cache lookups by result",
			},
			[]string{"result"},
		),
		gatherer: reg,
	}
}

// Dispatched counts one request with the given outcome. Safe on a nil receiver.
func (m *Metrics) Dispatched(outcome string) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(outcome).Inc()
}

// Rendered records the duration of a template render since start.
func (m *Metrics) Rendered(start time.Time) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(time.Since(start).Seconds())
}

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheTotal.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

