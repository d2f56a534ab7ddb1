package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	SearchesTotal  *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	AttemptsTotal  *prometheus.CounterVec
	RetriesTotal   *prometheus.CounterVec
	CoalescedTotal prometheus.Counter

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	RateLimitHitsTotal prometheus.Counter

	registry prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg means a fresh registry,
// which keeps repeated construction in tests from panicking.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	m := &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jgrants_requests_total",
				Help: "Total number of UI requests processed",
			},
			[]string{"type", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jgrants_request_duration_seconds",
				Help:    "UI request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"type"},
		),
		RequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "jgrants_requests_in_flight",
				Help: "Number of UI requests currently being processed",
			},
		),

		SearchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jgrants_searches_total",
				Help: "Total number of searches by outcome",
			},
			[]string{"outcome"},
		),
		SearchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jgrants_search_duration_seconds",
				Help:    "Search duration in seconds, retries included",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"source"},
		),
		AttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jgrants_upstream_attempts_total",
				Help: "Total number of upstream HTTP attempts by result",
			},
			[]string{"result"},
		),
		RetriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jgrants_upstream_retries_total",
				Help: "Total number of upstream retries by cause",
			},
			[]string{"kind"},
		),
		CoalescedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "jgrants_searches_coalesced_total",
				Help: "Searches that shared an in-flight upstream call",
			},
		),

		CacheHitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "jgrants_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),
		CacheMissesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "jgrants_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),

		RateLimitHitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "jgrants_rate_limit_hits_total",
				Help: "Total number of rejected UI requests",
			},
		),

		registry: reg,
	}

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(reqType, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(reqType, status).Inc()
	m.RequestDuration.WithLabelValues(reqType).Observe(duration.Seconds())
}

// RecordSearch counts one finished search. outcome is "success" or an
// error kind; source is "cache" or "upstream".
func (m *Metrics) RecordSearch(outcome, source string, duration time.Duration) {
	m.SearchesTotal.WithLabelValues(outcome).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *Metrics) RecordAttempt(result string) {
	m.AttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRetry(kind string) {
	m.RetriesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCoalesced() {
	m.CoalescedTotal.Inc()
}

func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordRateLimitHit() {
	m.RateLimitHitsTotal.Inc()
}

func (m *Metrics) IncRequestsInFlight() {
	m.RequestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	m.RequestsInFlight.Dec()
}
