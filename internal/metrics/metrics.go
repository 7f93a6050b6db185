// Package metrics provides Prometheus metrics for the env-config service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webenv/internal/envconfig"
)

// Metrics implements envconfig.Metrics on a private Prometheus registry.
type Metrics struct {
	config   envconfig.MetricsConfig
	registry *prometheus.Registry

	scriptRequests     *prometheus.CounterVec
	reloads            *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	tokenVerifications *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec

	renderDuration prometheus.Histogram
	verifyDuration prometheus.Histogram
	httpDuration   *prometheus.HistogramVec

	missingFields  prometheus.Gauge
	firebaseStatus prometheus.Gauge
}

// NewMetrics creates and registers the service metrics.
func NewMetrics(config envconfig.MetricsConfig) (*Metrics, error) {
	ns := config.Namespace
	if ns == "" {
		ns = "webenv"
	}

	m := &Metrics{
		config:   config,
		registry: prometheus.NewRegistry(),

		scriptRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "script_requests_total",
			Help:      "Total number of env-config requests, by format and result.",
		}, []string{"format", "result"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "config_reloads_total",
			Help:      "Total number of Firebase config reloads, by result.",
		}, []string{"result"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits, by kind.",
		}, []string{"kind"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses, by kind.",
		}, []string{"kind"}),
		tokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "token_verifications_total",
			Help:      "Total number of Firebase ID token verifications, by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests, by route and status code.",
		}, []string{"route", "code"}),

		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "script_render_duration_seconds",
			Help:      "Time spent rendering env-config.js.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05},
		}),
		verifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "token_verify_duration_seconds",
			Help:      "Time spent verifying Firebase ID tokens.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		missingFields: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "config_missing_fields",
			Help:      "Number of Firebase config fields that are currently empty.",
		}),
		firebaseStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "firebase_admin_up",
			Help:      "1 if the Firebase Admin client is initialized, 0 otherwise.",
		}),
	}

	collectorsToRegister := []prometheus.Collector{
		m.scriptRequests, m.reloads, m.cacheHits, m.cacheMisses,
		m.tokenVerifications, m.httpRequests,
		m.renderDuration, m.verifyDuration, m.httpDuration,
		m.missingFields, m.firebaseStatus,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range collectorsToRegister {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) IncScriptRequests(format string, result string) {
	m.scriptRequests.WithLabelValues(format, result).Inc()
}

func (m *Metrics) IncReloads(result string) {
	m.reloads.WithLabelValues(result).Inc()
}

func (m *Metrics) IncCacheHits(kind string) {
	m.cacheHits.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncCacheMisses(kind string) {
	m.cacheMisses.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncTokenVerifications(result string) {
	m.tokenVerifications.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRenderDuration(duration time.Duration) {
	m.renderDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveVerifyDuration(duration time.Duration) {
	m.verifyDuration.Observe(duration.Seconds())
}

// ObserveHTTPRequest records a request. route must be a route pattern, not a raw path.
func (m *Metrics) ObserveHTTPRequest(route string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) SetMissingFields(count int) {
	m.missingFields.Set(float64(count))
}

func (m *Metrics) SetFirebaseStatus(healthy bool) {
	if healthy {
		m.firebaseStatus.Set(1)
	} else {
		m.firebaseStatus.Set(0)
	}
}

// Nop discards every observation. It is used by commands that do not serve HTTP.
type Nop struct{}

func (Nop) IncScriptRequests(string, string)              {}
func (Nop) IncReloads(string)                             {}
func (Nop) IncCacheHits(string)                           {}
func (Nop) IncCacheMisses(string)                         {}
func (Nop) IncTokenVerifications(string)                  {}
func (Nop) ObserveRenderDuration(time.Duration)           {}
func (Nop) ObserveVerifyDuration(time.Duration)           {}
func (Nop) ObserveHTTPRequest(string, int, time.Duration) {}
func (Nop) SetMissingFields(int)                          {}
func (Nop) SetFirebaseStatus(bool)                        {}

var (
	_ envconfig.Metrics = (*Metrics)(nil)
	_ envconfig.Metrics = Nop{}
)
