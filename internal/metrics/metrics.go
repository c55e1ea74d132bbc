// Package metrics owns the Prometheus registry served on the ops listener.
// Labels are restricted to method, route pattern and status so that module
// names taken from request paths never become label values.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/dsa-learning-api/internal/version"
)

// Lookup results for catalog_lookups_total.
const (
	LookupHit  = "hit"
	LookupMiss = "miss"
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight    prometheus.Gauge
	reqTotal    *prometheus.CounterVec
	reqDur      *prometheus.HistogramVec
	respBytes   *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec
	panicTotal  prometheus.Counter

	buildInfo       *prometheus.GaugeVec
	profilingActive prometheus.Gauge

	ratelimitDenied   prometheus.Counter
	ratelimitCapacity prometheus.Counter

	catalogInfo     *prometheus.GaugeVec
	catalogModules  prometheus.Gauge
	catalogLoadedTs prometheus.Gauge
	catalogLookups  *prometheus.CounterVec

	storePoolEvents *prometheus.CounterVec
}

// New returns metrics on a private registry with the Go and process
// collectors attached.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{64, 256, 1024, 2048, 4096, 8192, 16384, 65536},
		}, []string{"method", "route"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		panicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered handler panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		ratelimitDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		ratelimitCapacity: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total requests rejected because the rate limiter visitor table was full",
		}),
		catalogInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "catalog_info",
			Help: "Loaded catalog identity (labels carry version and sha256, value is always 1)",
		}, []string{"version", "sha256"}),
		catalogModules: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_modules",
			Help: "Number of modules in the loaded catalog",
		}),
		catalogLoadedTs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_loaded_timestamp_seconds",
			Help: "Unix timestamp of when the catalog was loaded",
		}),
		catalogLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_lookups_total",
			Help: "Module/level lookups by result (hit or miss)",
		}, []string{"result"}),
		storePoolEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "external_store_pool_events_total",
			Help: "MongoDB driver connection pool events by type",
		}, []string{"type"}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errorsTotal,
		m.panicTotal,
		m.buildInfo,
		m.profilingActive,
		m.ratelimitDenied,
		m.ratelimitCapacity,
		m.catalogInfo,
		m.catalogModules,
		m.catalogLoadedTs,
		m.catalogLookups,
		m.storePoolEvents,
	)

	// pre-create both results so a fresh scrape shows zeros
	m.catalogLookups.WithLabelValues(LookupHit)
	m.catalogLookups.WithLabelValues(LookupMiss)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler { return m.handler }

// Registry exposes the underlying registry for tests and extra collectors.
func (m *ServerMetrics) Registry() *prometheus.Registry { return m.reg }

func (m *ServerMetrics) IncHttpPanic() { m.panicTotal.Inc() }

// SetBuildInfoFromVersion is called once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         vi.AppName,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildID,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) { m.profilingActive.Set(boolGauge(active)) }

func (m *ServerMetrics) IncRateLimitDenied()   { m.ratelimitDenied.Inc() }
func (m *ServerMetrics) IncRateLimitCapacity() { m.ratelimitCapacity.Inc() }

// SetCatalog records the identity and size of the loaded catalog. Calling it
// again replaces the previous identity series.
func (m *ServerMetrics) SetCatalog(version, sha256 string, modules int, loadedAt time.Time) {
	m.catalogInfo.Reset()
	m.catalogInfo.WithLabelValues(version, sha256).Set(1)
	m.catalogModules.Set(float64(modules))
	m.catalogLoadedTs.Set(float64(loadedAt.Unix()))
}

// ObserveLookup counts a module/level lookup. Anything other than a hit
// counts as a miss.
func (m *ServerMetrics) ObserveLookup(hit bool) {
	if hit {
		m.catalogLookups.WithLabelValues(LookupHit).Inc()
		return
	}
	m.catalogLookups.WithLabelValues(LookupMiss).Inc()
}

// IncStorePoolEvent counts a driver pool event such as "ConnectionCreated".
func (m *ServerMetrics) IncStorePoolEvent(eventType string) {
	m.storePoolEvents.WithLabelValues(eventType).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
