package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/nadi-go/internal/version"
)

type ServerMetrics struct {
	reg       *prometheus.Registry
	handler   http.Handler
	inflight  prometheus.Gauge
	reqTotal  *prometheus.CounterVec
	reqDur    *prometheus.HistogramVec
	respBytes *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	panics    prometheus.Counter
	buildInfo *prometheus.GaugeVec

	ratelimitDenied prometheus.Counter
	profilingActive prometheus.Gauge

	renders         *prometheus.CounterVec
	ssrRequests     *prometheus.CounterVec
	ssrDuration     prometheus.Histogram
	manifestEntries prometheus.Gauge
	manifestInfo    *prometheus.GaugeVec
	csrfRejected    prometheus.Counter
}

// New returns a fresh registry with the Go/process collectors, HTTP
// metrics (safe labels only: method, route, status) and the Nadi metrics.
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
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304},
		}, []string{"method", "route"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route",
		}, []string{"method", "route"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "version", "commit", "commit_date", "build_date", "vcs_dirty", "go_version", "nadi_protocol"}),
		ratelimitDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nadi_renders_total",
			Help: "Renders by output kind (json or html)",
		}, []string{"kind"}),
		ssrRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nadi_ssr_requests_total",
			Help: "Full-page renders by SSR outcome (ok, error, disabled, opt_out)",
		}, []string{"result"}),
		ssrDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nadi_ssr_duration_seconds",
			Help:    "Latency of calls to the SSR service, successful or not",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		manifestEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nadi_manifest_entries",
			Help: "Entries in the manifest loaded at startup (0 means dev fallback)",
		}),
		manifestInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nadi_manifest_info",
			Help: "Asset version of the manifest at startup (label carries value, gauge is always 1)",
		}, []string{"version"}),
		csrfRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nadi_csrf_rejected_total",
			Help: "Unsafe requests rejected for a missing or invalid CSRF token",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errors,
		m.panics,
		m.buildInfo,
		m.ratelimitDenied,
		m.profilingActive,
		m.renders,
		m.ssrRequests,
		m.ssrDuration,
		m.manifestEntries,
		m.manifestInfo,
		m.csrfRejected,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

func (m *ServerMetrics) IncHttpPanic() {
	m.panics.Inc()
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfo(vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":           vi.AppName,
		"version":       vi.Version,
		"commit":        vi.Commit,
		"commit_date":   vi.CommitDate,
		"build_date":    vi.BuildDate,
		"go_version":    vi.GoVersion,
		"vcs_dirty":     dirty,
		"nadi_protocol": vi.Protocol,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDenied.Inc()
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

func (m *ServerMetrics) IncRender(kind string) {
	m.renders.WithLabelValues(kind).Inc()
}

// ObserveSSR counts one full-page render outcome. took is only observed
// when a call was actually made.
func (m *ServerMetrics) ObserveSSR(result string, took time.Duration) {
	m.ssrRequests.WithLabelValues(result).Inc()
	if took > 0 {
		m.ssrDuration.Observe(took.Seconds())
	}
}

func (m *ServerMetrics) SetManifest(entries int, version string) {
	m.manifestEntries.Set(float64(entries))
	m.manifestInfo.Reset()
	m.manifestInfo.WithLabelValues(version).Set(1)
}

func (m *ServerMetrics) IncCSRFRejected() {
	m.csrfRejected.Inc()
}
