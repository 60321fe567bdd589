// Package metrics exposes Kiln's Prometheus instrumentation.
//
// Init builds the registry and collectors once; until then every Record*
// and Set* function is a no-op, so instrumented code never has to check
// whether metrics are enabled.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reload outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

type serverMetrics struct {
	registry *prometheus.Registry

	reloads            *prometheus.CounterVec
	reloadDuration     *prometheus.HistogramVec
	templateGeneration prometheus.Gauge

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

var active atomic.Pointer[serverMetrics]

// Init creates the registry and registers every collector. Calling it
// again replaces the previous registry, which only tests do.
func Init() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &serverMetrics{
		registry: reg,
		reloads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiln_template_reloads_total",
				Help: "Total number of template reload attempts by outcome",
			},
			[]string{"outcome"}, // "success", "error"
		),
		reloadDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "kiln_template_reload_duration_milliseconds",
				Help: "Duration of template reload attempts in milliseconds",
				Buckets: []float64{
					1,    // 1ms - a handful of templates
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms - large template trees
					1000, // 1s
				},
			},
			[]string{"outcome"},
		),
		templateGeneration: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "kiln_template_generation",
				Help: "Generation of the template snapshot currently serving requests",
			},
		),
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiln_http_requests_total",
				Help: "Total number of HTTP requests by method and status code",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "kiln_http_request_duration_milliseconds",
				Help: "Duration of HTTP requests in milliseconds",
				Buckets: []float64{
					0.5,  // 500us - health checks
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms
					1000, // 1s
					5000, // 5s - timeout territory
				},
				// method only; status would explode the cardinality
			},
			[]string{"method"},
		),
		inFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "kiln_http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),
	}

	active.Store(m)
}

// IsEnabled reports whether Init has been called.
func IsEnabled() bool {
	return active.Load() != nil
}

// Registry returns the active registry, or nil when metrics are disabled.
func Registry() *prometheus.Registry {
	m := active.Load()
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the scrape handler for the active registry, or a 404
// handler when metrics are disabled.
func Handler() http.Handler {
	m := active.Load()
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordReload counts one reload attempt and its duration.
func RecordReload(outcome string, duration time.Duration) {
	m := active.Load()
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(outcome).Inc()
	m.reloadDuration.WithLabelValues(outcome).Observe(duration.Seconds() * 1000)
}

// SetTemplateGeneration records the generation of the live snapshot.
func SetTemplateGeneration(generation uint64) {
	m := active.Load()
	if m == nil {
		return
	}
	m.templateGeneration.Set(float64(generation))
}

// RecordRequest counts one served HTTP request.
func RecordRequest(method string, status int, duration time.Duration) {
	m := active.Load()
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds() * 1000)
}

// RequestStarted marks a request entering the handler chain.
func RequestStarted() {
	if m := active.Load(); m != nil {
		m.inFlight.Inc()
	}
}

// RequestFinished marks a request leaving the handler chain.
func RequestFinished() {
	if m := active.Load(); m != nil {
		m.inFlight.Dec()
	}
}
