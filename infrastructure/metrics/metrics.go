// Package metrics provides Prometheus metrics collection for the cache service.
package metrics

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	ErrorsTotal *prometheus.CounterVec

	KeysTotal      *prometheus.GaugeVec
	MemoryBytes    *prometheus.GaugeVec
	HitsTotal      *prometheus.CounterVec
	MissesTotal    *prometheus.CounterVec
	EvictionsTotal *prometheus.CounterVec

	InstancesTotal prometheus.Gauge
	NodesTotal     prometheus.Gauge
	TEEInstances   prometheus.Gauge

	PubSubMessagesTotal *prometheus.CounterVec

	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec

	registerer prometheus.Registerer
	startTime  time.Time
}

// New creates a new Metrics instance registered against the default registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registerer.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_http_requests_total",
				Help: "Total number of HTTP requests handled by the cache service.",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cache_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cache_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_errors_total",
				Help: "Total number of errors grouped by code.",
			},
			[]string{"service", "code"},
		),
		KeysTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cache_keys_total",
				Help: "Current number of live keys, grouped by namespace.",
			},
			[]string{"namespace"},
		),
		MemoryBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cache_memory_bytes",
				Help: "Estimated memory footprint in bytes, grouped by namespace.",
			},
			[]string{"namespace"},
		),
		HitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of read operations that found a live key.",
			},
			[]string{"namespace"},
		),
		MissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of read operations that found no live key.",
			},
			[]string{"namespace"},
		),
		EvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_evictions_total",
				Help: "Total number of keys evicted, grouped by reason (lru|ttl|memory).",
			},
			[]string{"namespace", "reason"},
		),
		InstancesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cache_instances_total",
				Help: "Current number of resolved cache instances.",
			},
		),
		NodesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cache_nodes_total",
				Help: "Current number of registered worker nodes.",
			},
		),
		TEEInstances: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cache_tee_instances",
				Help: "Current number of TEE-wrapped instances.",
			},
		),
		PubSubMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_pubsub_messages_total",
				Help: "Total number of published messages, grouped by delivery outcome.",
			},
			[]string{"outcome"},
		),
		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cache_uptime_seconds",
				Help: "Service uptime in seconds.",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cache_service_info",
				Help: "Service build information.",
			},
			[]string{"service", "version", "environment"},
		),
		registerer: registerer,
		startTime:  time.Now(),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.KeysTotal,
			m.MemoryBytes,
			m.HitsTotal,
			m.MissesTotal,
			m.EvictionsTotal,
			m.InstancesTotal,
			m.NodesTotal,
			m.TEEInstances,
			m.PubSubMessagesTotal,
			m.ServiceUptime,
			m.ServiceInfo,
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", environment()).Set(1)

	return m
}

// RecordHTTPRequest records an HTTP request's outcome and duration.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError increments the error counter for a given service error code.
func (m *Metrics) RecordError(service, code string) {
	m.ErrorsTotal.WithLabelValues(service, code).Inc()
}

// RecordHit increments the per-namespace hit counter.
func (m *Metrics) RecordHit(namespace string) {
	m.HitsTotal.WithLabelValues(namespace).Inc()
}

// RecordMiss increments the per-namespace miss counter.
func (m *Metrics) RecordMiss(namespace string) {
	m.MissesTotal.WithLabelValues(namespace).Inc()
}

// RecordEviction increments the per-namespace eviction counter for the given reason.
func (m *Metrics) RecordEviction(namespace, reason string) {
	m.EvictionsTotal.WithLabelValues(namespace, reason).Inc()
}

// SetNamespaceStats publishes the current key count and memory footprint for a namespace.
func (m *Metrics) SetNamespaceStats(namespace string, keys int64, bytes int64) {
	m.KeysTotal.WithLabelValues(namespace).Set(float64(keys))
	m.MemoryBytes.WithLabelValues(namespace).Set(float64(bytes))
}

// RecordPubSubPublish records the outcome of a publish fan-out attempt.
func (m *Metrics) RecordPubSubPublish(delivered bool) {
	outcome := "delivered"
	if !delivered {
		outcome = "dropped"
	}
	m.PubSubMessagesTotal.WithLabelValues(outcome).Inc()
}

// SetInstancesTotal publishes the current number of resolved cache instances.
func (m *Metrics) SetInstancesTotal(n int) {
	m.InstancesTotal.Set(float64(n))
}

// SetNodesTotal publishes the current number of registered worker nodes.
func (m *Metrics) SetNodesTotal(n int) {
	m.NodesTotal.Set(float64(n))
}

// SetTEEInstances publishes the current number of TEE-wrapped instances.
func (m *Metrics) SetTEEInstances(n int) {
	m.TEEInstances.Set(float64(n))
}

// UpdateUptime refreshes the uptime gauge relative to the metrics instance's start time.
func (m *Metrics) UpdateUptime() {
	m.ServiceUptime.Set(time.Since(m.startTime).Seconds())
}

// IncrementInFlight increments the in-flight requests counter.
func (m *Metrics) IncrementInFlight() {
	m.RequestsInFlight.Inc()
}

// DecrementInFlight decrements the in-flight requests counter.
func (m *Metrics) DecrementInFlight() {
	m.RequestsInFlight.Dec()
}

func environment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env == "" {
		return "development"
	}
	return env
}

// Enabled returns whether Prometheus metrics should be exposed.
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return true
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance, creating a default one if needed.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New("edgecache")
	}
	return globalMetrics
}

// Handler returns an HTTP handler exposing metrics registered on the default registerer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// InstrumentHandler wraps an HTTP handler with request/duration/in-flight metrics.
func (m *Metrics) InstrumentHandler(serviceName string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.IncrementInFlight()
		defer m.DecrementInFlight()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		m.RecordHTTPRequest(serviceName, strings.ToUpper(r.Method), canonicalPath(r.URL.Path), strconv.Itoa(rec.status), duration)
	})
}

// canonicalPath collapses variable path segments so the cardinality of the
// HTTP metric label set stays bounded.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 {
		return "/"
	}
	switch parts[0] {
	case "strings", "hashes", "lists", "sets", "zsets", "keys":
		if len(parts) >= 2 {
			return "/" + parts[0] + "/:key"
		}
	case "instances":
		if len(parts) >= 2 {
			return "/instances/:namespace"
		}
	}
	return "/" + parts[0]
}
