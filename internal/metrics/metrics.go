package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LookupSource identifies how a resolution request was answered.
type LookupSource string

const (
	// LookupSourceTable records resolutions served by the ZIP lookup table.
	LookupSourceTable LookupSource = "table"
	// LookupSourceGeocoder records resolutions that fell back to geocoding.
	LookupSourceGeocoder LookupSource = "geocoder"
)

// CacheOperation identifies the result cache method being instrumented.
type CacheOperation string

const (
	// CacheOperationLookup records result cache lookup calls.
	CacheOperationLookup CacheOperation = "lookup"
	// CacheOperationStore records result cache store attempts.
	CacheOperationStore CacheOperation = "store"
)

// CacheLookupOutcome captures the result of a cache lookup.
type CacheLookupOutcome string

const (
	// CacheLookupHit indicates the lookup reused a cached payload.
	CacheLookupHit CacheLookupOutcome = "hit"
	// CacheLookupMiss indicates no cached payload was present.
	CacheLookupMiss CacheLookupOutcome = "miss"
	// CacheLookupError indicates the lookup failed due to an error.
	CacheLookupError CacheLookupOutcome = "error"
)

// Recorder publishes Prometheus metrics for lookup and upstream activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	lookupRequests *prometheus.CounterVec
	lookupLatency  *prometheus.HistogramVec

	cacheOperations *prometheus.CounterVec

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	lookupRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civiq",
		Subsystem: "lookup",
		Name:      "requests_total",
		Help:      "Total representative lookup requests processed.",
	}, []string{"source", "outcome", "multi_district"})

	lookupLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "civiq",
		Subsystem: "lookup",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for completed lookup requests.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"source", "outcome"})

	cacheOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civiq",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Result cache operations executed by the upstream clients.",
	}, []string{"operation", "result"})

	upstreamRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civiq",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Outbound calls to external government APIs.",
	}, []string{"dependency", "status_code"})

	upstreamLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "civiq",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for outbound upstream calls.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"dependency"})

	reg.MustRegister(lookupRequests, lookupLatency, cacheOperations, upstreamRequests, upstreamLatency)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:         reg,
		handler:          handler,
		lookupRequests:   lookupRequests,
		lookupLatency:    lookupLatency,
		cacheOperations:  cacheOperations,
		upstreamRequests: upstreamRequests,
		upstreamLatency:  upstreamLatency,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveLookup records the source, outcome, and latency of a completed
// resolution request.
func (r *Recorder) ObserveLookup(source LookupSource, outcome string, multiDistrict bool, duration time.Duration) {
	if r == nil {
		return
	}
	sourceLabel := normalizeLabel(string(source))
	outcomeLabel := normalizeLabel(outcome)
	multiLabel := "false"
	if multiDistrict {
		multiLabel = "true"
	}
	r.lookupRequests.WithLabelValues(sourceLabel, outcomeLabel, multiLabel).Inc()
	r.lookupLatency.WithLabelValues(sourceLabel, outcomeLabel).Observe(duration.Seconds())
}

// ObserveCache records the result of a cache operation.
func (r *Recorder) ObserveCache(operation CacheOperation, result string) {
	if r == nil {
		return
	}
	opLabel := string(operation)
	if opLabel == "" {
		opLabel = string(CacheOperationLookup)
	}
	r.cacheOperations.WithLabelValues(opLabel, normalizeLabel(result)).Inc()
}

// ObserveUpstream records one outbound call to an external dependency.
func (r *Recorder) ObserveUpstream(dependency string, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	depLabel := normalizeLabel(dependency)
	statusLabel := strconv.Itoa(statusCode)
	if statusCode <= 0 {
		statusLabel = "error"
	}
	r.upstreamRequests.WithLabelValues(depLabel, statusLabel).Inc()
	r.upstreamLatency.WithLabelValues(depLabel).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
