// Package metrics provides Prometheus metrics for the overcall game service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the game service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	deltaBuckets   []float64
	constLabels    prometheus.Labels
	registry       prometheus.Registerer

	// Game
	predictionsSubmitted prometheus.Counter
	predictionsRejected  *prometheus.CounterVec
	roundTransitions     *prometheus.CounterVec
	roundOpen            prometheus.Gauge
	teamsTotal           prometheus.Gauge
	leaderboardReads     prometheus.Counter
	duplicateRequests    prometheus.Counter

	// Scoring
	scoringLatency  prometheus.Histogram
	scoringRetries  prometheus.Counter
	scoringFailures prometheus.Counter
	scoreDelta      prometheus.Histogram
	teamsScored     prometheus.Counter

	// Event stream
	eventsPublished   *prometheus.CounterVec
	eventsDropped     *prometheus.CounterVec
	streamSubscribers prometheus.Gauge

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "overcall",
		subsystem:      "game",
		latencyBuckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		deltaBuckets:   []float64{-40, -30, -20, -10, -5, 0, 5, 10},
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.latencyBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.predictionsSubmitted = m.counter("predictions_submitted_total", "Predictions accepted by the ledger")
	m.predictionsRejected = m.counterVec("predictions_rejected_total", "Predictions rejected, by reason", "reason")
	m.roundTransitions = m.counterVec("round_transitions_total", "Round state changes", "transition")
	m.roundOpen = m.gauge("round_open", "1 while the round accepts predictions")
	m.teamsTotal = m.gauge("teams_total", "Number of provisioned teams")
	m.leaderboardReads = m.counter("leaderboard_reads_total", "Leaderboard reads")
	m.duplicateRequests = m.counter("duplicate_requests_total", "Admin requests acknowledged as duplicates")

	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Time to score one round", m.latencyBuckets)
	m.scoringRetries = m.counter("scoring_retries_total", "Score batches recomputed after a version conflict")
	m.scoringFailures = m.counter("scoring_failures_total", "Rounds that failed to score")
	m.scoreDelta = m.histogram("score_delta", "Per-team score change before the zero floor",
		m.deltaBuckets)
	m.teamsScored = m.counter("teams_scored_total", "Team score updates applied")

	m.eventsPublished = m.counterVec("events_published_total", "Events published, by type", "type")
	m.eventsDropped = m.counterVec("events_dropped_total", "Events dropped for slow subscribers, by type", "type")
	m.streamSubscribers = m.gauge("stream_subscribers", "Live event stream subscribers")

	m.storeLatency = m.histogramVec("store_operation_latency_milliseconds", "Store call latency", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Store call failures", "operation")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Most recent GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordPredictionSubmitted increments accepted predictions.
func RecordPredictionSubmitted() {
	globalManager.predictionsSubmitted.Inc()
}

// RecordPredictionRejected increments rejected predictions for reason.
func RecordPredictionRejected(reason string) {
	globalManager.predictionsRejected.WithLabelValues(reason).Inc()
}

// RecordRoundTransition counts an opened, closed or scored round.
func RecordRoundTransition(transition string) {
	globalManager.roundTransitions.WithLabelValues(transition).Inc()
}

// UpdateRoundOpen sets the round gauge.
func UpdateRoundOpen(open bool) {
	if open {
		globalManager.roundOpen.Set(1)
		return
	}
	globalManager.roundOpen.Set(0)
}

// UpdateTeamsTotal sets the team count.
func UpdateTeamsTotal(count int) {
	globalManager.teamsTotal.Set(float64(count))
}

// RecordLeaderboardRead increments leaderboard reads.
func RecordLeaderboardRead() {
	globalManager.leaderboardReads.Inc()
}

// RecordDuplicateRequest increments acknowledged duplicates.
func RecordDuplicateRequest() {
	globalManager.duplicateRequests.Inc()
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordScoringRetry increments version conflict retries.
func RecordScoringRetry() {
	globalManager.scoringRetries.Inc()
}

// RecordScoringFailure increments failed rounds.
func RecordScoringFailure() {
	globalManager.scoringFailures.Inc()
}

// RecordScoreDelta observes one team's delta.
func RecordScoreDelta(delta int) {
	globalManager.scoreDelta.Observe(float64(delta))
	globalManager.teamsScored.Inc()
}

// RecordEventPublished counts a published event.
func RecordEventPublished(eventType string) {
	globalManager.eventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventDropped counts an event a subscriber missed.
func RecordEventDropped(eventType string) {
	globalManager.eventsDropped.WithLabelValues(eventType).Inc()
}

// UpdateStreamSubscribers sets the subscriber gauge.
func UpdateStreamSubscribers(count int) {
	globalManager.streamSubscribers.Set(float64(count))
}

// RecordStoreOperation records store call latency in milliseconds.
func RecordStoreOperation(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError counts a failed store call.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
