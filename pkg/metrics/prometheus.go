// Package metrics provides Prometheus metrics for the ladder matchmaking service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultNamespace = "ladder"
	defaultSubsystem = "matchmaking"
)

// Manager manages all Prometheus metrics for the ladder service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Matchmaking metrics
	gamesRecorded     *prometheus.CounterVec
	opponentChoices   *prometheus.CounterVec
	opponentSwitches  prometheus.Counter
	recalibrations    prometheus.Counter
	matchQuality      prometheus.Histogram
	agentMu           *prometheus.GaugeVec
	agentSigma        *prometheus.GaugeVec
	opponentMu        *prometheus.GaugeVec
	opponentSigma     *prometheus.GaugeVec
	activeManagers    prometheus.Gauge
	preconditionFails *prometheus.CounterVec
	duplicateOutcomes prometheus.Counter

	// Store metrics
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		subsystem:        defaultSubsystem,
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.gamesRecorded = auto.NewCounterVec(
		m.counterOpts("games_recorded_total", "Total number of game outcomes recorded"),
		[]string{"outcome"},
	)
	m.opponentChoices = auto.NewCounterVec(
		m.counterOpts("opponent_choices_total", "Total number of opponent selections by level"),
		[]string{"level"},
	)
	m.opponentSwitches = auto.NewCounter(
		m.counterOpts("opponent_switches_total", "Total number of times the selected opponent changed"),
	)
	m.recalibrations = auto.NewCounter(
		m.counterOpts("recalibrations_total", "Total number of opponent recalibration rounds"),
	)
	m.matchQuality = auto.NewHistogram(
		m.histogramOpts("match_quality", "Match quality of the chosen opponent",
			prometheus.LinearBuckets(0.05, 0.05, 19)),
	)
	m.agentMu = auto.NewGaugeVec(
		m.gaugeOpts("agent_mu", "Current mean skill of an agent"),
		[]string{"player"},
	)
	m.agentSigma = auto.NewGaugeVec(
		m.gaugeOpts("agent_sigma", "Current skill uncertainty of an agent"),
		[]string{"player"},
	)
	m.opponentMu = auto.NewGaugeVec(
		m.gaugeOpts("opponent_mu", "Current mean skill of an opponent tier"),
		[]string{"player", "level"},
	)
	m.opponentSigma = auto.NewGaugeVec(
		m.gaugeOpts("opponent_sigma", "Current skill uncertainty of an opponent tier"),
		[]string{"player", "level"},
	)
	m.activeManagers = auto.NewGauge(
		m.gaugeOpts("active_managers", "Number of loaded matchmaking managers"),
	)
	m.preconditionFails = auto.NewCounterVec(
		m.counterOpts("precondition_failures_total", "Operations rejected because they were called out of sequence"),
		[]string{"operation"},
	)
	m.duplicateOutcomes = auto.NewCounter(
		m.counterOpts("duplicate_outcomes_total", "Outcome reports ignored because their idempotency key was already seen"),
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Store operation latency in milliseconds", m.histogramBuckets),
		[]string{"operation"},
	)
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Total number of failed store operations"),
		[]string{"operation"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// RecordGame increments the recorded games counter for outcome.
func RecordGame(outcome string) {
	globalManager.gamesRecorded.WithLabelValues(outcome).Inc()
}

// RecordOpponentChoice counts a selection of level and observes its match quality.
func RecordOpponentChoice(level int, quality float64) {
	globalManager.opponentChoices.WithLabelValues(strconv.Itoa(level)).Inc()
	globalManager.matchQuality.Observe(quality)
}

// RecordOpponentSwitch increments the opponent switch counter.
func RecordOpponentSwitch() {
	globalManager.opponentSwitches.Inc()
}

// RecordRecalibration increments the recalibration counter.
func RecordRecalibration() {
	globalManager.recalibrations.Inc()
}

// RecordPreconditionFailure counts an out-of-sequence call to operation.
func RecordPreconditionFailure(operation string) {
	globalManager.preconditionFails.WithLabelValues(operation).Inc()
}

// UpdateAgentRating sets the rating gauges of player.
func UpdateAgentRating(player string, mu, sigma float64) {
	globalManager.agentMu.WithLabelValues(player).Set(mu)
	globalManager.agentSigma.WithLabelValues(player).Set(sigma)
}

// UpdateOpponentRating sets the rating gauges of one of player's opponent tiers.
func UpdateOpponentRating(player string, level int, mu, sigma float64) {
	l := strconv.Itoa(level)
	globalManager.opponentMu.WithLabelValues(player, l).Set(mu)
	globalManager.opponentSigma.WithLabelValues(player, l).Set(sigma)
}

// UpdateActiveManagers sets the number of loaded managers.
func UpdateActiveManagers(count int) {
	globalManager.activeManagers.Set(float64(count))
}

// RecordDuplicateOutcome counts an outcome report replayed with a known key.
func RecordDuplicateOutcome() {
	globalManager.duplicateOutcomes.Inc()
}

// RecordStoreLatency records store operation latency in milliseconds.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError increments the store error counter.
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
