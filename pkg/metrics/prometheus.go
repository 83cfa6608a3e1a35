// Package metrics provides Prometheus metrics for the breakfast draw service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Draw engine
	draws            *prometheus.CounterVec
	drawErrors       *prometheus.CounterVec
	confirmations    prometheus.Counter
	ratingUpdates    prometheus.Counter
	ratingFeedback   prometheus.Histogram
	ratingValue      prometheus.Histogram
	catalogSize      prometheus.Gauge
	recipesAdded     *prometheus.CounterVec
	selectionLatency prometheus.Histogram

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Reminder queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueUtilization        prometheus.Gauge
	queueEnqueue            prometheus.Counter
	queueDequeue            prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Reminders and notifications
	remindersScheduled prometheus.Counter
	remindersDuplicate prometheus.Counter
	notifications      *prometheus.CounterVec

	// Advisor
	advisorRequests *prometheus.CounterVec
	advisorLatency  *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByComponent   *prometheus.CounterVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps default Go collectors out of /metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "breakfast",
		subsystem:        "draw",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval reports how often background gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) counter(auto promauto.Factory, name, help string) prometheus.Counter {
	return auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.CounterVec {
	return auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(auto promauto.Factory, name, help string) prometheus.Gauge {
	return auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(auto promauto.Factory, name, help string, buckets []float64) prometheus.Histogram {
	return auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.HistogramVec {
	return auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	ratingBuckets := []float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5}

	m.draws = m.counterVec(auto, "draws_total", "Draw requests by outcome (provisional, already_confirmed, quick)", "outcome")
	m.drawErrors = m.counterVec(auto, "draw_errors_total", "Failed draw engine operations by operation and reason", "operation", "reason")
	m.confirmations = m.counter(auto, "confirmations_total", "Confirmed draws")
	m.ratingUpdates = m.counter(auto, "rating_updates_total", "Applied rating feedback events")
	m.ratingFeedback = m.histogram(auto, "rating_feedback", "Clamped feedback values submitted by users", ratingBuckets)
	m.ratingValue = m.histogram(auto, "rating_value", "Recipe ratings after an update", ratingBuckets)
	m.catalogSize = m.gauge(auto, "catalog_recipes", "Number of recipes in the catalog")
	m.recipesAdded = m.counterVec(auto, "recipes_added_total", "Recipes added to the catalog by source", "source")
	m.selectionLatency = m.histogram(auto, "selection_latency_milliseconds", "Weighted selection latency in milliseconds", m.histogramBuckets)

	m.storeLatency = m.histogramVec(auto, "store_latency_milliseconds", "Store operation latency in milliseconds", "driver", "operation")
	m.storeErrors = m.counterVec(auto, "store_errors_total", "Store operation failures", "driver", "operation")

	m.queueSize = m.gauge(auto, "reminder_queue_size", "Reminder jobs waiting in the queue")
	m.queueCapacity = m.gauge(auto, "reminder_queue_capacity", "Maximum reminder queue capacity")
	m.queueUtilization = m.gauge(auto, "reminder_queue_utilization_ratio", "Reminder queue utilization (size / capacity)")
	m.queueEnqueue = m.counter(auto, "reminder_queue_enqueue_total", "Reminder jobs enqueued")
	m.queueDequeue = m.counter(auto, "reminder_queue_dequeue_total", "Reminder jobs dequeued")
	m.queueEnqueueErrors = m.counter(auto, "reminder_queue_enqueue_errors_total", "Reminder jobs rejected by the queue")
	m.workerActiveCount = m.gauge(auto, "reminder_workers", "Reminder workers running")
	m.workerProcessingLatency = m.histogram(auto, "reminder_worker_latency_milliseconds", "Reminder job processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter(auto, "reminder_worker_errors_total", "Reminder jobs that failed")

	m.remindersScheduled = m.counter(auto, "reminders_scheduled_total", "Reminders produced by the daily schedule or on demand")
	m.remindersDuplicate = m.counter(auto, "reminders_duplicate_total", "Reminders skipped because the date was already notified")
	m.notifications = m.counterVec(auto, "notifications_total", "Notification deliveries by channel and status", "channel", "status")

	m.advisorRequests = m.counterVec(auto, "advisor_requests_total", "Advisor calls by provider, operation and status", "provider", "operation", "status")
	m.advisorLatency = m.histogramVec(auto, "advisor_latency_milliseconds", "Advisor call latency in milliseconds", "provider")
	m.breakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)", ConstLabels: m.customLabels,
	}, []string{"name"})

	m.httpRequests = m.counterVec(auto, "http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec(auto, "http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorsByComponent = m.counterVec(auto, "errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec(auto, "errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge(auto, "system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge(auto, "system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram(auto, "system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Draw engine.

// RecordDraw counts a draw by outcome.
func RecordDraw(outcome string) { globalManager.draws.WithLabelValues(outcome).Inc() }

// RecordDrawError counts a failed draw engine operation.
func RecordDrawError(operation, reason string) {
	globalManager.drawErrors.WithLabelValues(operation, reason).Inc()
}

// RecordConfirmation counts a confirmed draw.
func RecordConfirmation() { globalManager.confirmations.Inc() }

// RecordRatingUpdate records the clamped feedback and resulting rating.
func RecordRatingUpdate(feedback, rating float64) {
	globalManager.ratingUpdates.Inc()
	globalManager.ratingFeedback.Observe(feedback)
	globalManager.ratingValue.Observe(rating)
}

// UpdateCatalogSize sets the catalog size gauge.
func UpdateCatalogSize(n int) { globalManager.catalogSize.Set(float64(n)) }

// RecordRecipeAdded counts a recipe added from source (seed, generated, image).
func RecordRecipeAdded(source string) { globalManager.recipesAdded.WithLabelValues(source).Inc() }

// RecordSelectionLatency records weighted selection latency.
func RecordSelectionLatency(latencyMs float64) { globalManager.selectionLatency.Observe(latencyMs) }

// Store.

// RecordStoreLatency records how long a store operation took.
func RecordStoreLatency(driver, operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(driver, operation).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(driver, operation string) {
	globalManager.storeErrors.WithLabelValues(driver, operation).Inc()
}

// Reminder queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records reminder job latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// Reminders.

// RecordReminderScheduled counts a produced reminder job.
func RecordReminderScheduled() { globalManager.remindersScheduled.Inc() }

// RecordReminderDuplicate counts a reminder skipped by the dedupe ledger.
func RecordReminderDuplicate() { globalManager.remindersDuplicate.Inc() }

// RecordNotification counts a delivery attempt for channel with status ok or error.
func RecordNotification(channel, status string) {
	globalManager.notifications.WithLabelValues(channel, status).Inc()
}

// Advisor.

// RecordAdvisorRequest counts an advisor call.
func RecordAdvisorRequest(provider, operation, status string) {
	globalManager.advisorRequests.WithLabelValues(provider, operation, status).Inc()
}

// RecordAdvisorLatency records the latency of an upstream chat call.
func RecordAdvisorLatency(provider string, latencyMs float64) {
	globalManager.advisorLatency.WithLabelValues(provider).Observe(latencyMs)
}

// UpdateBreakerState sets the numeric state of a named circuit breaker.
func UpdateBreakerState(name string, state int) {
	globalManager.breakerState.WithLabelValues(name).Set(float64(state))
}

// HTTP.

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
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// Setup replaces the global manager with one built from opts on a fresh
// registry. Call it once at startup, before anything records.
func Setup(opts ...Option) {
	reg := prometheus.NewRegistry()
	all := make([]Option, 0, len(opts)+1)
	all = append(all, opts...)
	globalManager = NewManager(append(all, WithPrometheusRegistry(reg))...)
	customRegistry = reg
}

// GetRegistry returns the registry served on /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
