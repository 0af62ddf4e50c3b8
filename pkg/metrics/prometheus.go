// Package metrics provides Prometheus metrics for the prepline intelligence pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the pipeline service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Pipeline metrics - one run per learning event, five stages per run.
	pipelinesTriggered prometheus.Counter
	pipelinesDuplicate prometheus.Counter
	pipelinesCompleted prometheus.Counter
	pipelinesFailed    *prometheus.CounterVec // labeled by stage
	pipelineDuration   prometheus.Histogram

	// Stage metrics.
	stageJobsProcessed *prometheus.CounterVec   // labeled by stage
	stageLatency       *prometheus.HistogramVec // labeled by stage
	stageRetries       *prometheus.CounterVec   // labeled by stage
	stageDeadLetters   *prometheus.CounterVec   // labeled by stage
	staleWritesSkipped *prometheus.CounterVec   // labeled by stage

	// Prediction service metrics.
	predictionLatency   *prometheus.HistogramVec // labeled by stage
	predictionErrors    *prometheus.CounterVec   // labeled by stage
	predictionFallbacks *prometheus.CounterVec   // labeled by stage

	// Queue metrics - per stage queue.
	queueDepth         *prometheus.GaugeVec // labeled by stage
	queueCapacity      *prometheus.GaugeVec // labeled by stage
	queueEnqueues      *prometheus.CounterVec
	queueDequeues      *prometheus.CounterVec
	queueEnqueueErrors *prometheus.CounterVec
	queueRequeues      *prometheus.CounterVec // delayed requeues (lease contention)

	// Lease metrics.
	leaseContention prometheus.Counter
	leaseExpiries   prometheus.Counter
	leasesHeld      prometheus.Gauge

	// Store metrics.
	storeWriteLatency prometheus.Histogram
	storeReadLatency  prometheus.Histogram
	storeRecords      *prometheus.GaugeVec // labeled by collection

	// Snapshot metrics.
	snapshotRebuilds        prometheus.Counter
	snapshotRebuildDuration prometheus.Histogram
	snapshotLastUnix        prometheus.Gauge

	// HTTP metrics.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics.
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "prepline",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // metric registration is inherently long
	auto := promauto.With(m.registry)

	m.pipelinesTriggered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_triggered_total",
		Help:      "Total number of pipeline runs triggered by learning events",
	})

	m.pipelinesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_duplicate_total",
		Help:      "Total number of triggers deduplicated by idempotency key",
	})

	m.pipelinesCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_completed_total",
		Help:      "Total number of pipeline runs that reached the snapshot stage",
	})

	m.pipelinesFailed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_failed_total",
		Help:      "Total number of pipeline runs that terminated in a failed stage",
	}, []string{"stage"})

	m.pipelineDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_duration_milliseconds",
		Help:      "End-to-end pipeline run duration in milliseconds",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})

	m.stageJobsProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_jobs_processed_total",
		Help:      "Total number of stage jobs processed successfully",
	}, []string{"stage"})

	m.stageLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_latency_milliseconds",
		Help:      "Histogram of per-stage processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})

	m.stageRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_retries_total",
		Help:      "Total number of stage job retries after transient errors",
	}, []string{"stage"})

	m.stageDeadLetters = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_dead_letters_total",
		Help:      "Total number of stage jobs routed to the dead-letter sink",
	}, []string{"stage"})

	m.staleWritesSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stale_writes_skipped_total",
		Help:      "Total number of stage writes discarded by sequence ordering",
	}, []string{"stage"})

	m.predictionLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "prediction_latency_milliseconds",
		Help:      "Histogram of prediction service call latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})

	m.predictionErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "prediction_errors_total",
		Help:      "Total number of prediction service call failures",
	}, []string{"stage"})

	m.predictionFallbacks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "prediction_fallbacks_total",
		Help:      "Total number of predictions served by the local fallback model",
	}, []string{"stage"})

	m.queueDepth = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_depth",
		Help:      "Current number of jobs queued per stage",
	}, []string{"stage"})

	m.queueCapacity = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum queue capacity per stage",
	}, []string{"stage"})

	m.queueEnqueues = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueues_total",
		Help:      "Total number of jobs enqueued per stage",
	}, []string{"stage"})

	m.queueDequeues = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeues_total",
		Help:      "Total number of jobs dequeued per stage",
	}, []string{"stage"})

	m.queueEnqueueErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of rejected enqueues per stage (full or closed)",
	}, []string{"stage"})

	m.queueRequeues = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_requeues_total",
		Help:      "Total number of delayed requeues per stage",
	}, []string{"stage"})

	m.leaseContention = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "lease_contention_total",
		Help:      "Total number of jobs deferred because another run held the key lease",
	})

	m.leaseExpiries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "lease_expiries_total",
		Help:      "Total number of leases reclaimed after TTL expiry",
	})

	m.leasesHeld = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leases_held",
		Help:      "Current number of per-key leases held by live runs",
	})

	m.storeWriteLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_write_latency_milliseconds",
		Help:      "Histogram of store write latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeReadLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_read_latency_milliseconds",
		Help:      "Histogram of store read latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeRecords = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_records",
		Help:      "Current number of records per logical collection",
	}, []string{"collection"})

	m.snapshotRebuilds = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_rebuilds_total",
		Help:      "Total number of dashboard snapshot rebuilds",
	})

	m.snapshotRebuildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_rebuild_duration_milliseconds",
		Help:      "Histogram of snapshot rebuild duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.snapshotLastUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_last_rebuild_unix",
		Help:      "Unix timestamp of the most recent snapshot rebuild",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration by endpoint, method and status code",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// Pipeline metrics functions.

// RecordPipelineTriggered increments the triggered runs counter.
func RecordPipelineTriggered() {
	globalManager.pipelinesTriggered.Inc()
}

// RecordPipelineDuplicate increments the deduplicated triggers counter.
func RecordPipelineDuplicate() {
	globalManager.pipelinesDuplicate.Inc()
}

// RecordPipelineCompleted increments the completed runs counter.
func RecordPipelineCompleted() {
	globalManager.pipelinesCompleted.Inc()
}

// RecordPipelineFailed increments the failed runs counter for a stage.
func RecordPipelineFailed(stage string) {
	globalManager.pipelinesFailed.WithLabelValues(stage).Inc()
}

// RecordPipelineDuration records end-to-end run duration in milliseconds.
func RecordPipelineDuration(latencyMs float64) {
	globalManager.pipelineDuration.Observe(latencyMs)
}

// Stage metrics functions.

// RecordStageProcessed increments the processed jobs counter for a stage.
func RecordStageProcessed(stage string) {
	globalManager.stageJobsProcessed.WithLabelValues(stage).Inc()
}

// RecordStageLatency records per-stage processing latency in milliseconds.
func RecordStageLatency(stage string, latencyMs float64) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(latencyMs)
}

// RecordStageRetry increments the retry counter for a stage.
func RecordStageRetry(stage string) {
	globalManager.stageRetries.WithLabelValues(stage).Inc()
}

// RecordStageDeadLetter increments the dead-letter counter for a stage.
func RecordStageDeadLetter(stage string) {
	globalManager.stageDeadLetters.WithLabelValues(stage).Inc()
}

// RecordStaleWriteSkipped increments the stale-write counter for a stage.
func RecordStaleWriteSkipped(stage string) {
	globalManager.staleWritesSkipped.WithLabelValues(stage).Inc()
}

// Prediction service metrics functions.

// RecordPredictionLatency records prediction call latency in milliseconds.
func RecordPredictionLatency(stage string, latencyMs float64) {
	globalManager.predictionLatency.WithLabelValues(stage).Observe(latencyMs)
}

// RecordPredictionError increments the prediction error counter for a stage.
func RecordPredictionError(stage string) {
	globalManager.predictionErrors.WithLabelValues(stage).Inc()
}

// RecordPredictionFallback increments the fallback counter for a stage.
func RecordPredictionFallback(stage string) {
	globalManager.predictionFallbacks.WithLabelValues(stage).Inc()
}

// Queue metrics functions.

// UpdateQueueDepth sets the current queue depth for a stage.
func UpdateQueueDepth(stage string, depth int) {
	globalManager.queueDepth.WithLabelValues(stage).Set(float64(depth))
}

// UpdateQueueCapacity sets the maximum queue capacity for a stage.
func UpdateQueueCapacity(stage string, capacity int) {
	globalManager.queueCapacity.WithLabelValues(stage).Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter for a stage.
func RecordQueueEnqueue(stage string) {
	globalManager.queueEnqueues.WithLabelValues(stage).Inc()
}

// RecordQueueDequeue increments the dequeue counter for a stage.
func RecordQueueDequeue(stage string) {
	globalManager.queueDequeues.WithLabelValues(stage).Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter for a stage.
func RecordQueueEnqueueError(stage string) {
	globalManager.queueEnqueueErrors.WithLabelValues(stage).Inc()
}

// RecordQueueRequeue increments the delayed requeue counter for a stage.
func RecordQueueRequeue(stage string) {
	globalManager.queueRequeues.WithLabelValues(stage).Inc()
}

// Lease metrics functions.

// RecordLeaseContention increments the lease contention counter.
func RecordLeaseContention() {
	globalManager.leaseContention.Inc()
}

// RecordLeaseExpiry increments the lease expiry counter.
func RecordLeaseExpiry() {
	globalManager.leaseExpiries.Inc()
}

// UpdateLeasesHeld sets the current number of held leases.
func UpdateLeasesHeld(count int) {
	globalManager.leasesHeld.Set(float64(count))
}

// Store metrics functions.

// RecordStoreWriteLatency records store write latency in milliseconds.
func RecordStoreWriteLatency(latencyMs float64) {
	globalManager.storeWriteLatency.Observe(latencyMs)
}

// RecordStoreReadLatency records store read latency in milliseconds.
func RecordStoreReadLatency(latencyMs float64) {
	globalManager.storeReadLatency.Observe(latencyMs)
}

// UpdateStoreRecords sets the record count for a logical collection.
func UpdateStoreRecords(collection string, count int) {
	globalManager.storeRecords.WithLabelValues(collection).Set(float64(count))
}

// Snapshot metrics functions.

// RecordSnapshotRebuild records one snapshot rebuild with its duration.
func RecordSnapshotRebuild(durationMs float64) {
	globalManager.snapshotRebuilds.Inc()
	globalManager.snapshotRebuildDuration.Observe(durationMs)
	globalManager.snapshotLastUnix.Set(float64(time.Now().Unix()))
}

// HTTP metrics functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// System metrics functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
