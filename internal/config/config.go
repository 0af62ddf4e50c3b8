// Package config defines service configuration structures and loading hooks.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueCapacity bounds each stage's in-memory queue.
	QueueCapacity int `koanf:"queue_capacity"`

	// WorkersPerStage sets the pool size for every stage.
	WorkersPerStage int `koanf:"workers_per_stage"`

	// MaxRetries caps backoff retries for transient stage errors.
	MaxRetries int `koanf:"max_retries"`

	// RetryBase is the initial backoff interval for transient retries.
	RetryBase time.Duration `koanf:"retry_base"`

	// RequeueDelay is applied when a job loses the per-key lease race.
	RequeueDelay time.Duration `koanf:"requeue_delay"`

	// LeaseTTL bounds how long a dead run can hold a (user, topic) key.
	// Keep it slightly above the expected end-to-end run latency.
	LeaseTTL time.Duration `koanf:"lease_ttl"`

	// MaxRuns bounds retained pipeline status records.
	MaxRuns int `koanf:"max_runs"`

	// DeadLetterCap bounds the per-stage dead-letter sink.
	DeadLetterCap int `koanf:"dead_letter_cap"`

	// ShardCount configures the number of shards in the state store.
	ShardCount int `koanf:"shard_count"`

	// MaxRevisionLimit caps GET /revisions?limit.
	MaxRevisionLimit int `koanf:"max_revision_limit"`

	// PredictorEndpoint is the prediction service base URL. Empty keeps all
	// predictions on the in-process model.
	PredictorEndpoint string `koanf:"predictor_endpoint"`

	// PredictorTimeout bounds each prediction call.
	PredictorTimeout time.Duration `koanf:"predictor_timeout"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		QueueCapacity:    100_000,
		WorkersPerStage:  runtime.NumCPU() * 2,
		MaxRetries:       3,
		RetryBase:        2 * time.Second,
		RequeueDelay:     250 * time.Millisecond,
		LeaseTTL:         30 * time.Second,
		MaxRuns:          100_000,
		DeadLetterCap:    1000,
		ShardCount:       8,
		MaxRevisionLimit: 100,
		PredictorTimeout: 5 * time.Second,
	}
}
