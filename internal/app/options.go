package service

import (
	"time"

	"github.com/okian/prepline/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueCapacity bounds each stage queue.
func WithQueueCapacity(capacity int) Option {
	return func(s *Service) {
		if capacity > 0 {
			s.queueCapacity = capacity
		}
	}
}

// WithWorkersPerStage sets the pool size for every stage.
func WithWorkersPerStage(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workersPerStage = n
		}
	}
}

// WithMaxRetries caps backoff retries for transient stage errors.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = uint64(n)
		}
	}
}

// WithRetryBase sets the initial backoff interval for transient retries.
func WithRetryBase(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryBase = d
		}
	}
}

// WithRequeueDelay sets the delay for jobs that lose the lease race.
func WithRequeueDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.requeueDelay = d
		}
	}
}

// WithLeaseTTL sets the per-(user, topic) lease time-to-live.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.leaseTTL = ttl
		}
	}
}

// WithMaxRuns bounds retained pipeline status records.
func WithMaxRuns(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRuns = n
		}
	}
}

// WithDeadLetterCap bounds the dead-letter sink.
func WithDeadLetterCap(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.deadLetterCap = n
		}
	}
}

// WithShardCount configures the number of store shards.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithMaxRevisionLimit caps the revision queue page size.
func WithMaxRevisionLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRevisionLimit = n
		}
	}
}

// WithPredictorEndpoint sets the prediction service base URL. Empty keeps
// all predictions on the in-process model.
func WithPredictorEndpoint(endpoint string) Option {
	return func(s *Service) {
		s.predictorEndpoint = endpoint
	}
}

// WithPredictorTimeout bounds each prediction call.
func WithPredictorTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.predictorTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
