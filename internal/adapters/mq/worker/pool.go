// Package worker runs the per-stage worker pools.
//
// A pool pulls jobs from its stage queue, invokes the stage runner, and
// either hands the returned job to the next stage's queue or terminates the
// run. Errors are classified through the model sentinels: validation and
// fatal errors dead-letter the job, transient errors retry with exponential
// backoff up to a cap, lock contention requeues the job with a delay.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/prepline/internal/adapters/mq/queue"
	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/pkg/logger"
	"github.com/okian/prepline/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultWorkers      = 4
	defaultMaxRetries   = 3
	defaultRetryBase    = 2 * time.Second
	defaultRequeueDelay = 250 * time.Millisecond
)

// StageRunner executes one stage for one job. A nil next job marks the
// terminal stage.
type StageRunner interface {
	Stage() model.Stage
	Run(ctx context.Context, job model.Job) (*model.Job, error)
}

// Lease is the slice of the lease manager the pool consumes.
type Lease interface {
	Acquire(ctx context.Context, key, holder string) bool
	Release(ctx context.Context, key, holder string)
}

// Registry is the slice of the run registry the pool consumes.
type Registry interface {
	MarkQueued(ctx context.Context, pipelineID string, stage model.Stage)
	MarkRunning(ctx context.Context, pipelineID string, stage model.Stage)
	MarkComplete(ctx context.Context, pipelineID string)
	MarkFailed(ctx context.Context, pipelineID string, stage model.Stage, cause error)
}

// Pool is a fixed-size worker pool bound to one stage queue.
type Pool struct {
	runner StageRunner
	source queue.Queue
	next   queue.Queue // nil for the terminal stage
	lease  Lease
	runs   Registry
	dead   DeadLetterSink
	log    logger.Logger

	workers      int
	maxRetries   uint64
	retryBase    time.Duration
	requeueDelay time.Duration

	wg sync.WaitGroup
}

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMaxRetries caps retry attempts for transient errors.
func WithMaxRetries(n uint64) Option {
	return func(p *Pool) {
		p.maxRetries = n
	}
}

// WithRetryBase sets the initial backoff interval.
func WithRetryBase(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.retryBase = d
		}
	}
}

// WithRequeueDelay sets the delay applied when a job is requeued after
// losing the lease race.
func WithRequeueDelay(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.requeueDelay = d
		}
	}
}

// WithDeadLetterSink replaces the dead-letter sink.
func WithDeadLetterSink(sink DeadLetterSink) Option {
	return func(p *Pool) {
		if sink != nil {
			p.dead = sink
		}
	}
}

// NewPool creates a worker pool for one stage. next is nil for the terminal
// stage.
func NewPool(runner StageRunner, source, next queue.Queue, lease Lease, runs Registry, opts ...Option) *Pool {
	p := &Pool{
		runner:       runner,
		source:       source,
		next:         next,
		lease:        lease,
		runs:         runs,
		dead:         NewDeadLetter(defaultDeadLetterCap),
		log:          logger.Named("worker." + string(runner.Stage())),
		workers:      defaultWorkers,
		maxRetries:   defaultMaxRetries,
		retryBase:    defaultRetryBase,
		requeueDelay: defaultRequeueDelay,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start launches the workers. They exit when the source queue closes and
// drains, or when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
	p.log.Info(ctx, "worker pool started",
		logger.String("stage", string(p.runner.Stage())),
		logger.Int("workers", p.workers))
}

// Stop waits for all workers to finish. Close the source queue first.
func (p *Pool) Stop() {
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()

	ch := p.source.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			p.handle(ctx, job)
		}
	}
}

func (p *Pool) handle(ctx context.Context, job model.Job) {
	key := job.Key()

	if !p.lease.Acquire(ctx, key, job.PipelineID) {
		metrics.RecordLeaseContention()
		p.requeue(ctx, job, fmt.Errorf("%w: key %s held by another run", model.ErrLockContention, key))
		return
	}

	p.runs.MarkRunning(ctx, job.PipelineID, job.Stage)
	start := time.Now()

	var next *model.Job
	op := func() error {
		n, err := p.runner.Run(ctx, job)
		if err != nil {
			if errors.Is(err, model.ErrTransient) {
				metrics.RecordStageRetry(string(job.Stage))
				return err
			}
			return backoff.Permanent(err)
		}
		next = n
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.retryBase
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, p.maxRetries), ctx))

	metrics.RecordStageProcessed(string(job.Stage))
	metrics.RecordStageLatency(string(job.Stage), float64(time.Since(start).Milliseconds()))

	if err != nil {
		if errors.Is(err, model.ErrLockContention) {
			p.requeue(ctx, job, err)
			return
		}
		if errors.Is(err, model.ErrTransient) {
			err = fmt.Errorf("%w: retry budget exhausted: %w", model.ErrFatal, err)
		}
		p.fail(ctx, job, err)
		return
	}

	if next == nil {
		p.runs.MarkComplete(ctx, job.PipelineID)
		p.lease.Release(ctx, key, job.PipelineID)
		return
	}

	p.runs.MarkQueued(ctx, next.PipelineID, next.Stage)
	if !p.next.Enqueue(ctx, *next) {
		p.fail(ctx, job, fmt.Errorf("%w: %s queue rejected handoff", model.ErrFatal, next.Stage))
	}
}

// requeue puts a contended job back on the stage queue with a delay. Not a
// failure: the run stays queued and retries once the current holder is done.
func (p *Pool) requeue(ctx context.Context, job model.Job, cause error) {
	p.log.Debug(ctx, "requeueing contended job",
		logger.String("pipeline_id", job.PipelineID),
		logger.Error(cause))
	if !p.source.EnqueueAfter(ctx, job, p.requeueDelay) {
		p.fail(ctx, job, fmt.Errorf("%w: requeue rejected", model.ErrFatal))
	}
}

// fail dead-letters the job, marks the run failed at this stage and frees
// the lease so later events for the key can proceed.
func (p *Pool) fail(ctx context.Context, job model.Job, cause error) {
	p.log.Error(ctx, "stage failed",
		logger.String("pipeline_id", job.PipelineID),
		logger.String("stage", string(job.Stage)),
		logger.Error(cause))

	p.dead.Add(ctx, job, cause)
	metrics.RecordStageDeadLetter(string(job.Stage))
	p.runs.MarkFailed(ctx, job.PipelineID, job.Stage, cause)
	p.lease.Release(ctx, job.Key(), job.PipelineID)
}
