// Package queue defines the contract for enqueuing and consuming stage jobs.
//
// Each pipeline stage owns one queue. Jobs are delivered highest priority
// first (interactive submissions before batch imports), then in causality
// order. Cross-stage handoff happens exclusively through these queues; no
// stage ever calls the next one directly.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 100_000
)

// Job is the payload type flowing through stage queues.
type Job = model.Job

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job to the queue.
	// Returns false if the queue is full or closed and the job was not enqueued.
	Enqueue(ctx context.Context, j Job) bool

	// EnqueueAfter schedules a job to become eligible after delay. Used for
	// delayed requeue on lease contention.
	EnqueueAfter(ctx context.Context, j Job, delay time.Duration) bool

	// Dequeue returns a channel that receives jobs as they become eligible.
	// The channel is closed when the queue is closed and drained, or when the
	// contexts of all registered consumers end.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs, including delayed ones.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue. Queued jobs, including delayed
	// requeues whose timers have not fired yet, are still delivered; new
	// enqueues are rejected.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// jobHeap orders jobs by priority desc, then causality sequence asc, then
// enqueue time asc.
type jobHeap []Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	if h[i].Seq != h[j].Seq {
		return h[i].Seq < h[j].Seq
	}
	return h[i].EnqueuedAt.Before(h[j].EnqueuedAt)
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PriorityQueue implements Queue with a heap behind a single dispatcher
// goroutine feeding an unbuffered delivery channel.
type PriorityQueue struct {
	stage    string
	capacity int

	mu        sync.Mutex
	heap      jobHeap
	delayed   int // jobs parked on timers, counted against capacity
	closed    bool
	consumers int // consumers registered with a cancellable context

	notify chan struct{}
	out    chan Job
	done   chan struct{} // closed when every registered consumer is gone
	once   sync.Once
}

// Option applies a configuration option to the PriorityQueue.
type Option func(*PriorityQueue)

// WithCapacity sets the maximum number of queued jobs.
func WithCapacity(capacity int) Option {
	return func(q *PriorityQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// NewPriorityQueue creates a stage queue. The stage name labels metrics.
func NewPriorityQueue(stage string, opts ...Option) *PriorityQueue {
	q := &PriorityQueue{
		stage:    stage,
		capacity: defaultCapacity,
		notify:   make(chan struct{}, 1),
		out:      make(chan Job),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(q)
	}

	metrics.UpdateQueueCapacity(stage, q.capacity)
	metrics.UpdateQueueDepth(stage, 0)

	go q.dispatch()

	return q
}

// Enqueue adds a job to the queue.
func (q *PriorityQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.Lock()

	if q.closed || len(q.heap)+q.delayed >= q.capacity {
		q.mu.Unlock()
		metrics.RecordQueueEnqueueError(q.stage)
		return false
	}

	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = time.Now()
	}
	heap.Push(&q.heap, j)
	depth := len(q.heap) + q.delayed
	q.mu.Unlock()

	metrics.RecordQueueEnqueue(q.stage)
	metrics.UpdateQueueDepth(q.stage, depth)
	q.wake()
	return true
}

// EnqueueAfter parks a job on a timer and enqueues it when the delay elapses.
func (q *PriorityQueue) EnqueueAfter(ctx context.Context, j Job, delay time.Duration) bool {
	if delay <= 0 {
		return q.Enqueue(ctx, j)
	}

	q.mu.Lock()
	if q.closed || len(q.heap)+q.delayed >= q.capacity {
		q.mu.Unlock()
		metrics.RecordQueueEnqueueError(q.stage)
		return false
	}
	q.delayed++
	q.mu.Unlock()

	metrics.RecordQueueRequeue(q.stage)
	j.NotBefore = time.Now().Add(delay)

	// The job is pushed even when the queue closed in the meantime: Close
	// promises that accepted jobs drain, and the dispatcher waits for parked
	// timers before closing the channel.
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		q.delayed--
		heap.Push(&q.heap, j)
		q.mu.Unlock()
		q.wake()
	})
	return true
}

// Dequeue returns the shared delivery channel. Multiple workers may receive
// from it concurrently. A consumer with a cancellable context is registered
// so the dispatcher can stop once every such consumer is gone instead of
// blocking forever on a delivery nobody will take.
func (q *PriorityQueue) Dequeue(ctx context.Context) <-chan Job {
	if ctx.Done() != nil {
		q.mu.Lock()
		q.consumers++
		q.mu.Unlock()

		go func() {
			<-ctx.Done()
			q.mu.Lock()
			q.consumers--
			last := q.consumers == 0
			q.mu.Unlock()
			if last {
				q.once.Do(func() { close(q.done) })
			}
		}()
	}
	return q.out
}

// Len returns the current number of queued jobs.
func (q *PriorityQueue) Len(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap) + q.delayed
}

// Close gracefully shuts down the queue.
func (q *PriorityQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.wake()
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *PriorityQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *PriorityQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// dispatch pumps jobs from the heap to the delivery channel in priority
// order, one at a time. A job held for delivery is put back whenever a new
// enqueue signals, so a higher-priority arrival is never bypassed by a job
// already in hand.
func (q *PriorityQueue) dispatch() {
	for {
		q.mu.Lock()
		var (
			job  Job
			have bool
		)
		if len(q.heap) > 0 {
			job = heap.Pop(&q.heap).(Job)
			have = true
		}
		closed := q.closed
		delayed := q.delayed
		q.mu.Unlock()

		if !have {
			// Parked timers still owe jobs; the channel must not close
			// until they fire and drain.
			if closed && delayed == 0 {
				close(q.out)
				return
			}
			select {
			case <-q.notify:
			case <-q.done:
				close(q.out)
				return
			}
			continue
		}

		// Drain a pending signal before committing to this job.
		select {
		case <-q.notify:
			q.pushBack(job)
			continue
		default:
		}

		// Deliver even when closing so queued work drains before the channel
		// closes.
		select {
		case q.out <- job:
			metrics.RecordQueueDequeue(q.stage)
			q.mu.Lock()
			depth := len(q.heap) + q.delayed
			q.mu.Unlock()
			metrics.UpdateQueueDepth(q.stage, depth)
		case <-q.notify:
			q.pushBack(job)
		case <-q.done:
			q.pushBack(job)
			close(q.out)
			return
		}
	}
}

func (q *PriorityQueue) pushBack(j Job) {
	q.mu.Lock()
	heap.Push(&q.heap, j)
	q.mu.Unlock()
}
