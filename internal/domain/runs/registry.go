// Package runs tracks pipeline run identity and lifecycle.
//
// The registry is the idempotency layer: a trigger computes a deterministic
// key from (user, topic, event) and Begin records it atomically, so external
// at-least-once delivery collapses to a single run. It also assigns the
// per-(user, topic) and per-user causality sequences and records the run's
// state machine transitions for the status endpoint.
package runs

import (
	"context"
	"sync"
	"time"

	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/pkg/metrics"
)

// Default registry configuration constants.
const (
	defaultMaxRuns = 100_000
)

// Status is the observable state of one pipeline run.
type Status struct {
	PipelineID string
	Stage      model.Stage
	State      model.RunState
	Error      string
	StartedAt  time.Time
	UpdatedAt  time.Time
}

// Registry records run identity, causality sequences and run status.
type Registry struct {
	mu       sync.Mutex
	byKey    map[string]string  // idempotency key -> pipeline ID
	statuses map[string]*Status // pipeline ID -> status
	order    []string           // pipeline IDs in begin order, for eviction
	seqs     map[string]uint64  // (user, topic) ordering key -> last sequence
	maxRuns  int
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithMaxRuns bounds the number of retained run records. When the bound is
// reached the oldest terminal runs are evicted first.
func WithMaxRuns(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxRuns = n
		}
	}
}

// NewRegistry creates a run registry with configuration options.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byKey:    make(map[string]string),
		statuses: make(map[string]*Status),
		seqs:     make(map[string]uint64),
		maxRuns:  defaultMaxRuns,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Begin atomically records an idempotency key. If the key was already
// recorded the existing pipeline ID is returned with dup=true and no state
// changes; otherwise the run is registered as queued at the mastery stage
// and the next causality sequences are assigned: one for orderKey, which
// guards (user, topic) records, and one for userKey, which guards records
// scoped to the whole user. The two spaces never collide because orderKey
// always contains the "/" separator and userKey never does.
func (r *Registry) Begin(ctx context.Context, key, orderKey, userKey, pipelineID string) (id string, seq, userSeq uint64, dup bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byKey[key]; ok {
		return existing, 0, 0, true
	}

	r.seqs[orderKey]++
	r.seqs[userKey]++
	now := time.Now()
	r.byKey[key] = pipelineID
	r.statuses[pipelineID] = &Status{
		PipelineID: pipelineID,
		Stage:      model.StageMastery,
		State:      model.StateQueued,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	r.order = append(r.order, pipelineID)
	r.evictLocked()

	return pipelineID, r.seqs[orderKey], r.seqs[userKey], false
}

// evictLocked drops the oldest terminal runs above the retention bound.
// Must be called with r.mu held.
func (r *Registry) evictLocked() {
	if len(r.order) <= r.maxRuns {
		return
	}
	kept := r.order[:0]
	excess := len(r.order) - r.maxRuns
	for _, id := range r.order {
		st, ok := r.statuses[id]
		if excess > 0 && ok && st.State.Terminal() {
			delete(r.statuses, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

// Abort removes a run that never entered the pipeline, freeing its
// idempotency key so the event source can retry the delivery.
func (r *Registry) Abort(ctx context.Context, key, pipelineID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byKey, key)
	delete(r.statuses, pipelineID)
	for i, id := range r.order {
		if id == pipelineID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// MarkQueued records that the run is waiting on a stage queue.
func (r *Registry) MarkQueued(ctx context.Context, pipelineID string, stage model.Stage) {
	r.transition(pipelineID, stage, model.StateQueued, "")
}

// MarkRunning records that a worker picked up the stage job.
func (r *Registry) MarkRunning(ctx context.Context, pipelineID string, stage model.Stage) {
	r.transition(pipelineID, stage, model.StateRunning, "")
}

// MarkComplete records terminal success and observes the run duration.
func (r *Registry) MarkComplete(ctx context.Context, pipelineID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.statuses[pipelineID]
	if !ok || st.State.Terminal() {
		return
	}
	st.Stage = model.StageSnapshot
	st.State = model.StateComplete
	st.UpdatedAt = time.Now()
	metrics.RecordPipelineCompleted()
	metrics.RecordPipelineDuration(float64(st.UpdatedAt.Sub(st.StartedAt).Milliseconds()))
}

// MarkFailed records terminal failure at the given stage.
func (r *Registry) MarkFailed(ctx context.Context, pipelineID string, stage model.Stage, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	r.transition(pipelineID, stage, model.StateFailed, msg)
	metrics.RecordPipelineFailed(string(stage))
}

func (r *Registry) transition(pipelineID string, stage model.Stage, state model.RunState, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.statuses[pipelineID]
	if !ok || st.State.Terminal() {
		// Terminal states are final; late transitions are dropped.
		return
	}
	st.Stage = stage
	st.State = state
	st.Error = errMsg
	st.UpdatedAt = time.Now()
}

// Status returns the current status of a run.
func (r *Registry) Status(ctx context.Context, pipelineID string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.statuses[pipelineID]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// Size returns the number of retained run records.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}
