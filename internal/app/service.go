// Package service provides the core pipeline service that implements the
// dependencies required by the HTTP API.
//
// The service owns the orchestrator entry points (Trigger, PipelineStatus)
// and wires the store, run registry, lease manager, stage queues, prediction
// client and worker pools together.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	stagequeue "github.com/okian/prepline/internal/adapters/mq/queue"
	workerpool "github.com/okian/prepline/internal/adapters/mq/worker"
	"github.com/okian/prepline/internal/adapters/predictor"
	"github.com/okian/prepline/internal/adapters/repository"
	"github.com/okian/prepline/internal/domain/lease"
	"github.com/okian/prepline/internal/domain/mastery"
	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/internal/domain/readiness"
	"github.com/okian/prepline/internal/domain/revision"
	"github.com/okian/prepline/internal/domain/runs"
	"github.com/okian/prepline/internal/domain/snapshot"
	"github.com/okian/prepline/internal/domain/types"
	"github.com/okian/prepline/internal/domain/weakness"
	"github.com/okian/prepline/pkg/logger"
	"github.com/okian/prepline/pkg/metrics"
)

// pipelineNamespace seeds the deterministic pipeline IDs, so replaying an
// event always maps to the same pipeline.
var pipelineNamespace = uuid.MustParse("7d9f4a52-1c3e-4b8a-9f60-2f8f3f6c1a11")

// Service implements the API dependencies for the pipeline system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store  repository.Store
	runs   *runs.Registry
	leases *lease.Manager
	client *predictor.Client
	queues map[model.Stage]stagequeue.Queue
	pools  map[model.Stage]*workerpool.Pool
	dead   *workerpool.DeadLetter

	// Configuration
	queueCapacity     int
	workersPerStage   int
	maxRetries        uint64
	retryBase         time.Duration
	requeueDelay      time.Duration
	leaseTTL          time.Duration
	maxRuns           int
	deadLetterCap     int
	shardCount        int
	maxRevisionLimit  int
	predictorEndpoint string
	predictorTimeout  time.Duration

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueCapacity:    100_000,
		workersPerStage:  4,
		maxRetries:       3,
		retryBase:        2 * time.Second,
		requeueDelay:     250 * time.Millisecond,
		leaseTTL:         30 * time.Second,
		maxRuns:          100_000,
		deadLetterCap:    1000,
		shardCount:       8,
		maxRevisionLimit: 100,
		predictorTimeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting pipeline service...")

	s.store = repository.NewMemStore(repository.WithShardCount(s.shardCount))
	s.runs = runs.NewRegistry(runs.WithMaxRuns(s.maxRuns))
	s.leases = lease.NewManager(lease.WithTTL(s.leaseTTL))
	s.client = predictor.New(
		predictor.WithEndpoint(s.predictorEndpoint),
		predictor.WithTimeout(s.predictorTimeout),
	)
	s.dead = workerpool.NewDeadLetter(s.deadLetterCap)

	s.queues = make(map[model.Stage]stagequeue.Queue, len(model.Stages))
	for _, stage := range model.Stages {
		s.queues[stage] = stagequeue.NewPriorityQueue(string(stage),
			stagequeue.WithCapacity(s.queueCapacity))
	}

	runners := map[model.Stage]workerpool.StageRunner{
		model.StageMastery:   mastery.NewRunner(s.store, s.client),
		model.StageWeakness:  weakness.NewRunner(s.store, s.client),
		model.StageRevision:  revision.NewRunner(s.store, s.client),
		model.StageReadiness: readiness.NewRunner(s.store, s.client),
		model.StageSnapshot:  snapshot.NewRunner(s.store),
	}

	s.pools = make(map[model.Stage]*workerpool.Pool, len(model.Stages))
	for _, stage := range model.Stages {
		var next stagequeue.Queue
		if n, ok := stage.Next(); ok {
			next = s.queues[n]
		}
		s.pools[stage] = workerpool.NewPool(runners[stage], s.queues[stage], next, s.leases, s.runs,
			workerpool.WithWorkers(s.workersPerStage),
			workerpool.WithMaxRetries(s.maxRetries),
			workerpool.WithRetryBase(s.retryBase),
			workerpool.WithRequeueDelay(s.requeueDelay),
			workerpool.WithDeadLetterSink(s.dead),
		)
		s.pools[stage].Start(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "pipeline service started",
		logger.Int("workers_per_stage", s.workersPerStage),
		logger.Int("queue_capacity", s.queueCapacity),
		logger.String("predictor_endpoint", s.predictorEndpoint),
	)

	return nil
}

// Stop gracefully shuts down the service. Stage queues are closed in order
// and each pool drains before the next stage shuts down, so in-flight runs
// finish instead of being cut mid-pipeline.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping pipeline service...")

	for _, stage := range model.Stages {
		_ = s.queues[stage].Close()
		s.pools[stage].Stop()
	}

	s.started = false
	s.logger.Info(ctx, "pipeline service stopped")
}

// Trigger is the pipeline entry point. It computes the idempotency key,
// registers the run and enqueues the mastery-stage job. A replayed event
// returns the original pipeline ID with duplicate=true. If the mastery queue
// rejects the job the registration is rolled back and the event source is
// expected to retry.
func (s *Service) Trigger(ctx context.Context, event model.LearningEvent) (pipelineID string, duplicate bool, err error) {
	if err := validateTrigger(event); err != nil {
		return "", false, err
	}

	key := fmt.Sprintf("%s/%s/%s", event.UserID, event.TopicID, event.EventID)
	pipelineID = uuid.NewSHA1(pipelineNamespace, []byte(key)).String()

	id, seq, userSeq, dup := s.runs.Begin(ctx, key, event.UserID+"/"+event.TopicID, event.UserID, pipelineID)
	if dup {
		metrics.RecordPipelineDuplicate()
		s.logger.Debug(ctx, "duplicate event, returning existing run",
			logger.String("event_id", event.EventID),
			logger.String("pipeline_id", id))
		return id, true, nil
	}

	job := model.Job{
		PipelineID: id,
		Stage:      model.StageMastery,
		UserID:     event.UserID,
		TopicID:    event.TopicID,
		Event:      event,
		Seq:        seq,
		UserSeq:    userSeq,
		Priority:   event.Kind.Priority(),
		EnqueuedAt: time.Now(),
	}
	if !s.masteryQueue().Enqueue(ctx, job) {
		s.runs.Abort(ctx, key, id)
		return "", false, ErrQueueFull
	}

	metrics.RecordPipelineTriggered()
	return id, false, nil
}

// PipelineStatus returns the observable state of a run.
func (s *Service) PipelineStatus(ctx context.Context, pipelineID string) (types.PipelineStatus, error) {
	st, ok := s.runs.Status(ctx, pipelineID)
	if !ok {
		return types.PipelineStatus{}, ErrPipelineNotFound
	}
	return types.PipelineStatus{
		PipelineID: st.PipelineID,
		Stage:      string(st.Stage),
		State:      string(st.State),
		Error:      st.Error,
		UpdatedAt:  st.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

// Dashboard serves the pre-materialized snapshot. The read path never
// computes; a user without a completed snapshot run gets ErrNotFound.
func (s *Service) Dashboard(ctx context.Context, userID string) (types.Dashboard, error) {
	snap, err := s.store.GetSnapshot(ctx, userID)
	if err != nil {
		return types.Dashboard{}, err
	}

	d := types.Dashboard{
		UserID:         snap.UserID,
		AverageMastery: snap.AverageMastery,
		MasteryDistribution: types.MasteryDistribution{
			Low:    snap.MasteryDistribution.Low,
			Medium: snap.MasteryDistribution.Medium,
			High:   snap.MasteryDistribution.High,
		},
		StrongTopics:    snap.StrongTopics,
		ReadinessScore:  snap.ReadinessScore,
		ReadinessLevel:  string(snap.ReadinessLevel),
		LastAssembledAt: snap.LastAssembledAt,
	}
	for _, t := range snap.Topics {
		d.Topics = append(d.Topics, topicSummary(t))
	}
	for _, t := range snap.WeakTopics {
		d.WeakTopics = append(d.WeakTopics, topicSummary(t))
	}
	return d, nil
}

// DueRevisions returns the user's revision queue, most overdue first.
func (s *Service) DueRevisions(ctx context.Context, userID string, limit int) ([]types.RevisionDue, error) {
	if limit <= 0 || limit > s.maxRevisionLimit {
		limit = s.maxRevisionLimit
	}

	now := time.Now()
	entries, err := s.store.DueRevisions(ctx, userID, now, limit)
	if err != nil {
		return nil, err
	}

	out := make([]types.RevisionDue, 0, len(entries))
	for _, e := range entries {
		out = append(out, types.RevisionDue{
			TopicID:        e.TopicID,
			StabilityDays:  e.StabilityDays,
			Retention:      e.Retention,
			NextRevisionAt: e.NextRevisionAt,
			Urgency:        string(e.Urgency),
			DaysOverdue:    int(now.Sub(e.NextRevisionAt).Hours() / 24),
		})
	}
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":           s.started,
		"workers_per_stage": s.workersPerStage,
		"queue_capacity":    s.queueCapacity,
	}

	if s.started {
		ctx := context.Background()
		depths := make(map[string]int, len(model.Stages))
		for _, stage := range model.Stages {
			depths[string(stage)] = s.queues[stage].Len(ctx)
		}
		stats["queue_depths"] = depths
		stats["tracked_runs"] = s.runs.Size()
		stats["held_leases"] = s.leases.Held()
		stats["dead_letters"] = s.dead.Size()
		stats["records"] = s.store.Counts(ctx)
	}

	return stats
}

// DeadLetters exposes the dead-letter sink entries for inspection.
func (s *Service) DeadLetters() []workerpool.DeadLetterEntry {
	return s.dead.Entries()
}

func (s *Service) masteryQueue() stagequeue.Queue {
	return s.queues[model.StageMastery]
}

func topicSummary(t model.SnapshotTopic) types.TopicSummary {
	return types.TopicSummary{
		TopicID:   t.TopicID,
		Mastery:   t.Mastery,
		Trend:     string(t.Trend),
		RiskScore: t.RiskScore,
		RiskLevel: string(t.RiskLevel),
	}
}

// validateTrigger rejects events the orchestrator cannot key. Attempt
// payload validation happens in the mastery stage so malformed payloads are
// dead-lettered per the error taxonomy rather than silently dropped here.
func validateTrigger(event model.LearningEvent) error {
	switch {
	case event.UserID == "":
		return fmt.Errorf("%w: missing user_id", ErrInvalidEvent)
	case event.TopicID == "":
		return fmt.Errorf("%w: missing topic_id", ErrInvalidEvent)
	case event.EventID == "":
		return fmt.Errorf("%w: missing event_id", ErrInvalidEvent)
	case !event.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, event.Kind)
	}
	return nil
}
