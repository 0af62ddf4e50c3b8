package revision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/prepline/internal/adapters/repository"
	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/pkg/metrics"
)

// Request is the stage-scoped prediction request.
type Request struct {
	UserID        string  `json:"user_id"`
	TopicID       string  `json:"topic_id"`
	Successful    bool    `json:"successful"`
	StabilityDays float64 `json:"stability_days"`
	ElapsedDays   float64 `json:"elapsed_days"`
}

// Response is the stage-scoped prediction response.
type Response struct {
	Retention        float64   `json:"retention_probability"`
	NewStabilityDays float64   `json:"new_stability_days"`
	NextRevisionAt   time.Time `json:"next_revision_at"`
}

// Predictor is the slice of the prediction client this stage consumes.
type Predictor interface {
	PredictRevision(ctx context.Context, req Request) (Response, error)
}

// Store is the slice of the repository this stage consumes.
type Store interface {
	GetRevision(ctx context.Context, userID, topicID string) (model.RevisionScheduleEntry, error)
	PutRevision(ctx context.Context, e model.RevisionScheduleEntry) (bool, error)
}

// Runner executes the revision scheduling stage.
type Runner struct {
	store     Store
	predictor Predictor
}

// NewRunner creates the revision stage runner.
func NewRunner(store Store, predictor Predictor) *Runner {
	return &Runner{store: store, predictor: predictor}
}

// Stage returns the pipeline stage this runner executes.
func (r *Runner) Stage() model.Stage { return model.StageRevision }

// Run processes one revision job and returns the readiness-stage job.
func (r *Runner) Run(ctx context.Context, job model.Job) (*model.Job, error) {
	stability := DefaultStabilityDays
	var (
		lastRevisedAt time.Time
		revisionCount int
	)
	cur, err := r.store.GetRevision(ctx, job.UserID, job.TopicID)
	switch {
	case err == nil:
		stability = cur.StabilityDays
		lastRevisedAt = cur.LastRevisedAt
		revisionCount = cur.RevisionCount
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("load revision entry: %w: %w", model.ErrTransient, err)
	}

	now := time.Now()
	elapsedDays := 0.0
	if !lastRevisedAt.IsZero() {
		elapsedDays = now.Sub(lastRevisedAt).Hours() / 24
	}

	resp, err := r.predictor.PredictRevision(ctx, Request{
		UserID:        job.UserID,
		TopicID:       job.TopicID,
		Successful:    lastAttemptSuccessful(job.Event),
		StabilityDays: stability,
		ElapsedDays:   elapsedDays,
	})
	if err != nil {
		return nil, fmt.Errorf("predict revision: %w: %w", model.ErrTransient, err)
	}

	entry := model.RevisionScheduleEntry{
		UserID:         job.UserID,
		TopicID:        job.TopicID,
		StabilityDays:  resp.NewStabilityDays,
		Retention:      resp.Retention,
		NextRevisionAt: resp.NextRevisionAt,
		LastRevisedAt:  now,
		Urgency:        model.UrgencyForRetention(resp.Retention),
		RevisionCount:  revisionCount + 1,
		EventID:        job.Event.EventID,
		Seq:            job.Seq,
		UpdatedAt:      now,
	}
	applied, err := r.store.PutRevision(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("store revision entry: %w: %w", model.ErrTransient, err)
	}
	if !applied {
		metrics.RecordStaleWriteSkipped(string(model.StageRevision))
	}

	next := job
	next.Stage = model.StageReadiness
	next.NotBefore = time.Time{}
	return &next, nil
}

// lastAttemptSuccessful treats the newest attempt as the revision outcome.
func lastAttemptSuccessful(e model.LearningEvent) bool {
	if len(e.Attempts) == 0 {
		return false
	}
	return e.Attempts[len(e.Attempts)-1].Correct
}
