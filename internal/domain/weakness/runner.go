package weakness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/okian/prepline/internal/adapters/repository"
	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/pkg/metrics"
)

// Request is the stage-scoped prediction request.
type Request struct {
	UserID         string  `json:"user_id"`
	TopicID        string  `json:"topic_id"`
	Mastery        float64 `json:"mastery"`
	Retention      float64 `json:"retention"`
	RecentOutcomes []bool  `json:"recent_outcomes,omitempty"`
}

// Response is the stage-scoped prediction response.
type Response struct {
	RiskScore  float64         `json:"risk_score"`
	RiskLevel  model.RiskLevel `json:"risk_level"`
	SignalType string          `json:"signal_type"`
	Factors    []string        `json:"factors,omitempty"`
}

// Predictor is the slice of the prediction client this stage consumes.
type Predictor interface {
	PredictWeakness(ctx context.Context, req Request) (Response, error)
}

// Store is the slice of the repository this stage consumes.
type Store interface {
	GetMastery(ctx context.Context, userID, topicID string) (model.MasteryEstimate, error)
	GetRevision(ctx context.Context, userID, topicID string) (model.RevisionScheduleEntry, error)
	PutWeakness(ctx context.Context, s model.WeaknessSignal) (bool, error)
}

// Runner executes the weakness stage.
type Runner struct {
	store     Store
	predictor Predictor
}

// NewRunner creates the weakness stage runner.
func NewRunner(store Store, predictor Predictor) *Runner {
	return &Runner{store: store, predictor: predictor}
}

// Stage returns the pipeline stage this runner executes.
func (r *Runner) Stage() model.Stage { return model.StageWeakness }

// Run processes one weakness job and returns the revision-stage job.
func (r *Runner) Run(ctx context.Context, job model.Job) (*model.Job, error) {
	est, err := r.store.GetMastery(ctx, job.UserID, job.TopicID)
	if err != nil {
		// The mastery stage writes before this stage is enqueued, so a miss
		// is a read race worth retrying, not a validation failure.
		return nil, fmt.Errorf("load mastery estimate: %w: %w", model.ErrTransient, err)
	}

	retention := 1.0
	entry, err := r.store.GetRevision(ctx, job.UserID, job.TopicID)
	switch {
	case err == nil:
		retention = CurrentRetention(entry, time.Now())
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("load revision entry: %w: %w", model.ErrTransient, err)
	}

	resp, err := r.predictor.PredictWeakness(ctx, Request{
		UserID:         job.UserID,
		TopicID:        job.TopicID,
		Mastery:        est.MasteryProbability,
		Retention:      retention,
		RecentOutcomes: est.RecentOutcomes,
	})
	if err != nil {
		return nil, fmt.Errorf("predict weakness: %w: %w", model.ErrTransient, err)
	}

	signal := model.WeaknessSignal{
		UserID:               job.UserID,
		TopicID:              job.TopicID,
		RiskScore:            resp.RiskScore,
		RiskLevel:            resp.RiskLevel,
		SignalType:           resp.SignalType,
		ContributingFactors:  resp.Factors,
		InterventionRequired: resp.RiskLevel == model.RiskHigh || resp.RiskLevel == model.RiskCritical,
		EventID:              job.Event.EventID,
		Seq:                  job.Seq,
		DetectedAt:           time.Now(),
	}
	applied, err := r.store.PutWeakness(ctx, signal)
	if err != nil {
		return nil, fmt.Errorf("store weakness signal: %w: %w", model.ErrTransient, err)
	}
	if !applied {
		metrics.RecordStaleWriteSkipped(string(model.StageWeakness))
	}

	next := job
	next.Stage = model.StageRevision
	next.NotBefore = time.Time{}
	return &next, nil
}

// CurrentRetention evaluates the forgetting curve for a schedule entry at
// the given instant. A topic never revised retains fully.
func CurrentRetention(entry model.RevisionScheduleEntry, now time.Time) float64 {
	if entry.LastRevisedAt.IsZero() || entry.StabilityDays <= 0 {
		return 1
	}
	elapsedDays := now.Sub(entry.LastRevisedAt).Hours() / 24
	if elapsedDays < 0 {
		elapsedDays = 0
	}
	return math.Exp(-elapsedDays / entry.StabilityDays)
}
