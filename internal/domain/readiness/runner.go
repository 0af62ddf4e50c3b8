package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/pkg/metrics"
)

// Request is the stage-scoped prediction request.
type Request struct {
	UserID   string                `json:"user_id"`
	Features [FeatureCount]float64 `json:"features"`
}

// Response is the stage-scoped prediction response.
type Response struct {
	OverallScore        float64              `json:"overall_score"`
	Level               model.ReadinessLevel `json:"level"`
	Confidence          float64              `json:"confidence"`
	ContributingFactors []string             `json:"contributing_factors,omitempty"`
}

// Predictor is the slice of the prediction client this stage consumes.
type Predictor interface {
	PredictReadiness(ctx context.Context, req Request) (Response, error)
}

// Store is the slice of the repository this stage consumes.
type Store interface {
	ListMastery(ctx context.Context, userID string) ([]model.MasteryEstimate, error)
	ListRevision(ctx context.Context, userID string) ([]model.RevisionScheduleEntry, error)
	PutReadiness(ctx context.Context, r model.ReadinessScore) (bool, error)
}

// Runner executes the readiness recompute stage.
type Runner struct {
	store     Store
	predictor Predictor
}

// NewRunner creates the readiness stage runner.
func NewRunner(store Store, predictor Predictor) *Runner {
	return &Runner{store: store, predictor: predictor}
}

// Stage returns the pipeline stage this runner executes.
func (r *Runner) Stage() model.Stage { return model.StageReadiness }

// Run processes one readiness job and returns the snapshot-stage job.
func (r *Runner) Run(ctx context.Context, job model.Job) (*model.Job, error) {
	masteries, err := r.store.ListMastery(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("list mastery estimates: %w: %w", model.ErrTransient, err)
	}
	revisions, err := r.store.ListRevision(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("list revision entries: %w: %w", model.ErrTransient, err)
	}

	now := time.Now()
	features := ExtractFeatures(masteries, revisions, now)

	resp, err := r.predictor.PredictReadiness(ctx, Request{UserID: job.UserID, Features: features})
	if err != nil {
		return nil, fmt.Errorf("predict readiness: %w: %w", model.ErrTransient, err)
	}

	score := model.ReadinessScore{
		UserID:              job.UserID,
		OverallScore:        resp.OverallScore,
		Level:               resp.Level,
		Confidence:          resp.Confidence,
		EstimatedReadyAt:    EstimateReadyAt(resp.OverallScore, now),
		ContributingFactors: resp.ContributingFactors,
		EventID:             job.Event.EventID,
		Seq:                 job.UserSeq,
		UpdatedAt:           now,
	}
	applied, err := r.store.PutReadiness(ctx, score)
	if err != nil {
		return nil, fmt.Errorf("store readiness score: %w: %w", model.ErrTransient, err)
	}
	if !applied {
		metrics.RecordStaleWriteSkipped(string(model.StageReadiness))
	}

	next := job
	next.Stage = model.StageSnapshot
	next.NotBefore = time.Time{}
	return &next, nil
}
