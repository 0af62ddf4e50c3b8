package mastery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/prepline/internal/adapters/repository"
	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/pkg/metrics"
)

// Request is the stage-scoped prediction request. The prior state travels
// with the request because the prediction service is stateless.
type Request struct {
	UserID   string          `json:"user_id"`
	TopicID  string          `json:"topic_id"`
	Prior    float64         `json:"prior"`
	History  []float64       `json:"history,omitempty"`
	Attempts []model.Attempt `json:"attempts"`
}

// Response is the stage-scoped prediction response.
type Response struct {
	MasteryProbability    float64     `json:"mastery_probability"`
	Confidence            float64     `json:"confidence"`
	Trend                 model.Trend `json:"trend"`
	RecommendedDifficulty string      `json:"recommended_difficulty"`
}

// Predictor is the slice of the prediction client this stage consumes.
type Predictor interface {
	PredictMastery(ctx context.Context, req Request) (Response, error)
}

// Store is the slice of the repository this stage consumes.
type Store interface {
	GetMastery(ctx context.Context, userID, topicID string) (model.MasteryEstimate, error)
	PutMastery(ctx context.Context, m model.MasteryEstimate) (bool, error)
}

// Runner executes the mastery stage: validate the event, fetch the prior
// estimate, predict, persist, hand off to the weakness stage.
type Runner struct {
	store     Store
	predictor Predictor
}

// NewRunner creates the mastery stage runner.
func NewRunner(store Store, predictor Predictor) *Runner {
	return &Runner{store: store, predictor: predictor}
}

// Stage returns the pipeline stage this runner executes.
func (r *Runner) Stage() model.Stage { return model.StageMastery }

// Run processes one mastery job and returns the weakness-stage job.
func (r *Runner) Run(ctx context.Context, job model.Job) (*model.Job, error) {
	if err := validateEvent(job.Event); err != nil {
		return nil, err
	}

	prior := DefaultPrior()
	var (
		history      []float64
		outcomes     []bool
		attemptCount int
	)
	cur, err := r.store.GetMastery(ctx, job.UserID, job.TopicID)
	switch {
	case err == nil:
		prior = cur.MasteryProbability
		history = cur.History
		outcomes = cur.RecentOutcomes
		attemptCount = cur.AttemptCount
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("load mastery estimate: %w: %w", model.ErrTransient, err)
	}

	resp, err := r.predictor.PredictMastery(ctx, Request{
		UserID:   job.UserID,
		TopicID:  job.TopicID,
		Prior:    prior,
		History:  history,
		Attempts: job.Event.Attempts,
	})
	if err != nil {
		return nil, fmt.Errorf("predict mastery: %w: %w", model.ErrTransient, err)
	}

	history = append(history, resp.MasteryProbability)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	for _, a := range job.Event.Attempts {
		outcomes = append(outcomes, a.Correct)
	}
	if len(outcomes) > outcomeWindow {
		outcomes = outcomes[len(outcomes)-outcomeWindow:]
	}

	est := model.MasteryEstimate{
		UserID:                job.UserID,
		TopicID:               job.TopicID,
		MasteryProbability:    resp.MasteryProbability,
		Confidence:            resp.Confidence,
		Trend:                 resp.Trend,
		RecommendedDifficulty: resp.RecommendedDifficulty,
		AttemptCount:          attemptCount + len(job.Event.Attempts),
		History:               history,
		RecentOutcomes:        outcomes,
		EventID:               job.Event.EventID,
		Seq:                   job.Seq,
		UpdatedAt:             time.Now(),
	}
	applied, err := r.store.PutMastery(ctx, est)
	if err != nil {
		return nil, fmt.Errorf("store mastery estimate: %w: %w", model.ErrTransient, err)
	}
	if !applied {
		metrics.RecordStaleWriteSkipped(string(model.StageMastery))
	}

	next := job
	next.Stage = model.StageWeakness
	next.NotBefore = time.Time{}
	return &next, nil
}

// validateEvent rejects payloads the numeric model cannot consume. These are
// non-retryable; the worker dead-letters them.
func validateEvent(e model.LearningEvent) error {
	if len(e.Attempts) == 0 {
		return fmt.Errorf("%w: event %q carries no attempts", model.ErrValidation, e.EventID)
	}
	for i, a := range e.Attempts {
		if a.Difficulty < 1 || a.Difficulty > 5 {
			return fmt.Errorf("%w: attempt %d difficulty %d outside [1,5]", model.ErrValidation, i, a.Difficulty)
		}
		if a.HintsUsed < 0 {
			return fmt.Errorf("%w: attempt %d negative hint count", model.ErrValidation, i)
		}
		if a.TimeFactor < 0 {
			return fmt.Errorf("%w: attempt %d negative time factor", model.ErrValidation, i)
		}
	}
	return nil
}
