package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/prepline/internal/adapters/repository"
	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/pkg/metrics"
)

// Store is the slice of the repository this stage consumes.
type Store interface {
	ListMastery(ctx context.Context, userID string) ([]model.MasteryEstimate, error)
	ListWeakness(ctx context.Context, userID string) ([]model.WeaknessSignal, error)
	GetReadiness(ctx context.Context, userID string) (model.ReadinessScore, error)
	PutSnapshot(ctx context.Context, s model.DashboardSnapshot) error
}

// Runner executes the terminal snapshot stage.
type Runner struct {
	store Store
}

// NewRunner creates the snapshot stage runner.
func NewRunner(store Store) *Runner {
	return &Runner{store: store}
}

// Stage returns the pipeline stage this runner executes.
func (r *Runner) Stage() model.Stage { return model.StageSnapshot }

// Run rebuilds the user's dashboard snapshot. It is the terminal stage, so
// no next job is returned. A missing readiness row (the stage failed or has
// never run) still produces a snapshot; the readiness section then reflects
// the last stored score or its zero state.
func (r *Runner) Run(ctx context.Context, job model.Job) (*model.Job, error) {
	start := time.Now()

	masteries, err := r.store.ListMastery(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("list mastery estimates: %w: %w", model.ErrTransient, err)
	}
	weaknesses, err := r.store.ListWeakness(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("list weakness signals: %w: %w", model.ErrTransient, err)
	}

	var readiness *model.ReadinessScore
	score, err := r.store.GetReadiness(ctx, job.UserID)
	switch {
	case err == nil:
		readiness = &score
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("load readiness score: %w: %w", model.ErrTransient, err)
	}

	snap := Assemble(job.UserID, masteries, weaknesses, readiness, time.Now())
	if err := r.store.PutSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("store snapshot: %w: %w", model.ErrTransient, err)
	}

	metrics.RecordSnapshotRebuild(float64(time.Since(start).Milliseconds()))
	return nil, nil
}
