// Package repository defines the persisted-state store interface and errors.
//
// The pipeline persists five logical collections: mastery estimates,
// weakness signals and revision schedule entries keyed by (user, topic), and
// readiness scores and dashboard snapshots keyed by user. Conditional writes
// carry the run's causality sequence; a write whose sequence is lower than
// the stored record's is reported as stale and discarded by the caller.
package repository

import (
	"context"
	"time"

	"github.com/okian/prepline/internal/domain/model"
)

// Store provides read/write access to the pipeline's persisted state.
type Store interface {
	// GetMastery returns the live estimate for (user, topic).
	// Returns ErrNotFound if no estimate exists yet.
	GetMastery(ctx context.Context, userID, topicID string) (model.MasteryEstimate, error)
	// PutMastery upserts the estimate. Returns false if the stored record
	// carries a higher sequence (stale write, skipped).
	PutMastery(ctx context.Context, m model.MasteryEstimate) (bool, error)
	// ListMastery returns all estimates for a user, ordered by topic ID.
	ListMastery(ctx context.Context, userID string) ([]model.MasteryEstimate, error)

	// GetWeakness returns the live signal for (user, topic).
	GetWeakness(ctx context.Context, userID, topicID string) (model.WeaknessSignal, error)
	// PutWeakness upserts the signal with the same staleness rule as PutMastery.
	PutWeakness(ctx context.Context, s model.WeaknessSignal) (bool, error)
	// ListWeakness returns all signals for a user, ordered by topic ID.
	ListWeakness(ctx context.Context, userID string) ([]model.WeaknessSignal, error)

	// GetRevision returns the schedule entry for (user, topic).
	GetRevision(ctx context.Context, userID, topicID string) (model.RevisionScheduleEntry, error)
	// PutRevision upserts the entry with the same staleness rule as PutMastery.
	PutRevision(ctx context.Context, e model.RevisionScheduleEntry) (bool, error)
	// ListRevision returns all schedule entries for a user, ordered by topic ID.
	ListRevision(ctx context.Context, userID string) ([]model.RevisionScheduleEntry, error)
	// DueRevisions returns entries whose next revision time is at or before
	// now, ordered by next revision time ascending.
	DueRevisions(ctx context.Context, userID string, now time.Time, limit int) ([]model.RevisionScheduleEntry, error)

	// GetReadiness returns the live per-user readiness score.
	GetReadiness(ctx context.Context, userID string) (model.ReadinessScore, error)
	// PutReadiness upserts the score with the same staleness rule as PutMastery.
	PutReadiness(ctx context.Context, r model.ReadinessScore) (bool, error)

	// GetSnapshot returns the current dashboard snapshot for a user.
	GetSnapshot(ctx context.Context, userID string) (model.DashboardSnapshot, error)
	// PutSnapshot replaces the snapshot whole. The assembler always reads the
	// latest committed rows before writing, so the write is unconditional.
	PutSnapshot(ctx context.Context, s model.DashboardSnapshot) error

	// Counts returns record counts per logical collection.
	Counts(ctx context.Context) map[string]int
}
