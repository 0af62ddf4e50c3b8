// Package model contains domain models passed between layers.
package model

import "time"

// EventKind discriminates the inbound learning event variants.
type EventKind string

// Supported event kinds.
const (
	KindSubmission      EventKind = "submission"
	KindSessionComplete EventKind = "session_complete"
)

// Valid reports whether the kind is one of the supported variants.
func (k EventKind) Valid() bool {
	return k == KindSubmission || k == KindSessionComplete
}

// Priority returns the queue priority for this event kind. Interactive
// submissions rank above batch session imports.
func (k EventKind) Priority() int {
	if k == KindSubmission {
		return 1
	}
	return 0
}

// Attempt is a single practice attempt within a learning event payload.
type Attempt struct {
	Correct    bool
	Difficulty int     // 1..5, scales the BKT learning increment
	HintsUsed  int     // each hint damps the learning increment
	TimeFactor float64 // normalized solve time, 1.0 = expected
}

// LearningEvent is the immutable inbound event that triggers a pipeline run.
// EventID is the deduplication basis; the payload is consumed exactly once
// per completed run.
type LearningEvent struct {
	EventID    string
	UserID     string
	TopicID    string
	Kind       EventKind
	Attempts   []Attempt
	OccurredAt time.Time
}

// Job is the unit of work flowing between stage queues. Seq is the
// per-(user,topic) causality sequence assigned at trigger time; store writes
// carrying a lower sequence than the stored record are discarded. UserSeq is
// the per-user sequence used for user-scoped records such as the readiness
// score, where sequences from different topics are not comparable.
type Job struct {
	PipelineID string
	Stage      Stage
	UserID     string
	TopicID    string
	Event      LearningEvent
	Seq        uint64
	UserSeq    uint64
	Priority   int
	NotBefore  time.Time // zero means immediately eligible
	EnqueuedAt time.Time
}

// Key returns the pipeline ordering key for the job.
func (j Job) Key() string {
	return j.UserID + "/" + j.TopicID
}
