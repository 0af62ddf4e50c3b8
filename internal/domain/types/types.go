// Package types contains common read shapes returned by the HTTP layer.
package types

import "time"

// PipelineStatus mirrors the GET /pipelines/{id} response.
type PipelineStatus struct {
	PipelineID string `json:"pipeline_id"`
	Stage      string `json:"stage"`
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

// TopicSummary is one topic row in the dashboard response.
type TopicSummary struct {
	TopicID   string  `json:"topic_id"`
	Mastery   float64 `json:"mastery"`
	Trend     string  `json:"trend"`
	RiskScore float64 `json:"risk_score"`
	RiskLevel string  `json:"risk_level"`
}

// MasteryDistribution buckets topic mastery counts.
type MasteryDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Dashboard mirrors the GET /dashboard/{user_id} response. It is served
// straight from the pre-materialized snapshot; the read path never computes.
type Dashboard struct {
	UserID              string              `json:"user_id"`
	AverageMastery      float64             `json:"average_mastery"`
	MasteryDistribution MasteryDistribution `json:"mastery_distribution"`
	Topics              []TopicSummary      `json:"topics"`
	WeakTopics          []TopicSummary      `json:"weak_topics"`
	StrongTopics        []string            `json:"strong_topics"`
	ReadinessScore      float64             `json:"readiness_score"`
	ReadinessLevel      string              `json:"readiness_level"`
	LastAssembledAt     time.Time           `json:"last_assembled_at"`
}

// RevisionDue is one entry of the GET /revisions/{user_id} response.
type RevisionDue struct {
	TopicID        string    `json:"topic_id"`
	StabilityDays  float64   `json:"stability_days"`
	Retention      float64   `json:"retention"`
	NextRevisionAt time.Time `json:"next_revision_at"`
	Urgency        string    `json:"urgency"`
	DaysOverdue    int       `json:"days_overdue"`
}
