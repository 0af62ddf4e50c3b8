package model

import "time"

// Trend classifies the direction of a learner's mastery over recent attempts.
type Trend string

// Mastery trends.
const (
	TrendImproving        Trend = "improving"
	TrendStable           Trend = "stable"
	TrendDeclining        Trend = "declining"
	TrendInsufficientData Trend = "insufficient-data"
)

// RiskLevel bands a 0-100 risk score.
type RiskLevel string

// Risk levels, ordered by severity.
const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevelForScore maps a 0-100 risk score onto its band.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score >= 85:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 30:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Urgency bands current retention for revision scheduling.
type Urgency string

// Revision urgencies.
const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// UrgencyForRetention maps current retention probability onto an urgency band.
func UrgencyForRetention(retention float64) Urgency {
	switch {
	case retention < 0.3:
		return UrgencyCritical
	case retention < 0.5:
		return UrgencyHigh
	case retention < 0.75:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// ReadinessLevel bands a 0-100 readiness score.
type ReadinessLevel string

// Readiness levels.
const (
	ReadinessNotReady      ReadinessLevel = "not-ready"
	ReadinessSomewhatReady ReadinessLevel = "somewhat-ready"
	ReadinessReady         ReadinessLevel = "ready"
	ReadinessVeryReady     ReadinessLevel = "very-ready"
	ReadinessInterview     ReadinessLevel = "interview-ready"
)

// ReadinessLevelForScore maps a 0-100 readiness score onto its band.
func ReadinessLevelForScore(score float64) ReadinessLevel {
	switch {
	case score >= 90:
		return ReadinessInterview
	case score >= 75:
		return ReadinessVeryReady
	case score >= 50:
		return ReadinessReady
	case score >= 25:
		return ReadinessSomewhatReady
	default:
		return ReadinessNotReady
	}
}

// MasteryEstimate is the live BKT estimate for one (user, topic). It is
// overwritten on each mastery stage run and never deleted, only superseded.
type MasteryEstimate struct {
	UserID                string
	TopicID               string
	MasteryProbability    float64 // 0-1
	Confidence            float64 // 0-1
	Trend                 Trend
	RecommendedDifficulty string
	AttemptCount          int
	History               []float64 // last recorded probabilities, newest last
	RecentOutcomes        []bool    // last attempt outcomes, newest last
	EventID               string
	Seq                   uint64
	UpdatedAt             time.Time
}

// WeaknessSignal is the upserted per-(user, topic) risk record.
type WeaknessSignal struct {
	UserID               string
	TopicID              string
	RiskScore            float64 // 0-100
	RiskLevel            RiskLevel
	SignalType           string // dominant contributing factor
	ContributingFactors  []string
	InterventionRequired bool
	EventID              string
	Seq                  uint64
	DetectedAt           time.Time
}

// RevisionScheduleEntry is the upserted per-(user, topic) spaced-repetition
// record. StabilityDays stays within [1, 30] after every revision stage run.
type RevisionScheduleEntry struct {
	UserID         string
	TopicID        string
	StabilityDays  float64
	Retention      float64 // retention probability at the last revision
	NextRevisionAt time.Time
	LastRevisedAt  time.Time
	Urgency        Urgency
	RevisionCount  int
	EventID        string
	Seq            uint64
	UpdatedAt      time.Time
}

// ReadinessScore is the single live per-user readiness record.
type ReadinessScore struct {
	UserID              string
	OverallScore        float64 // 0-100
	Level               ReadinessLevel
	Confidence          float64 // 0-1
	EstimatedReadyAt    time.Time
	ContributingFactors []string
	EventID             string
	Seq                 uint64 // per-user sequence; topic sequences are not comparable here
	UpdatedAt           time.Time
}

// SnapshotTopic is one topic row inside a dashboard snapshot.
type SnapshotTopic struct {
	TopicID   string
	Mastery   float64
	Trend     Trend
	RiskScore float64
	RiskLevel RiskLevel
}

// MasteryDistribution buckets topic mastery for the dashboard.
type MasteryDistribution struct {
	Low    int // mastery < 0.4
	Medium int // 0.4 <= mastery < 0.7
	High   int // mastery >= 0.7
}

// DashboardSnapshot is the denormalized read model, rebuilt whole by the
// snapshot assembler and owned exclusively by it.
type DashboardSnapshot struct {
	UserID              string
	AverageMastery      float64
	MasteryDistribution MasteryDistribution
	Topics              []SnapshotTopic // sorted by topic ID
	WeakTopics          []SnapshotTopic // risk >= 60, sorted by risk desc then ID
	StrongTopics        []string        // mastery > 0.7, sorted
	ReadinessScore      float64
	ReadinessLevel      ReadinessLevel
	ReadinessUpdatedAt  time.Time
	LastAssembledAt     time.Time
}
