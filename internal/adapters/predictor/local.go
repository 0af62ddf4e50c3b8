package predictor

import (
	"context"
	"time"

	"github.com/okian/prepline/internal/domain/mastery"
	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/internal/domain/readiness"
	"github.com/okian/prepline/internal/domain/revision"
	"github.com/okian/prepline/internal/domain/weakness"
)

// Local serves predictions from the in-process models. It backs the client
// when no external endpoint is configured and is the readiness fallback when
// the external service is unreachable.
type Local struct{}

// NewLocal creates the in-process prediction model.
func NewLocal() Local { return Local{} }

// PredictMastery applies the BKT update locally.
func (Local) PredictMastery(ctx context.Context, req mastery.Request) (mastery.Response, error) {
	p, confidence := mastery.Update(req.Prior, req.Attempts)
	history := make([]float64, 0, len(req.History)+1)
	history = append(history, req.History...)
	history = append(history, p)

	return mastery.Response{
		MasteryProbability:    p,
		Confidence:            confidence,
		Trend:                 mastery.TrendFor(history),
		RecommendedDifficulty: mastery.RecommendedDifficulty(p),
	}, nil
}

// PredictWeakness scores the composite risk locally.
func (Local) PredictWeakness(ctx context.Context, req weakness.Request) (weakness.Response, error) {
	a := weakness.Assess(req.Mastery, req.Retention, req.RecentOutcomes)
	return weakness.Response{
		RiskScore:  a.RiskScore,
		RiskLevel:  a.RiskLevel,
		SignalType: a.SignalType,
		Factors:    a.Factors,
	}, nil
}

// PredictRevision reschedules on the forgetting curve locally.
func (Local) PredictRevision(ctx context.Context, req revision.Request) (revision.Response, error) {
	o := revision.Reschedule(req.StabilityDays, req.ElapsedDays, req.Successful)
	return revision.Response{
		Retention:        o.Retention,
		NewStabilityDays: o.NewStabilityDays,
		NextRevisionAt:   time.Now().Add(time.Duration(o.IntervalDays * 24 * float64(time.Hour))),
	}, nil
}

// PredictReadiness applies the weighted logistic fallback locally.
func (Local) PredictReadiness(ctx context.Context, req readiness.Request) (readiness.Response, error) {
	score, confidence := readiness.Fallback(req.Features)
	return readiness.Response{
		OverallScore:        score,
		Level:               model.ReadinessLevelForScore(score),
		Confidence:          confidence,
		ContributingFactors: readiness.DescribeFeatures(req.Features),
	}, nil
}
