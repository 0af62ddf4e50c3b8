// Package readiness implements the per-user readiness recompute stage.
//
// Seven aggregate features summarize the learner's state. The external
// prediction model combines them; when it is unreachable the local fallback
// applies the same weights through a logistic transform so readiness never
// hard-fails the pipeline.
package readiness

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/prepline/internal/domain/model"
)

// FeatureCount is the width of the readiness feature vector.
const FeatureCount = 7

// Feature vector indices.
const (
	FeatureMastery = iota
	FeatureStability
	FeatureConsistency
	FeatureDifficultyProgression
	FeatureMockScore
	FeatureCompletion
	FeatureDaysPrepared
)

// weights is the regression weight vector shared by the external model and
// the local fallback.
var weights = [FeatureCount]float64{0.25, 0.15, 0.15, 0.15, 0.15, 0.10, 0.05}

// Readiness constants.
const (
	masteredThreshold = 0.7
	// neutralMockScore substitutes for a mock-assessment result when none
	// has been recorded.
	neutralMockScore = 0.5
	// prepHorizonDays saturates the days-prepared feature.
	prepHorizonDays = 60.0
	// readyScore is the target used to estimate time-to-ready.
	readyScore = 75.0
	// improvementPerDay is the assumed score gain per day of practice.
	improvementPerDay = 0.5
)

// ExtractFeatures aggregates per-topic state into the feature vector. All
// features are normalized to [0, 1].
func ExtractFeatures(masteries []model.MasteryEstimate, revisions []model.RevisionScheduleEntry, now time.Time) [FeatureCount]float64 {
	var f [FeatureCount]float64
	f[FeatureMockScore] = neutralMockScore

	if len(masteries) == 0 {
		return f
	}

	var (
		masterySum    float64
		difficultySum float64
		mastered      int
		counts        []float64
		earliest      time.Time
	)
	for _, m := range masteries {
		masterySum += m.MasteryProbability
		difficultySum += difficultyValue(m.RecommendedDifficulty)
		if m.MasteryProbability >= masteredThreshold {
			mastered++
		}
		counts = append(counts, float64(m.AttemptCount))
		if earliest.IsZero() || m.UpdatedAt.Before(earliest) {
			earliest = m.UpdatedAt
		}
	}
	n := float64(len(masteries))

	f[FeatureMastery] = masterySum / n
	f[FeatureConsistency] = practiceConsistency(counts)
	f[FeatureDifficultyProgression] = difficultySum / n
	f[FeatureCompletion] = float64(mastered) / n

	if len(revisions) > 0 {
		var stabilitySum float64
		for _, e := range revisions {
			stabilitySum += e.StabilityDays
		}
		f[FeatureStability] = stabilitySum / float64(len(revisions)) / 30.0
	}

	if !earliest.IsZero() {
		days := now.Sub(earliest).Hours() / 24
		f[FeatureDaysPrepared] = math.Min(math.Max(days, 0)/prepHorizonDays, 1)
	}

	return f
}

// Fallback is the local substitute for the external readiness model: the
// weighted feature sum through a logistic transform onto [0, 100], with a
// confidence shrinking as the features disagree.
func Fallback(features [FeatureCount]float64) (score, confidence float64) {
	var sum float64
	for i, f := range features {
		sum += weights[i] * f
	}
	score = 100 / (1 + math.Exp(-10*(sum-0.5)))

	var mean float64
	for _, f := range features {
		mean += f
	}
	mean /= FeatureCount
	var variance float64
	for _, f := range features {
		variance += (f - mean) * (f - mean)
	}
	variance /= FeatureCount

	confidence = 1 - 0.5*math.Sqrt(variance)
	confidence = math.Max(0.3, math.Min(0.95, confidence))
	return score, confidence
}

// EstimateReadyAt projects when the learner reaches the ready threshold at
// the assumed improvement rate. Already-ready learners are ready now.
func EstimateReadyAt(score float64, now time.Time) time.Time {
	if score >= readyScore {
		return now
	}
	days := (readyScore - score) / improvementPerDay
	return now.Add(time.Duration(days * 24 * float64(time.Hour)))
}

// DescribeFeatures renders the feature vector as human-readable factors.
func DescribeFeatures(features [FeatureCount]float64) []string {
	return []string{
		fmt.Sprintf("average mastery %.2f", features[FeatureMastery]),
		fmt.Sprintf("average stability %.0f days", features[FeatureStability]*30),
		fmt.Sprintf("practice consistency %.2f", features[FeatureConsistency]),
		fmt.Sprintf("difficulty progression %.2f", features[FeatureDifficultyProgression]),
		fmt.Sprintf("mock assessment %.2f", features[FeatureMockScore]),
		fmt.Sprintf("topics mastered %.0f%%", features[FeatureCompletion]*100),
		fmt.Sprintf("preparation window %.0f%% used", features[FeatureDaysPrepared]*100),
	}
}

// practiceConsistency is 1 minus the coefficient of variation of per-topic
// attempt counts, floored at 0.
func practiceConsistency(counts []float64) float64 {
	if len(counts) == 0 {
		return 0
	}
	var mean float64
	for _, c := range counts {
		mean += c
	}
	mean /= float64(len(counts))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, c := range counts {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(len(counts))
	cv := math.Sqrt(variance) / mean
	return math.Max(0, 1-cv)
}

func difficultyValue(recommended string) float64 {
	switch recommended {
	case "hard":
		return 1
	case "medium":
		return 0.5
	default:
		return 0
	}
}
