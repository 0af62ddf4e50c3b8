// Package weakness implements the composite risk-scoring stage.
package weakness

import (
	"fmt"
	"math"

	"github.com/okian/prepline/internal/domain/model"
)

// Risk component weights. They sum to 1 so the score stays in [0, 100].
const (
	weightMasteryGap    = 0.35
	weightRetentionRisk = 0.25
	weightDifficultyGap = 0.25
	weightInconsistency = 0.15

	masteryTarget     = 0.6
	successRateTarget = 0.75
)

// Assessment is the full output of the risk model for one (user, topic).
type Assessment struct {
	RiskScore            float64
	RiskLevel            model.RiskLevel
	SignalType           string
	Factors              []string
	SuccessRate          float64
	Consistency          float64
	InterventionRequired bool
}

// Assess computes the composite risk score from the current mastery
// probability, the current retention probability and the recent attempt
// outcomes (newest last).
func Assess(mastery, retention float64, outcomes []bool) Assessment {
	successRate, consistency := outcomeStats(outcomes)

	masteryGap := math.Max(0, (masteryTarget-mastery)/masteryTarget)
	retentionRisk := 1 - math.Exp(-3*(1-retention))
	difficultyGap := math.Abs(successRate-successRateTarget) / successRateTarget
	inconsistency := 1 - consistency

	score := 100 * (weightMasteryGap*masteryGap +
		weightRetentionRisk*retentionRisk +
		weightDifficultyGap*difficultyGap +
		weightInconsistency*inconsistency)
	score = math.Max(0, math.Min(100, score))

	a := Assessment{
		RiskScore:   score,
		RiskLevel:   model.RiskLevelForScore(score),
		SuccessRate: successRate,
		Consistency: consistency,
	}

	contributions := []struct {
		name   string
		value  float64
		detail string
	}{
		{"mastery-gap", weightMasteryGap * masteryGap,
			fmt.Sprintf("mastery %.2f below the %.2f target", mastery, masteryTarget)},
		{"retention-risk", weightRetentionRisk * retentionRisk,
			fmt.Sprintf("retention down to %.2f", retention)},
		{"difficulty-gap", weightDifficultyGap * difficultyGap,
			fmt.Sprintf("recent success rate %.2f off the %.2f target", successRate, successRateTarget)},
		{"inconsistency", weightInconsistency * inconsistency,
			fmt.Sprintf("outcome consistency at %.2f", consistency)},
	}
	var dominant float64
	for _, c := range contributions {
		if c.value > 0.01 {
			a.Factors = append(a.Factors, c.detail)
		}
		if c.value > dominant {
			dominant = c.value
			a.SignalType = c.name
		}
	}

	a.InterventionRequired = a.RiskLevel == model.RiskHigh || a.RiskLevel == model.RiskCritical
	return a
}

// outcomeStats derives the success rate and the consistency (1 minus the
// normalized standard deviation) of the recent outcome window. An empty
// window reports the neutral targets so no gap is charged.
func outcomeStats(outcomes []bool) (successRate, consistency float64) {
	if len(outcomes) == 0 {
		return successRateTarget, 1
	}

	var successes float64
	for _, ok := range outcomes {
		if ok {
			successes++
		}
	}
	n := float64(len(outcomes))
	successRate = successes / n

	var variance float64
	for _, ok := range outcomes {
		v := 0.0
		if ok {
			v = 1
		}
		variance += (v - successRate) * (v - successRate)
	}
	variance /= n
	// A 0/1 series has stddev at most 0.5, so normalize against that.
	consistency = 1 - math.Sqrt(variance)/0.5
	return successRate, math.Max(0, consistency)
}
