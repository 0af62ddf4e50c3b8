// Package mastery implements the Bayesian Knowledge Tracing stage.
//
// The numeric model is a pure function over the prior probability and the
// event's attempts, so it is testable without a queue, store or predictor.
package mastery

import (
	"math"

	"github.com/okian/prepline/internal/domain/model"
)

// BKT constants.
const (
	pInit  = 0.1
	pLearn = 0.15
	pGuess = 0.1
	pSlip  = 0.05

	// historyLimit bounds the probability history used for trend detection.
	historyLimit = 10
	// outcomeWindow bounds the recent-outcome window consumed by the
	// weakness stage.
	outcomeWindow = 5
	// trendSlope is the least-squares slope threshold separating stable
	// from improving/declining.
	trendSlope = 0.01
)

// DefaultPrior is the mastery probability assumed before any attempt.
func DefaultPrior() float64 { return pInit }

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// attemptFactor scales the learning increment by attempt difficulty and
// hint usage. Difficulty maps to [0.5, 2.0]; each hint damps by 0.8.
func attemptFactor(a model.Attempt) float64 {
	df := 0.5 + float64(a.Difficulty)/3
	df = math.Max(0.5, math.Min(2.0, df))
	return df * math.Pow(0.8, float64(a.HintsUsed))
}

// Update applies the BKT update for each attempt in order and returns the
// posterior probability and the batch-averaged confidence. A correct attempt
// adds the scaled learning increment; an incorrect one first applies the
// slip/guess evidence update, then the same increment.
func Update(prior float64, attempts []model.Attempt) (probability, confidence float64) {
	p := clamp01(prior)
	var confSum float64

	for _, a := range attempts {
		if !a.Correct {
			denom := p*pSlip + (1-p)*(1-pGuess)
			if denom > 0 {
				p = p * pSlip / denom
			}
		}
		p = clamp01(p + (1-p)*pLearn*attemptFactor(a))
		confSum += 1 - math.Exp(-2*math.Abs(p-0.5))
	}

	if len(attempts) == 0 {
		return p, 0
	}
	return p, confSum / float64(len(attempts))
}

// TrendFor classifies the direction of the probability history (newest last)
// by the sign of its least-squares slope over the last historyLimit points.
func TrendFor(history []float64) model.Trend {
	if len(history) < 3 {
		return model.TrendInsufficientData
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	n := float64(len(history))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range history {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return model.TrendStable
	}
	slope := (n*sumXY - sumX*sumY) / denom

	switch {
	case slope > trendSlope:
		return model.TrendImproving
	case slope < -trendSlope:
		return model.TrendDeclining
	default:
		return model.TrendStable
	}
}

// RecommendedDifficulty maps a mastery probability onto the difficulty tier
// the learner should practice next.
func RecommendedDifficulty(probability float64) string {
	switch {
	case probability < 0.4:
		return "easy"
	case probability < 0.7:
		return "medium"
	default:
		return "hard"
	}
}
