// Package revision implements the forgetting-curve scheduling stage.
package revision

import (
	"math"
)

// Forgetting-curve constants. Stability is the decay constant in days;
// revisions are scheduled at the instant retention would drop to the target.
const (
	DefaultStabilityDays = 1.0
	minStabilityDays     = 1.0
	maxStabilityDays     = 30.0
	targetRetention      = 0.9
)

// Outcome is the result of rescheduling one (user, topic).
type Outcome struct {
	// Retention is the retention probability at revision time, before the
	// stability update.
	Retention float64
	// NewStabilityDays is the updated decay constant, within [1, 30].
	NewStabilityDays float64
	// IntervalDays is the time until the next revision is due.
	IntervalDays float64
}

// Retention evaluates the forgetting curve e^(-t/stability).
func Retention(stabilityDays, elapsedDays float64) float64 {
	if stabilityDays <= 0 {
		return 0
	}
	if elapsedDays < 0 {
		elapsedDays = 0
	}
	return math.Exp(-elapsedDays / stabilityDays)
}

// Reschedule updates the stability for a revision outcome and derives the
// next revision interval. A successful revision grows stability by up to
// 2.6x depending on how much was retained; a failed one halves it. The
// result is always clamped to [1, 30] days.
func Reschedule(stabilityDays, elapsedDays float64, successful bool) Outcome {
	retention := Retention(stabilityDays, elapsedDays)

	var next float64
	if successful {
		next = stabilityDays * 1.3 * (2.0 - (1.0 - retention))
	} else {
		next = stabilityDays * 0.5
	}
	next = math.Max(minStabilityDays, math.Min(maxStabilityDays, next))

	return Outcome{
		Retention:        retention,
		NewStabilityDays: next,
		IntervalDays:     -math.Log(targetRetention) * next,
	}
}
