// Package snapshot implements the terminal dashboard-assembly stage.
//
// The assembler is the sole writer of the DashboardSnapshot read model. It
// rebuilds the record whole from the latest committed stage outputs, so the
// read path never computes and never observes a partial update.
package snapshot

import (
	"sort"
	"time"

	"github.com/okian/prepline/internal/domain/model"
)

// Snapshot thresholds.
const (
	weakRiskThreshold = 60.0
	strongMastery     = 0.7
	lowMastery        = 0.4
)

// Assemble builds a deterministic snapshot from the user's stage outputs.
// Topics are sorted by ID and weak topics by risk descending then ID, so the
// same inputs always produce identical content. A nil readiness score leaves
// the readiness section at its zero state.
func Assemble(userID string, masteries []model.MasteryEstimate, weaknesses []model.WeaknessSignal, readiness *model.ReadinessScore, now time.Time) model.DashboardSnapshot {
	riskByTopic := make(map[string]model.WeaknessSignal, len(weaknesses))
	for _, w := range weaknesses {
		riskByTopic[w.TopicID] = w
	}

	snap := model.DashboardSnapshot{
		UserID:          userID,
		ReadinessLevel:  model.ReadinessNotReady,
		LastAssembledAt: now,
	}

	var masterySum float64
	for _, m := range masteries {
		topic := model.SnapshotTopic{
			TopicID: m.TopicID,
			Mastery: m.MasteryProbability,
			Trend:   m.Trend,
		}
		if w, ok := riskByTopic[m.TopicID]; ok {
			topic.RiskScore = w.RiskScore
			topic.RiskLevel = w.RiskLevel
		}
		snap.Topics = append(snap.Topics, topic)
		masterySum += m.MasteryProbability

		switch {
		case m.MasteryProbability < lowMastery:
			snap.MasteryDistribution.Low++
		case m.MasteryProbability < strongMastery:
			snap.MasteryDistribution.Medium++
		default:
			snap.MasteryDistribution.High++
		}
		if m.MasteryProbability > strongMastery {
			snap.StrongTopics = append(snap.StrongTopics, m.TopicID)
		}
		if topic.RiskScore >= weakRiskThreshold {
			snap.WeakTopics = append(snap.WeakTopics, topic)
		}
	}

	if len(masteries) > 0 {
		snap.AverageMastery = masterySum / float64(len(masteries))
	}

	sort.Slice(snap.Topics, func(i, j int) bool {
		return snap.Topics[i].TopicID < snap.Topics[j].TopicID
	})
	sort.Slice(snap.WeakTopics, func(i, j int) bool {
		if snap.WeakTopics[i].RiskScore != snap.WeakTopics[j].RiskScore {
			return snap.WeakTopics[i].RiskScore > snap.WeakTopics[j].RiskScore
		}
		return snap.WeakTopics[i].TopicID < snap.WeakTopics[j].TopicID
	})
	sort.Strings(snap.StrongTopics)

	if readiness != nil {
		snap.ReadinessScore = readiness.OverallScore
		snap.ReadinessLevel = readiness.Level
		snap.ReadinessUpdatedAt = readiness.UpdatedAt
	}

	return snap
}
