package model_test

import (
	"testing"

	"github.com/okian/prepline/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStageOrdering(t *testing.T) {
	Convey("Given the canonical stage order", t, func() {
		Convey("Then each stage chains to the next", func() {
			next, ok := model.StageMastery.Next()
			So(ok, ShouldBeTrue)
			So(next, ShouldEqual, model.StageWeakness)

			next, ok = model.StageWeakness.Next()
			So(ok, ShouldBeTrue)
			So(next, ShouldEqual, model.StageRevision)

			next, ok = model.StageRevision.Next()
			So(ok, ShouldBeTrue)
			So(next, ShouldEqual, model.StageReadiness)

			next, ok = model.StageReadiness.Next()
			So(ok, ShouldBeTrue)
			So(next, ShouldEqual, model.StageSnapshot)
		})

		Convey("Then the snapshot stage is terminal", func() {
			_, ok := model.StageSnapshot.Next()
			So(ok, ShouldBeFalse)
		})

		Convey("Then an unknown stage is invalid", func() {
			So(model.Stage("grading").Valid(), ShouldBeFalse)
			So(model.StageMastery.Valid(), ShouldBeTrue)
		})
	})
}

func TestEventKind(t *testing.T) {
	Convey("Given the supported event kinds", t, func() {
		So(model.KindSubmission.Valid(), ShouldBeTrue)
		So(model.KindSessionComplete.Valid(), ShouldBeTrue)
		So(model.EventKind("quiz").Valid(), ShouldBeFalse)

		Convey("Then submissions rank above session imports", func() {
			So(model.KindSubmission.Priority(), ShouldBeGreaterThan, model.KindSessionComplete.Priority())
		})
	})
}

func TestRiskLevelForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  model.RiskLevel
	}{
		{0, model.RiskLow},
		{29.9, model.RiskLow},
		{30, model.RiskMedium},
		{59.9, model.RiskMedium},
		{60, model.RiskHigh},
		{84.9, model.RiskHigh},
		{85, model.RiskCritical},
		{100, model.RiskCritical},
	}
	for _, c := range cases {
		if got := model.RiskLevelForScore(c.score); got != c.want {
			t.Errorf("RiskLevelForScore(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestUrgencyForRetention(t *testing.T) {
	cases := []struct {
		retention float64
		want      model.Urgency
	}{
		{0.1, model.UrgencyCritical},
		{0.3, model.UrgencyHigh},
		{0.5, model.UrgencyMedium},
		{0.75, model.UrgencyLow},
		{0.99, model.UrgencyLow},
	}
	for _, c := range cases {
		if got := model.UrgencyForRetention(c.retention); got != c.want {
			t.Errorf("UrgencyForRetention(%v) = %v, want %v", c.retention, got, c.want)
		}
	}
}

func TestReadinessLevelForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  model.ReadinessLevel
	}{
		{10, model.ReadinessNotReady},
		{25, model.ReadinessSomewhatReady},
		{50, model.ReadinessReady},
		{75, model.ReadinessVeryReady},
		{90, model.ReadinessInterview},
	}
	for _, c := range cases {
		if got := model.ReadinessLevelForScore(c.score); got != c.want {
			t.Errorf("ReadinessLevelForScore(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestRunState(t *testing.T) {
	if model.StateQueued.Terminal() || model.StateRunning.Terminal() {
		t.Error("queued/running must not be terminal")
	}
	if !model.StateComplete.Terminal() || !model.StateFailed.Terminal() {
		t.Error("complete/failed must be terminal")
	}
}

func TestJobKey(t *testing.T) {
	j := model.Job{UserID: "u1", TopicID: "graphs"}
	if j.Key() != "u1/graphs" {
		t.Errorf("unexpected key %q", j.Key())
	}
}
