package simulator

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGeneratorProducesValidEvents(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		gen := NewGenerator(5, 42)

		Convey("Then every produced event is submittable", func() {
			seen := make(map[string]bool)
			for i := 0; i < 200; i++ {
				ev := gen.Next()
				So(ev.EventID, ShouldNotBeEmpty)
				So(seen[ev.EventID], ShouldBeFalse)
				seen[ev.EventID] = true

				So(ev.UserID, ShouldStartWith, "learner-")
				So(ev.TopicID, ShouldBeIn, defaultTopics)
				So(ev.Kind, ShouldBeIn, "submission", "session_complete")

				So(len(ev.Attempts), ShouldBeBetweenOrEqual, 1, maxAttemptsPerEvent)
				for _, a := range ev.Attempts {
					So(a.Difficulty, ShouldBeBetweenOrEqual, 1, 5)
					So(a.HintsUsed, ShouldBeGreaterThanOrEqualTo, 0)
					So(a.TimeFactor, ShouldBeGreaterThan, 0)
				}
			}
		})
	})
}

func TestGeneratorUsers(t *testing.T) {
	Convey("Given a generator for three learners", t, func() {
		gen := NewGenerator(3, 7)

		Convey("Then the roster is stable and sized to match", func() {
			users := gen.Users()
			So(users, ShouldResemble, []string{"learner-001", "learner-002", "learner-003"})
		})
	})
}

func TestGeneratorAbilityDrift(t *testing.T) {
	Convey("Given a long practice run", t, func() {
		gen := NewGenerator(1, 99)

		var correct int
		const total = 500
		for i := 0; i < total; i++ {
			for _, a := range gen.Next().Attempts {
				if a.Correct {
					correct++
				}
			}
		}

		Convey("Then the learner succeeds often enough to show a learning curve", func() {
			// Ability drifts up on each win, so success cannot stay rare.
			So(correct, ShouldBeGreaterThan, total/4)
		})
	})
}
