package readiness_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/prepline/internal/adapters/predictor"
	"github.com/okian/prepline/internal/adapters/repository"
	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/internal/domain/readiness"
	"github.com/okian/prepline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func readinessJob(eventID, topicID string, seq, userSeq uint64) model.Job {
	return model.Job{
		PipelineID: "p-" + eventID,
		Stage:      model.StageReadiness,
		UserID:     "u1",
		TopicID:    topicID,
		Event: model.LearningEvent{
			EventID: eventID,
			UserID:  "u1",
			TopicID: topicID,
			Kind:    model.KindSubmission,
		},
		Seq:     seq,
		UserSeq: userSeq,
	}
}

func TestReadinessRunner(t *testing.T) {
	Convey("Given a readiness runner over a fresh store", t, func() {
		store := repository.NewMemStore()
		runner := readiness.NewRunner(store, predictor.New())
		ctx := context.Background()

		_, err := store.PutMastery(ctx, model.MasteryEstimate{
			UserID: "u1", TopicID: "arrays", MasteryProbability: 0.6, Seq: 1, UpdatedAt: time.Now(),
		})
		So(err, ShouldBeNil)

		Convey("When a readiness job runs", func() {
			next, err := runner.Run(ctx, readinessJob("eA1", "arrays", 1, 1))

			Convey("Then the score is stored and the snapshot stage follows", func() {
				So(err, ShouldBeNil)
				So(next, ShouldNotBeNil)
				So(next.Stage, ShouldEqual, model.StageSnapshot)

				score, err := store.GetReadiness(ctx, "u1")
				So(err, ShouldBeNil)
				So(score.EventID, ShouldEqual, "eA1")
				So(score.OverallScore, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When topics with divergent sequences recompute for one user", func() {
			// Topic sequences run independently, so the second topic's first
			// event carries a low topic sequence but a higher user sequence.
			_, err := runner.Run(ctx, readinessJob("eA5", "arrays", 5, 1))
			So(err, ShouldBeNil)

			_, err = store.PutMastery(ctx, model.MasteryEstimate{
				UserID: "u1", TopicID: "graphs", MasteryProbability: 0.2, Seq: 1, UpdatedAt: time.Now(),
			})
			So(err, ShouldBeNil)

			_, err = runner.Run(ctx, readinessJob("eB1", "graphs", 1, 2))
			So(err, ShouldBeNil)

			Convey("Then the later recompute wins regardless of topic sequence", func() {
				score, err := store.GetReadiness(ctx, "u1")
				So(err, ShouldBeNil)
				So(score.EventID, ShouldEqual, "eB1")
				So(score.Seq, ShouldEqual, 2)
			})
		})

		Convey("When a stale user sequence replays after a newer write", func() {
			_, err := runner.Run(ctx, readinessJob("e2", "arrays", 2, 2))
			So(err, ShouldBeNil)

			_, err = runner.Run(ctx, readinessJob("e1", "arrays", 1, 1))
			So(err, ShouldBeNil)

			Convey("Then the stored score keeps the newer event", func() {
				score, err := store.GetReadiness(ctx, "u1")
				So(err, ShouldBeNil)
				So(score.EventID, ShouldEqual, "e2")
			})
		})
	})
}
