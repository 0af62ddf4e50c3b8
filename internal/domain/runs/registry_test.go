package runs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/internal/domain/runs"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistryBegin(t *testing.T) {
	Convey("Given an empty run registry", t, func() {
		reg := runs.NewRegistry()
		ctx := context.Background()

		Convey("When a new key begins", func() {
			id, seq, userSeq, dup := reg.Begin(ctx, "key-1", "u1/graphs", "u1", "pipe-1")

			Convey("Then the run is registered queued at mastery", func() {
				So(dup, ShouldBeFalse)
				So(id, ShouldEqual, "pipe-1")
				So(seq, ShouldEqual, 1)
				So(userSeq, ShouldEqual, 1)

				st, ok := reg.Status(ctx, "pipe-1")
				So(ok, ShouldBeTrue)
				So(st.Stage, ShouldEqual, model.StageMastery)
				So(st.State, ShouldEqual, model.StateQueued)
			})

			Convey("And replaying the same key returns the original run", func() {
				id2, _, _, dup2 := reg.Begin(ctx, "key-1", "u1/graphs", "u1", "pipe-other")
				So(dup2, ShouldBeTrue)
				So(id2, ShouldEqual, "pipe-1")
			})

			Convey("And a second event for the same order key gets the next sequence", func() {
				_, seq2, _, dup2 := reg.Begin(ctx, "key-2", "u1/graphs", "u1", "pipe-2")
				So(dup2, ShouldBeFalse)
				So(seq2, ShouldEqual, 2)
			})

			Convey("And sequences are independent across order keys", func() {
				_, seqOther, _, _ := reg.Begin(ctx, "key-3", "u2/graphs", "u2", "pipe-3")
				So(seqOther, ShouldEqual, 1)
			})

			Convey("And the user sequence advances across topics of one user", func() {
				_, seq2, userSeq2, _ := reg.Begin(ctx, "key-4", "u1/arrays", "u1", "pipe-4")
				So(seq2, ShouldEqual, 1)
				So(userSeq2, ShouldEqual, 2)
			})
		})
	})
}

func TestRegistryTransitions(t *testing.T) {
	Convey("Given a registered run", t, func() {
		reg := runs.NewRegistry()
		ctx := context.Background()
		reg.Begin(ctx, "key-1", "u1/graphs", "u1", "pipe-1")

		Convey("When the run advances through stages", func() {
			reg.MarkRunning(ctx, "pipe-1", model.StageMastery)
			reg.MarkQueued(ctx, "pipe-1", model.StageWeakness)
			reg.MarkRunning(ctx, "pipe-1", model.StageWeakness)

			st, _ := reg.Status(ctx, "pipe-1")
			So(st.Stage, ShouldEqual, model.StageWeakness)
			So(st.State, ShouldEqual, model.StateRunning)
		})

		Convey("When the run completes", func() {
			reg.MarkComplete(ctx, "pipe-1")
			st, _ := reg.Status(ctx, "pipe-1")
			So(st.State, ShouldEqual, model.StateComplete)

			Convey("Then late transitions are dropped", func() {
				reg.MarkRunning(ctx, "pipe-1", model.StageMastery)
				st, _ := reg.Status(ctx, "pipe-1")
				So(st.State, ShouldEqual, model.StateComplete)
			})
		})

		Convey("When the run fails at a stage", func() {
			reg.MarkFailed(ctx, "pipe-1", model.StageMastery, errors.New("malformed attempts"))
			st, _ := reg.Status(ctx, "pipe-1")
			So(st.State, ShouldEqual, model.StateFailed)
			So(st.Stage, ShouldEqual, model.StageMastery)
			So(st.Error, ShouldContainSubstring, "malformed")
		})
	})
}

func TestRegistryEviction(t *testing.T) {
	Convey("Given a registry bounded to two runs", t, func() {
		reg := runs.NewRegistry(runs.WithMaxRuns(2))
		ctx := context.Background()

		reg.Begin(ctx, "k1", "u1/a", "u1", "p1")
		reg.MarkComplete(ctx, "p1")
		reg.Begin(ctx, "k2", "u1/b", "u1", "p2")
		reg.Begin(ctx, "k3", "u1/c", "u1", "p3")

		Convey("Then the oldest terminal run is evicted first", func() {
			_, ok := reg.Status(ctx, "p1")
			So(ok, ShouldBeFalse)
			_, ok = reg.Status(ctx, "p2")
			So(ok, ShouldBeTrue)
			_, ok = reg.Status(ctx, "p3")
			So(ok, ShouldBeTrue)
		})
	})
}
