package worker_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/prepline/internal/adapters/mq/queue"
	"github.com/okian/prepline/internal/adapters/mq/worker"
	"github.com/okian/prepline/internal/domain/lease"
	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/internal/domain/runs"
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

type fakeRunner struct {
	stage model.Stage
	run   func(call int, job model.Job) (*model.Job, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeRunner) Stage() model.Stage { return f.stage }

func (f *fakeRunner) Run(ctx context.Context, job model.Job) (*model.Job, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	return f.run(n, job)
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testJob(pipelineID string) model.Job {
	return model.Job{
		PipelineID: pipelineID,
		Stage:      model.StageMastery,
		UserID:     "u1",
		TopicID:    "arrays",
		Event:      model.LearningEvent{EventID: "e1", UserID: "u1", TopicID: "arrays", Kind: model.KindSubmission},
		Seq:        1,
		Priority:   1,
		EnqueuedAt: time.Now(),
	}
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

type harness struct {
	source *queue.PriorityQueue
	next   *queue.PriorityQueue
	leases *lease.Manager
	runs   *runs.Registry
	dead   *worker.DeadLetter
	pool   *worker.Pool
	cancel context.CancelFunc
}

func newHarness(runner worker.StageRunner, opts ...worker.Option) *harness {
	h := &harness{
		source: queue.NewPriorityQueue("test-source"),
		next:   queue.NewPriorityQueue("test-next"),
		leases: lease.NewManager(),
		runs:   runs.NewRegistry(),
		dead:   worker.NewDeadLetter(10),
	}

	opts = append([]worker.Option{
		worker.WithWorkers(1),
		worker.WithMaxRetries(1),
		worker.WithRetryBase(time.Millisecond),
		worker.WithRequeueDelay(5 * time.Millisecond),
		worker.WithDeadLetterSink(h.dead),
	}, opts...)
	h.pool = worker.NewPool(runner, h.source, h.next, h.leases, h.runs, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.pool.Start(ctx)
	return h
}

func (h *harness) submit(job model.Job) {
	ctx := context.Background()
	h.runs.Begin(ctx, "key-"+job.PipelineID, job.Key(), job.UserID, job.PipelineID)
	h.source.Enqueue(ctx, job)
}

func (h *harness) stop() {
	_ = h.source.Close()
	h.pool.Stop()
	_ = h.next.Close()
	h.cancel()
}

func TestPoolHandsOffToNextStage(t *testing.T) {
	Convey("Given a stage runner that produces a follow-up job", t, func() {
		runner := &fakeRunner{
			stage: model.StageMastery,
			run: func(_ int, job model.Job) (*model.Job, error) {
				next := job
				next.Stage = model.StageWeakness
				return &next, nil
			},
		}
		h := newHarness(runner)
		defer h.stop()

		Convey("When a job is processed", func() {
			h.submit(testJob("p1"))

			Convey("Then the follow-up lands on the next stage queue", func() {
				var got model.Job
				select {
				case got = <-h.next.Dequeue(context.Background()):
				case <-time.After(2 * time.Second):
					t.Fatal("no handoff observed")
				}
				So(got.Stage, ShouldEqual, model.StageWeakness)
				So(got.PipelineID, ShouldEqual, "p1")

				st, ok := h.runs.Status(context.Background(), "p1")
				So(ok, ShouldBeTrue)
				So(st.State, ShouldEqual, model.StateQueued)
				So(st.Stage, ShouldEqual, model.StageWeakness)
			})
		})
	})
}

func TestPoolTerminalStage(t *testing.T) {
	Convey("Given a terminal stage runner", t, func() {
		runner := &fakeRunner{
			stage: model.StageSnapshot,
			run: func(_ int, _ model.Job) (*model.Job, error) {
				return nil, nil
			},
		}
		h := newHarness(runner)
		defer h.stop()

		Convey("When the job finishes", func() {
			h.submit(testJob("p1"))

			Convey("Then the run completes and the lease is freed", func() {
				So(waitFor(2*time.Second, func() bool {
					st, ok := h.runs.Status(context.Background(), "p1")
					return ok && st.State == model.StateComplete
				}), ShouldBeTrue)
				So(h.leases.Held(), ShouldEqual, 0)
			})
		})
	})
}

func TestPoolValidationErrorDeadLetters(t *testing.T) {
	Convey("Given a runner that rejects the payload", t, func() {
		runner := &fakeRunner{
			stage: model.StageMastery,
			run: func(_ int, _ model.Job) (*model.Job, error) {
				return nil, fmt.Errorf("%w: attempts must not be empty", model.ErrValidation)
			},
		}
		h := newHarness(runner)
		defer h.stop()

		Convey("When the job is processed", func() {
			h.submit(testJob("p1"))

			Convey("Then the run fails without retries and the job is dead-lettered", func() {
				So(waitFor(2*time.Second, func() bool {
					st, ok := h.runs.Status(context.Background(), "p1")
					return ok && st.State == model.StateFailed
				}), ShouldBeTrue)

				So(runner.callCount(), ShouldEqual, 1)
				So(h.dead.Size(), ShouldEqual, 1)
				entries := h.dead.Entries()
				So(entries[0].Cause, ShouldContainSubstring, "attempts must not be empty")
				So(h.leases.Held(), ShouldEqual, 0)
				So(h.next.Len(context.Background()), ShouldEqual, 0)
			})
		})
	})
}

func TestPoolTransientRetry(t *testing.T) {
	Convey("Given a runner that fails once and then recovers", t, func() {
		runner := &fakeRunner{
			stage: model.StageSnapshot,
			run: func(call int, _ model.Job) (*model.Job, error) {
				if call == 1 {
					return nil, fmt.Errorf("%w: store busy", model.ErrTransient)
				}
				return nil, nil
			},
		}
		h := newHarness(runner)
		defer h.stop()

		Convey("When the job is processed", func() {
			h.submit(testJob("p1"))

			Convey("Then the retry succeeds and the run completes", func() {
				So(waitFor(2*time.Second, func() bool {
					st, ok := h.runs.Status(context.Background(), "p1")
					return ok && st.State == model.StateComplete
				}), ShouldBeTrue)
				So(runner.callCount(), ShouldEqual, 2)
				So(h.dead.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestPoolTransientExhaustion(t *testing.T) {
	Convey("Given a runner that never stops failing transiently", t, func() {
		runner := &fakeRunner{
			stage: model.StageSnapshot,
			run: func(_ int, _ model.Job) (*model.Job, error) {
				return nil, fmt.Errorf("%w: store busy", model.ErrTransient)
			},
		}
		h := newHarness(runner)
		defer h.stop()

		Convey("When the retry budget runs out", func() {
			h.submit(testJob("p1"))

			Convey("Then the exhausted run is dead-lettered as fatal", func() {
				So(waitFor(2*time.Second, func() bool {
					st, ok := h.runs.Status(context.Background(), "p1")
					return ok && st.State == model.StateFailed
				}), ShouldBeTrue)

				So(runner.callCount(), ShouldEqual, 2) // initial attempt plus one retry
				entries := h.dead.Entries()
				So(len(entries), ShouldEqual, 1)
				So(entries[0].Cause, ShouldContainSubstring, "retry budget exhausted")
			})
		})
	})
}

func TestPoolLeaseContention(t *testing.T) {
	Convey("Given the ordering key is held by another run", t, func() {
		runner := &fakeRunner{
			stage: model.StageSnapshot,
			run: func(_ int, _ model.Job) (*model.Job, error) {
				return nil, nil
			},
		}
		h := newHarness(runner)
		defer h.stop()

		ctx := context.Background()
		job := testJob("p1")
		So(h.leases.Acquire(ctx, job.Key(), "other-run"), ShouldBeTrue)

		Convey("When the contended job arrives", func() {
			h.submit(job)

			Convey("Then it waits in the queue without running", func() {
				time.Sleep(50 * time.Millisecond)
				So(runner.callCount(), ShouldEqual, 0)

				Convey("And it completes once the holder releases", func() {
					h.leases.Release(ctx, job.Key(), "other-run")
					So(waitFor(2*time.Second, func() bool {
						st, ok := h.runs.Status(ctx, "p1")
						return ok && st.State == model.StateComplete
					}), ShouldBeTrue)
				})
			})
		})
	})
}
