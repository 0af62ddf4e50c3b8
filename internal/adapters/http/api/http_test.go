package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/prepline/internal/adapters/http/api"
	service "github.com/okian/prepline/internal/app"
	"github.com/okian/prepline/internal/adapters/repository"
	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeDeps struct {
	triggerErr error
	duplicate  bool
	statusErr  error
	dashErr    error
	revisions  []types.RevisionDue
}

func (f *fakeDeps) Trigger(ctx context.Context, event model.LearningEvent) (string, bool, error) {
	if f.triggerErr != nil {
		return "", false, f.triggerErr
	}
	return "pipe-1", f.duplicate, nil
}

func (f *fakeDeps) PipelineStatus(ctx context.Context, pipelineID string) (types.PipelineStatus, error) {
	if f.statusErr != nil {
		return types.PipelineStatus{}, f.statusErr
	}
	return types.PipelineStatus{PipelineID: pipelineID, Stage: "snapshot", State: "complete"}, nil
}

func (f *fakeDeps) Dashboard(ctx context.Context, userID string) (types.Dashboard, error) {
	if f.dashErr != nil {
		return types.Dashboard{}, f.dashErr
	}
	return types.Dashboard{UserID: userID, ReadinessLevel: "ready"}, nil
}

func (f *fakeDeps) DueRevisions(ctx context.Context, userID string, limit int) ([]types.RevisionDue, error) {
	return f.revisions, nil
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestServer(deps api.Dependencies) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps, fakeStats{}).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer func() { _ = res.Body.Close() }()
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer func() { _ = res.Body.Close() }()
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

const validEvent = `{
	"event_id": "e1",
	"user_id": "u1",
	"topic_id": "arrays",
	"kind": "submission",
	"attempts": [{"correct": true, "difficulty": 3, "hints_used": 0, "time_factor": 1.0}]
}`

func TestPostEvent(t *testing.T) {
	Convey("Given the events endpoint", t, func() {
		Convey("A valid event is accepted", func() {
			srv := newTestServer(&fakeDeps{})
			defer srv.Close()

			res, body := postJSON(t, srv.URL+"/events", validEvent)
			So(res.StatusCode, ShouldEqual, http.StatusAccepted)
			So(body["status"], ShouldEqual, "accepted")
			So(body["pipeline_id"], ShouldEqual, "pipe-1")
		})

		Convey("A replayed event acknowledges the original run", func() {
			srv := newTestServer(&fakeDeps{duplicate: true})
			defer srv.Close()

			res, body := postJSON(t, srv.URL+"/events", validEvent)
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			So(body["status"], ShouldEqual, "duplicate")
			So(body["duplicate"], ShouldEqual, true)
		})

		Convey("Malformed JSON is a bad request", func() {
			srv := newTestServer(&fakeDeps{})
			defer srv.Close()

			res, _ := postJSON(t, srv.URL+"/events", `{`)
			So(res.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A payload missing required fields is a bad request", func() {
			srv := newTestServer(&fakeDeps{})
			defer srv.Close()

			res, body := postJSON(t, srv.URL+"/events", `{"event_id": "e1", "kind": "submission"}`)
			So(res.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(body["message"], ShouldContainSubstring, "user_id")
		})

		Convey("An unknown kind is a bad request", func() {
			srv := newTestServer(&fakeDeps{})
			defer srv.Close()

			res, _ := postJSON(t, srv.URL+"/events",
				`{"event_id": "e1", "user_id": "u1", "topic_id": "arrays", "kind": "quiz"}`)
			So(res.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A full mastery queue answers with backpressure", func() {
			srv := newTestServer(&fakeDeps{triggerErr: service.ErrQueueFull})
			defer srv.Close()

			res, body := postJSON(t, srv.URL+"/events", validEvent)
			So(res.StatusCode, ShouldEqual, http.StatusTooManyRequests)
			So(body["code"], ShouldEqual, "backpressure")
		})

		Convey("GET is not routed", func() {
			srv := newTestServer(&fakeDeps{})
			defer srv.Close()

			res, _ := getJSON(t, srv.URL+"/events")
			So(res.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestGetPipeline(t *testing.T) {
	Convey("Given the pipelines endpoint", t, func() {
		Convey("A known run reports its status", func() {
			srv := newTestServer(&fakeDeps{})
			defer srv.Close()

			res, body := getJSON(t, srv.URL+"/pipelines/pipe-1")
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			So(body["pipeline_id"], ShouldEqual, "pipe-1")
			So(body["state"], ShouldEqual, "complete")
		})

		Convey("An unknown run is not found", func() {
			srv := newTestServer(&fakeDeps{statusErr: service.ErrPipelineNotFound})
			defer srv.Close()

			res, _ := getJSON(t, srv.URL+"/pipelines/nope")
			So(res.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("A missing ID is a bad request", func() {
			srv := newTestServer(&fakeDeps{})
			defer srv.Close()

			res, _ := getJSON(t, srv.URL+"/pipelines/")
			So(res.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestGetDashboard(t *testing.T) {
	Convey("Given the dashboard endpoint", t, func() {
		Convey("A materialized snapshot is served", func() {
			srv := newTestServer(&fakeDeps{})
			defer srv.Close()

			res, body := getJSON(t, srv.URL+"/dashboard/u1")
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			So(body["user_id"], ShouldEqual, "u1")
			So(body["readiness_level"], ShouldEqual, "ready")
		})

		Convey("A user without a snapshot is not found", func() {
			srv := newTestServer(&fakeDeps{dashErr: repository.ErrNotFound})
			defer srv.Close()

			res, _ := getJSON(t, srv.URL+"/dashboard/nobody")
			So(res.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestGetRevisions(t *testing.T) {
	Convey("Given the revisions endpoint", t, func() {
		Convey("The due queue is served as a list", func() {
			srv := newTestServer(&fakeDeps{revisions: []types.RevisionDue{
				{TopicID: "arrays", StabilityDays: 3, Urgency: "high", DaysOverdue: 2},
			}})
			defer srv.Close()

			res, err := http.Get(srv.URL + "/revisions/u1?limit=10")
			So(err, ShouldBeNil)
			defer func() { _ = res.Body.Close() }()
			So(res.StatusCode, ShouldEqual, http.StatusOK)

			var due []types.RevisionDue
			So(json.NewDecoder(res.Body).Decode(&due), ShouldBeNil)
			So(len(due), ShouldEqual, 1)
			So(due[0].TopicID, ShouldEqual, "arrays")
		})

		Convey("A non-numeric limit is a bad request", func() {
			srv := newTestServer(&fakeDeps{})
			defer srv.Close()

			res, _ := getJSON(t, srv.URL+"/revisions/u1?limit=lots")
			So(res.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given the operational endpoints", t, func() {
		srv := newTestServer(&fakeDeps{})
		defer srv.Close()

		Convey("Health answers OK", func() {
			res, _ := getJSON(t, srv.URL+"/healthz")
			So(res.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("Stats reflects the provider", func() {
			res, body := getJSON(t, srv.URL+"/stats")
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			So(body["started"], ShouldEqual, true)
		})
	})
}
