package predictor_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/prepline/internal/adapters/predictor"
	"github.com/okian/prepline/internal/domain/mastery"
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

func TestClientLocalOnly(t *testing.T) {
	Convey("Given a client without an endpoint", t, func() {
		c := predictor.New()
		ctx := context.Background()

		Convey("When a mastery prediction is requested", func() {
			resp, err := c.PredictMastery(ctx, mastery.Request{
				UserID:   "u1",
				TopicID:  "arrays",
				Prior:    0.1,
				Attempts: []model.Attempt{{Correct: true, Difficulty: 3, TimeFactor: 1}},
			})

			Convey("Then the in-process model answers", func() {
				So(err, ShouldBeNil)
				So(resp.MasteryProbability, ShouldBeGreaterThan, 0.1)
				So(resp.RecommendedDifficulty, ShouldEqual, "easy")
			})
		})

		Convey("When a readiness prediction is requested", func() {
			var features [readiness.FeatureCount]float64
			for i := range features {
				features[i] = 0.5
			}
			resp, err := c.PredictReadiness(ctx, readiness.Request{UserID: "u1", Features: features})

			Convey("Then the local fallback scores it", func() {
				So(err, ShouldBeNil)
				So(resp.OverallScore, ShouldAlmostEqual, 50, 1e-9)
				So(resp.Level, ShouldEqual, model.ReadinessReady)
			})
		})
	})
}

func TestClientRemote(t *testing.T) {
	Convey("Given a prediction service answering mastery calls", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/mastery" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			var req mastery.Request
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(mastery.Response{
				MasteryProbability:    0.42,
				Confidence:            0.8,
				Trend:                 model.TrendImproving,
				RecommendedDifficulty: "medium",
			})
		}))
		defer srv.Close()

		c := predictor.New(predictor.WithEndpoint(srv.URL))

		Convey("When a mastery prediction is requested", func() {
			resp, err := c.PredictMastery(context.Background(), mastery.Request{
				UserID:   "u1",
				TopicID:  "arrays",
				Prior:    0.3,
				Attempts: []model.Attempt{{Correct: true, Difficulty: 2, TimeFactor: 1}},
			})

			Convey("Then the remote response is returned verbatim", func() {
				So(err, ShouldBeNil)
				So(resp.MasteryProbability, ShouldEqual, 0.42)
				So(resp.Trend, ShouldEqual, model.TrendImproving)
			})
		})
	})
}

func TestClientRemoteFailure(t *testing.T) {
	Convey("Given a prediction service that is falling over", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := predictor.New(predictor.WithEndpoint(srv.URL))
		ctx := context.Background()

		Convey("When a mastery prediction fails", func() {
			_, err := c.PredictMastery(ctx, mastery.Request{
				UserID:   "u1",
				TopicID:  "arrays",
				Attempts: []model.Attempt{{Correct: true, Difficulty: 2, TimeFactor: 1}},
			})

			Convey("Then the unavailability surfaces for the caller to retry", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, predictor.ErrUnavailable), ShouldBeTrue)
			})
		})

		Convey("When a readiness prediction fails", func() {
			var features [readiness.FeatureCount]float64
			for i := range features {
				features[i] = 0.5
			}
			resp, err := c.PredictReadiness(ctx, readiness.Request{UserID: "u1", Features: features})

			Convey("Then the local fallback answers instead of an error", func() {
				So(err, ShouldBeNil)
				So(resp.OverallScore, ShouldAlmostEqual, 50, 1e-9)
			})
		})
	})
}
