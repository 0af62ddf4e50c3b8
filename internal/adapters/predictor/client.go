// Package predictor adapts the four stage computations to the external
// prediction service.
//
// The client speaks JSON over HTTP, one POST per stage. Without a configured
// endpoint every prediction is served by the in-process Local model, which
// implements the same numeric contracts. With an endpoint, mastery, weakness
// and revision failures surface to the caller for retry, while readiness
// falls back to the local model so the pipeline never hard-fails on an
// unavailable external model.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/prepline/internal/domain/mastery"
	"github.com/okian/prepline/internal/domain/readiness"
	"github.com/okian/prepline/internal/domain/revision"
	"github.com/okian/prepline/internal/domain/weakness"
	"github.com/okian/prepline/pkg/logger"
	"github.com/okian/prepline/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultTimeout = 5 * time.Second

	pathMastery   = "/v1/mastery"
	pathWeakness  = "/v1/weakness"
	pathRevision  = "/v1/revision"
	pathReadiness = "/v1/readiness"
)

// Client is the prediction service adapter.
type Client struct {
	endpoint string
	httpc    *http.Client
	local    Local
	log      logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithEndpoint sets the prediction service base URL. An empty endpoint keeps
// all predictions local.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithTimeout bounds each prediction call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpc.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// New creates a prediction client with configuration options.
func New(opts ...Option) *Client {
	c := &Client{
		httpc: &http.Client{Timeout: defaultTimeout},
		local: NewLocal(),
		log:   logger.Named("predictor"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// PredictMastery requests a BKT update from the service.
func (c *Client) PredictMastery(ctx context.Context, req mastery.Request) (mastery.Response, error) {
	if c.endpoint == "" {
		return c.local.PredictMastery(ctx, req)
	}
	var resp mastery.Response
	if err := c.post(ctx, "mastery", pathMastery, req, &resp); err != nil {
		return mastery.Response{}, err
	}
	return resp, nil
}

// PredictWeakness requests a risk assessment from the service.
func (c *Client) PredictWeakness(ctx context.Context, req weakness.Request) (weakness.Response, error) {
	if c.endpoint == "" {
		return c.local.PredictWeakness(ctx, req)
	}
	var resp weakness.Response
	if err := c.post(ctx, "weakness", pathWeakness, req, &resp); err != nil {
		return weakness.Response{}, err
	}
	return resp, nil
}

// PredictRevision requests a schedule update from the service.
func (c *Client) PredictRevision(ctx context.Context, req revision.Request) (revision.Response, error) {
	if c.endpoint == "" {
		return c.local.PredictRevision(ctx, req)
	}
	var resp revision.Response
	if err := c.post(ctx, "revision", pathRevision, req, &resp); err != nil {
		return revision.Response{}, err
	}
	return resp, nil
}

// PredictReadiness requests a readiness score from the service, falling back
// to the local model when the service is unavailable.
func (c *Client) PredictReadiness(ctx context.Context, req readiness.Request) (readiness.Response, error) {
	if c.endpoint == "" {
		return c.local.PredictReadiness(ctx, req)
	}
	var resp readiness.Response
	if err := c.post(ctx, "readiness", pathReadiness, req, &resp); err != nil {
		c.log.Warn(ctx, "readiness prediction failed, using local fallback",
			logger.String("user_id", req.UserID),
			logger.Error(err))
		metrics.RecordPredictionFallback("readiness")
		return c.local.PredictReadiness(ctx, req)
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, stage, path string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", stage, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", stage, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := c.httpc.Do(httpReq)
	metrics.RecordPredictionLatency(stage, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordPredictionError(stage)
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, stage, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		metrics.RecordPredictionError(stage)
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, stage, res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(resp); err != nil {
		metrics.RecordPredictionError(stage)
		return fmt.Errorf("decode %s response: %w", stage, err)
	}
	return nil
}
