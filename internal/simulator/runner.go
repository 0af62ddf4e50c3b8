package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/prepline/pkg/logger"
)

// Runner defaults.
const (
	defaultTimeout  = 10 * time.Second
	settleDelay     = 2 * time.Second
	dashboardSample = 3
)

// Run executes a complete simulation: health check, event submission at the
// configured rate, then a dashboard spot-check for a few learners.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	log := logger.Named("simulator")
	stats := &Stats{StartTime: time.Now()}
	client := &http.Client{Timeout: cfg.Timeout}

	log.Info(ctx, "starting simulation",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("events", cfg.NumEvents),
		logger.Int("users", cfg.NumUsers),
		logger.Int("rate", cfg.Rate),
		logger.Int("workers", cfg.Workers))

	if err := checkHealth(ctx, client, cfg.BaseURL); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	gen := NewGenerator(cfg.NumUsers, cfg.Seed)
	if err := submitEvents(ctx, client, cfg, gen, stats); err != nil {
		return fmt.Errorf("event submission failed: %w", err)
	}

	log.Info(ctx, "waiting for pipelines to settle")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settleDelay):
	}

	checkDashboards(ctx, client, cfg, gen, log)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "simulation finished",
		logger.Int("generated", stats.EventsGenerated),
		logger.Int("accepted", stats.EventsAccepted),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("rejected", stats.EventsRejected),
		logger.Int("failed", stats.EventsFailed),
		logger.Duration("duration", stats.Duration))
	return nil
}

func checkHealth(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("health status %d", res.StatusCode)
	}
	return nil
}

func submitEvents(ctx context.Context, client *http.Client, cfg *Config, gen *Generator, stats *Stats) error {
	var interval time.Duration
	if cfg.Rate > 0 {
		interval = time.Second / time.Duration(cfg.Rate)
	}

	jobs := make(chan Event)
	var accepted, duplicate, rejected, failed atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range jobs {
				switch postEvent(ctx, client, cfg.BaseURL, ev) {
				case http.StatusAccepted:
					accepted.Add(1)
				case http.StatusOK:
					duplicate.Add(1)
				case http.StatusTooManyRequests:
					rejected.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	var err error
feed:
	for i := 0; i < cfg.NumEvents; i++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				break feed
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		stats.EventsGenerated++
		jobs <- gen.Next()
	}
	close(jobs)
	wg.Wait()

	stats.EventsAccepted = int(accepted.Load())
	stats.EventsDuplicate = int(duplicate.Load())
	stats.EventsRejected = int(rejected.Load())
	stats.EventsFailed = int(failed.Load())
	return err
}

// postEvent returns the HTTP status of the submission, or 0 on transport
// failure.
func postEvent(ctx context.Context, client *http.Client, baseURL string, ev Event) int {
	body, err := json.Marshal(ev)
	if err != nil {
		return 0
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return 0
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()
	return res.StatusCode
}

// checkDashboards fetches a few learner dashboards to confirm snapshots
// materialized. Failures are logged, not fatal; pipelines may still be
// draining.
func checkDashboards(ctx context.Context, client *http.Client, cfg *Config, gen *Generator, log logger.Logger) {
	users := gen.Users()
	if len(users) > dashboardSample {
		users = users[:dashboardSample]
	}
	for _, userID := range users {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/dashboard/"+userID, nil)
		if err != nil {
			continue
		}
		res, err := client.Do(req)
		if err != nil {
			log.Warn(ctx, "dashboard fetch failed", logger.String("user_id", userID), logger.Error(err))
			continue
		}
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
		log.Info(ctx, "dashboard checked",
			logger.String("user_id", userID),
			logger.Int("status", res.StatusCode))
	}
}
