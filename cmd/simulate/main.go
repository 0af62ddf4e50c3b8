package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/prepline/internal/simulator"
	"github.com/okian/prepline/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumEvents = 1000
	defaultNumUsers  = 25
	defaultRate      = 100
	defaultTimeout   = 10 * time.Second
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numEvents = flag.Int("events", defaultNumEvents, "Number of events to generate and submit")
		numUsers  = flag.Int("users", defaultNumUsers, "Number of simulated learners")
		rate      = flag.Int("rate", defaultRate, "Events per second (0 = unthrottled)")
		workers   = flag.Int("workers", runtime.NumCPU(), "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed      = flag.Int64("seed", 0, "RNG seed (0 = derive from clock)")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &simulator.Config{
		BaseURL:   *baseURL,
		NumEvents: *numEvents,
		NumUsers:  *numUsers,
		Rate:      *rate,
		Workers:   *workers,
		Timeout:   *timeout,
		Seed:      *seed,
		Verbose:   *verbose,
	}

	if err := simulator.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}
