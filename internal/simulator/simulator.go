// Package simulator generates synthetic practice events and drives them
// through the ingest endpoint. It is used for load and smoke testing a
// running service.
package simulator

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL   string        // Base URL of the service
	NumEvents int           // Number of events to generate and submit
	NumUsers  int           // Number of simulated learners
	Rate      int           // Events per second (0 = as fast as possible)
	Workers   int           // Number of concurrent submitters
	Timeout   time.Duration // HTTP request timeout
	Seed      int64         // RNG seed; 0 derives one from the clock
	Verbose   bool          // Enable verbose logging
}

// Event mirrors the POST /events request body.
type Event struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	TopicID    string    `json:"topic_id"`
	Kind       string    `json:"kind"`
	Attempts   []Attempt `json:"attempts"`
	OccurredAt string    `json:"occurred_at"`
}

// Attempt mirrors one attempt in the request body.
type Attempt struct {
	Correct    bool    `json:"correct"`
	Difficulty int     `json:"difficulty"`
	HintsUsed  int     `json:"hints_used"`
	TimeFactor float64 `json:"time_factor"`
}

// AckResponse mirrors the ingest acknowledgment.
type AckResponse struct {
	Status     string `json:"status"`
	PipelineID string `json:"pipeline_id"`
	Duplicate  bool   `json:"duplicate"`
}

// Stats holds simulation statistics.
type Stats struct {
	EventsGenerated int
	EventsAccepted  int
	EventsDuplicate int
	EventsRejected  int
	EventsFailed    int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
