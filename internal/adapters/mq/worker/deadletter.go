package worker

import (
	"context"
	"sync"
	"time"

	"github.com/okian/prepline/internal/domain/model"
)

// Default dead-letter configuration constants.
const (
	defaultDeadLetterCap = 1000
)

// DeadLetterEntry is one dead-lettered job with its terminal cause.
type DeadLetterEntry struct {
	Job   model.Job
	Cause string
	At    time.Time
}

// DeadLetterSink receives jobs that will never be retried.
type DeadLetterSink interface {
	Add(ctx context.Context, job model.Job, cause error)
}

// DeadLetter is a bounded in-memory sink. When full, the oldest entries are
// dropped so the newest failures stay inspectable.
type DeadLetter struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	cap     int
}

// NewDeadLetter creates a bounded dead-letter sink.
func NewDeadLetter(capacity int) *DeadLetter {
	if capacity <= 0 {
		capacity = defaultDeadLetterCap
	}
	return &DeadLetter{cap: capacity}
}

// Add records a dead-lettered job.
func (d *DeadLetter) Add(ctx context.Context, job model.Job, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = append(d.entries, DeadLetterEntry{Job: job, Cause: msg, At: time.Now()})
	if len(d.entries) > d.cap {
		d.entries = d.entries[len(d.entries)-d.cap:]
	}
}

// Entries returns a copy of the recorded entries, oldest first.
func (d *DeadLetter) Entries() []DeadLetterEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]DeadLetterEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Size returns the number of recorded entries.
func (d *DeadLetter) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
