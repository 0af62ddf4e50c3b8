// Package lease implements the per-(user, topic) pipeline lock.
//
// A lease is acquired at stage 1 and held until the run completes or fails,
// so only one run per key is live at a time. The TTL guards against runs
// that die without releasing: an expired lease may be reclaimed by the next
// acquirer.
package lease

import (
	"context"
	"sync"
	"time"

	"github.com/okian/prepline/pkg/metrics"
)

// Default lease configuration constants.
const (
	defaultTTL = 30 * time.Second
)

type entry struct {
	holder  string
	expires time.Time
}

// Manager tracks held leases keyed by "user/topic".
type Manager struct {
	mu   sync.Mutex
	held map[string]entry
	ttl  time.Duration
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithTTL sets the lease time-to-live. The TTL should sit slightly above the
// expected end-to-end run latency.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewManager creates a lease manager with configuration options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		held: make(map[string]entry),
		ttl:  defaultTTL,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Acquire takes the lease for key on behalf of holder. Returns true when the
// lease was granted, including re-entry by the current holder and reclaim of
// an expired lease. Returns false while another live holder owns the key.
func (m *Manager) Acquire(ctx context.Context, key, holder string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if cur, ok := m.held[key]; ok {
		if cur.holder == holder {
			// Re-entrant renewal by the same run.
			m.held[key] = entry{holder: holder, expires: now.Add(m.ttl)}
			return true
		}
		if cur.expires.After(now) {
			return false
		}
		metrics.RecordLeaseExpiry()
	}

	m.held[key] = entry{holder: holder, expires: now.Add(m.ttl)}
	metrics.UpdateLeasesHeld(len(m.held))
	return true
}

// Renew extends the lease if holder still owns it.
func (m *Manager) Renew(ctx context.Context, key, holder string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.held[key]
	if !ok || cur.holder != holder {
		return false
	}
	m.held[key] = entry{holder: holder, expires: time.Now().Add(m.ttl)}
	return true
}

// Release gives up the lease if holder owns it. Releasing a lease another
// run has since reclaimed is a no-op.
func (m *Manager) Release(ctx context.Context, key, holder string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.held[key]; ok && cur.holder == holder {
		delete(m.held, key)
		metrics.UpdateLeasesHeld(len(m.held))
	}
}

// Held returns the number of currently held leases.
func (m *Manager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}
