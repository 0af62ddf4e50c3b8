package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultShardCount = 8
)

// Collection names used for metrics and stats.
const (
	collectionMastery   = "mastery"
	collectionWeakness  = "weakness"
	collectionRevision  = "revision"
	collectionReadiness = "readiness"
	collectionSnapshot  = "snapshot"
)

// shard holds one partition of every collection. Topic-scoped collections
// are keyed by "user/topic", user-scoped ones by user ID; both hash on the
// user ID so all rows of one user land in the same shard.
type shard struct {
	mu        sync.RWMutex
	mastery   map[string]model.MasteryEstimate
	weakness  map[string]model.WeaknessSignal
	revision  map[string]model.RevisionScheduleEntry
	readiness map[string]model.ReadinessScore
	snapshot  map[string]model.DashboardSnapshot
}

// MemStore is a sharded, in-memory Store implementation. It is the default
// backing store; durable implementations satisfy the same interface.
type MemStore struct {
	shards []*shard
}

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithShardCount sets the number of shards.
func WithShardCount(n int) Option {
	return func(s *MemStore) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// NewMemStore creates a sharded in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		shards: make([]*shard, defaultShardCount),
	}

	for _, opt := range opts {
		opt(s)
	}

	for i := range s.shards {
		s.shards[i] = &shard{
			mastery:   make(map[string]model.MasteryEstimate),
			weakness:  make(map[string]model.WeaknessSignal),
			revision:  make(map[string]model.RevisionScheduleEntry),
			readiness: make(map[string]model.ReadinessScore),
			snapshot:  make(map[string]model.DashboardSnapshot),
		}
	}

	return s
}

func (s *MemStore) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[int(h.Sum32())%len(s.shards)]
}

func topicKey(userID, topicID string) string {
	return userID + "/" + topicID
}

func observeWrite(start time.Time) {
	metrics.RecordStoreWriteLatency(float64(time.Since(start).Microseconds()) / 1000.0)
}

func observeRead(start time.Time) {
	metrics.RecordStoreReadLatency(float64(time.Since(start).Microseconds()) / 1000.0)
}

// GetMastery returns the live estimate for (user, topic).
func (s *MemStore) GetMastery(ctx context.Context, userID, topicID string) (model.MasteryEstimate, error) {
	defer observeRead(time.Now())
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	m, ok := sh.mastery[topicKey(userID, topicID)]
	if !ok {
		return model.MasteryEstimate{}, ErrNotFound
	}
	return m, nil
}

// PutMastery upserts the estimate unless a newer sequence is already stored.
func (s *MemStore) PutMastery(ctx context.Context, m model.MasteryEstimate) (bool, error) {
	defer observeWrite(time.Now())
	sh := s.shardFor(m.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	key := topicKey(m.UserID, m.TopicID)
	if cur, ok := sh.mastery[key]; ok && cur.Seq > m.Seq {
		return false, nil
	}
	sh.mastery[key] = m
	return true, nil
}

// ListMastery returns all estimates for a user, ordered by topic ID.
func (s *MemStore) ListMastery(ctx context.Context, userID string) ([]model.MasteryEstimate, error) {
	defer observeRead(time.Now())
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	var out []model.MasteryEstimate
	for _, m := range sh.mastery {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out, nil
}

// GetWeakness returns the live signal for (user, topic).
func (s *MemStore) GetWeakness(ctx context.Context, userID, topicID string) (model.WeaknessSignal, error) {
	defer observeRead(time.Now())
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	w, ok := sh.weakness[topicKey(userID, topicID)]
	if !ok {
		return model.WeaknessSignal{}, ErrNotFound
	}
	return w, nil
}

// PutWeakness upserts the signal unless a newer sequence is already stored.
func (s *MemStore) PutWeakness(ctx context.Context, w model.WeaknessSignal) (bool, error) {
	defer observeWrite(time.Now())
	sh := s.shardFor(w.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	key := topicKey(w.UserID, w.TopicID)
	if cur, ok := sh.weakness[key]; ok && cur.Seq > w.Seq {
		return false, nil
	}
	sh.weakness[key] = w
	return true, nil
}

// ListWeakness returns all signals for a user, ordered by topic ID.
func (s *MemStore) ListWeakness(ctx context.Context, userID string) ([]model.WeaknessSignal, error) {
	defer observeRead(time.Now())
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	var out []model.WeaknessSignal
	for _, w := range sh.weakness {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out, nil
}

// GetRevision returns the schedule entry for (user, topic).
func (s *MemStore) GetRevision(ctx context.Context, userID, topicID string) (model.RevisionScheduleEntry, error) {
	defer observeRead(time.Now())
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e, ok := sh.revision[topicKey(userID, topicID)]
	if !ok {
		return model.RevisionScheduleEntry{}, ErrNotFound
	}
	return e, nil
}

// PutRevision upserts the entry unless a newer sequence is already stored.
func (s *MemStore) PutRevision(ctx context.Context, e model.RevisionScheduleEntry) (bool, error) {
	defer observeWrite(time.Now())
	sh := s.shardFor(e.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	key := topicKey(e.UserID, e.TopicID)
	if cur, ok := sh.revision[key]; ok && cur.Seq > e.Seq {
		return false, nil
	}
	sh.revision[key] = e
	return true, nil
}

// ListRevision returns all schedule entries for a user, ordered by topic ID.
func (s *MemStore) ListRevision(ctx context.Context, userID string) ([]model.RevisionScheduleEntry, error) {
	defer observeRead(time.Now())
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	var out []model.RevisionScheduleEntry
	for _, e := range sh.revision {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out, nil
}

// DueRevisions returns entries due at or before now, soonest first.
func (s *MemStore) DueRevisions(ctx context.Context, userID string, now time.Time, limit int) ([]model.RevisionScheduleEntry, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	entries, err := s.ListRevision(ctx, userID)
	if err != nil {
		return nil, err
	}

	var due []model.RevisionScheduleEntry
	for _, e := range entries {
		if !e.NextRevisionAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRevisionAt.Before(due[j].NextRevisionAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// GetReadiness returns the live per-user readiness score.
func (s *MemStore) GetReadiness(ctx context.Context, userID string) (model.ReadinessScore, error) {
	defer observeRead(time.Now())
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	r, ok := sh.readiness[userID]
	if !ok {
		return model.ReadinessScore{}, ErrNotFound
	}
	return r, nil
}

// PutReadiness upserts the score unless a newer sequence is already stored.
func (s *MemStore) PutReadiness(ctx context.Context, r model.ReadinessScore) (bool, error) {
	defer observeWrite(time.Now())
	sh := s.shardFor(r.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if cur, ok := sh.readiness[r.UserID]; ok && cur.Seq > r.Seq {
		return false, nil
	}
	sh.readiness[r.UserID] = r
	return true, nil
}

// GetSnapshot returns the current dashboard snapshot for a user.
func (s *MemStore) GetSnapshot(ctx context.Context, userID string) (model.DashboardSnapshot, error) {
	defer observeRead(time.Now())
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	snap, ok := sh.snapshot[userID]
	if !ok {
		return model.DashboardSnapshot{}, ErrNotFound
	}
	return snap, nil
}

// PutSnapshot replaces the snapshot whole.
func (s *MemStore) PutSnapshot(ctx context.Context, snap model.DashboardSnapshot) error {
	defer observeWrite(time.Now())
	sh := s.shardFor(snap.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.snapshot[snap.UserID] = snap
	return nil
}

// Counts returns record counts per logical collection and refreshes the
// store gauges.
func (s *MemStore) Counts(ctx context.Context) map[string]int {
	counts := map[string]int{}
	for _, sh := range s.shards {
		sh.mu.RLock()
		counts[collectionMastery] += len(sh.mastery)
		counts[collectionWeakness] += len(sh.weakness)
		counts[collectionRevision] += len(sh.revision)
		counts[collectionReadiness] += len(sh.readiness)
		counts[collectionSnapshot] += len(sh.snapshot)
		sh.mu.RUnlock()
	}
	for collection, n := range counts {
		metrics.UpdateStoreRecords(collection, n)
	}
	return counts
}
