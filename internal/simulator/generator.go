package simulator

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Simulated learner behavior constants.
const (
	maxAttemptsPerEvent = 3
	abilityGainPerWin   = 0.02
	sessionEventShare   = 0.2 // share of events posted as batch session imports
)

// defaultTopics is the synthetic curriculum.
var defaultTopics = []string{"arrays", "dp", "graphs", "recursion", "sorting", "strings", "trees"}

// Generator produces synthetic practice events. Each simulated learner has a
// latent per-topic ability that drifts upward as they practice, so the
// produced streams look like real learning curves rather than noise.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	users  []*simUser
	topics []string
}

type simUser struct {
	id      string
	ability map[string]float64
}

// NewGenerator creates a generator for n simulated learners.
func NewGenerator(n int, seed int64) *Generator {
	if n <= 0 {
		n = 1
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	g := &Generator{rng: rng, topics: defaultTopics}
	for i := 0; i < n; i++ {
		u := &simUser{
			id:      fmt.Sprintf("learner-%03d", i+1),
			ability: make(map[string]float64, len(defaultTopics)),
		}
		for _, topic := range defaultTopics {
			u.ability[topic] = 0.2 + 0.5*rng.Float64()
		}
		g.users = append(g.users, u)
	}
	return g
}

// Next produces one synthetic event.
func (g *Generator) Next() Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	user := g.users[g.rng.Intn(len(g.users))]
	topic := g.topics[g.rng.Intn(len(g.topics))]

	kind := "submission"
	if g.rng.Float64() < sessionEventShare {
		kind = "session_complete"
	}

	n := 1 + g.rng.Intn(maxAttemptsPerEvent)
	attempts := make([]Attempt, 0, n)
	for i := 0; i < n; i++ {
		difficulty := 1 + g.rng.Intn(5)
		// Harder problems shift the success odds against the learner.
		pCorrect := user.ability[topic] - 0.1*float64(difficulty-3)
		correct := g.rng.Float64() < clamp01(pCorrect)
		if correct {
			user.ability[topic] = clamp01(user.ability[topic] + abilityGainPerWin)
		}

		hints := 0
		if !correct && g.rng.Float64() < 0.5 {
			hints = 1 + g.rng.Intn(2)
		}
		attempts = append(attempts, Attempt{
			Correct:    correct,
			Difficulty: difficulty,
			HintsUsed:  hints,
			TimeFactor: 0.5 + 1.5*g.rng.Float64(),
		})
	}

	return Event{
		EventID:    uuid.New().String(),
		UserID:     user.id,
		TopicID:    topic,
		Kind:       kind,
		Attempts:   attempts,
		OccurredAt: time.Now().Format(time.RFC3339),
	}
}

// Users returns the simulated learner IDs.
func (g *Generator) Users() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.users))
	for _, u := range g.users {
		ids = append(ids, u.id)
	}
	return ids
}

func clamp01(v float64) float64 {
	if v < 0.05 {
		return 0.05
	}
	if v > 0.95 {
		return 0.95
	}
	return v
}
