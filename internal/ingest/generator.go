package ingest

import (
	"math/rand"
	"sort"

	"github.com/harrison/fragility/internal/models"
)

// Generator draws synthetic events. It owns its random source, so runs
// with the same seed produce the same events.
type Generator struct {
	vocab      Vocabulary
	rng        *rand.Rand
	cumulative []int
}

// NewGenerator creates a generator sampling vocab with rng
func NewGenerator(vocab Vocabulary, rng *rand.Rand) (*Generator, error) {
	if err := vocab.Validate(); err != nil {
		return nil, err
	}

	cumulative := make([]int, len(vocab.Weights))
	sum := 0
	for i, w := range vocab.Weights {
		sum += w
		cumulative[i] = sum
	}
	return &Generator{vocab: vocab, rng: rng, cumulative: cumulative}, nil
}

// NewSeededGenerator is NewGenerator with rand.NewSource(seed)
func NewSeededGenerator(vocab Vocabulary, seed int64) (*Generator, error) {
	return NewGenerator(vocab, rand.New(rand.NewSource(seed)))
}

// Pick draws one action by weight
func (g *Generator) Pick() string {
	total := g.cumulative[len(g.cumulative)-1]
	r := g.rng.Intn(total)
	i := sort.SearchInts(g.cumulative, r+1)
	return g.vocab.Actions[i]
}

// Generate produces eventsPerUser actions for users 1..users, user by user.
func (g *Generator) Generate(users, eventsPerUser int) []models.NewEvent {
	if users <= 0 || eventsPerUser <= 0 {
		return nil
	}

	events := make([]models.NewEvent, 0, users*eventsPerUser)
	for u := 1; u <= users; u++ {
		for i := 0; i < eventsPerUser; i++ {
			events = append(events, models.NewEvent{UserID: int64(u), Action: g.Pick()})
		}
	}
	return events
}
