package fiscal

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// recentTTL is how long an issued ID stays in the collision set. IDs embed a
// second-resolution timestamp, so anything older cannot collide.
const recentTTL = time.Second

// maxRandomRetries bounds the random-suffix attempts before the generator
// advances the millisecond and starts over. Generation never fails.
const maxRandomRetries = 25

// IDGenerator issues transaction document IDs of the form
// YYYY-MM-DD_HHMMSS_nnn in a fixed civil timezone. The nnn suffix is the
// millisecond of the first issue in a given instant, then a random 000-999
// value on collision. IDs are unique within the process; cross-process
// uniqueness relies on the store's write-if-absent semantics.
type IDGenerator struct {
	mu     sync.Mutex
	loc    *time.Location
	now    func() time.Time
	rng    *rand.Rand
	recent map[string]time.Time
}

// NewIDGenerator creates a generator for loc using the wall clock.
func NewIDGenerator(loc *time.Location) *IDGenerator {
	return NewIDGeneratorWithClock(loc, time.Now, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewIDGeneratorWithClock creates a generator with an injected clock and RNG,
// for deterministic tests.
func NewIDGeneratorWithClock(loc *time.Location, now func() time.Time, rng *rand.Rand) *IDGenerator {
	return &IDGenerator{
		loc:    loc,
		now:    now,
		rng:    rng,
		recent: make(map[string]time.Time),
	}
}

// NewTransactionID issues an ID for the current instant.
func (g *IDGenerator) NewTransactionID() string {
	return g.TransactionIDAt(g.now())
}

// TransactionIDAt issues an ID for the given instant. Backdated payments
// still get an ID stamped at their civil date.
func (g *IDGenerator) TransactionIDAt(at time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.expire(g.now())

	local := at.In(g.loc)
	for {
		base := local.Format("2006-01-02_150405")
		id := fmt.Sprintf("%s_%03d", base, local.Nanosecond()/int(time.Millisecond))
		if g.claim(id) {
			return id
		}
		for i := 0; i < maxRandomRetries; i++ {
			id = fmt.Sprintf("%s_%03d", base, g.rng.Intn(1000))
			if g.claim(id) {
				return id
			}
		}
		local = local.Add(time.Millisecond)
	}
}

func (g *IDGenerator) claim(id string) bool {
	if _, taken := g.recent[id]; taken {
		return false
	}
	g.recent[id] = g.now()
	return true
}

func (g *IDGenerator) expire(now time.Time) {
	for id, issued := range g.recent {
		if now.Sub(issued) > recentTTL {
			delete(g.recent, id)
		}
	}
}
