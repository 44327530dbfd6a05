package stratum

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
)

// idGenerator issues unique, monotonically increasing ULIDs. All stores
// and logs belonging to one session share a single generator, so ids are
// ordered across record kinds, which keeps persisted journals replayable
// in creation order.
//
// ULIDs encode the creation timestamp; the monotonic entropy source
// guarantees strictly increasing ids even when multiple records are
// created within the same millisecond (or under a fixed test clock).
type idGenerator struct {
	mu      sync.Mutex
	clock   Clock
	entropy *ulid.MonotonicEntropy
}

func newIDGenerator(clock Clock) *idGenerator {
	return &idGenerator{
		clock:   clock,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Next returns the next id. Safe for concurrent use.
func (g *idGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.clock.Now()), g.entropy).String()
}
