package recurring

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers for templates, orders and rows.
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers. Unique well
// beyond the scale of one shop's ledger. Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID panics if the random source fails, which should never happen.
func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined identifiers, then falls back to
// "<prefix>-<n>" once the list is exhausted.
type FixedGenerator struct {
	mu     sync.Mutex
	ids    []string
	prefix string
	n      int
}

func NewFixedGenerator(prefix string, ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids, prefix: prefix}
}

func (g *FixedGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if g.n <= len(g.ids) {
		return g.ids[g.n-1]
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
