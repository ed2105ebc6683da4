package protocol

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces correlation ids for save operations.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// Safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined ids, for tests.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order and then
// repeats the last one.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	if len(ids) == 0 {
		ids = []string{"save-0"}
	}
	return &FixedGenerator{ids: ids}
}

// Generate returns the next id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}
