// Package idgen generates the values of auto-generated keys.
package idgen

import (
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator provides IDs for auto-generated keys.
type Generator interface {
	NewID() string
}

// Func adapts a plain function to a Generator.
type Func func() string

func (f Func) NewID() string { return f() }

// ULID generates lexicographically sortable IDs. It is the default generator,
// so items written later sort after earlier ones within a partition.
type ULID struct{}

func (ULID) NewID() string {
	return ulid.Make().String()
}

// UUID generates random version 4 UUIDs.
type UUID struct{}

func (UUID) NewID() string {
	return uuid.NewString()
}

// Sequence hands out IDs from a fixed list and then falls back to next.
// Useful for tests that need predictable keys.
type Sequence struct {
	mu   sync.Mutex
	ids  []string
	next Generator
}

func NewSequence(next Generator, ids ...string) *Sequence {
	return &Sequence{ids: ids, next: next}
}

func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) == 0 {
		return s.next.NewID()
	}
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id
}

// Default is the generator used when none is configured.
func Default() Generator {
	return ULID{}
}
