package client

import (
	"sync"

	"github.com/augview/augview/pkg/domain"
)

// Store is the authoritative local mirror of server state: a single
// versioned cell. Replace is the only mutator — there is no partial update
// API, because the protocol offers no diff semantics to build one on.
// Readers must treat every read as a complete snapshot; step IDs are the
// only identity stable across replacements.
type Store struct {
	mu         sync.RWMutex
	pipeline   domain.Pipeline
	generation uint64
	populated  bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace overwrites the cell with a new snapshot and returns the new
// generation number. Generations increase by one per replacement.
func (s *Store) Replace(p domain.Pipeline) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline = p
	s.generation++
	s.populated = true
	return s.generation
}

// Snapshot returns the current pipeline, its generation, and whether any
// snapshot has been received yet.
func (s *Store) Snapshot() (domain.Pipeline, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipeline, s.generation, s.populated
}

// Generation returns the current generation number.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
