package layout

import "sync"

// Position is a node's top-left corner in canvas coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dimensions is a node's rendered size.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Override holds the user-chosen placement for one node. Either dimension
// may be absent; an absent dimension falls back to the computed layout.
type Override struct {
	Position *Position   `json:"position,omitempty"`
	Size     *Dimensions `json:"size,omitempty"`
}

// OverrideStore keeps user drag/resize choices keyed by stable node
// identity ("source", "output", or a step ID). Entries survive pipeline
// replacements — including replacements in which the node id is momentarily
// absent, since a rerun can bring the id back — and are only removed by an
// explicit Clear.
type OverrideStore struct {
	mu      sync.RWMutex
	entries map[string]Override
}

// NewOverrideStore creates an empty store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{entries: make(map[string]Override)}
}

// SetPosition merges a position into the node's entry, leaving any stored
// size untouched.
func (s *OverrideStore) SetPosition(nodeID string, pos Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[nodeID]
	entry.Position = &pos
	s.entries[nodeID] = entry
}

// SetSize merges a size into the node's entry, leaving any stored position
// untouched.
func (s *OverrideStore) SetSize(nodeID string, size Dimensions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[nodeID]
	entry.Size = &size
	s.entries[nodeID] = entry
}

// Override returns the stored entry for nodeID, if any. The returned
// pointers are copies; mutating them does not affect the store.
func (s *OverrideStore) Override(nodeID string) (Override, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[nodeID]
	if !ok {
		return Override{}, false
	}
	out := Override{}
	if entry.Position != nil {
		pos := *entry.Position
		out.Position = &pos
	}
	if entry.Size != nil {
		size := *entry.Size
		out.Size = &size
	}
	return out, true
}

// Clear removes the entry for nodeID.
func (s *OverrideStore) Clear(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, nodeID)
}

// ClearAll removes every entry, resetting the canvas to computed layout.
func (s *OverrideStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Override)
}

// Len reports the number of stored entries.
func (s *OverrideStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
