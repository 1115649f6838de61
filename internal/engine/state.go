package engine

import (
	"sync"

	"resto-vision/internal/domain/vision"
)

// SharedState owns the zone-state map carried across ticks. Ticks for
// different cameras run concurrently; each snapshots the map before analysis
// and merges its full replacement states back afterwards. Two sources writing
// the same zone name is a configuration mistake, not something enforced here.
type SharedState struct {
	mu     sync.Mutex
	states map[string]vision.ZoneState
}

func NewSharedState() *SharedState {
	return &SharedState{states: make(map[string]vision.ZoneState)}
}

// Snapshot returns a copy of the current zone-state map.
func (s *SharedState) Snapshot() map[string]vision.ZoneState {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[string]vision.ZoneState, len(s.states))
	for name, state := range s.states {
		snap[name] = state
	}
	return snap
}

// Merge replaces the entries named in updates. Entries not named keep their
// last-known value so a failed tick never blanks state out.
func (s *SharedState) Merge(updates map[string]vision.ZoneState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, state := range updates {
		s.states[name] = state
	}
}

// Get returns the last-known state for one zone.
func (s *SharedState) Get(name string) (vision.ZoneState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[name]
	return state, ok
}
