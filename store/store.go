// Package store holds the in-memory copy of the last activity snapshot
// fetched from the backend. It is the single source of truth read by the
// renderer and written by the controller.
package store

import (
	"slices"
	"sync"

	"github.com/nomis52/rollcall/roster"
)

// Store caches the current activity snapshot.
// All methods are safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	activities []roster.Activity
	index      map[string]int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		index: make(map[string]int),
	}
}

// ReplaceAll swaps the whole snapshot. The store keeps its own copy.
func (s *Store) ReplaceAll(snapshot roster.Snapshot) {
	c := snapshot.Clone()
	index := make(map[string]int, len(c.Activities))
	for i, a := range c.Activities {
		index[a.Name] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = c.Activities
	s.index = index
}

// RemoveParticipant removes the first occurrence of identifier from the named
// activity. It reports whether anything was removed; an unknown activity or
// identifier is not an error.
func (s *Store) RemoveParticipant(activityName, identifier string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[activityName]
	if !ok {
		return false
	}
	a := &s.activities[i]
	pos := slices.Index(a.Participants, identifier)
	if pos < 0 {
		return false
	}
	a.Participants = slices.Delete(a.Participants, pos, pos+1)
	return true
}

// SpotsLeft returns max participants minus the participant count for the
// named activity. The second result is false if the activity is unknown.
func (s *Store) SpotsLeft(activityName string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[activityName]
	if !ok {
		return 0, false
	}
	return s.activities[i].SpotsLeft(), true
}

// Activity returns a copy of the named activity.
func (s *Store) Activity(activityName string) (roster.Activity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[activityName]
	if !ok {
		return roster.Activity{}, false
	}
	return s.activities[i].Clone(), true
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() roster.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return roster.Snapshot{Activities: s.activities}.Clone()
}
