// Package memory provides the default in-process session store.
// Journeys live only as long as the orchestrator instance, which matches
// the transient nature of the flow: a lost session restarts from scratch.
package memory

import (
	"context"
	"sync"

	"github.com/kitewire/consentflow/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.JourneySession
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.JourneySession),
	}
}

// Save persists the session in memory.
func (s *Store) Save(ctx context.Context, id string, session *domain.JourneySession) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := session.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = copied
	return nil
}

// Load retrieves the session from memory.
func (s *Store) Load(ctx context.Context, id string) (*domain.JourneySession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.data[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	// Copy on read so caller can't mutate store state directly by pointer
	return session.Clone(), nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns active journeys.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
