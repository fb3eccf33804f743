package memory

import (
	"context"
	"sync"

	"warp-quiz-server/internal/domain"
)

// ResultStore is the in-memory implementation of app.ResultStore. Entries
// keep submission order; ranking happens in the service.
type ResultStore struct {
	mu      sync.RWMutex
	entries []domain.LeaderboardEntry
	byName  map[string]int
}

func NewResultStore() *ResultStore {
	return &ResultStore{byName: make(map[string]int)}
}

func (s *ResultStore) Record(_ context.Context, entry domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byName[entry.Name]; ok {
		s.entries[i] = entry
		return nil
	}
	s.byName[entry.Name] = len(s.entries)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *ResultStore) List(_ context.Context) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LeaderboardEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *ResultStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byName = make(map[string]int)
	return nil
}
