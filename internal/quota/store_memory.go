package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*Usage
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*Usage)}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return Usage{Counts: map[Kind]int64{}}, nil
	}
	counts := make(map[Kind]int64, len(u.Counts))
	for k, v := range u.Counts {
		counts[k] = v
	}
	return Usage{Counts: counts, ResetDate: u.ResetDate}, nil
}

func (s *MemoryStore) Rollover(ctx context.Context, userID string, now, next time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok && u.ResetDate.After(now) {
		return false, nil
	}
	s.users[userID] = &Usage{Counts: map[Kind]int64{}, ResetDate: next}
	return true, nil
}

func (s *MemoryStore) Add(ctx context.Context, userID string, kind Kind, n, max int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		u = &Usage{Counts: map[Kind]int64{}}
		s.users[userID] = u
	}
	current := u.Counts[kind]
	if n > 0 && current+n > max {
		return current, false, nil
	}
	u.Counts[kind] = current + n
	if u.Counts[kind] < 0 {
		u.Counts[kind] = 0
	}
	return u.Counts[kind], true, nil
}
