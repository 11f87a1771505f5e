package webhooks

import (
	"context"
	"sort"
	"sync"
	"time"
)

type tripleKey struct {
	userID int64
	target string
	url    string
}

// MemoryStore is an in-memory Store for development and tests
type MemoryStore struct {
	mu      sync.RWMutex
	hooks   map[int64]*Hook
	triples map[tripleKey]int64
	nextID  int64
}

// NewMemoryStore creates an empty in-memory hook store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hooks:   make(map[int64]*Hook),
		triples: make(map[tripleKey]int64),
	}
}

// Create implements Store
func (s *MemoryStore) Create(_ context.Context, hook *Hook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tripleKey{userID: hook.UserID, target: hook.Target.Key(), url: hook.URL}
	if _, exists := s.triples[key]; exists {
		return ErrConflict
	}

	s.nextID++
	hook.ID = s.nextID
	if hook.CreatedAt.IsZero() {
		hook.CreatedAt = time.Now().UTC()
	}

	stored := *hook
	s.hooks[hook.ID] = &stored
	s.triples[key] = hook.ID
	return nil
}

// ListByUser implements Store
func (s *MemoryStore) ListByUser(_ context.Context, userID int64) ([]*Hook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hooks []*Hook
	for _, hook := range s.hooks {
		if hook.UserID == userID {
			copied := *hook
			hooks = append(hooks, &copied)
		}
	}
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].ID < hooks[j].ID })
	return hooks, nil
}

// Delete implements Store
func (s *MemoryStore) Delete(_ context.Context, userID int64, target Target, url string) (*Hook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tripleKey{userID: userID, target: target.Key(), url: url}
	id, exists := s.triples[key]
	if !exists {
		return nil, ErrHookNotFound
	}

	hook := s.hooks[id]
	delete(s.hooks, id)
	delete(s.triples, key)
	copied := *hook
	return &copied, nil
}

// ListByGem implements Store
func (s *MemoryStore) ListByGem(_ context.Context, gemName string) ([]*Hook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hooks []*Hook
	for _, hook := range s.hooks {
		if hook.Target.IsGlobal() || hook.Target.GemName() == gemName {
			copied := *hook
			hooks = append(hooks, &copied)
		}
	}
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].ID < hooks[j].ID })
	return hooks, nil
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, id int64) (*Hook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hook, exists := s.hooks[id]
	if !exists {
		return nil, ErrHookNotFound
	}
	copied := *hook
	return &copied, nil
}

// Count implements Store
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.hooks)), nil
}
