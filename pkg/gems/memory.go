package gems

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests
type MemoryStore struct {
	mu        sync.RWMutex
	gems      map[string]*Gem
	versions  map[string][]*Version
	nextGemID int64
	nextVerID int64
	lastGem   string // name of the gem with the most recent publish
}

// NewMemoryStore creates an empty in-memory catalog
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		gems:     make(map[string]*Gem),
		versions: make(map[string][]*Version),
	}
}

// CreateGem implements Store
func (s *MemoryStore) CreateGem(_ context.Context, gem *Gem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.gems[gem.Name]; exists {
		return ErrGemExists
	}

	s.nextGemID++
	gem.ID = s.nextGemID
	if gem.CreatedAt.IsZero() {
		gem.CreatedAt = time.Now().UTC()
	}
	stored := *gem
	s.gems[gem.Name] = &stored
	return nil
}

// GetGem implements Store
func (s *MemoryStore) GetGem(_ context.Context, name string) (*Gem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gem, exists := s.gems[name]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *gem
	return &copied, nil
}

// CountGems implements Store
func (s *MemoryStore) CountGems(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.gems)), nil
}

// PublishVersion implements Store
func (s *MemoryStore) PublishVersion(_ context.Context, version *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.gems[version.GemName]; !exists {
		return ErrNotFound
	}
	for _, existing := range s.versions[version.GemName] {
		if existing.Number == version.Number && existing.Platform == version.Platform {
			return ErrVersionExists
		}
	}

	s.nextVerID++
	version.ID = s.nextVerID
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}
	stored := *version
	s.versions[version.GemName] = append(s.versions[version.GemName], &stored)
	s.lastGem = version.GemName
	return nil
}

// LatestVersion implements Store
func (s *MemoryStore) LatestVersion(_ context.Context, gemName string) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.versions[gemName]
	if len(versions) == 0 {
		return nil, ErrVersionNotFound
	}
	copied := *versions[len(versions)-1]
	return &copied, nil
}

// MostRecent implements Store
func (s *MemoryStore) MostRecent(_ context.Context) (*Gem, *Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastGem == "" {
		return nil, nil, ErrVersionNotFound
	}
	gem := *s.gems[s.lastGem]
	versions := s.versions[s.lastGem]
	version := *versions[len(versions)-1]
	return &gem, &version, nil
}
