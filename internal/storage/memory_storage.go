package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage keeps caches in process memory
type MemoryStorage struct {
	caches map[string]map[string]*Entry
	mu     sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory cache storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		caches: make(map[string]map[string]*Entry),
	}
}

func (s *MemoryStorage) Match(ctx context.Context, cache, url string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.caches[cache][url]
	if !ok {
		return nil, ErrCacheMiss
	}
	return entry.Clone(), nil
}

func (s *MemoryStorage) Put(ctx context.Context, cache string, entry *Entry) error {
	return s.PutAll(ctx, cache, []*Entry{entry})
}

func (s *MemoryStorage) PutAll(ctx context.Context, cache string, entries []*Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.caches[cache]
	if !ok {
		bucket = make(map[string]*Entry, len(entries))
		s.caches[cache] = bucket
	}
	for _, e := range entries {
		bucket[e.URL] = e.Clone()
	}
	return nil
}

func (s *MemoryStorage) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, cache string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.caches, cache)
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
