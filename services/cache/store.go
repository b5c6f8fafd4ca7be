package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Store is the keyed byte storage behind the exact and template levels.
// Implementations must tolerate concurrent callers; concurrent Sets to
// one key may resolve either way but never leave a partial entry.
type Store interface {
	// Get returns the stored payload and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a payload, overwriting any existing entry for the key.
	// A zero TTL means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry owned by this store.
	Clear(ctx context.Context) error
}

// memoryEntry is a stored payload with TTL and LRU bookkeeping.
type memoryEntry struct {
	value      []byte
	insertedAt time.Time
	ttl        time.Duration
	element    *list.Element
}

func (e *memoryEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.insertedAt) > e.ttl
}

// MemoryStore is the in-process Store: a mutex-guarded map with LRU
// eviction at maxSize. It backs the cache when no external store is
// configured and is the fallback when the external store is unreachable.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	lruList *list.List
	maxSize int
}

// NewMemoryStore creates a MemoryStore bounded to maxSize entries.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Get retrieves a payload and refreshes its LRU position.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		return nil, false, nil
	}
	if entry.expired(time.Now()) {
		s.removeLocked(key)
		return nil, false, nil
	}

	s.lruList.MoveToFront(entry.element)
	return entry.value, true, nil
}

// Set stores a payload, overwriting an existing entry for the key.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.entries[key]; exists {
		entry.value = value
		entry.insertedAt = time.Now()
		entry.ttl = ttl
		s.lruList.MoveToFront(entry.element)
		return nil
	}

	if s.maxSize > 0 && s.lruList.Len() >= s.maxSize {
		s.evictLRULocked()
	}

	entry := &memoryEntry{
		value:      value,
		insertedAt: time.Now(),
		ttl:        ttl,
	}
	entry.element = s.lruList.PushFront(key)
	s.entries[key] = entry
	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
	return nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*memoryEntry)
	s.lruList.Init()
	return nil
}

// Len returns the current number of entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lruList.Len()
}

func (s *MemoryStore) removeLocked(key string) {
	if entry, exists := s.entries[key]; exists {
		s.lruList.Remove(entry.element)
		delete(s.entries, key)
	}
}

func (s *MemoryStore) evictLRULocked() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	s.removeLocked(back.Value.(string))
}
