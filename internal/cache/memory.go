package cache

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemory returns an in-process Store. The ttl is applied to entries stored
// without an explicit expiry. Expired entries are evicted lazily on lookup.
func NewMemory(ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &memoryStore{ttl: ttl, entries: make(map[string]Entry)}
}

func (s *memoryStore) Lookup(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if entry.Expired(time.Now()) {
		delete(s.entries, key)
		return Entry{}, false, nil
	}
	return cloneEntry(entry), true, nil
}

func (s *memoryStore) Store(_ context.Context, key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now().UTC()
	}
	if entry.ExpiresAt.IsZero() || entry.ExpiresAt.Before(entry.StoredAt) {
		entry.ExpiresAt = entry.StoredAt.Add(s.ttl)
	}
	s.entries[key] = cloneEntry(entry)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *memoryStore) Size(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries)), nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}

func cloneEntry(in Entry) Entry {
	out := Entry{
		StoredAt:  in.StoredAt,
		ExpiresAt: in.ExpiresAt,
	}
	if len(in.Payload) > 0 {
		out.Payload = make([]byte, len(in.Payload))
		copy(out.Payload, in.Payload)
	}
	return out
}
