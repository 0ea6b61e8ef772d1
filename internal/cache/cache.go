package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is one memoized upstream payload. Payload carries the raw JSON (or
// XML-derived JSON) body so the cache stays agnostic of what it stores.
type Entry struct {
	Payload   json.RawMessage `json:"payload"`
	StoredAt  time.Time       `json:"storedAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store is the result cache contract shared by the memory and redis backends.
// An expired entry is never returned from Lookup.
type Store interface {
	Lookup(ctx context.Context, key string) (Entry, bool, error)
	Store(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	Size(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}
