package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Producer fetches a fresh payload on cache miss.
type Producer func(ctx context.Context) (json.RawMessage, error)

// Fetch implements the memoized-fetch contract: a live entry for key is
// returned as-is; otherwise producer runs, its result is stored under key
// with the supplied ttl, and the fresh payload is returned.
//
// Concurrent misses for the same key may each invoke producer; the last
// writer wins. That duplicates upstream work but never corrupts the cache,
// and keeps the store contract to "at most one entry per key".
func Fetch(ctx context.Context, store Store, key string, ttl time.Duration, producer Producer) (json.RawMessage, bool, error) {
	if store != nil {
		entry, ok, err := store.Lookup(ctx, key)
		if err == nil && ok {
			return entry.Payload, true, nil
		}
		// Lookup errors degrade to a miss; the upstream call is the fallback.
	}

	payload, err := producer(ctx)
	if err != nil {
		return nil, false, err
	}

	if store != nil && ttl > 0 {
		now := time.Now().UTC()
		entry := Entry{Payload: payload, StoredAt: now, ExpiresAt: now.Add(ttl)}
		// Best-effort: a failed store only costs a refetch later.
		_ = store.Store(ctx, key, entry)
	}
	return payload, false, nil
}

// FetchJSON is Fetch plus typed decoding of the payload.
func FetchJSON[T any](ctx context.Context, store Store, key string, ttl time.Duration, producer Producer) (T, bool, error) {
	var out T
	payload, hit, err := Fetch(ctx, store, key, ttl, producer)
	if err != nil {
		return out, hit, err
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, hit, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return out, hit, nil
}
