package cache

import (
	"context"
	"time"
)

// CounterStore is the slice of Redis the rate limiter depends on:
// atomic counters with expiry.
type CounterStore interface {
	// SetNX initializes key to value with a TTL, only when absent.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Incr atomically increments key and returns the new count.
	Incr(ctx context.Context, key string) (int64, error)

	// TTL reports the remaining lifetime of key. A key without an
	// expiry reports -1, a missing key -2.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Expire attaches a TTL to an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
