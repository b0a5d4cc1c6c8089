package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss signals that a key is absent.
var ErrMiss = errors.New("cache: miss")

// Cache is the key-value contract used by the conversation core.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns ErrMiss when the key does not exist.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value with ttl. A non-positive ttl means no expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	// DeleteByPrefix removes every key starting with prefix and returns the
	// number removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
