// Package cache provides the lookaside key/value store used by the
// authentication core. The store is never authoritative: callers must
// treat every failure as a miss and fall back to durable storage.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key does not exist or has
// expired. A miss is an ordinary outcome, not a failure.
var ErrMiss = errors.New("cache miss")

// ErrUnavailable wraps transport-level failures (connection refused,
// timeout). It never crosses the service boundary; call sites downgrade
// it to a miss for reads and a logged no-op for writes.
var ErrUnavailable = errors.New("cache unavailable")

// Store is a key/value store with per-key TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
