// Package cache provides the key/value stores that sit in front of the
// database for menu reads. Every operation is allowed to fail; callers treat
// a failure as a miss.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a string key/value cache with TTLs and prefix invalidation.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}
