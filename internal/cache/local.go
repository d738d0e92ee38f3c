package cache

import (
	"context"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// LocalConfig sizes the in-process cache.
type LocalConfig struct {
	Capacity           int
	Shards             int
	TTL                time.Duration
	EvictionPercentage int
}

// ApplyDefaults fills unset fields.
func (c *LocalConfig) ApplyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 10000
	}
	if c.Shards <= 0 {
		c.Shards = 10
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.EvictionPercentage <= 0 {
		c.EvictionPercentage = 10
	}
}

// LocalStore implements Store in process memory. It suits a single replica;
// with several replicas an invalidation only reaches the local copy and the
// others converge when their entries expire.
//
// The TTL is fixed when the store is created, so the ttl passed to Set is
// ignored.
type LocalStore struct {
	c *sturdyc.Client[string]
}

// NewLocalStore creates a sharded in-memory store.
func NewLocalStore(cfg LocalConfig) *LocalStore {
	cfg.ApplyDefaults()
	return &LocalStore{
		c: sturdyc.New[string](cfg.Capacity, cfg.Shards, cfg.TTL, cfg.EvictionPercentage),
	}
}

func (l *LocalStore) Get(_ context.Context, key string) (string, error) {
	v, ok := l.c.Get(key)
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (l *LocalStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	l.c.Set(key, value)
	return nil
}

func (l *LocalStore) DeleteByPrefix(_ context.Context, prefix string) error {
	for _, key := range l.c.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			l.c.Delete(key)
		}
	}
	return nil
}

// Size returns the number of cached entries.
func (l *LocalStore) Size() int {
	return l.c.Size()
}
