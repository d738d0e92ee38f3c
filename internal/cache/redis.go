package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const scanBatch = 200

// RedisConfig holds the connection settings for RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Validate checks the configuration.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("redis address is required")
	}
	return nil
}

// NewRedisClient creates a client for cfg.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisStore implements Store on a shared redis instance so every server
// replica sees the same cached menu and the same invalidations.
type RedisStore struct {
	c *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(c *redis.Client) *RedisStore { return &RedisStore{c: c} }

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

// DeleteByPrefix walks the keyspace with SCAN and deletes matches one batch
// at a time.
func (r *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := r.c.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("failed to scan %q: %w", prefix, err)
		}
		if len(keys) > 0 {
			if err := r.c.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete %d keys: %w", len(keys), err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}
