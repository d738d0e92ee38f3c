// Package menu serves menu reads through a read-through cache and applies
// menu writes that invalidate it.
package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/cache"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/store"
	"github.com/wolfeidau/tableside/internal/telemetry"
)

// Config bounds every cache interaction.
type Config struct {
	// TTL caps staleness when an invalidation is lost.
	TTL               time.Duration
	FetchTimeout      time.Duration
	PopulateTimeout   time.Duration
	InvalidateTimeout time.Duration
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 3 * time.Second
	}
	if c.PopulateTimeout <= 0 {
		c.PopulateTimeout = 2 * time.Second
	}
	if c.InvalidateTimeout <= 0 {
		c.InvalidateTimeout = time.Second
	}
}

// Cache is a read-through cache of tenant menus. A cache that is slow,
// unavailable or holding garbage only costs latency: every read falls back to
// the store.
type Cache struct {
	cache cache.Store
	menus store.MenuStore
	cfg   Config

	// tracks background populate and invalidate tasks
	wg sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewCache creates a menu cache over menus.
func NewCache(c cache.Store, menus store.MenuStore, cfg Config) *Cache {
	cfg.ApplyDefaults()
	return &Cache{cache: c, menus: menus, cfg: cfg}
}

func keyPrefix(tenantID uuid.UUID) string {
	return fmt.Sprintf("menu:%s:", tenantID)
}

func itemsKey(tenantID uuid.UUID, categoryID *uuid.UUID) string {
	if categoryID != nil {
		return keyPrefix(tenantID) + "items:category:" + categoryID.String()
	}
	return keyPrefix(tenantID) + "items"
}

func categoriesKey(tenantID uuid.UUID) string {
	return keyPrefix(tenantID) + "categories"
}

func fullKey(tenantID uuid.UUID) string {
	return keyPrefix(tenantID) + "full"
}

// Items returns the tenant's active items, optionally for one category.
func (c *Cache) Items(ctx context.Context, tenantID uuid.UUID, categoryID *uuid.UUID) ([]models.MenuItem, error) {
	return readThrough(ctx, c, itemsKey(tenantID, categoryID), func(ctx context.Context) ([]models.MenuItem, error) {
		return c.menus.ListItems(ctx, tenantID, categoryID)
	})
}

// Categories returns the tenant's active categories.
func (c *Cache) Categories(ctx context.Context, tenantID uuid.UUID) ([]models.Category, error) {
	return readThrough(ctx, c, categoriesKey(tenantID), func(ctx context.Context) ([]models.Category, error) {
		return c.menus.ListCategories(ctx, tenantID)
	})
}

// FullMenu returns every active category with its active items.
func (c *Cache) FullMenu(ctx context.Context, tenantID uuid.UUID) ([]models.CategoryWithItems, error) {
	return readThrough(ctx, c, fullKey(tenantID), func(ctx context.Context) ([]models.CategoryWithItems, error) {
		return c.loadFullMenu(ctx, tenantID)
	})
}

func (c *Cache) loadFullMenu(ctx context.Context, tenantID uuid.UUID) ([]models.CategoryWithItems, error) {
	categories, err := c.menus.ListCategories(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	items, err := c.menus.ListItems(ctx, tenantID, nil)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[uuid.UUID][]models.MenuItem, len(categories))
	for _, item := range items {
		if item.CategoryID != nil {
			byCategory[*item.CategoryID] = append(byCategory[*item.CategoryID], item)
		}
	}

	menu := make([]models.CategoryWithItems, 0, len(categories))
	for _, cat := range categories {
		catItems := byCategory[cat.ID]
		if catItems == nil {
			catItems = []models.MenuItem{}
		}
		menu = append(menu, models.CategoryWithItems{Category: cat, Items: catItems})
	}
	return menu, nil
}

// Invalidate drops every cached entry of the tenant in the background. The
// caller never waits on it and a failure leaves entries to expire by TTL.
func (c *Cache) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	logger := zerolog.Ctx(ctx).With().Stringer("tenant_id", tenantID).Logger()
	ctx = context.WithoutCancel(ctx)

	invalidate := func() {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.InvalidateTimeout)
		defer cancel()

		if err := c.cache.DeleteByPrefix(ctx, keyPrefix(tenantID)); err != nil {
			telemetry.GetMetrics().CacheInvalidateErrorsTotal.Add(ctx, 1)
			logger.Warn().Err(err).Msg("menu cache invalidation failed")
		}
	}

	// a write after Close still has to drop the shared entries
	if !c.spawn(invalidate) {
		invalidate()
	}
}

// spawn runs fn in the background unless the cache is closed. It reports
// whether fn was started.
func (c *Cache) spawn(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.wg.Go(fn)
	return true
}

// Wait blocks until background cache tasks have finished. New tasks may still
// start afterwards.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Close stops starting background tasks and waits for the running ones.
// Reads keep working; populates are skipped and invalidations run inline.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
}

type fetchResult struct {
	raw string
	err error
}

// fetch reads key but gives up after FetchTimeout even if the store ignores
// the context deadline.
func (c *Cache) fetch(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	ch := make(chan fetchResult, 1)
	go func() {
		raw, err := c.cache.Get(ctx, key)
		ch <- fetchResult{raw: raw, err: err}
	}()

	select {
	case res := <-ch:
		return res.raw, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func readThrough[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	metrics := telemetry.GetMetrics()
	logger := zerolog.Ctx(ctx).With().Str("cache_key", key).Logger()

	raw, err := c.fetch(ctx, key)
	switch {
	case err == nil:
		var v T
		jerr := json.Unmarshal([]byte(raw), &v)
		if jerr == nil {
			metrics.CacheHitsTotal.Add(ctx, 1)
			return v, nil
		}
		logger.Warn().Err(jerr).Msg("discarding corrupt menu cache entry")
		metrics.CacheMissesTotal.Add(ctx, 1)
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheMissesTotal.Add(ctx, 1)
	default:
		logger.Warn().Err(err).Msg("menu cache unavailable, reading from store")
		metrics.CacheFallbacksTotal.Add(ctx, 1)
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.populate(ctx, key, v)

	return v, nil
}

// populate writes the snapshot in the background with its own deadline so a
// slow cache never holds up the response.
func (c *Cache) populate(ctx context.Context, key string, v any) {
	logger := zerolog.Ctx(ctx).With().Str("cache_key", key).Logger()

	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to encode menu snapshot")
		return
	}

	ctx = context.WithoutCancel(ctx)
	c.spawn(func() {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.PopulateTimeout)
		defer cancel()

		if err := c.cache.Set(ctx, key, string(data), c.cfg.TTL); err != nil {
			telemetry.GetMetrics().CachePopulateErrorsTotal.Add(ctx, 1)
			logger.Warn().Err(err).Msg("menu cache populate failed")
		}
	})
}
