package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds store-level configuration shared by the PostgreSQL stores.
// Pool configuration is handled separately via PoolConfig.
type Config struct {
	// QueryTimeoutSeconds is the maximum time a single store call may run.
	// Default: 10 seconds
	// Set to -1 to use context timeouts only (no additional timeout)
	QueryTimeoutSeconds int32

	// OrderPageMax caps the page size accepted by OrderStore.List.
	// Default: 100
	OrderPageMax int
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.QueryTimeoutSeconds < -1 {
		return fmt.Errorf("query timeout must be -1 or positive, got %d", c.QueryTimeoutSeconds)
	}
	if c.OrderPageMax < 0 {
		return fmt.Errorf("order page max must not be negative")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.QueryTimeoutSeconds == 0 {
		c.QueryTimeoutSeconds = 10 // 10 seconds
	}
	if c.OrderPageMax == 0 {
		c.OrderPageMax = 100
	}
}

func (c *Config) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.QueryTimeoutSeconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(c.QueryTimeoutSeconds)*time.Second)
}

// Stores bundles the PostgreSQL-backed stores sharing one pool.
type Stores struct {
	Tenants *TenantStore
	Menus   *MenuStore
	Orders  *OrderStore
}

// NewStores creates the tenant, menu and order stores over a shared pool.
func NewStores(pool *pgxpool.Pool, cfg *Config) (*Stores, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	return &Stores{
		Tenants: NewTenantStore(pool, cfg),
		Menus:   NewMenuStore(pool, cfg),
		Orders:  NewOrderStore(pool, cfg),
	}, nil
}
