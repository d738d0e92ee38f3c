package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig sizes the connection pool shared by the tenant, menu and order
// stores. Zero values take the defaults from ApplyDefaults.
type PoolConfig struct {
	// ConnString is a postgres:// URL or key=value DSN.
	ConnString string

	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration

	// ApplicationName shows up in pg_stat_activity.
	ApplicationName string
}

// Validate checks that the pool configuration is usable.
func (c *PoolConfig) Validate() error {
	if c.ConnString == "" {
		return errors.New("connection string is required")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min conns (%d) exceeds max conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *PoolConfig) ApplyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 20
	}
	if c.MinConns == 0 {
		c.MinConns = min(5, c.MaxConns)
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "tableside"
	}
}

// NewPool opens a pool and pings it. Every session runs in UTC so order
// timestamps and yymmdd order-number prefixes agree across replicas.
func NewPool(ctx context.Context, cfg *PoolConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, errors.New("pool config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	pc, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnLifetimeJitter = cfg.MaxConnLifetime / 10
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	pc.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	pc.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
