package commands

import (
	"errors"
	"net/http"
	"time"

	"github.com/wolfeidau/tableside/internal/auth"
	"github.com/wolfeidau/tableside/internal/cache"
	"github.com/wolfeidau/tableside/internal/menu"
	postgresstore "github.com/wolfeidau/tableside/internal/store/postgres"
)

type Globals struct {
	Dev     bool
	Version string
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32         `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`

	// Store Configuration
	QueryTimeout int32 `help:"per query timeout in seconds (-1 disables)" default:"10"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"TABLESIDE_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: s.MaxConnLifetime,
		MaxConnIdleTime: s.MaxConnIdleTime,
	}
}

// RedisFlags configures the shared cache and realtime relay. Without an
// address the server runs single instance with an in-process cache.
type RedisFlags struct {
	Addr     string `help:"redis address (host:port); empty runs without redis" env:"TABLESIDE_REDIS_ADDR"`
	Password string `help:"redis password" env:"TABLESIDE_REDIS_PASSWORD"`
	DB       int    `help:"redis database number" default:"0" env:"TABLESIDE_REDIS_DB"`
}

func (r *RedisFlags) Enabled() bool { return r.Addr != "" }

func (r *RedisFlags) config() cache.RedisConfig {
	return cache.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB}
}

// CacheFlags tunes the menu read-through cache.
type CacheFlags struct {
	TTL               time.Duration `help:"menu cache entry lifetime" default:"5m" env:"TABLESIDE_CACHE_TTL"`
	FetchTimeout      time.Duration `help:"max wait for a cache read before falling back to the store" default:"3s"`
	PopulateTimeout   time.Duration `help:"timeout for background cache writes" default:"2s"`
	InvalidateTimeout time.Duration `help:"timeout for background cache invalidation" default:"1s"`
	LocalCapacity     int           `help:"entries held by the in-process cache when redis is not configured" default:"10000"`
}

func (c *CacheFlags) menuConfig() menu.Config {
	return menu.Config{
		TTL:               c.TTL,
		FetchTimeout:      c.FetchTimeout,
		PopulateTimeout:   c.PopulateTimeout,
		InvalidateTimeout: c.InvalidateTimeout,
	}
}

func (c *CacheFlags) localConfig() cache.LocalConfig {
	return cache.LocalConfig{Capacity: c.LocalCapacity, TTL: c.TTL}
}

// SigningKeyFlags locate the ES256 key used for access tokens.
type SigningKeyFlags struct {
	SigningKey     string `help:"PEM encoded EC private key" env:"TABLESIDE_SIGNING_KEY"`
	SigningKeyFile string `help:"path to a PEM encoded EC private key" env:"TABLESIDE_SIGNING_KEY_FILE" type:"path"`
}

// load returns the configured key. ok is false when none is configured.
func (s *SigningKeyFlags) load() (string, bool, error) {
	if s.SigningKey != "" {
		return s.SigningKey, true, nil
	}
	if s.SigningKeyFile != "" {
		key, err := auth.LoadSigningKey(s.SigningKeyFile)
		return key, err == nil, err
	}
	return "", false, nil
}
