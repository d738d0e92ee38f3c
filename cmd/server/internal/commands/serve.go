package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/auth"
	"github.com/wolfeidau/tableside/internal/bootstrap"
	"github.com/wolfeidau/tableside/internal/cache"
	"github.com/wolfeidau/tableside/internal/logger"
	"github.com/wolfeidau/tableside/internal/menu"
	"github.com/wolfeidau/tableside/internal/order"
	"github.com/wolfeidau/tableside/internal/realtime"
	"github.com/wolfeidau/tableside/internal/server"
	"github.com/wolfeidau/tableside/internal/store"
	"github.com/wolfeidau/tableside/internal/store/memory"
	postgresstore "github.com/wolfeidau/tableside/internal/store/postgres"
	"github.com/wolfeidau/tableside/internal/telemetry"
	"github.com/wolfeidau/tableside/internal/tenant"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ServeCmd struct {
	Listen          string        `help:"Address to listen on" default:"0.0.0.0:8080" env:"TABLESIDE_LISTEN"`
	Cert            string        `help:"Path to TLS certificate file" env:"TABLESIDE_TLS_CERT"`
	Key             string        `help:"Path to TLS key file" env:"TABLESIDE_TLS_KEY"`
	BaseDomain      string        `help:"Platform domain, tenants are served from subdomains below it" default:"localhost" env:"TABLESIDE_BASE_DOMAIN"`
	CORSOrigins     []string      `help:"Allowed CORS and websocket origins" env:"TABLESIDE_CORS_ORIGINS"`
	Fixtures        string        `help:"YAML file of tenants and menus to seed on startup" env:"TABLESIDE_FIXTURES" type:"path"`
	ShutdownTimeout time.Duration `help:"Time allowed for in-flight requests to drain" default:"10s"`

	Telemetry   bool    `help:"Export traces and metrics over OTLP" env:"TABLESIDE_TELEMETRY"`
	SampleRatio float64 `help:"Fraction of root spans to sample" default:"0.1"`

	StoreType     string             `help:"Store backend" default:"memory" enum:"memory,postgres" env:"TABLESIDE_STORE_TYPE"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Redis         RedisFlags         `embed:"" prefix:"redis-"`
	Cache         CacheFlags         `embed:"" prefix:"cache-"`
	Signing       SigningKeyFlags    `embed:""`
}

func (s *ServeCmd) Validate() error {
	if (s.Cert == "") != (s.Key == "") {
		return errors.New("--cert and --key must be provided together")
	}
	if s.StoreType == "postgres" {
		return s.PostgresStore.validate()
	}
	return nil
}

// stores is the backend chosen by --store-type.
type stores struct {
	tenants store.TenantStore
	menus   store.MenuStore
	orders  store.OrderStore
	pool    *pgxpool.Pool
}

func (s *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Dev)
	ctx = log.WithContext(ctx)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Str("store", s.StoreType).Msg("starting tableside server")

	shutdownTelemetry := func(context.Context) error { return nil }
	if s.Telemetry {
		fn, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "tableside",
			Version:     globals.Version,
			SampleRatio: s.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("failed to initialise telemetry: %w", err)
		}
		shutdownTelemetry = fn
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	verifier, err := s.verifier(log)
	if err != nil {
		return err
	}

	st, err := s.openStores(ctx, log)
	if err != nil {
		return err
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	checks := map[string]server.HealthCheck{}
	if st.pool != nil {
		checks["postgres"] = st.pool.Ping
	}

	hub := realtime.NewHub()
	var (
		events     realtime.Broadcaster = hub
		cacheStore cache.Store
		relay      *realtime.RedisRelay
		relayDone  = make(chan error, 1)
	)

	relayCtx, stopRelay := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRelay()

	if s.Redis.Enabled() {
		cfg := s.Redis.config()
		if err := cfg.Validate(); err != nil {
			return err
		}
		client := cache.NewRedisClient(cfg)
		defer closeRedis(client, log)

		redisStore := cache.NewRedisStore(client)
		checks["redis"] = redisStore.Ping
		cacheStore = redisStore

		relay = realtime.NewRedisRelay(client, hub, log)
		events = relay
		go func() { relayDone <- relay.Run(relayCtx) }()

		log.Info().Str("addr", cfg.Addr).Msg("redis cache and realtime relay enabled")
	} else {
		cacheStore = cache.NewLocalStore(s.Cache.localConfig())
		close(relayDone)
		log.Info().Msg("redis not configured, using in-process cache and single instance realtime")
	}

	menuCache := menu.NewCache(cacheStore, st.menus, s.Cache.menuConfig())
	menus := menu.NewService(st.menus, menuCache, events)
	tenants := tenant.NewService(st.tenants, menuCache, events)
	orders := order.NewEngine(st.menus, st.orders, events)

	if s.Fixtures != "" {
		if err := s.seed(ctx, log, bootstrap.Config{Tenants: tenants, TenantStore: st.tenants, Menus: menus}); err != nil {
			return err
		}
	}

	srv := server.NewServer(server.Config{
		Resolver:       tenant.NewResolver(st.tenants),
		Tenants:        tenants,
		Menus:          menus,
		MenuCache:      menuCache,
		Orders:         orders,
		Hub:            hub,
		Verifier:       verifier,
		BaseDomain:     s.BaseDomain,
		AllowedOrigins: s.CORSOrigins,
		HealthChecks:   checks,
	})

	handler := srv.Handler(log)
	if s.Telemetry {
		handler = otelhttp.NewHandler(handler, "tableside-api")
	}

	httpServer := configureHTTPServer(s.Listen, handler)
	// websocket sessions outlive the request timeouts
	httpServer.WriteTimeout = 0
	httpServer.ReadTimeout = 0
	httpServer.BaseContext = func(_ net.Listener) context.Context { return log.WithContext(context.Background()) }

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Listen).Bool("tls", s.Cert != "").Msg("listening")
		var err error
		if s.Cert != "" {
			err = httpServer.ListenAndServeTLS(s.Cert, s.Key)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(drainCtx); err != nil {
		log.Warn().Err(err).Msg("http server did not drain cleanly")
	}

	// hijacked websocket connections are not tracked by Shutdown
	hub.Close()

	stopRelay()
	if err := <-relayDone; err != nil {
		log.Warn().Err(err).Msg("realtime relay stopped with error")
	}
	if relay != nil {
		relay.Wait()
	}
	menuCache.Close()

	log.Info().Msg("server stopped")
	return nil
}

func (s *ServeCmd) verifier(log zerolog.Logger) (*auth.TokenVerifier, error) {
	keyPEM, ok, err := s.Signing.load()
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn().Msg("no signing key configured, generating an ephemeral key; issued tokens will not survive a restart")
		if keyPEM, err = auth.GenerateSigningKey(); err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
	}

	issuer, err := auth.NewTokenIssuer(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	return auth.NewTokenVerifier(issuer.PublicKey()), nil
}

func (s *ServeCmd) openStores(ctx context.Context, log zerolog.Logger) (*stores, error) {
	switch s.StoreType {
	case "postgres":
		pool, err := postgresstore.NewPool(ctx, s.PostgresStore.poolConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		if s.PostgresStore.AutoMigrate {
			log.Info().Msg("running database migrations")
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		pg, err := postgresstore.NewStores(pool, &postgresstore.Config{QueryTimeoutSeconds: s.PostgresStore.QueryTimeout})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create postgres stores: %w", err)
		}
		return &stores{tenants: pg.Tenants, menus: pg.Menus, orders: pg.Orders, pool: pool}, nil
	default:
		log.Warn().Msg("using in-memory stores, data is lost on restart")
		menus := memory.NewMenuStore()
		orders := memory.NewOrderStore()
		return &stores{
			tenants: memory.NewTenantStore(menus, orders),
			menus:   menus,
			orders:  orders,
		}, nil
	}
}

func (s *ServeCmd) seed(ctx context.Context, log zerolog.Logger, cfg bootstrap.Config) error {
	fixtures, err := bootstrap.LoadFixtures(s.Fixtures)
	if err != nil {
		return err
	}

	res, err := bootstrap.Bootstrap(ctx, cfg, fixtures)
	if err != nil {
		return fmt.Errorf("failed to seed fixtures: %w", err)
	}

	for subdomain, id := range res.TenantIDs {
		log.Info().Str("subdomain", subdomain).Str("tenant_id", id).Msg("seeded tenant")
	}
	if len(res.Skipped) > 0 {
		log.Info().Strs("subdomains", res.Skipped).Msg("fixtures already present")
	}
	return nil
}

func closeRedis(client *redis.Client, log zerolog.Logger) {
	if err := client.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close redis client")
	}
}
