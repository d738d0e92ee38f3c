// Package server exposes ordering, menu and tenant operations as a JSON API
// scoped by tenant.
package server

import (
	"context"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/auth"
	httpmiddleware "github.com/wolfeidau/tableside/internal/http"
	"github.com/wolfeidau/tableside/internal/menu"
	"github.com/wolfeidau/tableside/internal/order"
	"github.com/wolfeidau/tableside/internal/realtime"
	"github.com/wolfeidau/tableside/internal/tenant"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Config wires the server to its services.
type Config struct {
	Resolver  *tenant.Resolver
	Tenants   *tenant.Service
	Menus     *menu.Service
	MenuCache *menu.Cache
	Orders    *order.Engine
	Hub       *realtime.Hub
	Verifier  *auth.TokenVerifier

	// BaseDomain is the platform domain; hosts below it name tenants by
	// subdomain.
	BaseDomain     string
	AllowedOrigins []string
	HealthChecks   map[string]HealthCheck
}

// Server serves the tableside HTTP API.
type Server struct {
	cfg Config
}

// NewServer creates a new server.
func NewServer(cfg Config) *Server {
	return &Server{cfg: cfg}
}

// Handler returns the HTTP handler for the server with the middleware chain
// applied.
func (s *Server) Handler(log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.health)

	// menu reads are public
	mux.HandleFunc("GET /v1/t/{tenant}/menu", s.getMenu)
	mux.HandleFunc("GET /v1/t/{tenant}/menu/full", s.getFullMenu)
	mux.HandleFunc("GET /v1/t/{tenant}/categories", s.listCategories)

	// menu writes
	mux.HandleFunc("POST /v1/t/{tenant}/categories", s.createCategory)
	mux.HandleFunc("PUT /v1/t/{tenant}/categories/{id}", s.updateCategory)
	mux.HandleFunc("DELETE /v1/t/{tenant}/categories/{id}", s.deleteCategory)
	mux.HandleFunc("POST /v1/t/{tenant}/menu/items", s.createItem)
	mux.HandleFunc("PUT /v1/t/{tenant}/menu/items/{id}", s.updateItem)
	mux.HandleFunc("DELETE /v1/t/{tenant}/menu/items/{id}", s.deleteItem)
	mux.HandleFunc("POST /v1/t/{tenant}/menu/items/{id}/availability", s.setAvailability)

	// orders
	mux.HandleFunc("POST /v1/t/{tenant}/orders", s.createOrder)
	mux.HandleFunc("GET /v1/t/{tenant}/orders", s.listOrders)
	mux.HandleFunc("GET /v1/t/{tenant}/orders/track/{number}", s.trackOrder)
	mux.HandleFunc("GET /v1/t/{tenant}/orders/{id}", s.getOrder)
	mux.HandleFunc("POST /v1/t/{tenant}/orders/{id}/status", s.advanceOrder)
	mux.HandleFunc("POST /v1/t/{tenant}/orders/{id}/cancel", s.cancelOrder)

	// tenant administration
	mux.HandleFunc("POST /v1/t/{tenant}/share-slug", s.regenerateShareSlug)
	mux.HandleFunc("DELETE /v1/t/{tenant}", s.removeTenant)

	mux.Handle("GET /v1/realtime", realtime.NewHandler(s.cfg.Hub, s.cfg.Verifier, s.cfg.AllowedOrigins))

	return httpmiddleware.Chain(mux,
		httpmiddleware.ClientIPMiddleware(),
		httpmiddleware.RequestLogger(log),
		withCORS(s.cfg.AllowedOrigins),
		httpmiddleware.MaxBody(httpmiddleware.MaxBodyBytes),
		s.cfg.Verifier.Middleware(),
		requestCache,
	)
}

// requestCache gives each request its own tenant resolution memo.
func requestCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(tenant.WithRequestCache(r.Context())))
	})
}

// withCORS allows browser clients on other origins to call the API with a
// bearer token. An empty origin list allows any origin.
func withCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", tenant.HeaderTenantID},
		ExposedHeaders: []string{"Location"},
		MaxAge:         600,
	})
	return middleware.Handler
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.cfg.HealthChecks))

	for name, check := range s.cfg.HealthChecks {
		if err := check(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("health check failed")
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

// scope authorizes the caller for perm, when set, and resolves the request's
// tenant. Nothing is read or written for the tenant before both succeed.
func (s *Server) scope(r *http.Request, perm auth.Permission) (context.Context, tenantScope, error) {
	ctx := r.Context()
	if perm != "" {
		if err := tenant.Authorize(ctx, perm); err != nil {
			return ctx, tenantScope{}, err
		}
	}

	principal := auth.PrincipalFromContext(ctx)
	tenantID, err := s.cfg.Resolver.Resolve(ctx, principal, tenant.FromRequest(r, s.cfg.BaseDomain))
	if err != nil {
		return ctx, tenantScope{}, err
	}

	ctx = zerolog.Ctx(ctx).With().Stringer("tenant_id", tenantID).Logger().WithContext(ctx)
	return ctx, tenantScope{TenantID: tenantID, Principal: principal}, nil
}
