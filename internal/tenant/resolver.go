package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/auth"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/store"
)

var (
	ErrTenantNotFound        = errors.New("tenant not found")
	ErrTenantContextRequired = errors.New("tenant context required")
	ErrCrossTenant           = errors.New("credential is bound to a different tenant")
)

// Resolver turns identifiers into canonical tenant ids and enforces that a
// credential bound to one tenant never acts on another.
type Resolver struct {
	tenants store.TenantStore
}

// NewResolver creates a resolver backed by the tenant store.
func NewResolver(tenants store.TenantStore) *Resolver {
	return &Resolver{tenants: tenants}
}

// Resolve returns the canonical tenant id for id as seen by principal, which
// may be nil for anonymous callers.
func (r *Resolver) Resolve(ctx context.Context, principal *auth.Principal, id Identifier) (uuid.UUID, error) {
	bound, isBound := principal.BoundTenant()

	if id.IsNone() {
		if isBound {
			return bound, nil
		}
		return uuid.Nil, ErrTenantContextRequired
	}

	tenantID, err := r.lookup(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}

	if isBound && tenantID != bound {
		zerolog.Ctx(ctx).Warn().
			Str("identifier", id.String()).
			Stringer("bound_tenant", bound).
			Msg("cross tenant access rejected")
		return uuid.Nil, ErrCrossTenant
	}

	return tenantID, nil
}

func (r *Resolver) lookup(ctx context.Context, id Identifier) (uuid.UUID, error) {
	memo := memoFromContext(ctx)
	if memo != nil {
		if tenantID, ok := memo.get(id); ok {
			return tenantID, nil
		}
	}

	tenantID, err := r.lookupStore(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}

	if memo != nil {
		memo.put(id, tenantID)
	}
	return tenantID, nil
}

func (r *Resolver) lookupStore(ctx context.Context, id Identifier) (uuid.UUID, error) {
	switch id.Kind {
	case KindCanonicalID:
		// trusted without a lookup, every store call is tenant scoped anyway
		tenantID, err := uuid.Parse(id.Value)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrTenantNotFound, id)
		}
		return tenantID, nil

	case KindSubdomain:
		t, err := r.resolvable(ctx, id, r.tenants.GetBySubdomain, strings.ToLower(id.Value))
		if errors.Is(err, ErrTenantNotFound) && id.SlugFallback {
			t, err = r.resolvable(ctx, id, r.tenants.GetByShareSlug, id.Value)
		}
		if err != nil {
			return uuid.Nil, err
		}
		return t.ID, nil

	case KindSlug:
		t, err := r.resolvable(ctx, id, r.tenants.GetByShareSlug, id.Value)
		if err != nil {
			return uuid.Nil, err
		}
		return t.ID, nil

	case KindDomain:
		t, err := r.resolvable(ctx, id, r.tenants.GetByDomain, id.Value)
		if err != nil {
			return uuid.Nil, err
		}
		return t.ID, nil
	}

	return uuid.Nil, ErrTenantContextRequired
}

type lookupFunc func(ctx context.Context, key string) (*models.Tenant, error)

// resolvable runs one lookup and hides tenants that are suspended or cancelled.
func (r *Resolver) resolvable(ctx context.Context, id Identifier, fn lookupFunc, key string) (*models.Tenant, error) {
	t, err := fn(ctx, key)
	if errors.Is(err, store.ErrTenantNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant %s: %w", id, err)
	}
	if !t.Status.Resolvable() {
		zerolog.Ctx(ctx).Debug().Str("identifier", id.String()).Str("status", string(t.Status)).Msg("tenant not resolvable")
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, id)
	}
	return t, nil
}

type memoKey struct{}

type requestMemo struct {
	mu      sync.Mutex
	results map[Identifier]uuid.UUID
}

func (m *requestMemo) get(id Identifier) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.results[id]
	return v, ok
}

func (m *requestMemo) put(id Identifier, tenantID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[id] = tenantID
}

// WithRequestCache attaches a resolution memo to ctx. Lookups made with the
// returned context are remembered until the context is discarded, which
// should be the end of the request.
func WithRequestCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, memoKey{}, &requestMemo{results: make(map[Identifier]uuid.UUID)})
}

func memoFromContext(ctx context.Context) *requestMemo {
	m, _ := ctx.Value(memoKey{}).(*requestMemo)
	return m
}

// Authorize checks that the caller in ctx may run a staff operation guarded
// by perm. Only super admins act without a bound tenant; everyone else fails
// closed.
func Authorize(ctx context.Context, perm auth.Permission) error {
	if err := auth.RequirePermission(ctx, perm); err != nil {
		return err
	}

	principal := auth.PrincipalFromContext(ctx)
	if _, ok := principal.BoundTenant(); !ok && !principal.IsSuperAdmin() {
		return ErrTenantContextRequired
	}
	return nil
}
