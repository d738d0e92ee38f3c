package tenant

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/realtime"
	"github.com/wolfeidau/tableside/internal/store"
	"github.com/wolfeidau/tableside/internal/store/memory"
)

type recordingSideEffects struct {
	mu          sync.Mutex
	invalidated []uuid.UUID
	closed      []uuid.UUID
}

func (r *recordingSideEffects) Invalidate(_ context.Context, tenantID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, tenantID)
}

func (r *recordingSideEffects) Publish(_ context.Context, evt realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if evt.Type == realtime.EventTenantClosed {
		r.closed = append(r.closed, evt.TenantID)
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewTenantStore(), nil, nil)

	t.Run("defaults", func(t *testing.T) {
		tn := &models.Tenant{Name: "Joe's", Subdomain: "Joes"}
		require.NoError(t, svc.Create(ctx, tn))
		require.NotEqual(t, uuid.Nil, tn.ID)
		require.Equal(t, byte(7), byte(tn.ID.Version()))
		require.Equal(t, "joes", tn.Subdomain)
		require.Equal(t, models.TenantStatusTrial, tn.Status)
	})

	t.Run("invalid subdomain", func(t *testing.T) {
		require.Error(t, svc.Create(ctx, &models.Tenant{Name: "x", Subdomain: "no spaces"}))
	})

	t.Run("duplicate subdomain", func(t *testing.T) {
		err := svc.Create(ctx, &models.Tenant{Name: "Other", Subdomain: "joes"})
		require.ErrorIs(t, err, store.ErrTenantAlreadyExists)
	})
}

func TestService_RegenerateShareSlug(t *testing.T) {
	ctx := context.Background()
	tenants := memory.NewTenantStore()
	effects := &recordingSideEffects{}
	svc := NewService(tenants, effects, effects)
	resolver := NewResolver(tenants)

	tn := &models.Tenant{Name: "Joe's", Subdomain: "joes", Status: models.TenantStatusActive}
	require.NoError(t, svc.Create(ctx, tn))

	oldSlug, err := svc.RegenerateShareSlug(ctx, tn.ID)
	require.NoError(t, err)
	require.NotEmpty(t, oldSlug)

	got, err := resolver.Resolve(ctx, nil, Slug(oldSlug))
	require.NoError(t, err)
	require.Equal(t, tn.ID, got)

	newSlug, err := svc.RegenerateShareSlug(ctx, tn.ID)
	require.NoError(t, err)
	require.NotEqual(t, oldSlug, newSlug)

	// old slug stops resolving before the new one is used
	_, err = resolver.Resolve(ctx, nil, Slug(oldSlug))
	require.ErrorIs(t, err, ErrTenantNotFound)

	got, err = resolver.Resolve(ctx, nil, ParseToken(newSlug))
	require.NoError(t, err)
	require.Equal(t, tn.ID, got)

	require.Equal(t, []uuid.UUID{tn.ID, tn.ID}, effects.invalidated)

	t.Run("unknown tenant", func(t *testing.T) {
		_, err := svc.RegenerateShareSlug(ctx, uuid.New())
		require.ErrorIs(t, err, store.ErrTenantNotFound)
	})
}

func TestService_Remove(t *testing.T) {
	ctx := context.Background()
	tenants := memory.NewTenantStore()
	effects := &recordingSideEffects{}
	svc := NewService(tenants, effects, effects)

	tn := &models.Tenant{Name: "Joe's", Subdomain: "joes", Status: models.TenantStatusActive}
	require.NoError(t, svc.Create(ctx, tn))

	require.NoError(t, svc.Remove(ctx, tn.ID))
	require.Equal(t, []uuid.UUID{tn.ID}, effects.invalidated)
	require.Equal(t, []uuid.UUID{tn.ID}, effects.closed)

	_, err := NewResolver(tenants).Resolve(ctx, nil, ParseToken("joes"))
	require.ErrorIs(t, err, ErrTenantNotFound)

	require.ErrorIs(t, svc.Remove(ctx, tn.ID), store.ErrTenantNotFound)
}
