//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*Stores, func()) {
	// Start postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString, MinConns: 1})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(ctx, pool))
	// a second run must be a no-op
	require.NoError(t, RunMigrations(ctx, pool))

	stores, err := NewStores(pool, &Config{})
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return stores, cleanup
}

func createTenant(t *testing.T, ctx context.Context, st *Stores, subdomain string) *models.Tenant {
	t.Helper()
	slug := subdomain + "-share"
	now := time.Now().UTC().Truncate(time.Microsecond)
	tenant := &models.Tenant{
		ID:        uuid.Must(uuid.NewV7()),
		Name:      subdomain,
		Subdomain: subdomain,
		ShareSlug: &slug,
		Status:    models.TenantStatusActive,
		Settings:  map[string]any{"theme": "dark"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.Tenants.Create(ctx, tenant))
	return tenant
}

func TestIntegration_TenantStore(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	tenant := createTenant(t, ctx, st, "bistro")

	t.Run("lookup by subdomain and slug", func(t *testing.T) {
		got, err := st.Tenants.GetBySubdomain(ctx, "bistro")
		require.NoError(t, err)
		require.Equal(t, tenant.ID, got.ID)
		require.Equal(t, "dark", got.Settings["theme"])

		got, err = st.Tenants.GetByShareSlug(ctx, "bistro-share")
		require.NoError(t, err)
		require.Equal(t, tenant.ID, got.ID)
	})

	t.Run("duplicate subdomain", func(t *testing.T) {
		dup := *tenant
		dup.ID = uuid.Must(uuid.NewV7())
		dup.ShareSlug = nil
		require.ErrorIs(t, st.Tenants.Create(ctx, &dup), store.ErrTenantAlreadyExists)
	})

	t.Run("slug regeneration", func(t *testing.T) {
		require.NoError(t, st.Tenants.UpdateShareSlug(ctx, tenant.ID, "fresh-slug"))

		_, err := st.Tenants.GetByShareSlug(ctx, "bistro-share")
		require.ErrorIs(t, err, store.ErrTenantNotFound)

		got, err := st.Tenants.GetByShareSlug(ctx, "fresh-slug")
		require.NoError(t, err)
		require.Equal(t, tenant.ID, got.ID)
	})
}

func TestIntegration_OrderLifecycle(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	tenant := createTenant(t, ctx, st, "diner")
	other := createTenant(t, ctx, st, "other")

	now := time.Now().UTC().Truncate(time.Microsecond)
	item := &models.MenuItem{
		ID:        uuid.Must(uuid.NewV7()),
		TenantID:  tenant.ID,
		Name:      "Burger",
		BasePrice: 1250,
		Available: true,
		Active:    true,
		Variants: []models.MenuItemVariant{
			{ID: uuid.Must(uuid.NewV7()), Name: "Double", PriceModifier: 350, Active: true},
		},
		Modifiers: []models.Modifier{
			{ID: uuid.Must(uuid.NewV7()), Name: "Cheese", Price: 75, Active: true},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.Menus.CreateItem(ctx, item))

	t.Run("menu item round trip keeps cents", func(t *testing.T) {
		got, err := st.Menus.GetItem(ctx, tenant.ID, item.ID)
		require.NoError(t, err)
		require.Equal(t, models.Money(1250), got.BasePrice)
		require.Len(t, got.Variants, 1)
		require.Equal(t, models.Money(350), got.Variants[0].PriceModifier)
		require.Len(t, got.Modifiers, 1)

		_, err = st.Menus.GetItem(ctx, other.ID, item.ID)
		require.ErrorIs(t, err, store.ErrMenuItemNotFound)
	})

	orderID := uuid.Must(uuid.NewV7())
	order := &models.Order{
		ID:            orderID,
		TenantID:      tenant.ID,
		OrderNumber:   "INT-0001",
		Type:          models.OrderTypeTakeaway,
		Status:        models.OrderStatusPendingPayment,
		PaymentStatus: models.PaymentStatusPending,
		Subtotal:      1675,
		Tip:           200,
		Total:         1675,
		Items: []models.OrderItem{{
			ID:          uuid.Must(uuid.NewV7()),
			OrderID:     orderID,
			MenuItemID:  item.ID,
			VariantID:   &item.Variants[0].ID,
			ModifierIDs: []uuid.UUID{item.Modifiers[0].ID},
			Name:        "Burger",
			Quantity:    1,
			UnitPrice:   1675,
			LineTotal:   1675,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.Run("create and read back", func(t *testing.T) {
		require.NoError(t, st.Orders.Create(ctx, order))

		got, err := st.Orders.GetByNumber(ctx, tenant.ID, "INT-0001")
		require.NoError(t, err)
		require.Equal(t, models.Money(1675), got.Total)
		require.Equal(t, models.Money(200), got.Tip)
		require.Len(t, got.Items, 1)
		require.Equal(t, []uuid.UUID{item.Modifiers[0].ID}, got.Items[0].ModifierIDs)

		_, err = st.Orders.Get(ctx, other.ID, orderID)
		require.ErrorIs(t, err, store.ErrOrderNotFound)
	})

	t.Run("duplicate order number", func(t *testing.T) {
		dup := *order
		dup.ID = uuid.Must(uuid.NewV7())
		dup.Items = nil
		require.ErrorIs(t, st.Orders.Create(ctx, &dup), store.ErrOrderNumberTaken)
	})

	t.Run("compare and swap", func(t *testing.T) {
		confirmed := time.Now().UTC().Truncate(time.Microsecond)
		got, err := st.Orders.UpdateStatus(ctx, tenant.ID, orderID, models.OrderStatusPendingPayment, 0, store.StatusUpdate{
			Status:        models.OrderStatusConfirmed,
			PaymentStatus: models.PaymentStatusCompleted,
			ConfirmedAt:   &confirmed,
			UpdatedAt:     confirmed,
		})
		require.NoError(t, err)
		require.Equal(t, int64(1), got.Version)
		require.Equal(t, models.PaymentStatusCompleted, got.PaymentStatus)
		require.NotNil(t, got.ConfirmedAt)

		_, err = st.Orders.UpdateStatus(ctx, tenant.ID, orderID, models.OrderStatusPendingPayment, 0, store.StatusUpdate{
			Status:    models.OrderStatusCancelled,
			UpdatedAt: time.Now(),
		})
		require.ErrorIs(t, err, store.ErrOrderConflict)

		_, err = st.Orders.UpdateStatus(ctx, other.ID, orderID, models.OrderStatusConfirmed, 1, store.StatusUpdate{
			Status:    models.OrderStatusReady,
			UpdatedAt: time.Now(),
		})
		require.ErrorIs(t, err, store.ErrOrderNotFound)
	})

	t.Run("list with filters", func(t *testing.T) {
		orders, total, err := st.Orders.List(ctx, tenant.ID, store.OrderFilter{Status: models.OrderStatusConfirmed, Take: 10})
		require.NoError(t, err)
		require.Equal(t, 1, total)
		require.Len(t, orders, 1)

		orders, total, err = st.Orders.List(ctx, tenant.ID, store.OrderFilter{Status: models.OrderStatusReady, Take: 10})
		require.NoError(t, err)
		require.Zero(t, total)
		require.Empty(t, orders)
	})

	t.Run("tenant delete cascades", func(t *testing.T) {
		require.NoError(t, st.Tenants.Delete(ctx, tenant.ID))
		_, err := st.Orders.Get(ctx, tenant.ID, orderID)
		require.ErrorIs(t, err, store.ErrOrderNotFound)
	})
}
