package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tableside/internal/auth"
	"github.com/wolfeidau/tableside/internal/cache"
	"github.com/wolfeidau/tableside/internal/client"
	"github.com/wolfeidau/tableside/internal/menu"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/order"
	"github.com/wolfeidau/tableside/internal/realtime"
	"github.com/wolfeidau/tableside/internal/store/memory"
	"github.com/wolfeidau/tableside/internal/tenant"
)

type testEnv struct {
	t      *testing.T
	url    string
	issuer *auth.TokenIssuer
	hub    *realtime.Hub

	alpha  *models.Tenant
	beta   *models.Tenant
	burger models.MenuItem
	fries  models.MenuItem
	large  uuid.UUID
}

func newTestEnv(t *testing.T, checks map[string]HealthCheck) *testEnv {
	t.Helper()
	ctx := context.Background()

	menus := memory.NewMenuStore()
	orders := memory.NewOrderStore()
	tenants := memory.NewTenantStore(menus, orders)

	hub := realtime.NewHub()
	menuCache := menu.NewCache(cache.NewLocalStore(cache.LocalConfig{}), menus, menu.Config{})
	tenantService := tenant.NewService(tenants, menuCache, hub)

	keyPEM, err := auth.GenerateSigningKey()
	require.NoError(t, err)
	issuer, err := auth.NewTokenIssuer(keyPEM)
	require.NoError(t, err)

	env := &testEnv{t: t, issuer: issuer, hub: hub}

	env.alpha = &models.Tenant{Name: "Alpha Diner", Subdomain: "alpha", Status: models.TenantStatusActive}
	require.NoError(t, tenantService.Create(ctx, env.alpha))
	env.beta = &models.Tenant{Name: "Beta Bistro", Subdomain: "beta", Status: models.TenantStatusActive}
	require.NoError(t, tenantService.Create(ctx, env.beta))

	mains := models.Category{ID: uuid.New(), TenantID: env.alpha.ID, Name: "Mains", Active: true}
	require.NoError(t, menus.CreateCategory(ctx, &mains))

	env.burger = models.MenuItem{
		ID: uuid.New(), TenantID: env.alpha.ID, CategoryID: &mains.ID,
		Name: "Burger", BasePrice: 500, Available: true, Active: true,
	}
	require.NoError(t, menus.CreateItem(ctx, &env.burger))

	env.large = uuid.New()
	env.fries = models.MenuItem{
		ID: uuid.New(), TenantID: env.alpha.ID, CategoryID: &mains.ID,
		Name: "Fries", BasePrice: 300, Available: true, Active: true,
		Variants: []models.MenuItemVariant{{ID: env.large, Name: "Large", PriceModifier: 150, Active: true}},
	}
	env.fries.Variants[0].MenuItemID = env.fries.ID
	require.NoError(t, menus.CreateItem(ctx, &env.fries))

	srv := NewServer(Config{
		Resolver:     tenant.NewResolver(tenants),
		Tenants:      tenantService,
		Menus:        menu.NewService(menus, menuCache, hub),
		MenuCache:    menuCache,
		Orders:       order.NewEngine(menus, orders, hub),
		Hub:          hub,
		Verifier:     auth.NewTokenVerifier(issuer.PublicKey()),
		BaseDomain:   "tableside.test",
		HealthChecks: checks,
	})

	ts := httptest.NewServer(srv.Handler(zerolog.Nop()))
	t.Cleanup(func() {
		ts.Close()
		hub.Close()
		menuCache.Close()
	})
	env.url = ts.URL

	return env
}

func (e *testEnv) token(p *auth.Principal) string {
	e.t.Helper()
	tok, err := e.issuer.Issue(p, time.Hour)
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) staffToken(role auth.Role, tenantID uuid.UUID) string {
	return e.token(&auth.Principal{UserID: uuid.New(), TenantID: &tenantID, Role: role})
}

func (e *testEnv) superAdminToken() string {
	return e.token(&auth.Principal{UserID: uuid.New(), Role: auth.RoleSuperAdmin})
}

type call struct {
	method  string
	path    string
	body    any
	token   string
	headers map[string]string
}

func (e *testEnv) do(c call) *http.Response {
	e.t.Helper()

	var body bytes.Buffer
	switch v := c.body.(type) {
	case nil:
	case string:
		body.WriteString(v)
	default:
		require.NoError(e.t, json.NewEncoder(&body).Encode(v))
	}

	req, err := http.NewRequest(c.method, e.url+c.path, &body)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) createOrder(token string, headers map[string]string) *models.Order {
	e.t.Helper()
	resp := e.do(call{
		method:  http.MethodPost,
		path:    "/v1/t/" + e.alpha.ID.String() + "/orders",
		token:   token,
		headers: headers,
		body: map[string]any{
			"type":        "DINE_IN",
			"tableNumber": "4",
			"items": []map[string]any{
				{"menuItemId": e.burger.ID, "quantity": 2},
				{"menuItemId": e.fries.ID, "variantId": e.large, "quantity": 1},
			},
		},
	})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)
	return ptr(decode[models.Order](e.t, resp))
}

func ptr[T any](v T) *T { return &v }

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		env := newTestEnv(t, map[string]HealthCheck{"cache": func(context.Context) error { return nil }})
		resp := env.do(call{method: http.MethodGet, path: "/healthz"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("degraded", func(t *testing.T) {
		env := newTestEnv(t, map[string]HealthCheck{"cache": func(context.Context) error { return errors.New("connection refused") }})
		resp := env.do(call{method: http.MethodGet, path: "/healthz"})
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		body := decode[map[string]any](t, resp)
		require.Equal(t, "degraded", body["status"])
	})
}

func TestMenuReads(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		status  int
		items   int
	}{
		{name: "by canonical id", path: "/v1/t/" + env.alpha.ID.String() + "/menu", status: http.StatusOK, items: 2},
		{name: "by subdomain token", path: "/v1/t/alpha/menu", status: http.StatusOK, items: 2},
		{name: "header wins over path", path: "/v1/t/beta/menu", headers: map[string]string{tenant.HeaderTenantID: "alpha"}, status: http.StatusOK, items: 2},
		{name: "other tenant has an empty menu", path: "/v1/t/beta/menu", status: http.StatusOK, items: 0},
		{name: "unknown tenant", path: "/v1/t/nowhere/menu", status: http.StatusNotFound},
		{name: "bad category id", path: "/v1/t/alpha/menu?categoryId=nope", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(call{method: http.MethodGet, path: tt.path, headers: tt.headers})
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				body := decode[ErrorBody](t, resp)
				require.NotEmpty(t, body.Error.Code)
				return
			}
			require.Equal(t, menuCacheControl, resp.Header.Get("Cache-Control"))
			body := decode[struct {
				Items []models.MenuItem `json:"items"`
			}](t, resp)
			require.Len(t, body.Items, tt.items)
		})
	}

	t.Run("full menu groups items by category", func(t *testing.T) {
		resp := env.do(call{method: http.MethodGet, path: "/v1/t/alpha/menu/full"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[struct {
			Categories []models.CategoryWithItems `json:"categories"`
		}](t, resp)
		require.Len(t, body.Categories, 1)
		require.Len(t, body.Categories[0].Items, 2)
	})
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("prices the cart from the live menu", func(t *testing.T) {
		o := env.createOrder("", nil)
		require.Equal(t, models.Money(1450), o.Total)
		require.Equal(t, models.OrderStatusPendingPayment, o.Status)
		require.Nil(t, o.CustomerID)

		resp := env.do(call{method: http.MethodGet, path: "/v1/t/alpha/orders/track/" + o.OrderNumber})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, o.ID, decode[models.Order](t, resp).ID)
	})

	t.Run("customer token records the customer", func(t *testing.T) {
		customerID := uuid.New()
		o := env.createOrder(env.token(&auth.Principal{UserID: customerID, Role: auth.RoleCustomer}), nil)
		require.NotNil(t, o.CustomerID)
		require.Equal(t, customerID, *o.CustomerID)
	})

	t.Run("idempotency key returns the first order", func(t *testing.T) {
		headers := map[string]string{HeaderIdempotencyKey: "cart-123"}
		first := env.createOrder("", headers)
		second := env.createOrder("", headers)
		require.Equal(t, first.ID, second.ID)
	})

	t.Run("rejections", func(t *testing.T) {
		tests := []struct {
			name   string
			path   string
			body   any
			status int
		}{
			{
				name:   "item from another tenant",
				path:   "/v1/t/beta/orders",
				body:   map[string]any{"type": "TAKEAWAY", "items": []map[string]any{{"menuItemId": env.burger.ID, "quantity": 1}}},
				status: http.StatusBadRequest,
			},
			{
				name:   "empty cart",
				path:   "/v1/t/alpha/orders",
				body:   map[string]any{"type": "TAKEAWAY", "items": []any{}},
				status: http.StatusBadRequest,
			},
			{
				name:   "malformed json",
				path:   "/v1/t/alpha/orders",
				body:   "{",
				status: http.StatusBadRequest,
			},
			{
				name:   "oversized body",
				path:   "/v1/t/alpha/orders",
				body:   `{"notes":"` + strings.Repeat("x", 1<<20) + `"}`,
				status: http.StatusRequestEntityTooLarge,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp := env.do(call{method: http.MethodPost, path: tt.path, body: tt.body})
				require.Equal(t, tt.status, resp.StatusCode)
			})
		}
	})
}

func TestOrderAccess(t *testing.T) {
	env := newTestEnv(t, nil)
	o := env.createOrder("", nil)

	alphaOrders := "/v1/t/alpha/orders"
	betaOrders := "/v1/t/beta/orders"

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "anonymous list", path: alphaOrders, status: http.StatusUnauthorized},
		{name: "customer list", path: alphaOrders, token: env.token(&auth.Principal{UserID: uuid.New(), Role: auth.RoleCustomer}), status: http.StatusForbidden},
		{name: "staff list", path: alphaOrders, token: env.staffToken(auth.RoleStaff, env.alpha.ID), status: http.StatusOK},
		{name: "staff of another tenant", path: alphaOrders, token: env.staffToken(auth.RoleStaff, env.beta.ID), status: http.StatusForbidden},
		{name: "super admin", path: alphaOrders + "?take=500&skip=-1", token: env.superAdminToken(), status: http.StatusOK},
		{name: "get own order", path: alphaOrders + "/" + o.ID.String(), token: env.staffToken(auth.RoleKitchen, env.alpha.ID), status: http.StatusOK},
		{name: "order id under another tenant", path: betaOrders + "/" + o.ID.String(), token: env.superAdminToken(), status: http.StatusNotFound},
		{name: "tracking under another tenant", path: betaOrders + "/track/" + o.OrderNumber, status: http.StatusNotFound},
		{name: "bad status filter", path: alphaOrders + "?status=eaten", token: env.superAdminToken(), status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(call{method: http.MethodGet, path: tt.path, token: tt.token})
			require.Equal(t, tt.status, resp.StatusCode)
		})
	}

	t.Run("paging is coerced", func(t *testing.T) {
		resp := env.do(call{method: http.MethodGet, path: alphaOrders + "?take=500&skip=abc", token: env.superAdminToken()})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		page := decode[order.Page](t, resp)
		require.Equal(t, order.MaxPageSize, page.Take)
		require.Equal(t, 0, page.Skip)
		require.Equal(t, 1, page.Total)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		resp := env.do(call{method: http.MethodGet, path: alphaOrders, token: "garbage"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestOrderLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	staff := env.staffToken(auth.RoleStaff, env.alpha.ID)
	orderPath := func(o *models.Order, action string) string {
		return "/v1/t/alpha/orders/" + o.ID.String() + "/" + action
	}

	t.Run("advance through the kitchen", func(t *testing.T) {
		o := env.createOrder("", nil)

		for _, status := range []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusPreparing, models.OrderStatusReady, models.OrderStatusCompleted} {
			resp := env.do(call{method: http.MethodPost, path: orderPath(o, "status"), token: staff, body: order.AdvanceInput{Status: status}})
			require.Equal(t, http.StatusOK, resp.StatusCode, status)
			o = ptr(decode[models.Order](t, resp))
			require.Equal(t, status, o.Status)
		}
		require.NotNil(t, o.CompletedAt)

		resp := env.do(call{method: http.MethodPost, path: orderPath(o, "status"), token: staff, body: order.AdvanceInput{Status: models.OrderStatusCancelled, Reason: "too late"}})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("stale expected version conflicts", func(t *testing.T) {
		o := env.createOrder("", nil)
		stale := o.Version - 1

		resp := env.do(call{method: http.MethodPost, path: orderPath(o, "status"), token: staff, body: order.AdvanceInput{Status: models.OrderStatusConfirmed, ExpectedVersion: &stale}})
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Equal(t, "conflict", decode[ErrorBody](t, resp).Error.Code)
	})

	t.Run("cancel", func(t *testing.T) {
		o := env.createOrder("", nil)

		resp := env.do(call{method: http.MethodPost, path: orderPath(o, "cancel"), token: staff, body: map[string]string{}})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "reason is required")

		resp = env.do(call{method: http.MethodPost, path: orderPath(o, "cancel"), token: staff, body: map[string]string{"reason": "customer left"}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		cancelled := decode[models.Order](t, resp)
		require.Equal(t, models.OrderStatusCancelled, cancelled.Status)
		require.Equal(t, "customer left", cancelled.CancellationReason)
	})

	t.Run("customers cannot advance orders", func(t *testing.T) {
		o := env.createOrder("", nil)
		customer := env.token(&auth.Principal{UserID: uuid.New(), Role: auth.RoleCustomer})

		resp := env.do(call{method: http.MethodPost, path: orderPath(o, "status"), token: customer, body: order.AdvanceInput{Status: models.OrderStatusConfirmed}})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestMenuWrites(t *testing.T) {
	env := newTestEnv(t, nil)
	manager := env.staffToken(auth.RoleManager, env.alpha.ID)

	// warm the cache so the write has something to invalidate
	resp := env.do(call{method: http.MethodGet, path: "/v1/t/alpha/menu"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("manager adds an item", func(t *testing.T) {
		resp := env.do(call{method: http.MethodPost, path: "/v1/t/alpha/menu/items", token: manager, body: menu.ItemInput{Name: "Salad", BasePrice: 750}})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		item := decode[models.MenuItem](t, resp)
		require.Equal(t, env.alpha.ID, item.TenantID)

		require.Eventually(t, func() bool {
			resp := env.do(call{method: http.MethodGet, path: "/v1/t/alpha/menu"})
			body := decode[struct {
				Items []models.MenuItem `json:"items"`
			}](t, resp)
			return len(body.Items) == 3
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("availability toggle", func(t *testing.T) {
		path := "/v1/t/alpha/menu/items/" + env.fries.ID.String() + "/availability"
		resp := env.do(call{method: http.MethodPost, path: path, token: manager, body: map[string]bool{"available": false}})
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("rejections", func(t *testing.T) {
		tests := []struct {
			name   string
			method string
			path   string
			token  string
			body   any
			status int
		}{
			{name: "staff cannot edit menu", method: http.MethodPost, path: "/v1/t/alpha/categories", token: env.staffToken(auth.RoleStaff, env.alpha.ID), body: menu.CategoryInput{Name: "Drinks"}, status: http.StatusForbidden},
			{name: "manager of another tenant", method: http.MethodPost, path: "/v1/t/alpha/categories", token: env.staffToken(auth.RoleManager, env.beta.ID), body: menu.CategoryInput{Name: "Drinks"}, status: http.StatusForbidden},
			{name: "missing name", method: http.MethodPost, path: "/v1/t/alpha/categories", token: manager, body: menu.CategoryInput{}, status: http.StatusBadRequest},
			{name: "unknown item", method: http.MethodDelete, path: "/v1/t/alpha/menu/items/" + uuid.NewString(), token: manager, status: http.StatusNotFound},
			{name: "item of another tenant", method: http.MethodPut, path: "/v1/t/beta/menu/items/" + env.burger.ID.String(), token: env.superAdminToken(), body: menu.ItemInput{Name: "Stolen", BasePrice: 100}, status: http.StatusNotFound},
			{name: "bad id", method: http.MethodDelete, path: "/v1/t/alpha/categories/nope", token: manager, status: http.StatusBadRequest},
			{name: "double signed price", method: http.MethodPost, path: "/v1/t/alpha/menu/items", token: manager, body: `{"name":"Soup","basePrice":"--5"}`, status: http.StatusBadRequest},
			{name: "signed fraction in price", method: http.MethodPost, path: "/v1/t/alpha/menu/items", token: manager, body: `{"name":"Soup","basePrice":"1.-5"}`, status: http.StatusBadRequest},
			{name: "overflowing price", method: http.MethodPost, path: "/v1/t/alpha/menu/items", token: manager, body: `{"name":"Soup","basePrice":"999999999999999999"}`, status: http.StatusBadRequest},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp := env.do(call{method: tt.method, path: tt.path, token: tt.token, body: tt.body})
				require.Equal(t, tt.status, resp.StatusCode)
			})
		}
	})
}

func TestMenuRevalidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	t.Run("unchanged menu answers 304", func(t *testing.T) {
		resp := env.do(call{method: http.MethodGet, path: "/v1/t/alpha/menu"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		etag := resp.Header.Get("ETag")
		require.NotEmpty(t, etag)

		resp = env.do(call{method: http.MethodGet, path: "/v1/t/alpha/menu", headers: map[string]string{"If-None-Match": etag}})
		require.Equal(t, http.StatusNotModified, resp.StatusCode)
	})

	t.Run("caching client sees a write", func(t *testing.T) {
		cli := client.New(client.Config{ServerURL: env.url, Tenant: "alpha"})

		items, err := cli.Menu(ctx, nil)
		require.NoError(t, err)
		require.Len(t, items, 2)

		manager := client.New(client.Config{ServerURL: env.url, Tenant: "alpha", Token: env.staffToken(auth.RoleManager, env.alpha.ID)})
		_, err = manager.CreateItem(ctx, menu.ItemInput{Name: "Soup", BasePrice: 650})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			items, err := cli.Menu(ctx, nil)
			return err == nil && len(items) == 3
		}, 5*time.Second, 20*time.Millisecond)
	})
}

func TestTenantAdministration(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("share slug resolves after regeneration", func(t *testing.T) {
		resp := env.do(call{method: http.MethodPost, path: "/v1/t/alpha/share-slug", token: env.staffToken(auth.RoleAdmin, env.alpha.ID)})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		slug := decode[map[string]string](t, resp)["shareSlug"]
		require.NotEmpty(t, slug)

		resp = env.do(call{method: http.MethodGet, path: "/v1/t/" + slug + "/menu"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("manager cannot regenerate", func(t *testing.T) {
		resp := env.do(call{method: http.MethodPost, path: "/v1/t/alpha/share-slug", token: env.staffToken(auth.RoleManager, env.alpha.ID)})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("only super admins remove tenants", func(t *testing.T) {
		resp := env.do(call{method: http.MethodDelete, path: "/v1/t/beta", token: env.staffToken(auth.RoleAdmin, env.beta.ID)})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = env.do(call{method: http.MethodDelete, path: "/v1/t/beta", token: env.superAdminToken()})
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = env.do(call{method: http.MethodGet, path: "/v1/t/beta/menu"})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
