package order

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/realtime"
	"github.com/wolfeidau/tableside/internal/store"
	"github.com/wolfeidau/tableside/internal/store/memory"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recordingBroadcaster) Publish(_ context.Context, evt realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingBroadcaster) all() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events...)
}

type testMenu struct {
	tenantID uuid.UUID
	itemA    models.MenuItem // $5.00
	itemB    models.MenuItem // $3.00, Large +$1.50
	large    uuid.UUID
	cheese   uuid.UUID // +$0.75 on item A
}

func seedMenu(t *testing.T, menus *memory.MenuStore) testMenu {
	t.Helper()
	ctx := context.Background()

	m := testMenu{tenantID: uuid.Must(uuid.NewV7()), large: uuid.New(), cheese: uuid.New()}

	m.itemA = models.MenuItem{ID: uuid.New(), TenantID: m.tenantID, Name: "Burger", BasePrice: 500, Available: true, Active: true}
	m.itemA.Modifiers = []models.Modifier{{ID: m.cheese, MenuItemID: m.itemA.ID, Name: "Cheese", Price: 75, Active: true}}
	require.NoError(t, menus.CreateItem(ctx, &m.itemA))

	m.itemB = models.MenuItem{ID: uuid.New(), TenantID: m.tenantID, Name: "Fries", BasePrice: 300, Available: true, Active: true}
	m.itemB.Variants = []models.MenuItemVariant{
		{ID: m.large, MenuItemID: m.itemB.ID, Name: "Large", PriceModifier: 150, Active: true},
	}
	require.NoError(t, menus.CreateItem(ctx, &m.itemB))

	return m
}

func (m testMenu) cart() CreateInput {
	return CreateInput{
		Type:         models.OrderTypeTakeaway,
		CustomerName: "Sam",
		Lines: []LineInput{
			{MenuItemID: m.itemA.ID, Quantity: 2},
			{MenuItemID: m.itemB.ID, VariantID: &m.large, Quantity: 1, SpecialInstructions: "extra salt"},
		},
	}
}

func newTestEngine(t *testing.T) (*Engine, *memory.MenuStore, *memory.OrderStore, *recordingBroadcaster) {
	t.Helper()
	menus := memory.NewMenuStore()
	orders := memory.NewOrderStore()
	events := &recordingBroadcaster{}
	return NewEngine(menus, orders, events), menus, orders, events
}

func TestEngine_happyPath(t *testing.T) {
	ctx := context.Background()
	engine, menus, _, events := newTestEngine(t)
	m := seedMenu(t, menus)

	o, err := engine.Create(ctx, m.tenantID, m.cart())
	require.NoError(t, err)
	require.Equal(t, models.Money(1450), o.Subtotal)
	require.Equal(t, models.Money(1450), o.Total)
	require.Equal(t, models.Money(0), o.Tax)
	require.Equal(t, models.OrderStatusPendingPayment, o.Status)
	require.Equal(t, models.PaymentStatusPending, o.PaymentStatus)
	require.Regexp(t, `^\d{6}-[1-9A-HJ-NP-Za-km-z]{6}$`, o.OrderNumber)
	require.Len(t, o.Items, 2)
	require.Equal(t, models.Money(1000), o.Items[0].LineTotal)
	require.Equal(t, "Fries (Large)", o.Items[1].Name)
	require.Equal(t, models.Money(450), o.Items[1].UnitPrice)

	confirmed, err := engine.AdvanceStatus(ctx, m.tenantID, o.ID, AdvanceInput{Status: models.OrderStatusConfirmed})
	require.NoError(t, err)
	require.NotNil(t, confirmed.ConfirmedAt)
	require.Equal(t, models.PaymentStatusCompleted, confirmed.PaymentStatus)

	completed, err := engine.AdvanceStatus(ctx, m.tenantID, o.ID, AdvanceInput{Status: models.OrderStatusCompleted})
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	require.Equal(t, *confirmed.ConfirmedAt, *completed.ConfirmedAt)

	// completed is terminal, so a later cancellation is refused
	_, err = engine.AdvanceStatus(ctx, m.tenantID, o.ID, AdvanceInput{Status: models.OrderStatusCancelled, Reason: "changed mind"})
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.Equal(t, models.OrderStatusCompleted, terr.From)

	got := events.all()
	require.Len(t, got, 3)
	require.Equal(t, realtime.EventOrderCreated, got[0].Type)
	require.Equal(t, realtime.EventOrderStatusChanged, got[1].Type)
	data := got[2].Data.(realtime.StatusChangedData)
	require.Equal(t, models.OrderStatusCompleted, data.Status)
	require.Equal(t, models.OrderStatusConfirmed, data.PreviousStatus)
}

func TestEngine_staleCart(t *testing.T) {
	ctx := context.Background()
	engine, menus, orders, events := newTestEngine(t)
	m := seedMenu(t, menus)

	retired := models.MenuItem{ID: uuid.New(), TenantID: m.tenantID, Name: "Retired", BasePrice: 100, Active: false}
	require.NoError(t, menus.CreateItem(ctx, &retired))

	otherTenantItem := seedMenu(t, menus).itemA.ID
	missing := uuid.New()
	inactiveVariant := uuid.New()

	tests := []struct {
		name     string
		line     LineInput
		wantKind string
		wantID   uuid.UUID
	}{
		{name: "unknown item", line: LineInput{MenuItemID: missing, Quantity: 1}, wantKind: "menu_item", wantID: missing},
		{name: "inactive item", line: LineInput{MenuItemID: retired.ID, Quantity: 1}, wantKind: "menu_item", wantID: retired.ID},
		{name: "item of another tenant", line: LineInput{MenuItemID: otherTenantItem, Quantity: 1}, wantKind: "menu_item", wantID: otherTenantItem},
		{name: "unknown variant", line: LineInput{MenuItemID: m.itemB.ID, VariantID: &inactiveVariant, Quantity: 1}, wantKind: "variant", wantID: inactiveVariant},
		{name: "modifier of another item", line: LineInput{MenuItemID: m.itemB.ID, ModifierIDs: []uuid.UUID{m.cheese}, Quantity: 1}, wantKind: "modifier", wantID: m.cheese},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := m.cart()
			cart.Lines = append(cart.Lines, tt.line)

			_, err := engine.Create(ctx, m.tenantID, cart)
			require.ErrorIs(t, err, ErrInvalidRequest)

			var refErr *InvalidReferenceError
			require.ErrorAs(t, err, &refErr)
			require.Equal(t, tt.wantKind, refErr.Kind)
			require.Equal(t, tt.wantID, refErr.ID)
			require.Contains(t, err.Error(), tt.wantID.String())
		})
	}

	t.Run("invalid input", func(t *testing.T) {
		for name, cart := range map[string]CreateInput{
			"empty":         {Type: models.OrderTypeDineIn},
			"zero quantity": {Type: models.OrderTypeDineIn, Lines: []LineInput{{MenuItemID: m.itemA.ID}}},
			"unknown type":  {Type: "DRONE", Lines: []LineInput{{MenuItemID: m.itemA.ID, Quantity: 1}}},
			"negative tip":  {Type: models.OrderTypeDineIn, Tip: -100, Lines: []LineInput{{MenuItemID: m.itemA.ID, Quantity: 1}}},
			"bad email":     {Type: models.OrderTypeDineIn, CustomerEmail: "sam@", Lines: []LineInput{{MenuItemID: m.itemA.ID, Quantity: 1}}},
			"huge quantity": {Type: models.OrderTypeDineIn, Lines: []LineInput{{MenuItemID: m.itemA.ID, Quantity: 5000}}},
		} {
			_, err := engine.Create(ctx, m.tenantID, cart)
			require.ErrorIs(t, err, ErrInvalidRequest, name)
		}
	})

	_, total, err := orders.List(ctx, m.tenantID, store.OrderFilter{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, events.all())
}

func TestEngine_priceSnapshot(t *testing.T) {
	ctx := context.Background()
	engine, menus, _, _ := newTestEngine(t)
	m := seedMenu(t, menus)

	cart := m.cart()
	cart.Tip = 300
	cart.Lines[0].ModifierIDs = []uuid.UUID{m.cheese}

	o, err := engine.Create(ctx, m.tenantID, cart)
	require.NoError(t, err)
	require.Equal(t, models.Money(575), o.Items[0].UnitPrice)
	require.Equal(t, models.Money(1600), o.Total)
	require.Equal(t, models.Money(300), o.Tip)

	repriced := m.itemA
	repriced.BasePrice = 900
	require.NoError(t, menus.UpdateItem(ctx, &repriced))

	stored, err := engine.Get(ctx, m.tenantID, o.ID)
	require.NoError(t, err)
	require.Equal(t, models.Money(575), stored.Items[0].UnitPrice)
	require.Equal(t, models.Money(1150), stored.Items[0].LineTotal)
	require.Equal(t, models.Money(1600), stored.Total)
}

func TestEngine_tenantIsolation(t *testing.T) {
	ctx := context.Background()
	engine, menus, _, _ := newTestEngine(t)
	m := seedMenu(t, menus)
	other := seedMenu(t, menus)

	o, err := engine.Create(ctx, m.tenantID, m.cart())
	require.NoError(t, err)

	_, err = engine.Get(ctx, other.tenantID, o.ID)
	require.ErrorIs(t, err, store.ErrOrderNotFound)

	_, err = engine.GetByNumber(ctx, other.tenantID, o.OrderNumber)
	require.ErrorIs(t, err, store.ErrOrderNotFound)

	_, err = engine.AdvanceStatus(ctx, other.tenantID, o.ID, AdvanceInput{Status: models.OrderStatusConfirmed})
	require.ErrorIs(t, err, store.ErrOrderNotFound)

	_, err = engine.Cancel(ctx, other.tenantID, o.ID, "not mine")
	require.ErrorIs(t, err, store.ErrOrderNotFound)

	page, err := engine.List(ctx, other.tenantID, ListFilter{})
	require.NoError(t, err)
	require.Zero(t, page.Total)

	unchanged, err := engine.Get(ctx, m.tenantID, o.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPendingPayment, unchanged.Status)
}

func TestEngine_timestampsMonotonic(t *testing.T) {
	ctx := context.Background()
	engine, menus, _, _ := newTestEngine(t)
	m := seedMenu(t, menus)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return clock }

	o, err := engine.Create(ctx, m.tenantID, m.cart())
	require.NoError(t, err)

	steps := []struct {
		status  models.OrderStatus
		advance time.Duration
	}{
		{models.OrderStatusConfirmed, time.Minute},
		{models.OrderStatusPreparing, time.Minute},
		{models.OrderStatusConfirmed, time.Minute},
		{models.OrderStatusReady, -time.Hour}, // clock skew
		{models.OrderStatusPreparing, time.Minute},
		{models.OrderStatusDelivered, time.Minute},
	}

	seen := map[string]time.Time{}
	for _, step := range steps {
		clock = clock.Add(step.advance)
		updated, err := engine.AdvanceStatus(ctx, m.tenantID, o.ID, AdvanceInput{Status: step.status})
		require.NoError(t, err)

		stamps := map[string]*time.Time{
			"confirmed": updated.ConfirmedAt,
			"preparing": updated.PreparingAt,
			"ready":     updated.ReadyAt,
			"delivered": updated.DeliveredAt,
		}
		for name, ts := range stamps {
			if prev, ok := seen[name]; ok {
				require.NotNil(t, ts, "%s was cleared", name)
				require.Equal(t, prev, *ts, "%s was overwritten", name)
			}
			if ts != nil {
				require.False(t, ts.Before(o.CreatedAt), "%s precedes creation", name)
				seen[name] = *ts
			}
		}
	}

	require.Len(t, seen, 4)
	require.Equal(t, o.CreatedAt, seen["ready"])
}

func TestEngine_cancel(t *testing.T) {
	ctx := context.Background()
	engine, menus, _, _ := newTestEngine(t)
	m := seedMenu(t, menus)

	t.Run("from confirmed", func(t *testing.T) {
		o, err := engine.Create(ctx, m.tenantID, m.cart())
		require.NoError(t, err)
		_, err = engine.AdvanceStatus(ctx, m.tenantID, o.ID, AdvanceInput{Status: models.OrderStatusConfirmed})
		require.NoError(t, err)

		cancelled, err := engine.Cancel(ctx, m.tenantID, o.ID, "customer left")
		require.NoError(t, err)
		require.Equal(t, models.OrderStatusCancelled, cancelled.Status)
		require.Equal(t, "customer left", cancelled.CancellationReason)
		require.NotNil(t, cancelled.CancelledAt)
		require.NotNil(t, cancelled.ConfirmedAt)
	})

	t.Run("once preparing", func(t *testing.T) {
		o, err := engine.Create(ctx, m.tenantID, m.cart())
		require.NoError(t, err)
		_, err = engine.AdvanceStatus(ctx, m.tenantID, o.ID, AdvanceInput{Status: models.OrderStatusPreparing})
		require.NoError(t, err)

		_, err = engine.Cancel(ctx, m.tenantID, o.ID, "too slow")
		require.ErrorIs(t, err, ErrCannotCancel)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("reason required", func(t *testing.T) {
		o, err := engine.Create(ctx, m.tenantID, m.cart())
		require.NoError(t, err)

		_, err = engine.Cancel(ctx, m.tenantID, o.ID, "  ")
		var terr *TransitionError
		require.ErrorAs(t, err, &terr)
	})

	t.Run("unknown target status", func(t *testing.T) {
		o, err := engine.Create(ctx, m.tenantID, m.cart())
		require.NoError(t, err)

		_, err = engine.AdvanceStatus(ctx, m.tenantID, o.ID, AdvanceInput{Status: "EATEN"})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestEngine_idempotencyKey(t *testing.T) {
	ctx := context.Background()
	engine, menus, _, events := newTestEngine(t)
	m := seedMenu(t, menus)

	cart := m.cart()
	cart.IdempotencyKey = "cart-7f3a"

	first, err := engine.Create(ctx, m.tenantID, cart)
	require.NoError(t, err)
	second, err := engine.Create(ctx, m.tenantID, cart)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, events.all(), 1)

	t.Run("keys are per tenant", func(t *testing.T) {
		other := seedMenu(t, menus)
		otherCart := other.cart()
		otherCart.IdempotencyKey = "cart-7f3a"

		o, err := engine.Create(ctx, other.tenantID, otherCart)
		require.NoError(t, err)
		require.NotEqual(t, first.ID, o.ID)
	})

	t.Run("without a key duplicates are created", func(t *testing.T) {
		a, err := engine.Create(ctx, m.tenantID, m.cart())
		require.NoError(t, err)
		b, err := engine.Create(ctx, m.tenantID, m.cart())
		require.NoError(t, err)
		require.NotEqual(t, a.ID, b.ID)
		require.NotEqual(t, a.OrderNumber, b.OrderNumber)
	})
}

// racingOrderStore lets another writer advance the order just before the
// first UpdateStatus call lands.
type racingOrderStore struct {
	store.OrderStore
	race  func()
	fired atomic.Bool
}

func (r *racingOrderStore) UpdateStatus(ctx context.Context, tenantID, orderID uuid.UUID, expectedStatus models.OrderStatus, expectedVersion int64, update store.StatusUpdate) (*models.Order, error) {
	if r.fired.CompareAndSwap(false, true) {
		r.race()
	}
	return r.OrderStore.UpdateStatus(ctx, tenantID, orderID, expectedStatus, expectedVersion, update)
}

func TestEngine_concurrentAdvance(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Engine, testMenu, *models.Order) {
		menus := memory.NewMenuStore()
		orders := memory.NewOrderStore()
		m := seedMenu(t, menus)
		plain := NewEngine(menus, orders, nil)
		o, err := plain.Create(ctx, m.tenantID, m.cart())
		require.NoError(t, err)

		racing := &racingOrderStore{OrderStore: orders}
		racing.race = func() {
			_, err := plain.AdvanceStatus(ctx, m.tenantID, o.ID, AdvanceInput{Status: models.OrderStatusConfirmed})
			require.NoError(t, err)
		}
		return NewEngine(menus, racing, nil), m, o
	}

	t.Run("retried once without expected version", func(t *testing.T) {
		engine, m, o := setup(t)

		updated, err := engine.AdvanceStatus(ctx, m.tenantID, o.ID, AdvanceInput{Status: models.OrderStatusPreparing})
		require.NoError(t, err)
		require.Equal(t, models.OrderStatusPreparing, updated.Status)
		require.NotNil(t, updated.ConfirmedAt)
		require.Equal(t, int64(3), updated.Version)
	})

	t.Run("conflict with expected version", func(t *testing.T) {
		engine, m, o := setup(t)

		version := o.Version
		_, err := engine.AdvanceStatus(ctx, m.tenantID, o.ID, AdvanceInput{Status: models.OrderStatusPreparing, ExpectedVersion: &version})
		require.ErrorIs(t, err, ErrConflict)

		_, err = engine.AdvanceStatus(ctx, m.tenantID, o.ID, AdvanceInput{Status: models.OrderStatusPreparing, ExpectedVersion: &version})
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("one winner among many", func(t *testing.T) {
		engine, menus, orders, _ := newTestEngine(t)
		m := seedMenu(t, menus)
		o, err := engine.Create(ctx, m.tenantID, m.cart())
		require.NoError(t, err)

		var wins, conflicts atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Go(func() {
				version := o.Version
				_, err := engine.AdvanceStatus(ctx, m.tenantID, o.ID, AdvanceInput{Status: models.OrderStatusConfirmed, ExpectedVersion: &version})
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, ErrConflict):
					conflicts.Add(1)
				}
			})
		}
		wg.Wait()

		require.Equal(t, int32(1), wins.Load())
		require.Equal(t, int32(9), conflicts.Load())

		final, err := orders.Get(ctx, m.tenantID, o.ID)
		require.NoError(t, err)
		require.Equal(t, int64(2), final.Version)
	})
}

// collidingOrderStore reports the order number as taken a fixed number of times.
type collidingOrderStore struct {
	store.OrderStore
	collisions int
	calls      int
}

func (c *collidingOrderStore) Create(ctx context.Context, o *models.Order) error {
	c.calls++
	if c.calls <= c.collisions {
		return store.ErrOrderNumberTaken
	}
	return c.OrderStore.Create(ctx, o)
}

func TestEngine_orderNumberCollision(t *testing.T) {
	ctx := context.Background()

	t.Run("retried", func(t *testing.T) {
		menus := memory.NewMenuStore()
		m := seedMenu(t, menus)
		orders := &collidingOrderStore{OrderStore: memory.NewOrderStore(), collisions: 2}

		o, err := NewEngine(menus, orders, nil).Create(ctx, m.tenantID, m.cart())
		require.NoError(t, err)
		require.NotEmpty(t, o.OrderNumber)
		require.Equal(t, 3, orders.calls)
	})

	t.Run("gives up", func(t *testing.T) {
		menus := memory.NewMenuStore()
		m := seedMenu(t, menus)
		orders := &collidingOrderStore{OrderStore: memory.NewOrderStore(), collisions: 100}

		_, err := NewEngine(menus, orders, nil).Create(ctx, m.tenantID, m.cart())
		require.ErrorIs(t, err, store.ErrOrderNumberTaken)
		require.Equal(t, numberAttempts, orders.calls)
	})
}

func TestEngine_List(t *testing.T) {
	ctx := context.Background()
	engine, menus, _, _ := newTestEngine(t)
	m := seedMenu(t, menus)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return clock }

	var created []*models.Order
	for i := range 25 {
		clock = clock.Add(time.Second)
		cart := m.cart()
		if i%5 == 0 {
			cart.Type = models.OrderTypeDineIn
		}
		o, err := engine.Create(ctx, m.tenantID, cart)
		require.NoError(t, err)
		created = append(created, o)
	}

	tests := []struct {
		name      string
		filter    ListFilter
		wantLen   int
		wantTotal int
		wantTake  int
		wantSkip  int
	}{
		{name: "defaults", filter: ListFilter{}, wantLen: 20, wantTotal: 25, wantTake: 20},
		{name: "negative coerced", filter: ListFilter{Skip: -4, Take: -1}, wantLen: 20, wantTotal: 25, wantTake: 20},
		{name: "take capped", filter: ListFilter{Take: 500}, wantLen: 25, wantTotal: 25, wantTake: MaxPageSize},
		{name: "second page", filter: ListFilter{Skip: 20, Take: 20}, wantLen: 5, wantTotal: 25, wantTake: 20, wantSkip: 20},
		{name: "by type", filter: ListFilter{Type: models.OrderTypeDineIn}, wantLen: 5, wantTotal: 5, wantTake: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := engine.List(ctx, m.tenantID, tt.filter)
			require.NoError(t, err)
			require.Len(t, page.Orders, tt.wantLen)
			require.Equal(t, tt.wantTotal, page.Total)
			require.Equal(t, tt.wantTake, page.Take)
			require.Equal(t, tt.wantSkip, page.Skip)
		})
	}

	t.Run("newest first", func(t *testing.T) {
		page, err := engine.List(ctx, m.tenantID, ListFilter{Take: 1})
		require.NoError(t, err)
		require.Equal(t, created[len(created)-1].ID, page.Orders[0].ID)
	})

	t.Run("unknown status filter", func(t *testing.T) {
		_, err := engine.List(ctx, m.tenantID, ListFilter{Status: "LOST"})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("by number", func(t *testing.T) {
		o, err := engine.GetByNumber(ctx, m.tenantID, " "+created[3].OrderNumber+" ")
		require.NoError(t, err)
		require.Equal(t, created[3].ID, o.ID)
	})
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     models.OrderStatus
		to       models.OrderStatus
		reason   string
		rejected bool
	}{
		{name: "skip ahead from pending", from: models.OrderStatusPendingPayment, to: models.OrderStatusReady},
		{name: "step back between open states", from: models.OrderStatusReady, to: models.OrderStatusPreparing},
		{name: "cancel an open order", from: models.OrderStatusPreparing, to: models.OrderStatusCancelled, reason: "out of stock"},
		{name: "cancel without reason", from: models.OrderStatusConfirmed, to: models.OrderStatusCancelled, rejected: true},
		{name: "cancel a completed order", from: models.OrderStatusCompleted, to: models.OrderStatusCancelled, reason: "refund", rejected: true},
		{name: "complete a delivered order", from: models.OrderStatusDelivered, to: models.OrderStatusCompleted, rejected: true},
		{name: "reopen a cancelled order", from: models.OrderStatusCancelled, to: models.OrderStatusConfirmed, rejected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTransition(tt.from, AdvanceInput{Status: tt.to, Reason: tt.reason})
			if !tt.rejected {
				require.NoError(t, err)
				return
			}
			var terr *TransitionError
			require.ErrorAs(t, err, &terr)
			require.Equal(t, tt.from, terr.From)
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}
