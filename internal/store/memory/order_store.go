package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/store"
)

type tenantKey struct {
	tenantID uuid.UUID
	value    string
}

// OrderStore implements store.OrderStore using in-memory storage.
type OrderStore struct {
	mu sync.RWMutex

	orders   map[uuid.UUID]*models.Order // order_id -> Order
	byNumber map[tenantKey]uuid.UUID     // (tenant, order_number) -> order_id
	byKey    map[tenantKey]uuid.UUID     // (tenant, idempotency key) -> order_id
}

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:   make(map[uuid.UUID]*models.Order),
		byNumber: make(map[tenantKey]uuid.UUID),
		byKey:    make(map[tenantKey]uuid.UUID),
	}
}

// Create stores the order and its items under one lock, so readers never
// observe an order without its lines.
func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byNumber[tenantKey{order.TenantID, order.OrderNumber}]; exists {
		return store.ErrOrderNumberTaken
	}
	if order.IdempotencyKey != nil {
		if _, exists := s.byKey[tenantKey{order.TenantID, *order.IdempotencyKey}]; exists {
			return store.ErrIdempotencyReused
		}
	}

	clone := cloneOrder(order)
	s.orders[order.ID] = clone
	s.byNumber[tenantKey{order.TenantID, order.OrderNumber}] = order.ID
	if order.IdempotencyKey != nil {
		s.byKey[tenantKey{order.TenantID, *order.IdempotencyKey}] = order.ID
	}

	return nil
}

func (s *OrderStore) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getLocked(tenantID, orderID)
}

func (s *OrderStore) GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byNumber[tenantKey{tenantID, number}]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	return s.getLocked(tenantID, id)
}

func (s *OrderStore) GetByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[tenantKey{tenantID, key}]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	return s.getLocked(tenantID, id)
}

func (s *OrderStore) List(ctx context.Context, tenantID uuid.UUID, filter store.OrderFilter) ([]*models.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Order
	for _, o := range s.orders {
		if o.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.Type != "" && o.Type != filter.Type {
			continue
		}
		matched = append(matched, o)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() > matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(filter.Skip, total)
	end := total
	if filter.Take > 0 {
		end = min(start+filter.Take, total)
	}

	page := make([]*models.Order, 0, end-start)
	for _, o := range matched[start:end] {
		page = append(page, cloneOrder(o))
	}
	return page, total, nil
}

// UpdateStatus applies the update only when status and version still match.
func (s *OrderStore) UpdateStatus(ctx context.Context, tenantID, orderID uuid.UUID, expectedStatus models.OrderStatus, expectedVersion int64, update store.StatusUpdate) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return nil, store.ErrOrderNotFound
	}
	if o.Status != expectedStatus || o.Version != expectedVersion {
		return nil, store.ErrOrderConflict
	}

	o.Status = update.Status
	if update.PaymentStatus != "" {
		o.PaymentStatus = update.PaymentStatus
	}
	setOnce(&o.ConfirmedAt, update.ConfirmedAt)
	setOnce(&o.PreparingAt, update.PreparingAt)
	setOnce(&o.ReadyAt, update.ReadyAt)
	setOnce(&o.DeliveredAt, update.DeliveredAt)
	setOnce(&o.CompletedAt, update.CompletedAt)
	setOnce(&o.CancelledAt, update.CancelledAt)
	if update.CancellationReason != "" {
		o.CancellationReason = update.CancellationReason
	}
	o.UpdatedAt = update.UpdatedAt
	o.Version++

	return cloneOrder(o), nil
}

// PurgeTenant drops every order of the tenant along with its indexes.
func (s *OrderStore) PurgeTenant(tenantID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, o := range s.orders {
		if o.TenantID != tenantID {
			continue
		}
		delete(s.byNumber, tenantKey{tenantID, o.OrderNumber})
		if o.IdempotencyKey != nil {
			delete(s.byKey, tenantKey{tenantID, *o.IdempotencyKey})
		}
		delete(s.orders, id)
	}
}

func (s *OrderStore) getLocked(tenantID, orderID uuid.UUID) (*models.Order, error) {
	o, ok := s.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return nil, store.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

// setOnce mirrors COALESCE(existing, new): a timestamp is never overwritten.
func setOnce[T any](dst **T, v *T) {
	if *dst == nil && v != nil {
		c := *v
		*dst = &c
	}
}

func cloneOrder(o *models.Order) *models.Order {
	clone := *o
	clone.Items = make([]models.OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.ModifierIDs = append([]uuid.UUID(nil), item.ModifierIDs...)
		clone.Items[i] = item
	}
	return &clone
}
