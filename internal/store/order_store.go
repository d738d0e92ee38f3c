package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/tableside/internal/models"
)

// Sentinel errors for order store operations
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNumberTaken  = errors.New("order number already in use")
	ErrOrderConflict     = errors.New("order was modified concurrently")
	ErrIdempotencyReused = errors.New("idempotency key already used")
)

// OrderFilter narrows List results. Zero values mean "any".
type OrderFilter struct {
	Status models.OrderStatus
	Type   models.OrderType
	Skip   int
	Take   int
}

// StatusUpdate carries the fields written by a status transition. Nil
// timestamps are left untouched.
type StatusUpdate struct {
	Status             models.OrderStatus
	PaymentStatus      models.PaymentStatus
	ConfirmedAt        *time.Time
	PreparingAt        *time.Time
	ReadyAt            *time.Time
	DeliveredAt        *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	UpdatedAt          time.Time
}

// OrderStore defines the interface for order storage operations.
type OrderStore interface {
	// Create persists the order and all of its items atomically.
	// Returns ErrOrderNumberTaken if the order number collides and
	// ErrIdempotencyReused if the idempotency key was already used.
	Create(ctx context.Context, order *models.Order) error

	// Get retrieves an order with its items.
	// Returns ErrOrderNotFound if the order doesn't exist under tenantID.
	Get(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)

	// GetByNumber retrieves an order by its human-readable number.
	GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Order, error)

	// GetByIdempotencyKey retrieves the order created with the given key.
	GetByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*models.Order, error)

	// List returns a page of orders, newest first, and the total match count.
	List(ctx context.Context, tenantID uuid.UUID, filter OrderFilter) ([]*models.Order, int, error)

	// UpdateStatus applies update only if the stored order still has
	// expectedStatus and expectedVersion, incrementing the version.
	// Returns ErrOrderConflict when the comparison fails.
	UpdateStatus(ctx context.Context, tenantID, orderID uuid.UUID, expectedStatus models.OrderStatus, expectedVersion int64, update StatusUpdate) (*models.Order, error)
}
