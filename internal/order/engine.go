// Package order prices carts into orders and drives them through their
// status lifecycle.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/realtime"
	"github.com/wolfeidau/tableside/internal/store"
	"github.com/wolfeidau/tableside/internal/telemetry"
	"github.com/wolfeidau/tableside/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	numberAttempts = 5
)

// LineInput is one cart line.
type LineInput struct {
	MenuItemID          uuid.UUID   `json:"menuItemId" yaml:"menuItemId"`
	VariantID           *uuid.UUID  `json:"variantId,omitempty" yaml:"variantId,omitempty"`
	Quantity            int         `json:"quantity" yaml:"quantity" validate:"gt=0,lte=999"`
	ModifierIDs         []uuid.UUID `json:"modifierIds,omitempty" yaml:"modifierIds,omitempty" validate:"max=20"`
	SpecialInstructions string      `json:"specialInstructions,omitempty" yaml:"specialInstructions,omitempty" validate:"max=500"`
}

// CreateInput is a customer cart plus contact details.
type CreateInput struct {
	Lines         []LineInput      `json:"items" yaml:"items" validate:"required,min=1,max=100,dive"`
	Type          models.OrderType `json:"type" yaml:"type"`
	CustomerName  string           `json:"customerName,omitempty" yaml:"customerName,omitempty" validate:"max=120"`
	CustomerPhone string           `json:"customerPhone,omitempty" yaml:"customerPhone,omitempty" validate:"max=32"`
	CustomerEmail string           `json:"customerEmail,omitempty" yaml:"customerEmail,omitempty" validate:"omitempty,email"`
	TableNumber   string           `json:"tableNumber,omitempty" yaml:"tableNumber,omitempty" validate:"max=16"`
	Tip           models.Money     `json:"tip,omitempty" yaml:"tip,omitempty" validate:"gte=0"`
	Notes         string           `json:"notes,omitempty" yaml:"notes,omitempty" validate:"max=1000"`

	// CustomerID is taken from the caller's credential, never the body.
	CustomerID *uuid.UUID `json:"-" yaml:"-"`

	// IdempotencyKey makes retries of the same submission return the first
	// order instead of creating another.
	IdempotencyKey string `json:"-" yaml:"-"`
}

// AdvanceInput requests a status change.
type AdvanceInput struct {
	Status models.OrderStatus `json:"status"`
	Reason string             `json:"reason,omitempty"`

	// ExpectedVersion turns a lost race into ErrConflict instead of a retry.
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Status models.OrderStatus
	Type   models.OrderType
	Skip   int
	Take   int
}

// Page is one page of orders, newest first.
type Page struct {
	Orders []*models.Order `json:"orders"`
	Total  int             `json:"total"`
	Skip   int             `json:"skip"`
	Take   int             `json:"take"`
}

// Engine implements order creation, status transitions and order reads. All
// operations are scoped to an explicit tenant id.
type Engine struct {
	menus  store.MenuStore
	orders store.OrderStore
	events realtime.Broadcaster
	now    func() time.Time
}

// NewEngine creates an engine. events may be nil.
func NewEngine(menus store.MenuStore, orders store.OrderStore, events realtime.Broadcaster) *Engine {
	if events == nil {
		events = realtime.NopBroadcaster{}
	}
	return &Engine{
		menus:  menus,
		orders: orders,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the cart against the live menu, prices it and stores the
// order with its lines. Any bad line rejects the whole order.
func (e *Engine) Create(ctx context.Context, tenantID uuid.UUID, in CreateInput) (*models.Order, error) {
	if in.IdempotencyKey != "" {
		existing, err := e.orders.GetByIdempotencyKey(ctx, tenantID, in.IdempotencyKey)
		switch {
		case err == nil:
			zerolog.Ctx(ctx).Info().Str("order_number", existing.OrderNumber).Msg("returning order for repeated idempotency key")
			return existing, nil
		case !errors.Is(err, store.ErrOrderNotFound):
			return nil, err
		}
	}

	if err := validateCreate(in); err != nil {
		return nil, err
	}

	lines, subtotal, err := e.price(ctx, tenantID, in.Lines)
	if err != nil {
		return nil, err
	}

	now := e.now()
	o := &models.Order{
		ID:            uuid.Must(uuid.NewV7()),
		TenantID:      tenantID,
		CustomerID:    in.CustomerID,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		TableNumber:   strings.TrimSpace(in.TableNumber),
		Type:          in.Type,
		Status:        models.OrderStatusPendingPayment,
		PaymentStatus: models.PaymentStatusPending,
		Subtotal:      subtotal,
		Tax:           0,
		Tip:           in.Tip,
		// tip is recorded but, under the current business rule, not charged
		Total:     subtotal,
		Notes:     in.Notes,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		o.IdempotencyKey = &key
	}
	for i := range lines {
		lines[i].OrderID = o.ID
	}
	o.Items = lines

	created, err := e.store(ctx, o)
	if err != nil {
		return nil, err
	}
	if created.ID != o.ID {
		return created, nil
	}

	telemetry.GetMetrics().OrdersCreatedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", string(created.Type))))
	zerolog.Ctx(ctx).Info().
		Stringer("tenant_id", tenantID).
		Str("order_number", created.OrderNumber).
		Str("total", created.Total.String()).
		Msg("order created")

	e.events.Publish(ctx, realtime.OrderCreated(created))

	return created, nil
}

// store persists o, drawing a new order number whenever the previous one was
// already taken.
func (e *Engine) store(ctx context.Context, o *models.Order) (*models.Order, error) {
	return backoff.Retry(ctx, func() (*models.Order, error) {
		number, err := newOrderNumber(o.CreatedAt)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		o.OrderNumber = number

		err = e.orders.Create(ctx, o)
		switch {
		case errors.Is(err, store.ErrOrderNumberTaken):
			telemetry.GetMetrics().OrderNumberRetriesTotal.Add(ctx, 1)
			zerolog.Ctx(ctx).Debug().Str("order_number", number).Msg("order number collision, retrying")
			return nil, err
		case errors.Is(err, store.ErrIdempotencyReused):
			// a concurrent request with the same key won the insert
			existing, gerr := e.orders.GetByIdempotencyKey(ctx, o.TenantID, *o.IdempotencyKey)
			if gerr != nil {
				return nil, backoff.Permanent(gerr)
			}
			return existing, nil
		case err != nil:
			return nil, backoff.Permanent(err)
		}
		return o, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(5*time.Millisecond)),
		backoff.WithMaxTries(numberAttempts),
	)
}

func validateCreate(in CreateInput) error {
	if len(in.Lines) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvalidRequest)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidRequest, in.Type)
	}
	if err := util.ValidateStruct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// price reads every referenced item from the store, bypassing the menu cache,
// and snapshots names and prices into order lines.
func (e *Engine) price(ctx context.Context, tenantID uuid.UUID, in []LineInput) ([]models.OrderItem, models.Money, error) {
	lines := make([]models.OrderItem, 0, len(in))
	var subtotal models.Money

	for _, line := range in {
		item, err := e.menus.GetItem(ctx, tenantID, line.MenuItemID)
		if errors.Is(err, store.ErrMenuItemNotFound) {
			return nil, 0, &InvalidReferenceError{Kind: "menu_item", ID: line.MenuItemID, Reason: "not found"}
		}
		if err != nil {
			return nil, 0, err
		}
		if !item.Active {
			return nil, 0, &InvalidReferenceError{Kind: "menu_item", ID: line.MenuItemID, Reason: "no longer on the menu"}
		}

		unit := item.BasePrice
		name := item.Name

		if line.VariantID != nil {
			v, ok := item.Variant(*line.VariantID)
			if !ok || !v.Active {
				return nil, 0, &InvalidReferenceError{Kind: "variant", ID: *line.VariantID, Reason: "not available for " + item.Name}
			}
			unit += v.PriceModifier
			name = item.Name + " (" + v.Name + ")"
		}

		for _, modID := range line.ModifierIDs {
			m, ok := item.Modifier(modID)
			if !ok || !m.Active {
				return nil, 0, &InvalidReferenceError{Kind: "modifier", ID: modID, Reason: "not available for " + item.Name}
			}
			unit += m.Price
		}

		total := unit.Mul(line.Quantity)
		subtotal += total

		lines = append(lines, models.OrderItem{
			ID:                  uuid.Must(uuid.NewV7()),
			MenuItemID:          item.ID,
			VariantID:           line.VariantID,
			ModifierIDs:         append([]uuid.UUID(nil), line.ModifierIDs...),
			Name:                name,
			Quantity:            line.Quantity,
			UnitPrice:           unit,
			LineTotal:           total,
			SpecialInstructions: strings.TrimSpace(line.SpecialInstructions),
		})
	}

	return lines, subtotal, nil
}

// AdvanceStatus moves an order to a new status and records the matching
// timestamp. Concurrent changes to the same order are serialized by a
// compare-and-swap on status and version; without an expected version a lost
// race is retried once against the fresh order.
func (e *Engine) AdvanceStatus(ctx context.Context, tenantID, orderID uuid.UUID, in AdvanceInput) (*models.Order, error) {
	attempts := 1
	if in.ExpectedVersion == nil {
		attempts = 2
	}

	for attempt := 1; ; attempt++ {
		current, err := e.orders.Get(ctx, tenantID, orderID)
		if err != nil {
			return nil, err
		}
		if in.ExpectedVersion != nil && current.Version != *in.ExpectedVersion {
			return nil, fmt.Errorf("%w: expected version %d, found %d", ErrConflict, *in.ExpectedVersion, current.Version)
		}

		if err := checkTransition(current.Status, in); err != nil {
			return nil, err
		}

		update := e.statusUpdate(current, in)
		updated, err := e.orders.UpdateStatus(ctx, tenantID, orderID, current.Status, current.Version, update)
		if errors.Is(err, store.ErrOrderConflict) {
			telemetry.GetMetrics().OrderConflictsTotal.Add(ctx, 1)
			if attempt < attempts {
				zerolog.Ctx(ctx).Debug().Stringer("order_id", orderID).Msg("order changed underneath, retrying transition")
				continue
			}
			return nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		if err != nil {
			return nil, err
		}

		telemetry.GetMetrics().OrderTransitionsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", string(updated.Status))))
		zerolog.Ctx(ctx).Info().
			Str("order_number", updated.OrderNumber).
			Str("from", string(current.Status)).
			Str("to", string(updated.Status)).
			Msg("order status changed")

		e.events.Publish(ctx, realtime.StatusChanged(updated, current.Status))

		return updated, nil
	}
}

// checkTransition rejects moves out of terminal statuses (DELIVERED, COMPLETED
// and CANCELLED). Between non-terminal statuses any target is accepted. A
// finished order cannot be cancelled afterwards; its timestamps and payment
// status stay as they were when it closed.
func checkTransition(from models.OrderStatus, in AdvanceInput) error {
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, in.Status)
	}
	if from.Terminal() {
		return &TransitionError{From: from, To: in.Status, Reason: "order is already " + strings.ToLower(string(from))}
	}
	if in.Status == models.OrderStatusCancelled && strings.TrimSpace(in.Reason) == "" {
		return &TransitionError{From: from, To: in.Status, Reason: "a cancellation reason is required"}
	}
	return nil
}

func (e *Engine) statusUpdate(current *models.Order, in AdvanceInput) store.StatusUpdate {
	now := e.now()
	if now.Before(current.CreatedAt) {
		now = current.CreatedAt
	}

	update := store.StatusUpdate{Status: in.Status, UpdatedAt: now}

	switch in.Status {
	case models.OrderStatusConfirmed:
		update.ConfirmedAt = &now
		update.PaymentStatus = models.PaymentStatusCompleted
	case models.OrderStatusPreparing:
		update.PreparingAt = &now
	case models.OrderStatusReady:
		update.ReadyAt = &now
	case models.OrderStatusDelivered:
		update.DeliveredAt = &now
	case models.OrderStatusCompleted:
		update.CompletedAt = &now
	case models.OrderStatusCancelled:
		update.CancelledAt = &now
		update.CancellationReason = strings.TrimSpace(in.Reason)
	}

	return update
}

// Cancel cancels an order that has not started preparation.
func (e *Engine) Cancel(ctx context.Context, tenantID, orderID uuid.UUID, reason string) (*models.Order, error) {
	current, err := e.orders.Get(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	switch current.Status {
	case models.OrderStatusPending, models.OrderStatusPendingPayment, models.OrderStatusConfirmed:
	default:
		return nil, fmt.Errorf("%w: status is %s", ErrCannotCancel, current.Status)
	}

	// pin the version so an order that started preparing meanwhile is not cancelled
	version := current.Version
	return e.AdvanceStatus(ctx, tenantID, orderID, AdvanceInput{
		Status:          models.OrderStatusCancelled,
		Reason:          reason,
		ExpectedVersion: &version,
	})
}

// List returns a page of the tenant's orders. Out of range paging values are
// coerced to defaults rather than rejected.
func (e *Engine) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (*Page, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, filter.Status)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown order type %q", ErrInvalidRequest, filter.Type)
	}

	skip := max(filter.Skip, 0)
	take := filter.Take
	if take <= 0 {
		take = DefaultPageSize
	}
	take = util.Clamp(take, 1, MaxPageSize)

	orders, total, err := e.orders.List(ctx, tenantID, store.OrderFilter{
		Status: filter.Status,
		Type:   filter.Type,
		Skip:   skip,
		Take:   take,
	})
	if err != nil {
		return nil, err
	}

	return &Page{Orders: orders, Total: total, Skip: skip, Take: take}, nil
}

// Get returns one order of the tenant.
func (e *Engine) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	return e.orders.Get(ctx, tenantID, orderID)
}

// GetByNumber returns the order with the given human readable number, used
// for customer tracking links.
func (e *Engine) GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Order, error) {
	return e.orders.GetByNumber(ctx, tenantID, strings.TrimSpace(number))
}
