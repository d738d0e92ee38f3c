package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusPreparing      OrderStatus = "PREPARING"
	OrderStatusReady          OrderStatus = "READY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPendingPayment,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, v := range orderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is accepted from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusCompleted, OrderStatusDelivered:
		return true
	}
	return false
}

// PaymentStatus tracks the payment side of an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// OrderType is how the order is fulfilled.
type OrderType string

const (
	OrderTypeDineIn   OrderType = "DINE_IN"
	OrderTypeTakeaway OrderType = "TAKEAWAY"
	OrderTypeDelivery OrderType = "DELIVERY"
)

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return true
	}
	return false
}

// Order is a priced customer order. Status timestamps are an append-only
// audit trail: once set they are never cleared.
type Order struct {
	ID             uuid.UUID     `json:"id"`
	TenantID       uuid.UUID     `json:"tenantId"`
	OrderNumber    string        `json:"orderNumber"`
	CustomerID     *uuid.UUID    `json:"customerId,omitempty"`
	CustomerName   string        `json:"customerName,omitempty"`
	CustomerPhone  string        `json:"customerPhone,omitempty"`
	CustomerEmail  string        `json:"customerEmail,omitempty"`
	TableNumber    string        `json:"tableNumber,omitempty"`
	Type           OrderType     `json:"type"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
	Subtotal       Money         `json:"subtotal"`
	Tax            Money         `json:"tax"`
	Tip            Money         `json:"tip"`
	DeliveryFee    Money         `json:"deliveryFee"`
	Total          Money         `json:"total"`
	Notes          string        `json:"notes,omitempty"`
	IdempotencyKey *string       `json:"-"`
	Version        int64         `json:"version"`

	ConfirmedAt        *time.Time `json:"confirmedAt,omitempty"`
	PreparingAt        *time.Time `json:"preparingAt,omitempty"`
	ReadyAt            *time.Time `json:"readyAt,omitempty"`
	DeliveredAt        *time.Time `json:"deliveredAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty"`

	Items     []OrderItem `json:"items"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// OrderItem is an immutable snapshot of a purchased line. Name and UnitPrice
// are copied from the menu at creation time.
type OrderItem struct {
	ID                  uuid.UUID   `json:"id"`
	OrderID             uuid.UUID   `json:"orderId"`
	MenuItemID          uuid.UUID   `json:"menuItemId"`
	VariantID           *uuid.UUID  `json:"variantId,omitempty"`
	ModifierIDs         []uuid.UUID `json:"modifierIds,omitempty"`
	Name                string      `json:"name"`
	Quantity            int         `json:"quantity"`
	UnitPrice           Money       `json:"unitPrice"`
	LineTotal           Money       `json:"lineTotal"`
	SpecialInstructions string      `json:"specialInstructions,omitempty"`
}
