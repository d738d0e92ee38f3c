package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/tableside/internal/models"
)

// EventType names a domain event pushed to subscribers.
type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventMenuUpdated        EventType = "menu.updated"

	// EventTenantClosed is a control event. Every hub that receives it
	// closes the tenant's groups instead of delivering it.
	EventTenantClosed EventType = "tenant.closed"
)

// Event is a state change fanned out to realtime groups. Delivery is at most
// once per connection; clients recover missed events by polling.
type Event struct {
	Type       EventType  `json:"type"`
	TenantID   uuid.UUID  `json:"tenantId"`
	CustomerID *uuid.UUID `json:"customerId,omitempty"`
	Data       any        `json:"data,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// Broadcaster publishes events without blocking the caller on delivery.
type Broadcaster interface {
	Publish(ctx context.Context, evt Event)
}

// NopBroadcaster discards every event.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(context.Context, Event) {}

// OrderCreatedData is the payload of order.created.
type OrderCreatedData struct {
	OrderID     uuid.UUID          `json:"orderId"`
	OrderNumber string             `json:"orderNumber"`
	Status      models.OrderStatus `json:"status"`
	Type        models.OrderType   `json:"orderType"`
	Total       models.Money       `json:"total"`
	TableNumber string             `json:"tableNumber,omitempty"`
}

// StatusChangedData is the payload of order.status_changed.
type StatusChangedData struct {
	OrderID        uuid.UUID          `json:"orderId"`
	OrderNumber    string             `json:"orderNumber"`
	Status         models.OrderStatus `json:"status"`
	PreviousStatus models.OrderStatus `json:"previousStatus"`
	CustomerID     *uuid.UUID         `json:"customerId,omitempty"`
}

// MenuUpdatedData is the payload of menu.updated.
type MenuUpdatedData struct {
	Entity string    `json:"entity"` // category or item
	ID     uuid.UUID `json:"id"`
	Action string    `json:"action"`
}

// OrderCreated builds the event for a newly created order.
func OrderCreated(o *models.Order) Event {
	return Event{
		Type:       EventOrderCreated,
		TenantID:   o.TenantID,
		CustomerID: o.CustomerID,
		Data: OrderCreatedData{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Status:      o.Status,
			Type:        o.Type,
			Total:       o.Total,
			TableNumber: o.TableNumber,
		},
		OccurredAt: o.CreatedAt,
	}
}

// StatusChanged builds the event for a status transition.
func StatusChanged(o *models.Order, previous models.OrderStatus) Event {
	return Event{
		Type:       EventOrderStatusChanged,
		TenantID:   o.TenantID,
		CustomerID: o.CustomerID,
		Data: StatusChangedData{
			OrderID:        o.ID,
			OrderNumber:    o.OrderNumber,
			Status:         o.Status,
			PreviousStatus: previous,
			CustomerID:     o.CustomerID,
		},
		OccurredAt: o.UpdatedAt,
	}
}

// MenuUpdated builds the event for a menu write.
func MenuUpdated(tenantID uuid.UUID, entity string, id uuid.UUID, action string) Event {
	return Event{
		Type:       EventMenuUpdated,
		TenantID:   tenantID,
		Data:       MenuUpdatedData{Entity: entity, ID: id, Action: action},
		OccurredAt: time.Now().UTC(),
	}
}

// TenantClosed builds the control event that tears down a removed tenant's
// groups on every process.
func TenantClosed(tenantID uuid.UUID) Event {
	return Event{
		Type:       EventTenantClosed,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
	}
}

// Group names a subscription audience.
type Group string

// OrdersGroup is the front-of-house audience for a tenant.
func OrdersGroup(tenantID uuid.UUID) Group {
	return Group(fmt.Sprintf("tenant:%s:orders", tenantID))
}

// KitchenGroup is the kitchen display audience for a tenant.
func KitchenGroup(tenantID uuid.UUID) Group {
	return Group(fmt.Sprintf("tenant:%s:kitchen", tenantID))
}

// CustomerGroup is the audience of one ordering customer.
func CustomerGroup(userID uuid.UUID) Group {
	return Group(fmt.Sprintf("customer:%s:orders", userID))
}

// Groups returns the audiences an event is routed to.
func (e Event) Groups() []Group {
	switch e.Type {
	case EventOrderCreated:
		return []Group{OrdersGroup(e.TenantID), KitchenGroup(e.TenantID)}
	case EventOrderStatusChanged:
		groups := []Group{OrdersGroup(e.TenantID), KitchenGroup(e.TenantID)}
		if e.CustomerID != nil {
			groups = append(groups, CustomerGroup(*e.CustomerID))
		}
		return groups
	case EventMenuUpdated:
		return []Group{OrdersGroup(e.TenantID)}
	}
	return nil
}
