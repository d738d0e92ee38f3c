// Package realtime fans order and menu events out to role scoped
// subscription groups over websockets.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/auth"
	"github.com/wolfeidau/tableside/internal/telemetry"
)

// SubscriberBuffer is the number of undelivered events a subscriber may hold
// before new events are dropped for it.
const SubscriberBuffer = 100

var (
	ErrJoinForbidden = errors.New("not allowed to join group")
	ErrHubClosed     = errors.New("realtime hub is closed")
)

// Subscriber is one connection's membership in the hub.
type Subscriber struct {
	id        uuid.UUID
	principal *auth.Principal
	events    chan Event

	// guarded by Hub.mu
	groups map[Group]struct{}
	closed bool
}

// ID identifies the subscriber in logs.
func (s *Subscriber) ID() uuid.UUID { return s.id }

// Principal is the authenticated caller behind the subscriber.
func (s *Subscriber) Principal() *auth.Principal { return s.principal }

// Events delivers routed events. It is closed when the subscriber is
// disconnected.
func (s *Subscriber) Events() <-chan Event { return s.events }

// Hub keeps the group memberships of this process and delivers events to
// them. Delivery is best effort: a subscriber whose buffer is full misses the
// event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	groups map[Group]map[*Subscriber]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[*Subscriber]struct{}),
		groups: make(map[Group]map[*Subscriber]struct{}),
	}
}

// Connect registers a subscriber for an authenticated principal.
func (h *Hub) Connect(p *auth.Principal) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	s := &Subscriber{
		id:        uuid.New(),
		principal: p,
		events:    make(chan Event, SubscriberBuffer),
		groups:    make(map[Group]struct{}),
	}
	h.subs[s] = struct{}{}

	telemetry.GetMetrics().ActiveConnections.Add(context.Background(), 1)
	return s, nil
}

// Disconnect removes the subscriber from every group and closes its event
// channel. It is safe to call more than once.
func (h *Hub) Disconnect(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectLocked(s)
}

func (h *Hub) disconnectLocked(s *Subscriber) {
	if s.closed {
		return
	}
	for g := range s.groups {
		h.removeLocked(s, g)
	}
	delete(h.subs, s)
	s.closed = true
	close(s.events)

	telemetry.GetMetrics().ActiveConnections.Add(context.Background(), -1)
}

// Join adds the subscriber to group after checking its principal may see it.
func (h *Hub) Join(s *Subscriber, group Group) error {
	if err := authorizeJoin(s.principal, group); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if s.closed {
		return ErrHubClosed
	}

	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Subscriber]struct{})
		h.groups[group] = members
	}
	members[s] = struct{}{}
	s.groups[group] = struct{}{}
	return nil
}

// Leave removes the subscriber from group.
func (h *Hub) Leave(s *Subscriber, group Group) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s, group)
}

func (h *Hub) removeLocked(s *Subscriber, group Group) {
	delete(s.groups, group)
	if members, ok := h.groups[group]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Groups returns the groups the subscriber belongs to.
func (h *Hub) Groups(s *Subscriber) []Group {
	h.mu.RLock()
	defer h.mu.RUnlock()

	groups := make([]Group, 0, len(s.groups))
	for g := range s.groups {
		groups = append(groups, g)
	}
	return groups
}

// Publish routes evt to its groups. A subscriber in several target groups
// receives the event once. It never blocks. A tenant.closed event closes the
// tenant's groups and is not delivered.
func (h *Hub) Publish(ctx context.Context, evt Event) {
	if evt.Type == EventTenantClosed {
		h.CloseTenant(evt.TenantID)
		return
	}

	metrics := telemetry.GetMetrics()

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := make(map[*Subscriber]struct{})
	for _, g := range evt.Groups() {
		for s := range h.groups[g] {
			if _, seen := delivered[s]; seen {
				continue
			}
			delivered[s] = struct{}{}

			select {
			case s.events <- evt:
				metrics.EventsPublishedTotal.Add(ctx, 1)
			default:
				metrics.EventsDroppedTotal.Add(ctx, 1)
				zerolog.Ctx(ctx).Warn().
					Stringer("subscriber", s.id).
					Str("event", string(evt.Type)).
					Msg("subscriber buffer full, dropping event")
			}
		}
	}
}

// CloseTenant empties the tenant's groups and disconnects subscribers whose
// credential is bound to the tenant.
func (h *Hub) CloseTenant(tenantID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, g := range []Group{OrdersGroup(tenantID), KitchenGroup(tenantID)} {
		for s := range h.groups[g] {
			if bound, ok := s.principal.BoundTenant(); ok && bound == tenantID {
				h.disconnectLocked(s)
				continue
			}
			h.removeLocked(s, g)
		}
		delete(h.groups, g)
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for s := range h.subs {
		h.disconnectLocked(s)
	}
}

// DefaultGroups are joined automatically when a connection opens: the orders
// group of a bound staff member, or the customer's own group.
func DefaultGroups(p *auth.Principal) []Group {
	if p == nil {
		return nil
	}
	if p.Role == auth.RoleCustomer {
		return []Group{CustomerGroup(p.UserID)}
	}
	if tenantID, ok := p.BoundTenant(); ok && p.Role.IsStaff() {
		return []Group{OrdersGroup(tenantID)}
	}
	return nil
}

type groupKind int

const (
	groupOrders groupKind = iota + 1
	groupKitchen
	groupCustomer
)

// ParseGroup validates a group name received from a client.
func ParseGroup(name string) (Group, error) {
	_, _, err := parseGroup(Group(name))
	if err != nil {
		return "", err
	}
	return Group(name), nil
}

func parseGroup(g Group) (groupKind, uuid.UUID, error) {
	parts := strings.Split(string(g), ":")
	if len(parts) != 3 {
		return 0, uuid.Nil, fmt.Errorf("%w: malformed group %q", ErrJoinForbidden, g)
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return 0, uuid.Nil, fmt.Errorf("%w: malformed group %q", ErrJoinForbidden, g)
	}

	switch {
	case parts[0] == "tenant" && parts[2] == "orders":
		return groupOrders, id, nil
	case parts[0] == "tenant" && parts[2] == "kitchen":
		return groupKitchen, id, nil
	case parts[0] == "customer" && parts[2] == "orders":
		return groupCustomer, id, nil
	}
	return 0, uuid.Nil, fmt.Errorf("%w: unknown group %q", ErrJoinForbidden, g)
}

func authorizeJoin(p *auth.Principal, g Group) error {
	if p == nil {
		return fmt.Errorf("%w: %w", ErrJoinForbidden, auth.ErrUnauthenticated)
	}

	kind, id, err := parseGroup(g)
	if err != nil {
		return err
	}

	switch kind {
	case groupOrders:
		if !p.Role.IsStaff() || !canActOn(p, id) {
			return fmt.Errorf("%w: %s", ErrJoinForbidden, g)
		}
	case groupKitchen:
		if !auth.HasPermission(p.Role, auth.PermKitchenJoin) || !canActOn(p, id) {
			return fmt.Errorf("%w: %s", ErrJoinForbidden, g)
		}
	case groupCustomer:
		if p.UserID != id {
			return fmt.Errorf("%w: %s", ErrJoinForbidden, g)
		}
	}
	return nil
}

func canActOn(p *auth.Principal, tenantID uuid.UUID) bool {
	if bound, ok := p.BoundTenant(); ok {
		return bound == tenantID
	}
	return p.IsSuperAdmin()
}
