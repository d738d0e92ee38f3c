package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role is the caller's role within a tenant (or platform-wide for super admins).
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleStaff      Role = "staff"
	RoleKitchen    Role = "kitchen"
	RoleCustomer   Role = "customer"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleStaff, RoleKitchen, RoleCustomer:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsStaff reports whether the role belongs to restaurant staff.
func (r Role) IsStaff() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleStaff, RoleKitchen:
		return true
	}
	return false
}

// Principal represents an authenticated caller from a verified token.
// TenantID is nil for platform super admins and for customers who are not
// bound to a single restaurant.
type Principal struct {
	UserID   uuid.UUID
	TenantID *uuid.UUID
	Role     Role
}

// BoundTenant returns the tenant bound to the credential, if any.
func (p *Principal) BoundTenant() (uuid.UUID, bool) {
	if p == nil || p.TenantID == nil {
		return uuid.Nil, false
	}
	return *p.TenantID, true
}

// IsSuperAdmin reports whether p may act on any tenant.
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && p.Role == RoleSuperAdmin
}

type contextKey int

const (
	principalContextKey contextKey = iota
)

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext extracts the authenticated principal from the request context.
// Returns nil if no principal is present (anonymous request).
func PrincipalFromContext(ctx context.Context) *Principal {
	principal, _ := ctx.Value(principalContextKey).(*Principal)
	return principal
}
