package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrUnauthenticated  = errors.New("not authenticated")
	ErrPermissionDenied = errors.New("permission denied")
)

// Permission represents an authorized action
type Permission string

const (
	PermOrdersRead   Permission = "orders:read"
	PermOrdersWrite  Permission = "orders:write"
	PermMenuWrite    Permission = "menu:write"
	PermTenantManage Permission = "tenant:manage"
	PermTenantRemove Permission = "tenant:remove"
	PermKitchenJoin  Permission = "kitchen:join"
)

// RolePermissions maps roles to allowed permissions
var RolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {
		PermOrdersRead,
		PermOrdersWrite,
		PermMenuWrite,
		PermTenantManage,
		PermTenantRemove,
		PermKitchenJoin,
	},
	RoleAdmin: {
		PermOrdersRead,
		PermOrdersWrite,
		PermMenuWrite,
		PermTenantManage,
		PermKitchenJoin,
	},
	RoleManager: {
		PermOrdersRead,
		PermOrdersWrite,
		PermMenuWrite,
	},
	RoleStaff: {
		PermOrdersRead,
		PermOrdersWrite,
	},
	RoleKitchen: {
		PermOrdersRead,
		PermOrdersWrite,
		PermKitchenJoin,
	},
	RoleCustomer: {},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, perm Permission) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	return slices.Contains(perms, perm)
}

// RequirePermission checks authorization and returns an error if not authorized
func RequirePermission(ctx context.Context, perm Permission) error {
	principal := PrincipalFromContext(ctx)
	if principal == nil {
		return ErrUnauthenticated
	}

	if !HasPermission(principal.Role, perm) {
		return fmt.Errorf("%w: %s requires %s", ErrPermissionDenied, principal.Role, perm)
	}

	return nil
}
