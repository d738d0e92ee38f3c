package models

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus is the billing/lifecycle state of a tenant.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "ACTIVE"
	TenantStatusTrial     TenantStatus = "TRIAL"
	TenantStatusSuspended TenantStatus = "SUSPENDED"
	TenantStatusCancelled TenantStatus = "CANCELLED"
)

// Resolvable reports whether a tenant in this status may be addressed by
// subdomain, share slug or custom domain.
func (s TenantStatus) Resolvable() bool {
	return s == TenantStatusActive || s == TenantStatusTrial
}

// Tenant represents a restaurant account. All menu and order data is owned by
// exactly one tenant.
type Tenant struct {
	ID           uuid.UUID      `json:"id"` // UUIDv7, immutable
	Name         string         `json:"name"`
	Subdomain    string         `json:"subdomain"`           // globally unique
	ShareSlug    *string        `json:"shareSlug,omitempty"` // globally unique when set, regenerable
	CustomDomain *string        `json:"customDomain,omitempty"`
	Status       TenantStatus   `json:"status"`
	Settings     map[string]any `json:"settings,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
