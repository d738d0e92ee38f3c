package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/tableside/internal/models"
)

// Sentinel errors for tenant store operations
var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantAlreadyExists = errors.New("tenant already exists")
	ErrSlugTaken           = errors.New("share slug already in use")
)

// TenantStore defines the interface for tenant storage operations.
// Lookups by public identifier return tenants in any status; callers decide
// which statuses are resolvable.
type TenantStore interface {
	// Create creates a new tenant.
	// Returns ErrTenantAlreadyExists if the id, subdomain, slug or domain is taken.
	Create(ctx context.Context, tenant *models.Tenant) error

	// Get retrieves a tenant by canonical id.
	// Returns ErrTenantNotFound if the tenant doesn't exist.
	Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)

	// GetBySubdomain retrieves a tenant by its subdomain.
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)

	// GetByShareSlug retrieves a tenant by its current share slug.
	GetByShareSlug(ctx context.Context, slug string) (*models.Tenant, error)

	// GetByDomain retrieves a tenant by its custom domain.
	GetByDomain(ctx context.Context, domain string) (*models.Tenant, error)

	// UpdateShareSlug atomically replaces the tenant's share slug. The previous
	// slug stops resolving as soon as this returns.
	// Returns ErrSlugTaken if another tenant holds the slug.
	UpdateShareSlug(ctx context.Context, tenantID uuid.UUID, slug string) error

	// Delete removes the tenant and cascades to its menu and orders.
	Delete(ctx context.Context, tenantID uuid.UUID) error
}
