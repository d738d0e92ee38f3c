package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/store"
)

// TenantStore implements store.TenantStore using in-memory storage.
// This implementation is for testing and local development only - data is lost on restart.
type TenantStore struct {
	mu sync.RWMutex

	tenants     map[uuid.UUID]*models.Tenant // tenant_id -> Tenant
	bySubdomain map[string]uuid.UUID
	bySlug      map[string]uuid.UUID
	byDomain    map[string]uuid.UUID

	dependents []TenantPurger
}

// TenantPurger is a store holding tenant-owned rows that must go when the
// tenant is deleted. MenuStore and OrderStore implement it.
type TenantPurger interface {
	PurgeTenant(tenantID uuid.UUID)
}

// NewTenantStore creates a new in-memory tenant store. Delete cascades into
// the given dependents.
func NewTenantStore(dependents ...TenantPurger) *TenantStore {
	return &TenantStore{
		tenants:     make(map[uuid.UUID]*models.Tenant),
		bySubdomain: make(map[string]uuid.UUID),
		bySlug:      make(map[string]uuid.UUID),
		byDomain:    make(map[string]uuid.UUID),
		dependents:  dependents,
	}
}

// Create creates a new tenant in memory.
func (s *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[tenant.ID]; exists {
		return store.ErrTenantAlreadyExists
	}
	if _, exists := s.bySubdomain[tenant.Subdomain]; exists {
		return store.ErrTenantAlreadyExists
	}
	if tenant.ShareSlug != nil {
		if _, exists := s.bySlug[*tenant.ShareSlug]; exists {
			return store.ErrTenantAlreadyExists
		}
	}
	if tenant.CustomDomain != nil {
		if _, exists := s.byDomain[*tenant.CustomDomain]; exists {
			return store.ErrTenantAlreadyExists
		}
	}

	clone := cloneTenant(tenant)
	s.tenants[tenant.ID] = clone
	s.bySubdomain[clone.Subdomain] = clone.ID
	if clone.ShareSlug != nil {
		s.bySlug[*clone.ShareSlug] = clone.ID
	}
	if clone.CustomDomain != nil {
		s.byDomain[*clone.CustomDomain] = clone.ID
	}

	return nil
}

// Get retrieves a tenant by ID.
func (s *TenantStore) Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getLocked(tenantID)
}

// GetBySubdomain retrieves a tenant by subdomain.
func (s *TenantStore) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySubdomain[subdomain]
	if !ok {
		return nil, store.ErrTenantNotFound
	}
	return s.getLocked(id)
}

// GetByShareSlug retrieves a tenant by share slug.
func (s *TenantStore) GetByShareSlug(ctx context.Context, slug string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySlug[slug]
	if !ok {
		return nil, store.ErrTenantNotFound
	}
	return s.getLocked(id)
}

// GetByDomain retrieves a tenant by custom domain.
func (s *TenantStore) GetByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDomain[domain]
	if !ok {
		return nil, store.ErrTenantNotFound
	}
	return s.getLocked(id)
}

// UpdateShareSlug swaps the slug index entry under a single lock so the old
// slug never resolves after this returns.
func (s *TenantStore) UpdateShareSlug(ctx context.Context, tenantID uuid.UUID, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, ok := s.tenants[tenantID]
	if !ok {
		return store.ErrTenantNotFound
	}
	if owner, taken := s.bySlug[slug]; taken && owner != tenantID {
		return store.ErrSlugTaken
	}

	if tenant.ShareSlug != nil {
		delete(s.bySlug, *tenant.ShareSlug)
	}
	newSlug := slug
	tenant.ShareSlug = &newSlug
	tenant.UpdatedAt = time.Now()
	s.bySlug[slug] = tenantID

	return nil
}

// Delete deletes a tenant by ID and purges its rows from the dependent stores.
func (s *TenantStore) Delete(ctx context.Context, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, ok := s.tenants[tenantID]
	if !ok {
		return store.ErrTenantNotFound
	}

	delete(s.bySubdomain, tenant.Subdomain)
	if tenant.ShareSlug != nil {
		delete(s.bySlug, *tenant.ShareSlug)
	}
	if tenant.CustomDomain != nil {
		delete(s.byDomain, *tenant.CustomDomain)
	}
	delete(s.tenants, tenantID)

	for _, d := range s.dependents {
		d.PurgeTenant(tenantID)
	}

	return nil
}

func (s *TenantStore) getLocked(id uuid.UUID) (*models.Tenant, error) {
	tenant, ok := s.tenants[id]
	if !ok {
		return nil, store.ErrTenantNotFound
	}
	return cloneTenant(tenant), nil
}

// cloneTenant copies a tenant to avoid external modifications.
func cloneTenant(t *models.Tenant) *models.Tenant {
	clone := *t
	if t.ShareSlug != nil {
		slug := *t.ShareSlug
		clone.ShareSlug = &slug
	}
	if t.CustomDomain != nil {
		domain := *t.CustomDomain
		clone.CustomDomain = &domain
	}
	if t.Settings != nil {
		clone.Settings = make(map[string]any, len(t.Settings))
		for k, v := range t.Settings {
			clone.Settings[k] = v
		}
	}
	return &clone
}
