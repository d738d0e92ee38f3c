package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/store"
)

// MenuStore implements store.MenuStore using in-memory storage.
type MenuStore struct {
	mu sync.RWMutex

	categories map[uuid.UUID]*models.Category // category_id -> Category
	items      map[uuid.UUID]*models.MenuItem // item_id -> MenuItem
}

// NewMenuStore creates a new in-memory menu store.
func NewMenuStore() *MenuStore {
	return &MenuStore{
		categories: make(map[uuid.UUID]*models.Category),
		items:      make(map[uuid.UUID]*models.MenuItem),
	}
}

func (s *MenuStore) CreateCategory(ctx context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *category
	s.categories[category.ID] = &clone
	return nil
}

func (s *MenuStore) UpdateCategory(ctx context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok || existing.TenantID != category.TenantID {
		return store.ErrCategoryNotFound
	}

	category.CreatedAt = existing.CreatedAt
	category.UpdatedAt = time.Now()
	clone := *category
	s.categories[category.ID] = &clone
	return nil
}

func (s *MenuStore) DeleteCategory(ctx context.Context, tenantID, categoryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[categoryID]
	if !ok || existing.TenantID != tenantID {
		return store.ErrCategoryNotFound
	}

	delete(s.categories, categoryID)

	// items keep existing but drop the dangling reference, matching ON DELETE SET NULL
	for _, item := range s.items {
		if item.CategoryID != nil && *item.CategoryID == categoryID {
			item.CategoryID = nil
		}
	}
	return nil
}

func (s *MenuStore) ListCategories(ctx context.Context, tenantID uuid.UUID) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.Category{}
	for _, c := range s.categories {
		if c.TenantID == tenantID && c.Active {
			result = append(result, *c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *MenuStore) CreateItem(ctx context.Context, item *models.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.CategoryID != nil {
		c, ok := s.categories[*item.CategoryID]
		if !ok || c.TenantID != item.TenantID {
			return store.ErrCategoryNotFound
		}
	}

	s.items[item.ID] = cloneMenuItem(item)
	return nil
}

func (s *MenuStore) UpdateItem(ctx context.Context, item *models.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[item.ID]
	if !ok || existing.TenantID != item.TenantID {
		return store.ErrMenuItemNotFound
	}
	if item.CategoryID != nil {
		c, ok := s.categories[*item.CategoryID]
		if !ok || c.TenantID != item.TenantID {
			return store.ErrCategoryNotFound
		}
	}

	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = time.Now()
	s.items[item.ID] = cloneMenuItem(item)
	return nil
}

func (s *MenuStore) GetItem(ctx context.Context, tenantID, itemID uuid.UUID) (*models.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok || item.TenantID != tenantID {
		return nil, store.ErrMenuItemNotFound
	}
	return cloneMenuItem(item), nil
}

func (s *MenuStore) ListItems(ctx context.Context, tenantID uuid.UUID, categoryID *uuid.UUID) ([]models.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.MenuItem{}
	for _, item := range s.items {
		if item.TenantID != tenantID || !item.Active {
			continue
		}
		if categoryID != nil && (item.CategoryID == nil || *item.CategoryID != *categoryID) {
			continue
		}
		result = append(result, *cloneMenuItem(item))
	}

	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}

func (s *MenuStore) SetAvailability(ctx context.Context, tenantID, itemID uuid.UUID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok || item.TenantID != tenantID {
		return store.ErrMenuItemNotFound
	}

	item.Available = available
	item.UpdatedAt = time.Now()
	return nil
}

// PurgeTenant drops the tenant's categories and items.
func (s *MenuStore) PurgeTenant(tenantID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.categories {
		if c.TenantID == tenantID {
			delete(s.categories, id)
		}
	}
	for id, item := range s.items {
		if item.TenantID == tenantID {
			delete(s.items, id)
		}
	}
}

func cloneMenuItem(item *models.MenuItem) *models.MenuItem {
	clone := *item
	if item.CategoryID != nil {
		id := *item.CategoryID
		clone.CategoryID = &id
	}
	clone.Variants = append([]models.MenuItemVariant(nil), item.Variants...)
	clone.Modifiers = append([]models.Modifier(nil), item.Modifiers...)
	return &clone
}
