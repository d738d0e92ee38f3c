package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/tableside/internal/models"
)

// Sentinel errors for menu store operations
var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrMenuItemNotFound = errors.New("menu item not found")
)

// MenuStore defines the interface for menu storage operations.
// Every method is scoped by tenantID; a row owned by another tenant is
// reported as not found.
type MenuStore interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, tenantID, categoryID uuid.UUID) error
	// ListCategories returns active categories ordered by sort order then name.
	ListCategories(ctx context.Context, tenantID uuid.UUID) ([]models.Category, error)

	// CreateItem stores the item together with its variants and modifiers.
	CreateItem(ctx context.Context, item *models.MenuItem) error

	// UpdateItem replaces the item's fields, variants and modifiers.
	UpdateItem(ctx context.Context, item *models.MenuItem) error

	// GetItem returns the item with variants and modifiers, regardless of its
	// active flag.
	GetItem(ctx context.Context, tenantID, itemID uuid.UUID) (*models.MenuItem, error)

	// ListItems returns active items, optionally restricted to one category.
	ListItems(ctx context.Context, tenantID uuid.UUID, categoryID *uuid.UUID) ([]models.MenuItem, error)

	// SetAvailability toggles the item's Available flag.
	SetAvailability(ctx context.Context, tenantID, itemID uuid.UUID, available bool) error
}
