package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups menu items for display.
type Category struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sortOrder"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MenuItem is a priced, tenant-owned dish.
//
// Available is the "in stock today" toggle and is independent of Active, which
// is the soft-delete flag.
type MenuItem struct {
	ID          uuid.UUID         `json:"id"`
	TenantID    uuid.UUID         `json:"tenantId"`
	CategoryID  *uuid.UUID        `json:"categoryId,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	BasePrice   Money             `json:"basePrice"`
	Available   bool              `json:"available"`
	Active      bool              `json:"active"`
	Variants    []MenuItemVariant `json:"variants,omitempty"`
	Modifiers   []Modifier        `json:"modifiers,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Variant returns the variant with the given id, if present.
func (m *MenuItem) Variant(id uuid.UUID) (*MenuItemVariant, bool) {
	for i := range m.Variants {
		if m.Variants[i].ID == id {
			return &m.Variants[i], true
		}
	}
	return nil, false
}

// Modifier returns the modifier with the given id, if present.
func (m *MenuItem) Modifier(id uuid.UUID) (*Modifier, bool) {
	for i := range m.Modifiers {
		if m.Modifiers[i].ID == id {
			return &m.Modifiers[i], true
		}
	}
	return nil, false
}

// MenuItemVariant is a size or style option whose PriceModifier (which may be
// negative) is added to the item's base price.
type MenuItemVariant struct {
	ID            uuid.UUID `json:"id"`
	MenuItemID    uuid.UUID `json:"menuItemId"`
	Name          string    `json:"name"`
	PriceModifier Money     `json:"priceModifier"`
	Active        bool      `json:"active"`
}

// Modifier is an optional add-on such as extra cheese.
type Modifier struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menuItemId"`
	Name       string    `json:"name"`
	Price      Money     `json:"price"`
	Active     bool      `json:"active"`
}

// CategoryWithItems is one section of the full menu.
type CategoryWithItems struct {
	Category
	Items []MenuItem `json:"items"`
}
