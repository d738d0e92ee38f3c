package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/realtime"
	"github.com/wolfeidau/tableside/internal/store"
	"github.com/wolfeidau/tableside/internal/util"
)

// ErrInvalidInput is returned for menu writes that fail validation.
var ErrInvalidInput = errors.New("invalid menu input")

// CategoryInput is the writable part of a category.
type CategoryInput struct {
	Name      string `json:"name" yaml:"name" validate:"max=120"`
	SortOrder int    `json:"sortOrder" yaml:"sortOrder"`
	Active    *bool  `json:"active,omitempty" yaml:"active,omitempty"`
}

// VariantInput describes a variant. A nil ID creates a new variant.
type VariantInput struct {
	ID            *uuid.UUID   `json:"id,omitempty" yaml:"id,omitempty"`
	Name          string       `json:"name" yaml:"name" validate:"required,max=120"`
	PriceModifier models.Money `json:"priceModifier" yaml:"priceModifier"`
	Active        *bool        `json:"active,omitempty" yaml:"active,omitempty"`
}

// ModifierInput describes a modifier. A nil ID creates a new modifier.
type ModifierInput struct {
	ID     *uuid.UUID   `json:"id,omitempty" yaml:"id,omitempty"`
	Name   string       `json:"name" yaml:"name" validate:"required,max=120"`
	Price  models.Money `json:"price" yaml:"price" validate:"gte=0"`
	Active *bool        `json:"active,omitempty" yaml:"active,omitempty"`
}

// ItemInput is the writable part of a menu item. Variants and modifiers
// replace the existing sets. Omitted Available and Active flags keep their
// current values; a deleted item comes back with Active set to true.
type ItemInput struct {
	CategoryID  *uuid.UUID      `json:"categoryId,omitempty" yaml:"categoryId,omitempty"`
	Name        string          `json:"name" yaml:"name" validate:"max=200"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty" validate:"max=2000"`
	BasePrice   models.Money    `json:"basePrice" yaml:"basePrice" validate:"gte=0"`
	Available   *bool           `json:"available,omitempty" yaml:"available,omitempty"`
	Active      *bool           `json:"active,omitempty" yaml:"active,omitempty"`
	Variants    []VariantInput  `json:"variants,omitempty" yaml:"variants,omitempty" validate:"max=50,dive"`
	Modifiers   []ModifierInput `json:"modifiers,omitempty" yaml:"modifiers,omitempty" validate:"max=50,dive"`
}

// Service applies menu writes. Every successful write invalidates the
// tenant's cached menu and announces menu.updated.
type Service struct {
	menus  store.MenuStore
	cache  *Cache
	events realtime.Broadcaster
}

// NewService creates a menu service.
func NewService(menus store.MenuStore, cache *Cache, events realtime.Broadcaster) *Service {
	if events == nil {
		events = realtime.NopBroadcaster{}
	}
	return &Service{menus: menus, cache: cache, events: events}
}

func (s *Service) CreateCategory(ctx context.Context, tenantID uuid.UUID, in CategoryInput) (*models.Category, error) {
	if err := validateCategory(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &models.Category{
		ID:        uuid.Must(uuid.NewV7()),
		TenantID:  tenantID,
		Name:      strings.TrimSpace(in.Name),
		SortOrder: in.SortOrder,
		Active:    boolOr(in.Active, true),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.menus.CreateCategory(ctx, c); err != nil {
		return nil, err
	}

	s.changed(ctx, tenantID, "category", c.ID, "created")
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, tenantID, categoryID uuid.UUID, in CategoryInput) (*models.Category, error) {
	if err := validateCategory(in); err != nil {
		return nil, err
	}

	c := &models.Category{
		ID:        categoryID,
		TenantID:  tenantID,
		Name:      strings.TrimSpace(in.Name),
		SortOrder: in.SortOrder,
		Active:    boolOr(in.Active, true),
	}
	if err := s.menus.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}

	s.changed(ctx, tenantID, "category", c.ID, "updated")
	return c, nil
}

// DeleteCategory removes the category; its items stay on the menu without a
// category.
func (s *Service) DeleteCategory(ctx context.Context, tenantID, categoryID uuid.UUID) error {
	if err := s.menus.DeleteCategory(ctx, tenantID, categoryID); err != nil {
		return err
	}

	s.changed(ctx, tenantID, "category", categoryID, "deleted")
	return nil
}

func (s *Service) CreateItem(ctx context.Context, tenantID uuid.UUID, in ItemInput) (*models.MenuItem, error) {
	if err := validateItem(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	item := &models.MenuItem{
		ID:        uuid.Must(uuid.NewV7()),
		TenantID:  tenantID,
		Available: true,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyItemInput(item, in)

	if err := s.menus.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.changed(ctx, tenantID, "item", item.ID, "created")
	return item, nil
}

// UpdateItem replaces the item's fields. Orders already placed keep the
// prices they were created with.
func (s *Service) UpdateItem(ctx context.Context, tenantID, itemID uuid.UUID, in ItemInput) (*models.MenuItem, error) {
	if err := validateItem(in); err != nil {
		return nil, err
	}

	item, err := s.menus.GetItem(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	applyItemInput(item, in)

	if err := s.menus.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	s.changed(ctx, tenantID, "item", item.ID, "updated")
	return item, nil
}

// DeleteItem soft deletes the item so historical order lines keep a valid
// reference.
func (s *Service) DeleteItem(ctx context.Context, tenantID, itemID uuid.UUID) error {
	item, err := s.menus.GetItem(ctx, tenantID, itemID)
	if err != nil {
		return err
	}
	item.Active = false

	if err := s.menus.UpdateItem(ctx, item); err != nil {
		return err
	}

	s.changed(ctx, tenantID, "item", itemID, "deleted")
	return nil
}

// SetAvailability toggles whether the item can be ordered today.
func (s *Service) SetAvailability(ctx context.Context, tenantID, itemID uuid.UUID, available bool) error {
	if err := s.menus.SetAvailability(ctx, tenantID, itemID, available); err != nil {
		return err
	}

	action := "unavailable"
	if available {
		action = "available"
	}
	s.changed(ctx, tenantID, "item", itemID, action)
	return nil
}

func (s *Service) changed(ctx context.Context, tenantID uuid.UUID, entity string, id uuid.UUID, action string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, tenantID)
	}
	s.events.Publish(ctx, realtime.MenuUpdated(tenantID, entity, id, action))

	zerolog.Ctx(ctx).Debug().
		Stringer("tenant_id", tenantID).
		Str("entity", entity).
		Stringer("id", id).
		Str("action", action).
		Msg("menu changed")
}

func applyItemInput(item *models.MenuItem, in ItemInput) {
	item.CategoryID = in.CategoryID
	item.Name = strings.TrimSpace(in.Name)
	item.Description = in.Description
	item.BasePrice = in.BasePrice
	item.Available = boolOr(in.Available, item.Available)
	item.Active = boolOr(in.Active, item.Active)

	item.Variants = make([]models.MenuItemVariant, 0, len(in.Variants))
	for _, v := range in.Variants {
		item.Variants = append(item.Variants, models.MenuItemVariant{
			ID:            idOrNew(v.ID),
			MenuItemID:    item.ID,
			Name:          strings.TrimSpace(v.Name),
			PriceModifier: v.PriceModifier,
			Active:        boolOr(v.Active, true),
		})
	}

	item.Modifiers = make([]models.Modifier, 0, len(in.Modifiers))
	for _, m := range in.Modifiers {
		item.Modifiers = append(item.Modifiers, models.Modifier{
			ID:         idOrNew(m.ID),
			MenuItemID: item.ID,
			Name:       strings.TrimSpace(m.Name),
			Price:      m.Price,
			Active:     boolOr(m.Active, true),
		})
	}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return nil
}

func validateCategory(in CategoryInput) error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	if err := util.ValidateStruct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

func validateItem(in ItemInput) error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	if err := util.ValidateStruct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func idOrNew(id *uuid.UUID) uuid.UUID {
	if id != nil {
		return *id
	}
	return uuid.Must(uuid.NewV7())
}
