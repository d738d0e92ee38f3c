// Package bootstrap seeds tenants and menus from a fixtures file so a fresh
// environment can take orders.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tableside/internal/menu"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/store"
)

// Bootstrap creates the tenants in fixtures with their menus. A tenant whose
// subdomain already exists is skipped with its data preserved, so seeding is
// safe to repeat on every start.
func Bootstrap(ctx context.Context, cfg Config, fixtures *Fixtures) (*Resources, error) {
	if cfg.Tenants == nil || cfg.TenantStore == nil || cfg.Menus == nil {
		return nil, errors.New("tenant service, tenant store and menu service are required")
	}

	resources := &Resources{TenantIDs: make(map[string]string)}

	for _, tf := range fixtures.Tenants {
		subdomain := strings.ToLower(strings.TrimSpace(tf.Subdomain))

		existing, err := cfg.TenantStore.GetBySubdomain(ctx, subdomain)
		if err == nil {
			resources.TenantIDs[subdomain] = existing.ID.String()
			resources.Skipped = append(resources.Skipped, subdomain)
			continue
		}
		if !errors.Is(err, store.ErrTenantNotFound) {
			return nil, fmt.Errorf("failed to look up tenant %s: %w", subdomain, err)
		}

		tenantID, err := seedTenant(ctx, cfg, tf)
		if err != nil {
			return nil, fmt.Errorf("failed to seed tenant %s: %w", subdomain, err)
		}
		resources.TenantIDs[subdomain] = tenantID.String()
	}

	return resources, nil
}

func seedTenant(ctx context.Context, cfg Config, tf TenantFixture) (uuid.UUID, error) {
	t := &models.Tenant{
		Name:      tf.Name,
		Subdomain: tf.Subdomain,
		Status:    tf.Status,
	}
	if tf.CustomDomain != "" {
		domain := strings.ToLower(tf.CustomDomain)
		t.CustomDomain = &domain
	}

	if err := cfg.Tenants.Create(ctx, t); err != nil {
		return uuid.Nil, err
	}

	items := 0
	for _, cf := range tf.Categories {
		category, err := cfg.Menus.CreateCategory(ctx, t.ID, cf.CategoryInput)
		if err != nil {
			return uuid.Nil, fmt.Errorf("category %q: %w", cf.Name, err)
		}
		if err := createItems(ctx, cfg.Menus, t.ID, &category.ID, cf.Items); err != nil {
			return uuid.Nil, err
		}
		items += len(cf.Items)
	}

	if err := createItems(ctx, cfg.Menus, t.ID, nil, tf.Items); err != nil {
		return uuid.Nil, err
	}
	items += len(tf.Items)

	log.Info().
		Str("subdomain", t.Subdomain).
		Stringer("tenant_id", t.ID).
		Int("categories", len(tf.Categories)).
		Int("items", items).
		Msg("seeded tenant")

	return t.ID, nil
}

func createItems(ctx context.Context, menus *menu.Service, tenantID uuid.UUID, categoryID *uuid.UUID, items []menu.ItemInput) error {
	for _, in := range items {
		in.CategoryID = categoryID
		if _, err := menus.CreateItem(ctx, tenantID, in); err != nil {
			return fmt.Errorf("item %q: %w", in.Name, err)
		}
	}
	return nil
}
