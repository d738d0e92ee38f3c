package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/store"
)

// Prices are NUMERIC(12,2) in the database and cents in Go. Writes cast the
// decimal string form, reads select price*100 as bigint.
const itemColumns = `item_id, tenant_id, category_id, name, description, (base_price * 100)::bigint, available, active, created_at, updated_at`

// MenuStore implements store.MenuStore using PostgreSQL.
type MenuStore struct {
	pool *pgxpool.Pool
	cfg  *Config
}

// NewMenuStore creates a new PostgreSQL-backed menu store.
func NewMenuStore(pool *pgxpool.Pool, cfg *Config) *MenuStore {
	return &MenuStore{
		pool: pool,
		cfg:  cfg,
	}
}

func (s *MenuStore) CreateCategory(ctx context.Context, c *models.Category) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO categories (category_id, tenant_id, name, sort_order, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.TenantID, c.Name, c.SortOrder, c.Active, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", mapPostgresError(err))
	}
	return nil
}

func (s *MenuStore) UpdateCategory(ctx context.Context, c *models.Category) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	c.UpdatedAt = time.Now()
	result, err := s.pool.Exec(ctx, `
		UPDATE categories SET name = $3, sort_order = $4, active = $5, updated_at = $6
		WHERE category_id = $1 AND tenant_id = $2
	`, c.ID, c.TenantID, c.Name, c.SortOrder, c.Active, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrCategoryNotFound
	}
	return nil
}

func (s *MenuStore) DeleteCategory(ctx context.Context, tenantID, categoryID uuid.UUID) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	result, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE category_id = $1 AND tenant_id = $2`, categoryID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrCategoryNotFound
	}
	return nil
}

func (s *MenuStore) ListCategories(ctx context.Context, tenantID uuid.UUID) ([]models.Category, error) {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT category_id, tenant_id, name, sort_order, active, created_at, updated_at
		FROM categories
		WHERE tenant_id = $1 AND active
		ORDER BY sort_order, name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", mapPostgresError(err))
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.SortOrder, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// CreateItem inserts the item, its variants and its modifiers in one transaction.
func (s *MenuStore) CreateItem(ctx context.Context, item *models.MenuItem) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO menu_items (item_id, tenant_id, category_id, name, description, base_price, available, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10)
		`, item.ID, item.TenantID, item.CategoryID, item.Name, item.Description, item.BasePrice.String(),
			item.Available, item.Active, item.CreatedAt, item.UpdatedAt)
		if err != nil {
			return err
		}
		return insertItemOptions(ctx, tx, item)
	})
	if err != nil {
		return fmt.Errorf("failed to create menu item: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("tenant_id", item.TenantID.String()).
		Str("item_id", item.ID.String()).
		Msg("Created menu item")

	return nil
}

// UpdateItem rewrites the item row and replaces its variants and modifiers.
func (s *MenuStore) UpdateItem(ctx context.Context, item *models.MenuItem) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	item.UpdatedAt = time.Now()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE menu_items SET
				category_id = $3, name = $4, description = $5, base_price = $6::numeric,
				available = $7, active = $8, updated_at = $9
			WHERE item_id = $1 AND tenant_id = $2
		`, item.ID, item.TenantID, item.CategoryID, item.Name, item.Description, item.BasePrice.String(),
			item.Available, item.Active, item.UpdatedAt)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return store.ErrMenuItemNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM menu_item_variants WHERE item_id = $1`, item.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM menu_item_modifiers WHERE item_id = $1`, item.ID); err != nil {
			return err
		}
		return insertItemOptions(ctx, tx, item)
	})
	if err != nil {
		if errors.Is(err, store.ErrMenuItemNotFound) {
			return err
		}
		return fmt.Errorf("failed to update menu item: %w", mapPostgresError(err))
	}
	return nil
}

func insertItemOptions(ctx context.Context, tx pgx.Tx, item *models.MenuItem) error {
	batch := &pgx.Batch{}
	for i, v := range item.Variants {
		batch.Queue(`
			INSERT INTO menu_item_variants (variant_id, item_id, name, price_modifier, active, position)
			VALUES ($1, $2, $3, $4::numeric, $5, $6)
		`, v.ID, item.ID, v.Name, v.PriceModifier.String(), v.Active, i)
	}
	for i, m := range item.Modifiers {
		batch.Queue(`
			INSERT INTO menu_item_modifiers (modifier_id, item_id, name, price, active, position)
			VALUES ($1, $2, $3, $4::numeric, $5, $6)
		`, m.ID, item.ID, m.Name, m.Price.String(), m.Active, i)
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (s *MenuStore) GetItem(ctx context.Context, tenantID, itemID uuid.UUID) (*models.MenuItem, error) {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	item, err := scanItem(s.pool.QueryRow(ctx, `
		SELECT `+itemColumns+` FROM menu_items WHERE item_id = $1 AND tenant_id = $2
	`, itemID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("failed to get menu item: %w", mapPostgresError(err))
	}

	items := []models.MenuItem{*item}
	if err := s.loadOptions(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *MenuStore) ListItems(ctx context.Context, tenantID uuid.UUID, categoryID *uuid.UUID) ([]models.MenuItem, error) {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM menu_items
		WHERE tenant_id = $1 AND active AND ($2::uuid IS NULL OR category_id = $2)
		ORDER BY lower(name)
	`, tenantID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", mapPostgresError(err))
	}
	defer rows.Close()

	items := []models.MenuItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating menu items: %w", err)
	}

	if err := s.loadOptions(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *MenuStore) SetAvailability(ctx context.Context, tenantID, itemID uuid.UUID, available bool) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	result, err := s.pool.Exec(ctx, `
		UPDATE menu_items SET available = $3, updated_at = $4
		WHERE item_id = $1 AND tenant_id = $2
	`, itemID, tenantID, available, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set availability: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrMenuItemNotFound
	}
	return nil
}

// loadOptions fills variants and modifiers for items with two queries.
func (s *MenuStore) loadOptions(ctx context.Context, items []models.MenuItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		ids[i] = item.ID
		index[item.ID] = i
	}

	rows, err := s.pool.Query(ctx, `
		SELECT variant_id, item_id, name, (price_modifier * 100)::bigint, active
		FROM menu_item_variants
		WHERE item_id = ANY($1)
		ORDER BY item_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load variants: %w", mapPostgresError(err))
	}
	for rows.Next() {
		var (
			v     models.MenuItemVariant
			cents int64
		)
		if err := rows.Scan(&v.ID, &v.MenuItemID, &v.Name, &cents, &v.Active); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan variant: %w", err)
		}
		v.PriceModifier = models.Money(cents)
		i := index[v.MenuItemID]
		items[i].Variants = append(items[i].Variants, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating variants: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT modifier_id, item_id, name, (price * 100)::bigint, active
		FROM menu_item_modifiers
		WHERE item_id = ANY($1)
		ORDER BY item_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load modifiers: %w", mapPostgresError(err))
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m     models.Modifier
			cents int64
		)
		if err := rows.Scan(&m.ID, &m.MenuItemID, &m.Name, &cents, &m.Active); err != nil {
			return fmt.Errorf("failed to scan modifier: %w", err)
		}
		m.Price = models.Money(cents)
		i := index[m.MenuItemID]
		items[i].Modifiers = append(items[i].Modifiers, m)
	}
	return rows.Err()
}

func scanItem(row pgx.Row) (*models.MenuItem, error) {
	var (
		item  models.MenuItem
		cents int64
	)
	err := row.Scan(
		&item.ID,
		&item.TenantID,
		&item.CategoryID,
		&item.Name,
		&item.Description,
		&cents,
		&item.Available,
		&item.Active,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.BasePrice = models.Money(cents)
	return &item, nil
}
