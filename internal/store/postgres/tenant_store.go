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

const tenantColumns = `tenant_id, name, subdomain, share_slug, custom_domain, status, settings, created_at, updated_at`

// TenantStore implements store.TenantStore using PostgreSQL.
type TenantStore struct {
	pool *pgxpool.Pool
	cfg  *Config
}

// NewTenantStore creates a new PostgreSQL-backed tenant store.
// It shares the connection pool with other stores.
func NewTenantStore(pool *pgxpool.Pool, cfg *Config) *TenantStore {
	return &TenantStore{
		pool: pool,
		cfg:  cfg,
	}
}

// Create creates a new tenant in the database.
func (s *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	settings := tenant.Settings
	if settings == nil {
		settings = map[string]any{}
	}

	query := `
		INSERT INTO tenants (` + tenantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Subdomain,
		tenant.ShareSlug,
		tenant.CustomDomain,
		string(tenant.Status),
		settings,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		mapped := mapPostgresError(err)
		if errors.Is(mapped, store.ErrTenantAlreadyExists) || errors.Is(mapped, store.ErrSlugTaken) {
			return store.ErrTenantAlreadyExists
		}
		return fmt.Errorf("failed to create tenant: %w", mapped)
	}

	log.Debug().
		Str("tenant_id", tenant.ID.String()).
		Str("subdomain", tenant.Subdomain).
		Msg("Created tenant")

	return nil
}

// Get retrieves a tenant by ID.
func (s *TenantStore) Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	return s.getBy(ctx, "tenant_id", tenantID)
}

// GetBySubdomain retrieves a tenant by subdomain.
func (s *TenantStore) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	return s.getBy(ctx, "subdomain", subdomain)
}

// GetByShareSlug retrieves a tenant by its current share slug.
func (s *TenantStore) GetByShareSlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return s.getBy(ctx, "share_slug", slug)
}

// GetByDomain retrieves a tenant by custom domain.
func (s *TenantStore) GetByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	return s.getBy(ctx, "custom_domain", domain)
}

// getBy is only called with fixed column names, never caller input.
func (s *TenantStore) getBy(ctx context.Context, column string, value any) (*models.Tenant, error) {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE ` + column + ` = $1`

	tenant, err := scanTenant(s.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", mapPostgresError(err))
	}

	return tenant, nil
}

// UpdateShareSlug replaces the share slug in a single statement; the unique
// constraint guarantees the new slug maps to one tenant.
func (s *TenantStore) UpdateShareSlug(ctx context.Context, tenantID uuid.UUID, slug string) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	result, err := s.pool.Exec(ctx, `
		UPDATE tenants SET share_slug = $2, updated_at = $3
		WHERE tenant_id = $1
	`, tenantID, slug, time.Now())
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrTenantNotFound
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Msg("Regenerated share slug")

	return nil
}

// Delete deletes a tenant by ID.
// This will cascade-delete all menu and order rows via FK constraints.
func (s *TenantStore) Delete(ctx context.Context, tenantID uuid.UUID) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	result, err := s.pool.Exec(ctx, `DELETE FROM tenants WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrTenantNotFound
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Msg("Deleted tenant (and cascade-deleted menu and orders)")

	return nil
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var (
		t      models.Tenant
		status string
	)
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Subdomain,
		&t.ShareSlug,
		&t.CustomDomain,
		&status,
		&t.Settings,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = models.TenantStatus(status)
	return &t, nil
}
