package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfeidau/tableside/internal/store"
)

// uniqueConstraints names the store error for each unique index in the
// schema. Keep in step with migrations/.
var uniqueConstraints = map[string]error{
	"orders_order_number_key":   store.ErrOrderNumberTaken,
	"orders_idempotency_key":    store.ErrIdempotencyReused,
	"tenants_share_slug_key":    store.ErrSlugTaken,
	"tenants_pkey":              store.ErrTenantAlreadyExists,
	"tenants_subdomain_key":     store.ErrTenantAlreadyExists,
	"tenants_custom_domain_key": store.ErrTenantAlreadyExists,
}

// foreignKeys names the missing parent for each foreign key. Anything not
// listed hangs off tenants.
var foreignKeys = map[string]error{
	"menu_items_category_fkey":  store.ErrCategoryNotFound,
	"order_items_order_id_fkey": store.ErrOrderNotFound,
}

// mapPostgresError turns constraint violations into store sentinels and
// labels the remaining server errors by class. Non-postgres errors pass
// through unchanged.
func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return err
	}

	switch {
	case pgErr.Code == pgerrcode.UniqueViolation:
		if sentinel, ok := uniqueConstraints[pgErr.ConstraintName]; ok {
			return sentinel
		}
		return fmt.Errorf("unique constraint %s violated: %w", pgErr.ConstraintName, err)

	case pgErr.Code == pgerrcode.ForeignKeyViolation:
		if sentinel, ok := foreignKeys[pgErr.ConstraintName]; ok {
			return fmt.Errorf("%w: %s", sentinel, pgErr.Detail)
		}
		return fmt.Errorf("%w: %s", store.ErrTenantNotFound, pgErr.Detail)

	case pgErr.Code == pgerrcode.CheckViolation:
		return fmt.Errorf("check constraint %s violated: %w", pgErr.ConstraintName, err)

	case pgErr.Code == pgerrcode.QueryCanceled:
		return fmt.Errorf("query canceled: %w", err)

	case pgerrcode.IsTransactionRollback(pgErr.Code):
		return fmt.Errorf("transaction rolled back (retryable): %w", err)

	case pgerrcode.IsConnectionException(pgErr.Code),
		pgerrcode.IsOperatorIntervention(pgErr.Code),
		pgerrcode.IsInsufficientResources(pgErr.Code):
		return fmt.Errorf("database unavailable: %w", err)
	}

	return fmt.Errorf("postgres error %s: %s: %w", pgErr.Code, pgErr.Message, err)
}
