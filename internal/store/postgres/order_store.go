package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/store"
)

const orderColumns = `
	order_id, tenant_id, order_number, customer_id, customer_name, customer_phone, customer_email,
	table_number, order_type, status, payment_status,
	(subtotal * 100)::bigint, (tax * 100)::bigint, (tip * 100)::bigint, (delivery_fee * 100)::bigint, (total * 100)::bigint,
	notes, idempotency_key, version,
	confirmed_at, preparing_at, ready_at, delivered_at, completed_at, cancelled_at, cancellation_reason,
	created_at, updated_at`

// OrderStore implements store.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
	cfg  *Config
}

// NewOrderStore creates a new PostgreSQL-backed order store.
func NewOrderStore(pool *pgxpool.Pool, cfg *Config) *OrderStore {
	return &OrderStore{
		pool: pool,
		cfg:  cfg,
	}
}

// Create inserts the order row and all item rows in one transaction.
func (s *OrderStore) Create(ctx context.Context, o *models.Order) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (
				order_id, tenant_id, order_number, customer_id, customer_name, customer_phone, customer_email,
				table_number, order_type, status, payment_status,
				subtotal, tax, tip, delivery_fee, total,
				notes, idempotency_key, version, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7,
				$8, $9, $10, $11,
				$12::numeric, $13::numeric, $14::numeric, $15::numeric, $16::numeric,
				$17, $18, $19, $20, $21
			)
		`,
			o.ID, o.TenantID, o.OrderNumber, o.CustomerID, o.CustomerName, o.CustomerPhone, o.CustomerEmail,
			o.TableNumber, string(o.Type), string(o.Status), string(o.PaymentStatus),
			o.Subtotal.String(), o.Tax.String(), o.Tip.String(), o.DeliveryFee.String(), o.Total.String(),
			o.Notes, o.IdempotencyKey, o.Version, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, item := range o.Items {
			modifierIDs := item.ModifierIDs
			if modifierIDs == nil {
				modifierIDs = []uuid.UUID{}
			}
			batch.Queue(`
				INSERT INTO order_items (
					order_item_id, order_id, menu_item_id, variant_id, modifier_ids, name,
					quantity, unit_price, line_total, special_instructions, position
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11)
			`, item.ID, o.ID, item.MenuItemID, item.VariantID, modifierIDs, item.Name,
				item.Quantity, item.UnitPrice.String(), item.LineTotal.String(), item.SpecialInstructions, i)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		mapped := mapPostgresError(err)
		if errors.Is(mapped, store.ErrOrderNumberTaken) || errors.Is(mapped, store.ErrIdempotencyReused) {
			return mapped
		}
		return fmt.Errorf("failed to create order: %w", mapped)
	}

	log.Debug().
		Str("tenant_id", o.TenantID.String()).
		Str("order_id", o.ID.String()).
		Str("order_number", o.OrderNumber).
		Int("items", len(o.Items)).
		Msg("Created order")

	return nil
}

func (s *OrderStore) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	return s.getOne(ctx, `order_id = $2`, tenantID, orderID)
}

func (s *OrderStore) GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Order, error) {
	return s.getOne(ctx, `order_number = $2`, tenantID, number)
}

func (s *OrderStore) GetByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*models.Order, error) {
	return s.getOne(ctx, `idempotency_key = $2`, tenantID, key)
}

func (s *OrderStore) getOne(ctx context.Context, predicate string, tenantID uuid.UUID, value any) (*models.Order, error) {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	o, err := scanOrder(s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND `+predicate,
		tenantID, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", mapPostgresError(err))
	}

	if err := s.loadItems(ctx, []*models.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderStore) List(ctx context.Context, tenantID uuid.UUID, filter store.OrderFilter) ([]*models.Order, int, error) {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	take := filter.Take
	if take <= 0 || take > s.cfg.OrderPageMax {
		take = s.cfg.OrderPageMax
	}

	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2) AND ($3 = '' OR order_type = $3)
	`, tenantID, string(filter.Status), string(filter.Type)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", mapPostgresError(err))
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2) AND ($3 = '' OR order_type = $3)
		ORDER BY created_at DESC, order_id DESC
		OFFSET $4 LIMIT $5
	`, tenantID, string(filter.Status), string(filter.Type), filter.Skip, take)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", mapPostgresError(err))
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating orders: %w", err)
	}

	if err := s.loadItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus is a compare-and-swap on (status, version). COALESCE keeps
// already-set timestamps untouched.
func (s *OrderStore) UpdateStatus(ctx context.Context, tenantID, orderID uuid.UUID, expectedStatus models.OrderStatus, expectedVersion int64, u store.StatusUpdate) (*models.Order, error) {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	o, err := scanOrder(s.pool.QueryRow(ctx, `
		UPDATE orders SET
			status = $5,
			payment_status = COALESCE(NULLIF($6, ''), payment_status),
			confirmed_at = COALESCE(confirmed_at, $7),
			preparing_at = COALESCE(preparing_at, $8),
			ready_at = COALESCE(ready_at, $9),
			delivered_at = COALESCE(delivered_at, $10),
			completed_at = COALESCE(completed_at, $11),
			cancelled_at = COALESCE(cancelled_at, $12),
			cancellation_reason = COALESCE(NULLIF($13, ''), cancellation_reason),
			updated_at = $14,
			version = version + 1
		WHERE tenant_id = $1 AND order_id = $2 AND status = $3 AND version = $4
		RETURNING `+orderColumns,
		tenantID, orderID, string(expectedStatus), expectedVersion,
		string(u.Status), string(u.PaymentStatus),
		u.ConfirmedAt, u.PreparingAt, u.ReadyAt, u.DeliveredAt, u.CompletedAt, u.CancelledAt,
		u.CancellationReason, u.UpdatedAt,
	))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to update order status: %w", mapPostgresError(err))
		}
		// distinguish a missing order from a lost race
		var exists bool
		if err := s.pool.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM orders WHERE tenant_id = $1 AND order_id = $2)
		`, tenantID, orderID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check order: %w", mapPostgresError(err))
		}
		if !exists {
			return nil, store.ErrOrderNotFound
		}
		return nil, store.ErrOrderConflict
	}

	if err := s.loadItems(ctx, []*models.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderStore) loadItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = o
		o.Items = []models.OrderItem{}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT order_item_id, order_id, menu_item_id, variant_id, modifier_ids, name, quantity,
			(unit_price * 100)::bigint, (line_total * 100)::bigint, special_instructions
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", mapPostgresError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item             models.OrderItem
			unitPrice, total int64
		)
		err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.VariantID, &item.ModifierIDs,
			&item.Name, &item.Quantity, &unitPrice, &total, &item.SpecialInstructions)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		item.UnitPrice = models.Money(unitPrice)
		item.LineTotal = models.Money(total)
		if o, ok := index[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o                                    models.Order
		orderType, status, paymentStatus     string
		subtotal, tax, tip, deliveryFee, tot int64
	)
	err := row.Scan(
		&o.ID, &o.TenantID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.TableNumber, &orderType, &status, &paymentStatus,
		&subtotal, &tax, &tip, &deliveryFee, &tot,
		&o.Notes, &o.IdempotencyKey, &o.Version,
		&o.ConfirmedAt, &o.PreparingAt, &o.ReadyAt, &o.DeliveredAt, &o.CompletedAt, &o.CancelledAt, &o.CancellationReason,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Type = models.OrderType(orderType)
	o.Status = models.OrderStatus(status)
	o.PaymentStatus = models.PaymentStatus(paymentStatus)
	o.Subtotal = models.Money(subtotal)
	o.Tax = models.Money(tax)
	o.Tip = models.Money(tip)
	o.DeliveryFee = models.Money(deliveryFee)
	o.Total = models.Money(tot)
	return &o, nil
}
