package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

var (
	_ order.Store = (*Store)(nil)
	_ order.Tx    = (*tx)(nil)
)

// Store implements order.Store on a PostgreSQL pool. Units of work run in
// READ COMMITTED transactions; races on shared counters are settled by
// conditional updates and row locks rather than isolation level.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store that uses the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// InTx runs fn inside a transaction and commits if fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) (rerr error) {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if rerr == nil {
			return
		}
		// The request context may already be done; rollback on a fresh one.
		if err := pgTx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			zctx.From(ctx).Warn("Rollback failed", zap.Error(err))
		}
	}()

	if err := fn(ctx, &tx{tx: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// GetOrder returns an order and its items without locking.
func (s *Store) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, s.pool, id, false)
}

type tx struct {
	tx pgx.Tx
}

func (t *tx) GetProducts(ctx context.Context, ids []string) ([]product.Product, error) {
	return getProducts(ctx, t.tx, ids)
}

func (t *tx) GetDiscount(ctx context.Context, id string) (*discount.Discount, error) {
	return getDiscount(ctx, t.tx, `WHERE id = $1`, id)
}

func (t *tx) GetDiscountByCode(ctx context.Context, code string) (*discount.Discount, error) {
	return getDiscount(ctx, t.tx, `WHERE lower(code) = $1`, discount.NormalizeCode(code))
}

func (t *tx) IncrementDiscountUsage(ctx context.Context, id string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
UPDATE discounts SET usage_count = usage_count + 1
WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`, id)
	if err != nil {
		return false, errors.Wrap(err, "increment discount usage")
	}
	return tag.RowsAffected() == 1, nil
}

func (t *tx) DecrementInventory(ctx context.Context, productID string, qty int) (bool, error) {
	var exists, decremented bool
	err := t.tx.QueryRow(ctx, `
WITH updated AS (
    UPDATE products SET inventory = inventory - $2, updated_at = now()
    WHERE id = $1 AND inventory >= $2
    RETURNING id
)
SELECT EXISTS (SELECT 1 FROM products WHERE id = $1), EXISTS (SELECT 1 FROM updated)`,
		productID, qty,
	).Scan(&exists, &decremented)
	if err != nil {
		return false, errors.Wrap(err, "decrement inventory")
	}
	if !exists {
		return false, product.ErrNotFound
	}
	return decremented, nil
}

func (t *tx) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *tx) SaveOrder(ctx context.Context, o *order.Order) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO orders (`+orderColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID, o.CustomerID, nullString(o.DiscountID), o.DiscountCode,
		o.Subtotal, o.DiscountAmount, o.Total,
		o.ShippingOption, o.ShippingCost, o.ShippingDiscount, o.AmountDue,
		o.Status.String(), nullString(o.PaymentReference), o.InventoryDeducted,
		o.CreatedAt, o.UpdatedAt, o.DeliveredAt,
	)
	if err != nil {
		if name, ok := uniqueConstraint(err); ok && name == "orders_payment_reference_key" {
			return order.ErrDuplicatePayment
		}
		return errors.Wrapf(err, "insert order %q", o.ID)
	}
	return insertItems(ctx, t.tx, o)
}

func (t *tx) UpdateOrderStatus(ctx context.Context, o *order.Order, from order.Status) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
UPDATE orders SET status = $2, inventory_deducted = $3, delivered_at = $4, updated_at = $5
WHERE id = $1 AND status = $6`,
		o.ID, o.Status.String(), o.InventoryDeducted, o.DeliveredAt, o.UpdatedAt, from.String(),
	)
	if err != nil {
		return false, errors.Wrapf(err, "update order %q status", o.ID)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *tx) ReplaceOrderItems(ctx context.Context, o *order.Order) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE orders SET
    subtotal = $2, discount_amount = $3, total = $4,
    shipping_cost = $5, shipping_discount = $6, amount_due = $7, updated_at = $8
WHERE id = $1`,
		o.ID, o.Subtotal, o.DiscountAmount, o.Total,
		o.ShippingCost, o.ShippingDiscount, o.AmountDue, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "update order %q totals", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
		return errors.Wrapf(err, "delete order %q items", o.ID)
	}
	return insertItems(ctx, t.tx, o)
}
