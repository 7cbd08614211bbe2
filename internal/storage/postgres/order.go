package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

const orderColumns = `id, customer_id, discount_id, discount_code, subtotal, discount_amount, total,
    shipping_option, shipping_cost, shipping_discount, amount_due,
    status, payment_reference, inventory_deducted, created_at, updated_at, delivered_at`

func getOrder(ctx context.Context, q querier, id string, lock bool) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var (
		o          order.Order
		discountID *string
		paymentRef *string
		status     string
	)
	err := q.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.CustomerID, &discountID, &o.DiscountCode, &o.Subtotal, &o.DiscountAmount, &o.Total,
		&o.ShippingOption, &o.ShippingCost, &o.ShippingDiscount, &o.AmountDue,
		&status, &paymentRef, &o.InventoryDeducted, &o.CreatedAt, &o.UpdatedAt, &o.DeliveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	if o.Status, err = order.ParseStatus(status); err != nil {
		return nil, err
	}
	o.DiscountID = fromNullString(discountID)
	o.PaymentReference = fromNullString(paymentRef)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	if o.DeliveredAt != nil {
		t := o.DeliveredAt.UTC()
		o.DeliveredAt = &t
	}

	if o.Items, err = getItems(ctx, q, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func getItems(ctx context.Context, q querier, orderID string) ([]pricing.LineItem, error) {
	rows, err := q.Query(ctx, `
SELECT product_id, quantity, unit_price FROM order_items
WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q items", orderID)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pricing.LineItem, error) {
		var li pricing.LineItem
		err := row.Scan(&li.ProductID, &li.Quantity, &li.UnitPrice)
		return li, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan order %q items", orderID)
	}
	return items, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	rows := make([][]any, len(o.Items))
	for i, item := range o.Items {
		rows[i] = []any{o.ID, i, item.ProductID, item.Quantity, item.UnitPrice}
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{"order_id", "position", "product_id", "quantity", "unit_price"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q items", o.ID)
	}
	return nil
}

// CountOrders returns the number of stored orders.
func (s *Store) CountOrders(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count orders")
	}
	return n, nil
}
