package memory

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/hashicorp/go-memdb"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

// tx adapts a go-memdb write transaction to order.Tx.
type tx struct {
	txn *memdb.Txn
}

var _ order.Tx = (*tx)(nil)

func (t *tx) GetProducts(_ context.Context, ids []string) ([]product.Product, error) {
	return getProducts(t.txn, ids)
}

func (t *tx) GetDiscount(_ context.Context, id string) (*discount.Discount, error) {
	return getDiscount(t.txn, id)
}

func (t *tx) GetDiscountByCode(_ context.Context, code string) (*discount.Discount, error) {
	return getDiscountByCode(t.txn, code)
}

func (t *tx) IncrementDiscountUsage(_ context.Context, id string) (bool, error) {
	d, err := getDiscount(t.txn, id)
	if err != nil {
		return false, err
	}
	if d.UsageLimit != nil && d.UsageCount >= *d.UsageLimit {
		return false, nil
	}
	d.UsageCount++
	if err := t.txn.Insert(tableDiscounts, d); err != nil {
		return false, errors.Wrap(err, "update discount usage")
	}
	return true, nil
}

func (t *tx) DecrementInventory(_ context.Context, productID string, qty int) (bool, error) {
	p, err := getProduct(t.txn, productID)
	if err != nil {
		return false, err
	}
	if p.Inventory < qty {
		return false, nil
	}
	p.Inventory -= qty
	if err := t.txn.Insert(tableProducts, p); err != nil {
		return false, errors.Wrap(err, "update inventory")
	}
	return true, nil
}

func (t *tx) GetOrder(_ context.Context, id string) (*order.Order, error) {
	return getOrder(t.txn, id)
}

func (t *tx) SaveOrder(_ context.Context, o *order.Order) error {
	if o.PaymentReference != "" {
		obj, err := t.txn.First(tableOrders, indexPayment, o.PaymentReference)
		if err != nil {
			return errors.Wrap(err, "lookup payment reference")
		}
		if obj != nil {
			return order.ErrDuplicatePayment
		}
	}
	if err := t.txn.Insert(tableOrders, o.Clone()); err != nil {
		return errors.Wrap(err, "insert order")
	}
	return nil
}

func (t *tx) UpdateOrderStatus(_ context.Context, o *order.Order, from order.Status) (bool, error) {
	current, err := getOrder(t.txn, o.ID)
	if err != nil {
		return false, err
	}
	if current.Status != from {
		return false, nil
	}
	current.Status = o.Status
	current.InventoryDeducted = o.InventoryDeducted
	current.DeliveredAt = o.DeliveredAt
	current.UpdatedAt = o.UpdatedAt
	if err := t.txn.Insert(tableOrders, current.Clone()); err != nil {
		return false, errors.Wrap(err, "update order status")
	}
	return true, nil
}

func (t *tx) ReplaceOrderItems(_ context.Context, o *order.Order) error {
	if _, err := getOrder(t.txn, o.ID); err != nil {
		return err
	}
	if err := t.txn.Insert(tableOrders, o.Clone()); err != nil {
		return errors.Wrap(err, "replace order items")
	}
	return nil
}

// GetOrder returns an order by ID.
func (s *Store) GetOrder(_ context.Context, id string) (*order.Order, error) {
	return getOrder(s.read(), id)
}

func getOrder(txn *memdb.Txn, id string) (*order.Order, error) {
	obj, err := txn.First(tableOrders, indexID, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if obj == nil {
		return nil, order.ErrNotFound
	}
	return obj.(*order.Order).Clone(), nil
}
