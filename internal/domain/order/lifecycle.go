package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

// TransitionStatus moves an order to status to.
//
// Re-applying the current status returns the order unchanged. The first
// entry into Delivered deducts inventory for every line item in the same
// unit of work as the status write; if any product is missing or short on
// stock nothing is written.
func (s *Service) TransitionStatus(ctx context.Context, id string, to Status) (_ *Order, rerr error) {
	ctx, span := s.startSpan(ctx, "order.TransitionStatus",
		attribute.String("order_id", id),
		attribute.String("to", to.String()),
	)
	defer func() { endSpan(span, rerr) }()

	if to < StatusPending || to > StatusCancelled {
		return nil, &InputError{Field: "status", Msg: "unknown status"}
	}

	var (
		o       *Order
		from    Status
		changed bool
	)
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		o, err = tx.GetOrder(ctx, id)
		if err != nil {
			return errors.Wrap(err, "get order")
		}
		from = o.Status
		if from == to {
			return nil
		}
		if !CanTransition(from, to) {
			return &IllegalTransitionError{From: from, To: to}
		}

		now := s.now().UTC()
		if to == StatusDelivered && !o.InventoryDeducted {
			if err := deductInventory(ctx, tx, o); err != nil {
				return err
			}
			o.InventoryDeducted = true
			o.DeliveredAt = &now
		}
		o.Status = to
		o.UpdatedAt = now

		ok, err := tx.UpdateOrderStatus(ctx, o, from)
		if err != nil {
			return errors.Wrap(err, "update order status")
		}
		if !ok {
			return s.conflict(ctx, "update order status")
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", o.ID),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Bool("inventory_deducted", o.InventoryDeducted),
	)
	s.publish(ctx, Event{Type: EventStatusChanged, Order: o.Clone(), FromStatus: from, At: o.UpdatedAt})
	return o, nil
}

func deductInventory(ctx context.Context, tx Tx, o *Order) error {
	for _, item := range o.Items {
		ok, err := tx.DecrementInventory(ctx, item.ProductID, item.Quantity)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return &ProductNotFoundError{ProductID: item.ProductID}
			}
			return errors.Wrapf(err, "decrement inventory for %s", item.ProductID)
		}
		if !ok {
			return &InsufficientInventoryError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
	}
	return nil
}

// ReplaceItemsRequest holds the new item set for an order edit.
type ReplaceItemsRequest struct {
	Items    []Item
	Provided Provided
}

// ReplaceItems discards the order's items and prices req.Items the same way
// CreateOrder does. An attached discount is re-checked against the new
// subtotal and product set using its current record; if it no longer
// applies the whole edit is rejected. The usage count is not touched.
func (s *Service) ReplaceItems(ctx context.Context, id string, req ReplaceItemsRequest) (_ *Order, rerr error) {
	ctx, span := s.startSpan(ctx, "order.ReplaceItems",
		attribute.String("order_id", id),
		attribute.Int("items", len(req.Items)),
	)
	defer func() { endSpan(span, rerr) }()

	if err := checkItems(req.Items); err != nil {
		return nil, err
	}

	var o *Order
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		o, err = tx.GetOrder(ctx, id)
		if err != nil {
			return errors.Wrap(err, "get order")
		}
		if !o.Status.Editable() {
			return errors.Wrapf(ErrNotEditable, "status %s", o.Status)
		}

		var d *discount.Discount
		if o.DiscountID != "" {
			if d, err = tx.GetDiscount(ctx, o.DiscountID); err != nil {
				return errors.Wrap(err, "get attached discount")
			}
		}

		p, err := s.price(ctx, tx, req.Items, d, o.ShippingOption)
		if err != nil {
			return err
		}
		if err := s.reconcile(ctx, o.ID, req.Provided, p.totals); err != nil {
			return err
		}
		if d != nil {
			if err := discount.ValidateScope(d, p.totals.Subtotal, p.productIDs()); err != nil {
				return err
			}
		}

		o.applyPricing(p)
		o.UpdatedAt = s.now().UTC()
		if err := tx.ReplaceOrderItems(ctx, o); err != nil {
			return errors.Wrap(err, "replace order items")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Order items replaced",
		zap.String("order_id", o.ID),
		zap.Int("items", len(o.Items)),
		zap.String("total", o.Total.String()),
	)
	return o, nil
}
