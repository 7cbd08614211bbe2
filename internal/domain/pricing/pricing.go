// Package pricing computes order totals from line items and an optional
// discount. Everything here is pure and safe for concurrent use.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/discount"
)

// Scale is the number of fractional digits money values are rounded to.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// LineItem is one product/quantity pairing with the unit price captured when
// the order was priced.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Amount returns UnitPrice * Quantity.
func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Totals holds the authoritative money values for a set of line items.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// ComputeTotals prices items and applies d (which may be nil).
//
// Quantities are assumed to be validated by the caller. A fixed-amount
// discount is not capped here; the total is floored at zero instead.
// Free-shipping discounts do not touch the subtotal, see Shipping.
func ComputeTotals(items []LineItem, d *discount.Discount) (Totals, error) {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Amount())
	}

	amount := decimal.Zero
	if d != nil {
		switch d.Kind {
		case discount.KindPercentage:
			amount = subtotal.Mul(d.Value).Div(hundred)
		case discount.KindFixedAmount:
			amount = d.Value
		case discount.KindFreeShipping:
			amount = decimal.Zero
		default:
			return Totals{}, errors.Errorf("unsupported discount kind: %v", d.Kind)
		}
	}

	subtotal = subtotal.Round(Scale)
	amount = amount.Round(Scale)

	total := subtotal.Sub(amount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: amount,
		Total:          total,
	}, nil
}

// ProductIDs returns the product IDs referenced by items, in order.
func ProductIDs(items []LineItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	return ids
}
