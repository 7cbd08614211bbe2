package order

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

// Provided holds money values a client computed for display before
// submitting. Nil fields are not checked.
type Provided struct {
	Subtotal       *decimal.Decimal
	DiscountAmount *decimal.Decimal
	Total          *decimal.Decimal
}

// Empty reports whether the client supplied nothing to check.
func (p Provided) Empty() bool {
	return p.Subtotal == nil && p.DiscountAmount == nil && p.Total == nil
}

// Reconcile compares provided values against the authoritative totals after
// rounding both to the currency scale. The first mismatch is returned as a
// *TamperedTotalError. Computed values are never adjusted to match.
func Reconcile(p Provided, computed pricing.Totals) error {
	checks := []struct {
		field    string
		provided *decimal.Decimal
		computed decimal.Decimal
	}{
		{"subtotal", p.Subtotal, computed.Subtotal},
		{"discount_amount", p.DiscountAmount, computed.DiscountAmount},
		{"total", p.Total, computed.Total},
	}
	for _, c := range checks {
		if c.provided == nil {
			continue
		}
		if c.provided.StringFixed(pricing.Scale) != c.computed.StringFixed(pricing.Scale) {
			return &TamperedTotalError{
				Field:    c.field,
				Provided: *c.provided,
				Computed: c.computed,
			}
		}
	}
	return nil
}
