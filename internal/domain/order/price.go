package order

import (
	"context"
	"math"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

// MaxQuantity is the largest quantity a single line item may carry. Stored
// quantities are 32-bit.
const MaxQuantity = math.MaxInt32

// Item is a requested product/quantity pairing before prices are resolved.
type Item struct {
	ProductID string
	Quantity  int
}

type priced struct {
	items    []pricing.LineItem
	totals   pricing.Totals
	shipping pricing.ShippingLine
	discount *discount.Discount
}

func (p *priced) amountDue() decimal.Decimal {
	return p.totals.Total.Add(p.shipping.Net())
}

func (p *priced) productIDs() []string {
	return pricing.ProductIDs(p.items)
}

func checkItems(items []Item) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return &InputError{Field: "items.product_id", Msg: "required"}
		}
		if item.Quantity <= 0 || item.Quantity > MaxQuantity {
			return &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
	}
	return nil
}

// lineItems snapshots current product prices into line items. Products are
// fetched in a single batch.
func lineItems(ctx context.Context, tx Tx, items []Item) ([]pricing.LineItem, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	fetched, err := tx.GetProducts(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	prices := make(map[string]decimal.Decimal, len(fetched))
	for _, p := range fetched {
		prices[p.ID] = p.Price
	}

	out := make([]pricing.LineItem, len(items))
	for i, item := range items {
		price, ok := prices[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		out[i] = pricing.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: price,
		}
	}
	return out, nil
}

// resolveDiscount looks a discount up by ID, falling back to code. Both empty
// means no discount.
func resolveDiscount(ctx context.Context, tx Tx, id, code string) (*discount.Discount, error) {
	switch {
	case id != "" && code != "":
		return nil, ErrDiscountRefInvalid
	case id != "":
		d, err := tx.GetDiscount(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "get discount")
		}
		return d, nil
	case strings.TrimSpace(code) != "":
		d, err := tx.GetDiscountByCode(ctx, code)
		if err != nil {
			return nil, errors.Wrap(err, "get discount by code")
		}
		return d, nil
	default:
		return nil, nil
	}
}

func (s *Service) price(ctx context.Context, tx Tx, items []Item, d *discount.Discount, shippingOption string) (*priced, error) {
	lines, err := lineItems(ctx, tx, items)
	if err != nil {
		return nil, err
	}

	totals, err := pricing.ComputeTotals(lines, d)
	if err != nil {
		return nil, errors.Wrap(err, "compute totals")
	}

	shipping, err := pricing.Shipping(s.rates, shippingOption, d)
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownShippingOption) {
			return nil, ErrUnknownShipping
		}
		return nil, errors.Wrap(err, "shipping")
	}

	return &priced{
		items:    lines,
		totals:   totals,
		shipping: shipping,
		discount: d,
	}, nil
}
