package pricing

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/discount"
)

// ErrUnknownShippingOption is returned when a shipping option has no rate.
var ErrUnknownShippingOption = errors.New("unknown shipping option")

// ShippingRates maps a shipping option name to its flat price.
type ShippingRates map[string]decimal.Decimal

// ParseShippingRates parses "name=price" pairs, e.g. "standard=4.99".
func ParseShippingRates(pairs []string) (ShippingRates, error) {
	rates := make(ShippingRates, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.Errorf("shipping rate %q: expected name=price", pair)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "shipping rate %q", pair)
		}
		if price.IsNegative() {
			return nil, errors.Errorf("shipping rate %q: negative price", pair)
		}
		rates[strings.ToLower(strings.TrimSpace(name))] = price.Round(Scale)
	}
	return rates, nil
}

// ShippingLine is the shipping charge of an order and the part of it waived
// by a free-shipping discount.
type ShippingLine struct {
	Option   string
	Cost     decimal.Decimal
	Discount decimal.Decimal
}

// Net returns Cost - Discount.
func (s ShippingLine) Net() decimal.Decimal {
	return s.Cost.Sub(s.Discount)
}

// Shipping looks up the flat rate for option and applies a free-shipping
// discount when d is one. An empty option means no shipping line.
func Shipping(rates ShippingRates, option string, d *discount.Discount) (ShippingLine, error) {
	option = strings.ToLower(strings.TrimSpace(option))
	if option == "" {
		return ShippingLine{Cost: decimal.Zero, Discount: decimal.Zero}, nil
	}

	cost, ok := rates[option]
	if !ok {
		return ShippingLine{}, errors.Wrapf(ErrUnknownShippingOption, "option %q", option)
	}

	line := ShippingLine{Option: option, Cost: cost, Discount: decimal.Zero}
	if d != nil && d.Kind == discount.KindFreeShipping {
		line.Discount = cost
	}
	return line, nil
}
