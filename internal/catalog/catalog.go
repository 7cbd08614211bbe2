// Package catalog loads seed data for products and discounts.
//
// A catalog file is a JSON object with "products" and "discounts" arrays.
// Discounts use the same shape as the administration API.
package catalog

import (
	"context"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/product"
	"github.com/xenking/storefront-orders/internal/wire"
)

// discountNamespace derives stable discount IDs from codes, so loading the
// same catalog twice addresses the same rows.
var discountNamespace = uuid.MustParse("0c8f5a0e-5d0b-4f57-9b8e-8a3b0d6f2e11")

// Catalog is decoded seed data.
type Catalog struct {
	Products  []product.Product
	Discounts []discount.Draft
}

// ProductWriter stores products, replacing any with the same ID.
type ProductWriter interface {
	Upsert(ctx context.Context, p product.Product) error
}

// DiscountWriter stores discounts, refreshing any with the same code.
type DiscountWriter interface {
	Upsert(ctx context.Context, d *discount.Discount) error
}

// Load reads and decodes the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	return Decode(data)
}

// Decode parses catalog JSON.
func Decode(data []byte) (*Catalog, error) {
	var c Catalog
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return errors.Wrapf(err, "product %d", len(c.Products))
				}
				c.Products = append(c.Products, p)
				return nil
			})
		case "discounts":
			return d.Arr(func(d *jx.Decoder) error {
				draft, err := wire.DecodeDiscountDraft(d)
				if err != nil {
					return errors.Wrapf(err, "discount %d", len(c.Discounts))
				}
				c.Discounts = append(c.Discounts, draft)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return &c, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = wire.Money(d)
		case "category":
			p.Category, err = d.Str()
		case "inventory":
			p.Inventory, err = d.Int()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	switch {
	case err != nil:
		return p, err
	case p.ID == "":
		return p, errors.New("id is required")
	case p.Price.IsNegative():
		return p, errors.Errorf("%s: price must not be negative", p.ID)
	case p.Inventory < 0:
		return p, errors.Errorf("%s: inventory must not be negative", p.ID)
	}
	return p, nil
}

// DiscountID returns the stable ID assigned to a seeded discount code.
func DiscountID(code string) string {
	return uuid.NewSHA1(discountNamespace, []byte(discount.NormalizeCode(code))).String()
}

// Apply writes every product and discount. Discounts are validated with the
// same rules as the administration API.
func (c *Catalog) Apply(ctx context.Context, products ProductWriter, discounts DiscountWriter, now time.Time) error {
	for _, p := range c.Products {
		if err := products.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
	}
	for _, draft := range c.Discounts {
		d, err := discount.FromDraft(DiscountID(draft.Code), draft, now)
		if err != nil {
			return errors.Wrapf(err, "discount %q", draft.Code)
		}
		if err := discounts.Upsert(ctx, d); err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.Code)
		}
	}
	return nil
}
