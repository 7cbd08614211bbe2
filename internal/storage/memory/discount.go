package memory

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/hashicorp/go-memdb"

	"github.com/xenking/storefront-orders/internal/domain/discount"
)

// DiscountRepository administers discounts held in a Store.
type DiscountRepository struct {
	s *Store
}

// NewDiscountRepository creates a discount repository backed by s.
func NewDiscountRepository(s *Store) *DiscountRepository {
	return &DiscountRepository{s: s}
}

// Create stores a new discount. Codes are unique regardless of case.
func (r *DiscountRepository) Create(_ context.Context, d *discount.Discount) error {
	return r.s.write(func(txn *memdb.Txn) error {
		if err := checkCodeFree(txn, d); err != nil {
			return err
		}
		if err := txn.Insert(tableDiscounts, d.Clone()); err != nil {
			return errors.Wrap(err, "insert discount")
		}
		return nil
	})
}

// Update replaces the editable fields of an existing discount. The stored
// usage count and creation time are kept, so uses committed since d was read
// are never lost.
func (r *DiscountRepository) Update(_ context.Context, d *discount.Discount) error {
	return r.s.write(func(txn *memdb.Txn) error {
		current, err := getDiscount(txn, d.ID)
		if err != nil {
			return err
		}
		if d.UsageLimit != nil && *d.UsageLimit < current.UsageCount {
			return discount.LimitBelowUsage(current.UsageCount)
		}
		if err := checkCodeFree(txn, d); err != nil {
			return err
		}
		next := d.Clone()
		next.UsageCount = current.UsageCount
		next.CreatedAt = current.CreatedAt
		if err := txn.Insert(tableDiscounts, next); err != nil {
			return errors.Wrap(err, "update discount")
		}
		return nil
	})
}

// Upsert inserts d or refreshes the discount that already holds its code.
// An existing discount keeps its ID, creation time and usage count, and its
// usage limit never drops below that count.
func (r *DiscountRepository) Upsert(_ context.Context, d *discount.Discount) error {
	return r.s.write(func(txn *memdb.Txn) error {
		next := d.Clone()
		existing, err := getDiscountByCode(txn, d.Code)
		switch {
		case errors.Is(err, discount.ErrNotFound):
			next.UsageCount = 0
		case err != nil:
			return err
		default:
			next.ID = existing.ID
			next.CreatedAt = existing.CreatedAt
			next.UsageCount = existing.UsageCount
			if next.UsageLimit != nil && *next.UsageLimit < existing.UsageCount {
				limit := existing.UsageCount
				next.UsageLimit = &limit
			}
		}
		if err := txn.Insert(tableDiscounts, next); err != nil {
			return errors.Wrapf(err, "upsert discount %q", d.Code)
		}
		return nil
	})
}

// GetByID returns a discount by ID.
func (r *DiscountRepository) GetByID(_ context.Context, id string) (*discount.Discount, error) {
	return getDiscount(r.s.read(), id)
}

// GetByCode returns a discount by its case-insensitive code.
func (r *DiscountRepository) GetByCode(_ context.Context, code string) (*discount.Discount, error) {
	return getDiscountByCode(r.s.read(), code)
}

// List returns every discount ordered by code.
func (r *DiscountRepository) List(_ context.Context) ([]discount.Discount, error) {
	it, err := r.s.read().Get(tableDiscounts, indexCode)
	if err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}
	var out []discount.Discount
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, *obj.(*discount.Discount).Clone())
	}
	return out, nil
}

func getDiscount(txn *memdb.Txn, id string) (*discount.Discount, error) {
	obj, err := txn.First(tableDiscounts, indexID, id)
	if err != nil {
		return nil, errors.Wrap(err, "get discount")
	}
	if obj == nil {
		return nil, discount.ErrNotFound
	}
	return obj.(*discount.Discount).Clone(), nil
}

func getDiscountByCode(txn *memdb.Txn, code string) (*discount.Discount, error) {
	obj, err := txn.First(tableDiscounts, indexCode, discount.NormalizeCode(code))
	if err != nil {
		return nil, errors.Wrap(err, "get discount by code")
	}
	if obj == nil {
		return nil, discount.ErrNotFound
	}
	return obj.(*discount.Discount).Clone(), nil
}

// checkCodeFree enforces code uniqueness; go-memdb does not reject
// duplicate keys on secondary indexes by itself.
func checkCodeFree(txn *memdb.Txn, d *discount.Discount) error {
	existing, err := getDiscountByCode(txn, d.Code)
	if errors.Is(err, discount.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != d.ID {
		return discount.ErrCodeTaken
	}
	return nil
}
