package memory

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/hashicorp/go-memdb"

	"github.com/xenking/storefront-orders/internal/domain/product"
)

// ProductRepository serves the product catalog from a Store.
type ProductRepository struct {
	s *Store
}

// NewProductRepository creates a product repository backed by s.
func NewProductRepository(s *Store) *ProductRepository {
	return &ProductRepository{s: s}
}

// PutProducts inserts or replaces products.
func (s *Store) PutProducts(_ context.Context, products ...product.Product) error {
	return s.write(func(txn *memdb.Txn) error {
		for i := range products {
			p := products[i]
			if err := txn.Insert(tableProducts, &p); err != nil {
				return errors.Wrapf(err, "insert product %s", p.ID)
			}
		}
		return nil
	})
}

// Upsert inserts or replaces a single product.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	return r.s.PutProducts(ctx, p)
}

// List returns all products ordered by ID.
func (r *ProductRepository) List(_ context.Context) ([]product.Product, error) {
	it, err := r.s.read().Get(tableProducts, indexID)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	var out []product.Product
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, *obj.(*product.Product))
	}
	return out, nil
}

// GetByID returns a single product.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	return getProduct(r.s.read(), id)
}

// GetByIDs returns the products that exist among ids, ordered by ID.
func (r *ProductRepository) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	return getProducts(r.s.read(), ids)
}

func getProduct(txn *memdb.Txn, id string) (*product.Product, error) {
	obj, err := txn.First(tableProducts, indexID, id)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	if obj == nil {
		return nil, product.ErrNotFound
	}
	p := *obj.(*product.Product)
	return &p, nil
}

func getProducts(txn *memdb.Txn, ids []string) ([]product.Product, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		p, err := getProduct(txn, id)
		if errors.Is(err, product.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
