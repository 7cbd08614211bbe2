// Package memory implements the storage interfaces on top of go-memdb.
//
// Write transactions in go-memdb are serialized, so every unit of work run
// through InTx observes and produces a consistent snapshot. Stored objects
// are treated as immutable: reads hand out clones and writes insert fresh
// copies.
package memory

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/hashicorp/go-memdb"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

const (
	tableProducts  = "products"
	tableDiscounts = "discounts"
	tableOrders    = "orders"

	indexID      = "id"
	indexCode    = "code"
	indexPayment = "payment"
)

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableProducts: {
				Name: tableProducts,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {Name: indexID, Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
				},
			},
			tableDiscounts: {
				Name: tableDiscounts,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {Name: indexID, Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
					indexCode: {
						Name:    indexCode,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Code", Lowercase: true},
					},
				},
			},
			tableOrders: {
				Name: tableOrders,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {Name: indexID, Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
					indexPayment: {
						Name:         indexPayment,
						Unique:       true,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "PaymentReference"},
					},
				},
			},
		},
	}
}

// Store is an in-memory implementation of order.Store. Catalog and discount
// administration are exposed through ProductRepository and
// DiscountRepository.
type Store struct {
	db *memdb.MemDB
}

var (
	_ order.Store         = (*Store)(nil)
	_ product.Repository  = (*ProductRepository)(nil)
	_ discount.Repository = (*DiscountRepository)(nil)
)

// New creates an empty Store.
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, errors.Wrap(err, "create memdb")
	}
	return &Store{db: db}, nil
}

// InTx runs fn inside a write transaction. The transaction is committed only
// if fn succeeds and ctx has not expired in the meantime.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "begin")
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := fn(ctx, &tx{txn: txn}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "commit")
	}
	txn.Commit()
	return nil
}

// write runs fn in a write transaction outside of a unit of work.
func (s *Store) write(fn func(txn *memdb.Txn) error) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := fn(txn); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) read() *memdb.Txn {
	return s.db.Txn(false)
}
