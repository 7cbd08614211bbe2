package catalog

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/storage/memory"
)

func seedFile(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "db", "seed", "catalog.json")
}

func TestLoadSeed(t *testing.T) {
	c, err := Load(seedFile(t))
	require.NoError(t, err)
	require.NotEmpty(t, c.Products)
	require.NotEmpty(t, c.Discounts)

	for _, p := range c.Products {
		assert.NotEmpty(t, p.ID)
		assert.True(t, p.Price.IsPositive(), p.ID)
	}
}

func TestDecode_Errors(t *testing.T) {
	for _, raw := range []string{
		`[]`,
		`{"products": [{"name": "no id", "price": "1"}]}`,
		`{"products": [{"id": "p", "price": "-1"}]}`,
		`{"products": [{"id": "p", "price": "1", "inventory": -2}]}`,
		`{"discounts": [{"code": "X", "kind": "nope"}]}`,
	} {
		_, err := Decode([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	c, err := Decode([]byte(`{
		"products": [{"id": "p1", "name": "Widget", "price": 12.5, "category": "tools", "inventory": 3}],
		"discounts": [{"code": "Ten", "kind": "percentage", "value": "10"}]
	}`))
	require.NoError(t, err)

	s, err := memory.New()
	require.NoError(t, err)
	products := memory.NewProductRepository(s)
	discounts := memory.NewDiscountRepository(s)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.Apply(ctx, products, discounts, now))
	require.NoError(t, c.Apply(ctx, products, discounts, now))

	p, err := products.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "12.50", p.Price.StringFixed(2))
	assert.Equal(t, 3, p.Inventory)

	d, err := discounts.GetByCode(ctx, "TEN")
	require.NoError(t, err)
	assert.Equal(t, DiscountID("ten"), d.ID)
	assert.Equal(t, discount.KindPercentage, d.Kind)
	assert.True(t, d.IsActive)
	assert.Equal(t, now, d.ActiveFrom)

	bad := &Catalog{Discounts: []discount.Draft{{Code: "X", Kind: discount.KindPercentage}}}
	require.ErrorIs(t, bad.Apply(ctx, products, discounts, now), discount.ErrInvalid)
}
