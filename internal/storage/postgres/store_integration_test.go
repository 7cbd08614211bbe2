//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "shop",
				"POSTGRES_PASSWORD": "shop",
				"POSTGRES_DB":       "shop",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://shop:shop@%s:%s/shop?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func newService(t *testing.T, store order.Store) *order.Service {
	t.Helper()
	rates, err := pricing.ParseShippingRates([]string{"standard=4.99"})
	require.NoError(t, err)
	svc, err := order.NewService(store, rates)
	require.NoError(t, err)
	return svc
}

func TestStore(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	products := NewProductRepository(pool)
	discounts := NewDiscountRepository(pool)
	store := NewStore(pool)
	svc := newService(t, store)

	require.NoError(t, products.Upsert(ctx, product.Product{ID: "p1", Name: "Widget", Price: decimal.RequireFromString("5000"), Inventory: 10}))
	require.NoError(t, products.Upsert(ctx, product.Product{ID: "p2", Name: "Gadget", Price: decimal.RequireFromString("3000"), Inventory: 10}))
	require.NoError(t, products.Upsert(ctx, product.Product{ID: "p3", Name: "Rare", Price: decimal.RequireFromString("10000"), Inventory: 0}))

	limit := int64(1)
	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, discounts.Create(ctx, &discount.Discount{
		ID: "d10", Code: "Ten", Kind: discount.KindPercentage, Value: decimal.NewFromInt(10),
		ActiveFrom: now.Add(-time.Hour), IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, discounts.Create(ctx, &discount.Discount{
		ID: "once", Code: "ONCE", Kind: discount.KindFixedAmount, Value: decimal.NewFromInt(1),
		UsageLimit: &limit, ActiveFrom: now.Add(-time.Hour), IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))

	t.Run("DiscountCodeUnique", func(t *testing.T) {
		err := discounts.Create(ctx, &discount.Discount{
			ID: "dup", Code: "TEN", Kind: discount.KindFixedAmount, Value: decimal.NewFromInt(1),
			ActiveFrom: now, CreatedAt: now, UpdatedAt: now,
		})
		require.ErrorIs(t, err, discount.ErrCodeTaken)

		d, err := discounts.GetByCode(ctx, "tEn")
		require.NoError(t, err)
		assert.Equal(t, "d10", d.ID)
		assert.Nil(t, d.UsageLimit)
		assert.Nil(t, d.MinSubtotal)
	})

	t.Run("CreateOrderScenario", func(t *testing.T) {
		o, err := svc.CreateOrder(ctx, order.CreateOrderRequest{
			CustomerID:       "c1",
			Items:            []order.Item{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}},
			DiscountCode:     "TEN",
			PaymentReference: "pay_1",
		})
		require.NoError(t, err)

		stored, err := store.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, "11700.00", stored.Total.StringFixed(2))
		assert.Equal(t, "d10", stored.DiscountID)
		require.Len(t, stored.Items, 2)
		assert.Equal(t, "p1", stored.Items[0].ProductID)

		d, err := discounts.GetByID(ctx, "d10")
		require.NoError(t, err)
		assert.Equal(t, int64(1), d.UsageCount)

		_, err = svc.CreateOrder(ctx, order.CreateOrderRequest{
			CustomerID:       "c1",
			Items:            []order.Item{{ProductID: "p1", Quantity: 1}},
			PaymentReference: "pay_1",
		})
		require.ErrorIs(t, err, order.ErrDuplicatePayment)
	})

	t.Run("TamperedLeavesNothing", func(t *testing.T) {
		before, err := store.CountOrders(ctx)
		require.NoError(t, err)

		sub := decimal.RequireFromString("9999")
		_, err = svc.CreateOrder(ctx, order.CreateOrderRequest{
			CustomerID: "c1",
			Items:      []order.Item{{ProductID: "p2", Quantity: 1}},
			Provided:   order.Provided{Subtotal: &sub},
		})
		require.ErrorIs(t, err, order.ErrTamperedTotal)

		after, err := store.CountOrders(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("ConcurrentUsageLimit", func(t *testing.T) {
		const n = 8
		var (
			wg   sync.WaitGroup
			errs = make([]error, n)
		)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.CreateOrder(ctx, order.CreateOrderRequest{
					CustomerID:   "c1",
					Items:        []order.Item{{ProductID: "p2", Quantity: 1}},
					DiscountCode: "once",
				})
			}()
		}
		wg.Wait()

		var ok int
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			reason, _ := discount.RejectionReason(err)
			assert.True(t, errors.Is(err, order.ErrConflict) || reason == discount.ReasonUsageLimitReached, "%v", err)
		}
		assert.Equal(t, 1, ok)

		d, err := discounts.GetByID(ctx, "once")
		require.NoError(t, err)
		assert.Equal(t, int64(1), d.UsageCount)
	})

	t.Run("DeliveredDeductsOnce", func(t *testing.T) {
		o, err := svc.CreateOrder(ctx, order.CreateOrderRequest{
			CustomerID: "c1",
			Items:      []order.Item{{ProductID: "p1", Quantity: 3}},
		})
		require.NoError(t, err)

		for _, s := range []order.Status{order.StatusProcessing, order.StatusShipped, order.StatusDelivered, order.StatusDelivered} {
			_, err := svc.TransitionStatus(ctx, o.ID, s)
			require.NoError(t, err)
		}

		p, err := products.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 7, p.Inventory)

		_, err = svc.TransitionStatus(ctx, o.ID, order.StatusShipped)
		require.ErrorIs(t, err, order.ErrIllegalTransition)
	})

	t.Run("InsufficientInventoryRollsBack", func(t *testing.T) {
		o, err := svc.CreateOrder(ctx, order.CreateOrderRequest{
			CustomerID: "c1",
			Items:      []order.Item{{ProductID: "p2", Quantity: 1}, {ProductID: "p3", Quantity: 1}},
		})
		require.NoError(t, err)
		for _, s := range []order.Status{order.StatusProcessing, order.StatusShipped} {
			_, err := svc.TransitionStatus(ctx, o.ID, s)
			require.NoError(t, err)
		}

		before, err := products.GetByID(ctx, "p2")
		require.NoError(t, err)

		_, err = svc.TransitionStatus(ctx, o.ID, order.StatusDelivered)
		require.ErrorIs(t, err, order.ErrInsufficientInventory)

		after, err := products.GetByID(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, before.Inventory, after.Inventory)

		stored, err := store.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusShipped, stored.Status)
	})

	t.Run("ReplaceItems", func(t *testing.T) {
		o, err := svc.CreateOrder(ctx, order.CreateOrderRequest{
			CustomerID:   "c2",
			Items:        []order.Item{{ProductID: "p1", Quantity: 1}},
			DiscountCode: "ten",
		})
		require.NoError(t, err)

		edited, err := svc.ReplaceItems(ctx, o.ID, order.ReplaceItemsRequest{
			Items: []order.Item{{ProductID: "p2", Quantity: 2}},
		})
		require.NoError(t, err)
		assert.Equal(t, "5400.00", edited.Total.StringFixed(2))

		stored, err := store.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, stored.Items, 1)
		assert.Equal(t, "p2", stored.Items[0].ProductID)
		assert.Equal(t, "5400.00", stored.Total.StringFixed(2))
	})

	t.Run("UpdateLimitBelowUsage", func(t *testing.T) {
		stale, err := discounts.GetByID(ctx, "d10")
		require.NoError(t, err)
		require.Positive(t, stale.UsageCount)

		tooLow := stale.UsageCount - 1
		stale.UsageLimit = &tooLow
		err = discounts.Update(ctx, stale)
		var invErr *discount.InvalidError
		require.ErrorAs(t, err, &invErr)
		assert.Equal(t, "usage_limit", invErr.Field)

		got, err := discounts.GetByID(ctx, "d10")
		require.NoError(t, err)
		assert.Nil(t, got.UsageLimit)

		missing := *got
		missing.ID = "missing"
		require.ErrorIs(t, discounts.Update(ctx, &missing), discount.ErrNotFound)
	})

	t.Run("UpsertKeepsUsage", func(t *testing.T) {
		newLimit := int64(5)
		require.NoError(t, discounts.Upsert(ctx, &discount.Discount{
			ID: "ignored", Code: "once", Kind: discount.KindFixedAmount, Value: decimal.NewFromInt(2),
			UsageLimit: &newLimit, ActiveFrom: now, IsActive: true, UpdatedAt: now,
		}))

		d, err := discounts.GetByCode(ctx, "ONCE")
		require.NoError(t, err)
		assert.Equal(t, "once", d.ID)
		assert.Equal(t, int64(1), d.UsageCount)
		require.NotNil(t, d.UsageLimit)
		assert.Equal(t, int64(5), *d.UsageLimit)
	})
}
