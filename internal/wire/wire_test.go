package wire

import (
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

func TestDecodeCreateOrder(t *testing.T) {
	req, err := DecodeCreateOrder(jx.DecodeStr(`{
		"customer_id": "c1",
		"items": [{"product_id": "p1", "quantity": 2}, {"product_id": "p2", "quantity": 1, "note": "x"}],
		"discount_code": "TEN",
		"shipping_option": "standard",
		"subtotal": "13000.00",
		"total": 11700.10,
		"discount_amount": null,
		"unknown": {"nested": [1, 2]}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "c1", req.CustomerID)
	assert.Equal(t, []order.Item{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}}, req.Items)
	assert.Equal(t, "TEN", req.DiscountCode)
	assert.Equal(t, "standard", req.ShippingOption)
	require.NotNil(t, req.Provided.Subtotal)
	assert.Equal(t, "13000", req.Provided.Subtotal.String())
	require.NotNil(t, req.Provided.Total)
	assert.Equal(t, "11700.1", req.Provided.Total.String())
	assert.Nil(t, req.Provided.DiscountAmount)
}

func TestDecodeCreateOrder_Malformed(t *testing.T) {
	for _, tt := range []struct {
		body  string
		field string
	}{
		{`{"items": [{"product_id": "p1", "quantity": "two"}]}`, "items.quantity"},
		{`{"subtotal": "ten"}`, "subtotal"},
		{`{"subtotal": true}`, "subtotal"},
		{`[1]`, "body"},
		{`{"customer_id": "c1"`, "body"},
	} {
		_, err := DecodeCreateOrder(jx.DecodeStr(tt.body))
		require.ErrorIs(t, err, order.ErrInvalidInput, tt.body)

		var ie *order.InputError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, tt.field, ie.Field, tt.body)
	}
}

func TestDecodeStatus(t *testing.T) {
	s, err := DecodeStatus(jx.DecodeStr(`{"status": "Shipped"}`))
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, s)

	_, err = DecodeStatus(jx.DecodeStr(`{"status": "lost"}`))
	require.ErrorIs(t, err, order.ErrInvalidInput)

	_, err = DecodeStatus(jx.DecodeStr(`{}`))
	require.ErrorIs(t, err, order.ErrInvalidInput)
}

func TestDecodeReplaceItems(t *testing.T) {
	req, err := DecodeReplaceItems(jx.DecodeStr(`{"items": [{"product_id": "p1", "quantity": 3}], "total": "1.00"}`))
	require.NoError(t, err)
	require.Len(t, req.Items, 1)
	assert.Equal(t, 3, req.Items[0].Quantity)
	require.NotNil(t, req.Provided.Total)
}

func TestDecodeDiscountDraft(t *testing.T) {
	draft, err := DecodeDiscountDraft(jx.DecodeStr(`{
		"code": "SUMMER",
		"kind": "percentage",
		"value": "15",
		"usage_limit": 100,
		"active_from": "2025-06-01T00:00:00Z",
		"active_until": null,
		"min_subtotal": "20.00",
		"eligible_product_ids": ["p1", "p2"]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "SUMMER", draft.Code)
	assert.Equal(t, discount.KindPercentage, draft.Kind)
	assert.True(t, draft.IsActive)
	require.NotNil(t, draft.UsageLimit)
	assert.Equal(t, int64(100), *draft.UsageLimit)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), draft.ActiveFrom)
	assert.Nil(t, draft.ActiveUntil)
	assert.Equal(t, []string{"p1", "p2"}, draft.EligibleProductIDs)

	_, err = DecodeDiscountDraft(jx.DecodeStr(`{"kind": "bogo"}`))
	var ie *discount.InvalidError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "kind", ie.Field)
}

func TestEncodeOrder(t *testing.T) {
	created := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	o := &order.Order{
		ID:         "o1",
		CustomerID: "c1",
		Status:     order.StatusPending,
		Items: []pricing.LineItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("5000")},
		},
		DiscountCode:     "TEN",
		Subtotal:         decimal.RequireFromString("10000"),
		DiscountAmount:   decimal.RequireFromString("1000"),
		Total:            decimal.RequireFromString("9000"),
		ShippingCost:     decimal.Zero,
		ShippingDiscount: decimal.Zero,
		AmountDue:        decimal.RequireFromString("9000"),
		CreatedAt:        created,
		UpdatedAt:        created,
	}

	var e jx.Encoder
	EncodeOrder(&e, o)

	got := map[string]string{}
	require.NoError(t, jx.DecodeBytes(e.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		if d.Next() != jx.String {
			return d.Skip()
		}
		v, err := d.Str()
		got[key] = v
		return err
	}))

	assert.Equal(t, "o1", got["id"])
	assert.Equal(t, "pending", got["status"])
	assert.Equal(t, "9000.00", got["total"])
	assert.Equal(t, "1000.00", got["discount_amount"])
	assert.Equal(t, "TEN", got["discount_code"])
	assert.Equal(t, "2025-06-15T12:00:00Z", got["created_at"])
	assert.NotContains(t, got, "discount_id")
	assert.NotContains(t, got, "delivered_at")
}
