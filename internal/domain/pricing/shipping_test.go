package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-orders/internal/domain/discount"
)

func TestParseShippingRates(t *testing.T) {
	rates, err := ParseShippingRates([]string{"standard=4.99", " Express = 12.5 ", ""})
	require.NoError(t, err)

	require.Len(t, rates, 2)
	assertMoney(t, "4.99", rates["standard"])
	assertMoney(t, "12.50", rates["express"])
}

func TestParseShippingRates_Invalid(t *testing.T) {
	for _, in := range []string{"standard", "standard=abc", "standard=-1"} {
		_, err := ParseShippingRates([]string{in})
		assert.Error(t, err, in)
	}
}

func TestShipping(t *testing.T) {
	rates, err := ParseShippingRates([]string{"standard=4.99"})
	require.NoError(t, err)

	t.Run("no option", func(t *testing.T) {
		line, err := Shipping(rates, "", nil)
		require.NoError(t, err)
		assert.True(t, line.Cost.IsZero())
		assert.True(t, line.Net().IsZero())
	})

	t.Run("flat rate", func(t *testing.T) {
		line, err := Shipping(rates, "STANDARD", &discount.Discount{Kind: discount.KindPercentage})
		require.NoError(t, err)
		assertMoney(t, "4.99", line.Cost)
		assertMoney(t, "0.00", line.Discount)
		assertMoney(t, "4.99", line.Net())
	})

	t.Run("free shipping waives cost", func(t *testing.T) {
		line, err := Shipping(rates, "standard", &discount.Discount{Kind: discount.KindFreeShipping})
		require.NoError(t, err)
		assertMoney(t, "4.99", line.Cost)
		assertMoney(t, "4.99", line.Discount)
		assertMoney(t, "0.00", line.Net())
	})

	t.Run("unknown option", func(t *testing.T) {
		_, err := Shipping(rates, "drone", nil)
		require.ErrorIs(t, err, ErrUnknownShippingOption)
	})
}
