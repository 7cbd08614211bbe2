package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

func testOrder() *order.Order {
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	return &order.Order{
		ID:         "o1",
		CustomerID: "c1",
		Items: []pricing.LineItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("5000")},
		},
		Subtotal:  decimal.RequireFromString("10000"),
		Total:     decimal.RequireFromString("10000"),
		AmountDue: decimal.RequireFromString("10000"),
		Status:    order.StatusProcessing,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestPublisher_Publish(t *testing.T) {
	mp := mocks.NewSyncProducer(t, sarama.NewConfig())
	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "orders", msg.Topic)

		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "o1", string(key))

		require.Len(t, msg.Headers, 1)
		assert.Equal(t, "order.status_changed", string(msg.Headers[0].Value))

		raw, err := msg.Value.Encode()
		require.NoError(t, err)
		var body struct {
			Type       string `json:"type"`
			FromStatus string `json:"from_status"`
			Order      struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Total  string `json:"total"`
			} `json:"order"`
		}
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "order.status_changed", body.Type)
		assert.Equal(t, "pending", body.FromStatus)
		assert.Equal(t, "o1", body.Order.ID)
		assert.Equal(t, "processing", body.Order.Status)
		assert.Equal(t, "10000.00", body.Order.Total)
		return nil
	})

	p := NewPublisher(mp, "orders")
	o := testOrder()
	require.NoError(t, p.Publish(context.Background(), order.Event{
		Type:       order.EventStatusChanged,
		Order:      o,
		FromStatus: order.StatusPending,
		At:         o.UpdatedAt,
	}))
	require.NoError(t, p.Close())
}

func TestPublisher_CreatedOmitsFromStatus(t *testing.T) {
	mp := mocks.NewSyncProducer(t, sarama.NewConfig())
	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		raw, err := msg.Value.Encode()
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "order.created", body["type"])
		assert.NotContains(t, body, "from_status")
		return nil
	})

	p := NewPublisher(mp, "orders")
	require.NoError(t, p.Publish(context.Background(), order.Event{Type: order.EventCreated, Order: testOrder()}))
	require.NoError(t, p.Close())
}

func TestPublisher_SendFailure(t *testing.T) {
	mp := mocks.NewSyncProducer(t, sarama.NewConfig())
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisher(mp, "orders")
	err := p.Publish(context.Background(), order.Event{Type: order.EventCreated, Order: testOrder()})
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestPublisher_Rejects(t *testing.T) {
	mp := mocks.NewSyncProducer(t, sarama.NewConfig())
	p := NewPublisher(mp, "orders")

	require.Error(t, p.Publish(context.Background(), order.Event{Type: order.EventCreated}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Publish(ctx, order.Event{Type: order.EventCreated, Order: testOrder()}), context.Canceled)
	require.NoError(t, p.Close())
}
