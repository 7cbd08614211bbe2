package payment

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Consumer feeds a Kafka consumer group into a Handler.
//
// Offsets are marked only after Handle returns nil. A transient failure ends
// the claim so the group rejoins and redelivers from the last marked offset.
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler *Handler
	backoff time.Duration
	lg      *zap.Logger
}

// NewConsumerGroup dials brokers and joins groupID, starting from the oldest
// offset when the group has none.
func NewConsumerGroup(brokers []string, groupID string) (sarama.ConsumerGroup, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true

	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create consumer group")
	}
	return g, nil
}

// NewConsumer creates a Consumer.
func NewConsumer(group sarama.ConsumerGroup, topics []string, h *Handler, lg *zap.Logger) *Consumer {
	return &Consumer{
		group:   group,
		topics:  topics,
		handler: h,
		backoff: time.Second,
		lg:      lg,
	}
}

// Run consumes until ctx is done or the group is closed.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.lg.Warn("Consumer group error", zap.Error(err))
		}
	}()

	for {
		err := c.group.Consume(ctx, c.topics, c)
		switch {
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return nil
		case err != nil:
			c.lg.Warn("Consume", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.backoff):
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (c *Consumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := zctx.Base(sess.Context(), c.lg.With(
		zap.String("topic", claim.Topic()),
		zap.Int32("partition", claim.Partition()),
	))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.handler.Handle(ctx, msg.Value); err != nil {
				return errors.Wrapf(err, "offset %d", msg.Offset)
			}
			sess.MarkMessage(msg, "")
		}
	}
}
