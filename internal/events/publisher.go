// Package events publishes committed order changes to Kafka.
package events

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/wire"
)

const headerEventType = "event-type"

// Publisher implements order.Publisher on top of a sarama SyncProducer.
// Messages are keyed by order ID so every event of one order lands on the
// same partition in commit order.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

var _ order.Publisher = (*Publisher)(nil)

// NewPublisher creates a Publisher writing to topic.
func NewPublisher(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// NewSyncProducer dials brokers with settings suited to order events: every
// in-sync replica acknowledges and sends are retried.
func NewSyncProducer(brokers []string, clientID string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return p, nil
}

// Publish sends e and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, e order.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Order == nil {
		return errors.Errorf("%s event without order", e.Type)
	}

	var enc jx.Encoder
	wire.EncodeEvent(&enc, e)

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.Order.ID),
		Value: sarama.ByteEncoder(enc.Bytes()),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerEventType), Value: []byte(e.Type)},
		},
		Timestamp: e.At,
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return errors.Wrapf(err, "send %s for order %s", e.Type, e.Order.ID)
	}
	return nil
}

// Close flushes and closes the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
