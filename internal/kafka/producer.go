package kafka

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// Producer writes reservation events. Messages are keyed by order id so all
// events for one order land on the same partition, preserving their order.
type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

// Publish blocks until the broker acknowledges the write; the outbox relay
// relies on that acknowledgement before marking an event sent.
func (p *Producer) Publish(ctx context.Context, orderID int64, payload []byte) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(orderID, 10)),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("kafka publish order %d: %w", orderID, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
