package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaMirror struct {
	writer *kafka.Writer
}

func NewKafkaMirror(brokers []string, topic string) *KafkaMirror {
	return &KafkaMirror{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Mirror publishes e keyed by commerce order id so events of one order stay ordered.
func (k *KafkaMirror) Mirror(ctx context.Context, e Event) error {
	v, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.CommerceOrderID),
		Value: v,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	})
}

func (k *KafkaMirror) Close() error {
	return k.writer.Close()
}
