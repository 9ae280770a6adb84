package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used by KafkaTransport.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a Kafka transport.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaTransport writes events to one topic, keyed by output so each
// output's events stay ordered within a partition.
type KafkaTransport struct {
	writer messageWriter
}

// NewKafkaTransport creates a synchronous writer for cfg.Topic.
func NewKafkaTransport(cfg KafkaConfig) (*KafkaTransport, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: no topic configured")
	}
	return &KafkaTransport{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Async:        false,
	}}, nil
}

// Send implements Transport.
func (t *KafkaTransport) Send(ctx context.Context, key, kind string, payload []byte) error {
	err := t.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(kind)}},
	})
	if err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close implements Transport.
func (t *KafkaTransport) Close() error {
	return t.writer.Close()
}
