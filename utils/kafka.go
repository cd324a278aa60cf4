package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes keyed messages to a single topic. Messages sharing
// a key land on the same partition, so they are consumed in publish order.
type KafkaProducer interface {
	Publish(ctx context.Context, key string, value []byte) error
	Topic() string
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer checks that broker answers within ctx and returns a
// producer for topic. The topic is created on first write if the broker
// allows it.
func NewKafkaProducer(ctx context.Context, broker, topic string) (KafkaProducer, error) {
	if broker == "" {
		return nil, fmt.Errorf("kafka broker address is empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is empty")
	}

	dialer := &kafka.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", broker)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Kafka at %s: %w", broker, err)
	}
	brokers, err := conn.Brokers()
	conn.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read Kafka cluster metadata: %w", err)
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka at %s reported no brokers", broker)
	}

	return &kafkaProducer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}}, nil
}

func (k *kafkaProducer) Publish(ctx context.Context, key string, value []byte) error {
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", k.writer.Topic, err)
	}
	return nil
}

func (k *kafkaProducer) Topic() string {
	return k.writer.Topic
}

func (k *kafkaProducer) Close() error {
	return k.writer.Close()
}
