// Package events publishes session changes to Kafka so other services can
// follow logins, logouts and role switches.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Publisher sends a JSON-encodable event keyed by key to topic
type Publisher interface {
	Publish(topic, key string, event any) error
}

// ProducerConfig holds Kafka producer settings
type ProducerConfig struct {
	Brokers string
}

// Producer wraps the Kafka producer
type Producer struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewProducer creates an idempotent producer that waits for all replicas
func NewProducer(cfg ProducerConfig, logger *slog.Logger) (*Producer, error) {
	brokers := strings.TrimSpace(cfg.Brokers)
	if brokers == "" {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":                     brokers,
		"enable.idempotence":                    true,
		"acks":                                  "all",
		"max.in.flight.requests.per.connection": 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	producer := &Producer{producer: p, logger: logger}
	go producer.handleDeliveryReports()

	logger.Info("Kafka producer initialized", "brokers", brokers)
	return producer, nil
}

// Publish enqueues event without waiting for delivery
func (p *Producer) Publish(topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(key),
		Value: data,
	}

	if err := p.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	p.logger.Debug("Session event queued", "topic", topic, "size", len(data))
	return nil
}

// handleDeliveryReports logs asynchronous delivery results
func (p *Producer) handleDeliveryReports() {
	for e := range p.producer.Events() {
		ev, ok := e.(*kafka.Message)
		if !ok {
			continue
		}
		if ev.TopicPartition.Error != nil {
			p.logger.Error("Delivery failed",
				"topic", *ev.TopicPartition.Topic,
				"error", ev.TopicPartition.Error)
			continue
		}
		p.logger.Debug("Message delivered",
			"topic", *ev.TopicPartition.Topic,
			"partition", ev.TopicPartition.Partition,
			"offset", ev.TopicPartition.Offset)
	}
}

// Close flushes pending messages for up to ten seconds and closes the producer
func (p *Producer) Close() {
	if remaining := p.producer.Flush(10000); remaining > 0 {
		p.logger.Error("Some messages were not delivered", "count", remaining)
	}
	p.producer.Close()
	p.logger.Info("Kafka producer closed")
}
