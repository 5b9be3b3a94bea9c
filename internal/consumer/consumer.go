// Package consumer provides Kafka consumer functionality for the calendar
// alert topic.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/77zv/EconomicNewsBot-acme/internal/events"
	"github.com/77zv/EconomicNewsBot-acme/internal/producer"
)

const (
	maxPollWait    = 1 * time.Second
	commitInterval = 0 // synchronous commits; the notifier acks explicitly
)

// Consumer wraps a Kafka reader and provides a fetch/commit interface so the
// caller can acknowledge a message only after delivering it. Unacknowledged
// messages are redelivered, giving the at-least-once contract the payloads
// are designed for.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a new Kafka consumer with the specified brokers,
// topic, and group ID.
func NewConsumer(brokers string, topic string, groupID string) (*Consumer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("groupID cannot be empty")
	}

	brokerList := producer.ParseBrokers(brokers)

	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	// StartOffset only applies when no committed offset exists for the
	// consumer group.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokerList,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        maxPollWait,
		CommitInterval: commitInterval,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{
		reader: reader,
		topic:  topic,
	}, nil
}

// FetchMessage fetches the next message without committing its offset and
// deserializes it as an EventAlert.
func (c *Consumer) FetchMessage(ctx context.Context) (*events.EventAlert, *kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch message from Kafka: %w", err)
	}

	var alert events.EventAlert
	if err := json.Unmarshal(msg.Value, &alert); err != nil {
		return nil, &msg, fmt.Errorf("failed to unmarshal alert: %w", err)
	}

	return &alert, &msg, nil
}

// CommitMessage acknowledges a message after it has been delivered to the
// notification surface.
func (c *Consumer) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	return c.reader.CommitMessages(ctx, *msg)
}

// Close gracefully closes the Kafka reader and releases resources.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	return nil
}
