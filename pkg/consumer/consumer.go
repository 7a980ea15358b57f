// Package consumer defines interfaces for Kafka message consumption.
//
// This package provides abstractions for consuming messages from Kafka
// and managing consumer lifecycle.
package consumer

import (
	"context"

	"github.com/jittakal/kafeventexport/pkg/message"
)

// Consumer reads messages from Kafka topics.
type Consumer interface {
	// Subscribe subscribes to one or more topics.
	Subscribe(ctx context.Context, topics []string) error

	// Consume starts consuming messages from subscribed topics.
	// Returns channels for messages and errors.
	Consume(ctx context.Context) (<-chan *message.ConsumedMessage, <-chan error, error)

	// Commit commits the offset for a partition.
	Commit(ctx context.Context, partition message.PartitionID, offset int64) error

	// Close closes the consumer and releases resources.
	Close() error
}

// DLQPublisher publishes rejected messages to a dead letter queue.
type DLQPublisher interface {
	// Publish sends a message to the DLQ with the rejection reason.
	Publish(ctx context.Context, msg *message.Message, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}
