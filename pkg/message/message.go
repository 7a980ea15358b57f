// Package message defines the core message types and interfaces for export processing.
//
// This package contains the public API for working with consumed Kafka
// messages, their metadata side channel, and the binary frames produced
// from them.
package message

import (
	"fmt"
	"time"
)

// Message represents a single message moving through the export pipeline.
// Payload holds the raw JSON document on the way in and the serialized
// binary frame after a hook has replaced it.
type Message struct {
	ID      string
	Payload []byte
	Kafka   KafkaMetadata
	Meta    *Metadata

	ReceivedAt time.Time
}

// New creates a Message with an empty metadata side channel.
func New(id string, payload []byte) *Message {
	return &Message{
		ID:         id,
		Payload:    payload,
		Meta:       NewMetadata(),
		ReceivedAt: time.Now(),
	}
}

// SetPayload replaces the message payload. Hooks call this once a
// complete frame has been built; the previous payload is released.
func (m *Message) SetPayload(p []byte) {
	m.Payload = p
}

// PartitionID returns the identifier of the partition the message was
// consumed from.
func (m *Message) PartitionID() PartitionID {
	return PartitionID{Topic: m.Kafka.Topic, Partition: m.Kafka.Partition}
}

// KafkaMetadata contains Kafka-specific metadata for a message.
type KafkaMetadata struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Headers   map[string]string
	Timestamp time.Time
}

// PartitionID uniquely identifies a Kafka partition.
type PartitionID struct {
	Topic     string
	Partition int32
}

// String returns a string representation of the partition ID in the format "topic-partition".
func (p PartitionID) String() string {
	return fmt.Sprintf("%s-%d", p.Topic, p.Partition)
}

// Frame represents a serialized export frame ready for a sink.
type Frame struct {
	Data       []byte
	Kafka      KafkaMetadata
	ExportedAt time.Time
}

// BatchStats contains statistics about buffered frames.
type BatchStats struct {
	FrameCount     int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// Validator validates messages before they enter the hook pipeline.
type Validator interface {
	// Validate checks that a message satisfies the envelope contract.
	Validate(msg *Message) error
}

// ConsumedMessage represents a message consumed from Kafka together with
// the callback that commits its offset.
type ConsumedMessage struct {
	Message    *Message
	CommitFunc func() error
}
