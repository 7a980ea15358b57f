// Package message defines the core message types and interfaces for export processing.
//
// This package provides the public API for working with messages consumed
// from Kafka, the typed metadata side channel hooks publish into, and the
// binary frames the export pipeline hands to sinks.
//
// # Core Types
//
// Message carries a raw JSON payload along with Kafka metadata:
//
//	msg := message.New("unique-message-id", []byte(`{"key": "value"}`))
//	msg.Kafka = message.KafkaMetadata{
//	    Topic:     "events",
//	    Partition: 0,
//	    Offset:    12345,
//	    Timestamp: time.Now(),
//	}
//
// After a hook runs, the payload holds the serialized frame instead of
// the original document:
//
//	msg.SetPayload(frameBytes)
//
// # Metadata Side Channel
//
// Hooks publish decoded values for downstream consumers as typed datums.
// Inserting under an existing key replaces the previous value:
//
//	msg.Meta.Insert("jpointer", message.StringDatum("widget-7"))
//	d, ok := msg.Meta.Get("jpointer")
//
// # Partition Identification
//
// PartitionID uniquely identifies a Kafka topic partition:
//
//	pid := message.PartitionID{
//	    Topic:     "user-events",
//	    Partition: 5,
//	}
//	key := pid.String() // "user-events-5"
//
// # Frames
//
// Frame combines serialized frame bytes with the Kafka coordinates of the
// message they came from, ready for batching and sink delivery:
//
//	frame := message.Frame{
//	    Data:       frameBytes,
//	    Kafka:      msg.Kafka,
//	    ExportedAt: time.Now(),
//	}
//
// # Validation
//
// Use the Validator interface to enforce the envelope contract before a
// message enters the hook pipeline:
//
//	type Validator interface {
//	    Validate(msg *Message) error
//	}
package message
