// Package buffer defines interfaces for frame buffering operations.
//
// Buffers are used to batch serialized frames before delivering them to
// a sink, improving throughput and reducing sink round trips.
package buffer

import (
	"github.com/jittakal/kafeventexport/pkg/message"
)

// Buffer manages buffering of frames before sink delivery.
// All implementations must be thread-safe.
type Buffer interface {
	// Add adds a frame to the buffer.
	// Returns an error if the buffer is full or capacity would be exceeded.
	Add(frame message.Frame) error

	// Drain removes and returns all frames from the buffer.
	// The buffer is reset after draining.
	Drain() []message.Frame

	// Stats returns current buffer statistics without modifying the buffer.
	Stats() message.BatchStats

	// IsEmpty returns true if the buffer contains no frames.
	IsEmpty() bool

	// Reset clears the buffer and resets all statistics.
	Reset()
}

// Manager creates and manages buffers for partitions.
type Manager interface {
	// GetOrCreate returns a buffer for the given partition,
	// creating one if it doesn't exist.
	GetOrCreate(partition message.PartitionID) Buffer
}
