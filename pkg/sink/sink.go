// Package sink defines interfaces for delivering serialized frames to
// downstream stores.
//
// This package provides abstractions for writing batches of binary COPY
// frames to various sink backends (PostgreSQL, S3, local filesystem).
package sink

import (
	"context"
	"time"

	"github.com/jittakal/kafeventexport/pkg/message"
)

// Writer delivers a batch of frames as a single COPY segment.
type Writer interface {
	// Write delivers the frames as one segment identified by path.
	// Returns the number of segment bytes written.
	Write(ctx context.Context, frames []message.Frame, path string) (int64, error)

	// Close closes the writer and releases resources.
	Close() error
}

// Router determines segment paths based on partitioning strategy.
type Router interface {
	// Route returns the segment path for a batch of frames from one
	// partition, covering the offsets [firstOffset, lastOffset], flushed
	// at the given time. The path carries no file extension; writers
	// append their own.
	Route(partition message.PartitionID, firstOffset, lastOffset int64, at time.Time) string
}

// RotationPolicy determines when buffered frames should be flushed to a sink.
type RotationPolicy interface {
	// ShouldRotate returns true if the buffer should be flushed based on stats.
	ShouldRotate(stats message.BatchStats) bool
}
