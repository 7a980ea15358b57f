// Package buffer implements frame buffering for batch sink delivery.
package buffer

import (
	"fmt"
	"sync"
	"time"

	"github.com/jittakal/kafeventexport/internal/errors"
	"github.com/jittakal/kafeventexport/pkg/buffer"
	"github.com/jittakal/kafeventexport/pkg/message"
)

// Ensure implementation satisfies interface at compile time.
var _ buffer.Buffer = (*PartitionBuffer)(nil)

// PartitionBuffer buffers serialized frames for a single Kafka partition.
// It provides thread-safe buffering with size limits and frame count limits.
// The buffer tracks first and last write times for rotation decisions.
type PartitionBuffer struct {
	partition      message.PartitionID
	frames         []message.Frame
	maxSizeBytes   int64
	maxFrames      int
	currentSize    int64
	firstWriteTime time.Time
	lastWriteTime  time.Time
	mu             sync.RWMutex
}

// New creates a new partition buffer. A zero limit disables that cap,
// matching the rotation policy's treatment of disabled criteria.
func New(partition message.PartitionID, maxSizeBytes int64, maxFrames int) *PartitionBuffer {
	return &PartitionBuffer{
		partition:    partition,
		frames:       make([]message.Frame, 0, maxFrames),
		maxSizeBytes: maxSizeBytes,
		maxFrames:    maxFrames,
	}
}

// Add adds a frame to the buffer. Frame size is exact, not estimated;
// the frame is already the serialized bytes the sink will receive.
func (b *PartitionBuffer) Add(frame message.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameSize := int64(len(frame.Data))

	if b.maxFrames > 0 && len(b.frames) >= b.maxFrames {
		return fmt.Errorf("%w: max frames (%d) reached", errors.ErrBufferFull, b.maxFrames)
	}

	if b.maxSizeBytes > 0 && b.currentSize+frameSize > b.maxSizeBytes {
		return fmt.Errorf("%w: max size (%d bytes) would be exceeded", errors.ErrBufferFull, b.maxSizeBytes)
	}

	b.frames = append(b.frames, frame)
	b.currentSize += frameSize

	now := time.Now()
	if b.firstWriteTime.IsZero() {
		b.firstWriteTime = now
	}
	b.lastWriteTime = now

	return nil
}

// Drain removes and returns all frames from the buffer.
// The returned slice is owned by the caller and will not be modified by the
// buffer. The caller should process the frames promptly as the underlying
// array may be reused after subsequent calls to Add.
func (b *PartitionBuffer) Drain() []message.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	frames := b.frames
	b.reset()
	return frames
}

// Stats returns current buffer statistics.
func (b *PartitionBuffer) Stats() message.BatchStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return message.BatchStats{
		FrameCount:     len(b.frames),
		SizeBytes:      b.currentSize,
		FirstWriteTime: b.firstWriteTime,
		LastWriteTime:  b.lastWriteTime,
	}
}

// IsEmpty returns true if the buffer is empty.
func (b *PartitionBuffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.frames) == 0
}

// Reset clears the buffer and resets all statistics.
func (b *PartitionBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *PartitionBuffer) reset() {
	b.frames = make([]message.Frame, 0, b.maxFrames)
	b.currentSize = 0
	b.firstWriteTime = time.Time{}
	b.lastWriteTime = time.Time{}
}

// Manager manages buffers for multiple Kafka partitions.
// It provides thread-safe access to partition-specific buffers, creating them
// on-demand. Uses double-checked locking for efficient concurrent access.
type Manager struct {
	buffers      map[message.PartitionID]*PartitionBuffer
	maxSizeBytes int64
	maxFrames    int
	mu           sync.RWMutex
}

// NewManager creates a new buffer manager.
func NewManager(maxSizeBytes int64, maxFrames int) *Manager {
	return &Manager{
		buffers:      make(map[message.PartitionID]*PartitionBuffer),
		maxSizeBytes: maxSizeBytes,
		maxFrames:    maxFrames,
	}
}

// GetOrCreate returns a buffer for the partition, creating if needed.
func (m *Manager) GetOrCreate(partition message.PartitionID) buffer.Buffer {
	m.mu.RLock()
	buf, exists := m.buffers[partition]
	m.mu.RUnlock()

	if exists {
		return buf
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if buf, exists := m.buffers[partition]; exists {
		return buf
	}

	buf = New(partition, m.maxSizeBytes, m.maxFrames)
	m.buffers[partition] = buf
	return buf
}

// Partitions returns the partitions that currently have a buffer, in no
// particular order.
func (m *Manager) Partitions() []message.PartitionID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	partitions := make([]message.PartitionID, 0, len(m.buffers))
	for p := range m.buffers {
		partitions = append(partitions, p)
	}
	return partitions
}
