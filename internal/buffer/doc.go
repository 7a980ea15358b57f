// Package buffer provides thread-safe buffering for serialized frames.
//
// This package implements in-memory buffering with automatic size and count
// limits, designed for batching frames before delivering them to a sink.
//
// # PartitionBuffer
//
// PartitionBuffer is a thread-safe buffer for a single Kafka partition:
//
//	buf := buffer.New(partition, maxSizeBytes, maxFrames)
//
//	// Add frames until the buffer is full
//	for _, frame := range frames {
//	    if err := buf.Add(frame); err != nil {
//	        if errors.Is(err, errors.ErrBufferFull) {
//	            // Buffer is full, drain and flush
//	            batch := buf.Drain()
//	            flush(batch)
//	        }
//	    }
//	}
//
// # Buffer Manager
//
// Manager handles multiple partition buffers with automatic creation:
//
//	manager := buffer.NewManager(maxSizeBytes, maxFrames)
//
//	// Get or create buffer for partition
//	buf := manager.GetOrCreate(partition)
//
//	// Manager automatically creates new buffers as needed
//	// and maintains them in a thread-safe map
//
// # Thread Safety
//
// All buffer operations are thread-safe using read-write mutexes:
//
//   - Add(), Drain(), Reset() use write locks
//   - Stats(), IsEmpty() use read locks
//   - Manager.GetOrCreate() uses double-checked locking
//
// # Memory Management
//
// Buffers pre-allocate slices with capacity equal to maxFrames to minimize
// allocations during normal operation. The Drain() method returns the internal
// slice, which is safe to use but should be processed promptly.
//
// # Statistics
//
// BatchStats provides buffer metrics consumed by the rotation policy:
//
//	stats := buf.Stats()
//	fmt.Printf("Frames: %d, Size: %d bytes\n",
//	    stats.FrameCount, stats.SizeBytes)
//	fmt.Printf("First write: %v\n", stats.FirstWriteTime)
package buffer
