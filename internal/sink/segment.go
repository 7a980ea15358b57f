// Package sink implements sink writers delivering COPY segments.
package sink

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jittakal/kafeventexport/pkg/message"
)

// copySignature is the fixed 11-byte signature opening a COPY BINARY stream.
var copySignature = []byte{'P', 'G', 'C', 'O', 'P', 'Y', '\n', 0xFF, '\r', '\n', 0x00}

// segmentOverhead is signature (11) + flags (4) + header extension
// length (4) + file trailer (2).
const segmentOverhead = 11 + 4 + 4 + 2

// BuildSegment assembles a complete COPY BINARY segment from serialized
// frames: signature, zero flags, empty header extension, one tuple per
// frame, and the 0xFFFF end-of-data trailer. Each frame is already a
// well-formed tuple (field count followed by length-prefixed fields), so
// the segment is a pure concatenation between header and trailer.
func BuildSegment(frames []message.Frame) []byte {
	size := SegmentSize(frames)

	var buf bytes.Buffer
	buf.Grow(size)

	buf.Write(copySignature)

	var header [8]byte // flags (u32 zero) + header extension length (u32 zero)
	buf.Write(header[:])

	for _, f := range frames {
		buf.Write(f.Data)
	}

	var trailer [2]byte
	binary.BigEndian.PutUint16(trailer[:], 0xFFFF)
	buf.Write(trailer[:])

	return buf.Bytes()
}

// SegmentSize returns the exact byte size of the segment BuildSegment
// would produce for the frames.
func SegmentSize(frames []message.Frame) int {
	size := segmentOverhead
	for _, f := range frames {
		size += len(f.Data)
	}
	return size
}

// batchBounds returns the partition and offset range of a frame batch.
// All frames in one batch belong to the same partition.
func batchBounds(frames []message.Frame) (partition message.PartitionID, first, last int64, err error) {
	if len(frames) == 0 {
		return message.PartitionID{}, 0, 0, fmt.Errorf("no frames to write")
	}
	partition = message.PartitionID{
		Topic:     frames[0].Kafka.Topic,
		Partition: frames[0].Kafka.Partition,
	}
	return partition, frames[0].Kafka.Offset, frames[len(frames)-1].Kafka.Offset, nil
}
