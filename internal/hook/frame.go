package hook

import (
	"bytes"
	"encoding/binary"
)

// nullField is the length sentinel for an exported null. It matches the
// value Postgres binary COPY uses for null fields.
const nullField = ^uint32(0)

// serialize builds the binary frame for one invocation: a big endian
// uint16 field count followed by one length-prefixed value per stored
// needle, in declared order. Null fields carry the sentinel length and
// no payload. The frame is the tuple section of a binary COPY stream.
func (s *needleSet) serialize(scratch []needleScratch) []byte {
	size := 2
	for i, n := range s.needles {
		if !n.stores {
			continue
		}
		size += 4 + len(scratch[i].result)
	}

	var buf bytes.Buffer
	buf.Grow(size)

	var word [8]byte
	binary.BigEndian.PutUint16(word[:2], s.stored)
	buf.Write(word[:2])

	for i, n := range s.needles {
		if !n.stores {
			continue
		}
		if scratch[i].absent {
			binary.BigEndian.PutUint32(word[:4], nullField)
			buf.Write(word[:4])
			continue
		}
		binary.BigEndian.PutUint32(word[:4], uint32(len(scratch[i].result)))
		buf.Write(word[:4])
		buf.Write(scratch[i].result)
	}

	return buf.Bytes()
}
