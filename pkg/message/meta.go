package message

import (
	"sort"
	"strconv"
)

// DatumKind identifies the type of a metadata datum.
type DatumKind int

const (
	// DatumString is a text datum.
	DatumString DatumKind = iota
	// DatumInt64 is a signed integer datum.
	DatumInt64
)

// Datum is a single typed metadata value.
type Datum struct {
	Kind DatumKind
	Str  string
	Int  int64
}

// StringDatum creates a text datum.
func StringDatum(s string) Datum {
	return Datum{Kind: DatumString, Str: s}
}

// Int64Datum creates an integer datum.
func Int64Datum(i int64) Datum {
	return Datum{Kind: DatumInt64, Int: i}
}

// String returns the canonical text form of the datum.
func (d Datum) String() string {
	if d.Kind == DatumInt64 {
		return strconv.FormatInt(d.Int, 10)
	}
	return d.Str
}

// Metadata is the typed key-value side channel that travels with a
// message. Hooks publish decoded values into it for downstream
// consumers. Inserting under an existing key replaces the value.
//
// Metadata is not safe for concurrent use; each message owns its own
// instance.
type Metadata struct {
	entries map[string]Datum
}

// NewMetadata creates an empty metadata set.
func NewMetadata() *Metadata {
	return &Metadata{entries: make(map[string]Datum)}
}

// Insert stores d under key, replacing any existing value.
func (m *Metadata) Insert(key string, d Datum) {
	m.entries[key] = d
}

// Get returns the datum stored under key.
func (m *Metadata) Get(key string) (Datum, bool) {
	d, ok := m.entries[key]
	return d, ok
}

// Keys returns all metadata keys in sorted order.
func (m *Metadata) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (m *Metadata) Len() int {
	return len(m.entries)
}
