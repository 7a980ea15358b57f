// Package hook implements message transformation hooks.
//
// Hooks run between Kafka consumption and sink delivery. The jsonexport
// hook dereferences configured JSON pointers against each payload,
// filters on the extracted values, and rewrites the payload into the
// tuple section of a Postgres binary COPY stream.
//
// # Hook Factory
//
// Hooks are created by type name:
//
//	h, err := hook.New("jsonexport", jpointers, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close()
//
// Multiple hooks run as an ordered chain:
//
//	chain := hook.NewChain([]pkghook.Hook{h}, logger)
//	ok, err := chain.Process(msg)
//
// # Needle Configuration
//
// Each jpointers entry compiles into a needle: a JSON pointer plus a
// target type, an action and a filter. Three shapes are accepted and
// normalized to the same canonical rule:
//
//	jpointers:
//	  - /plain/pointer
//	  - ["/list/pointer", "timestamp", "store_true", "exists"]
//	  - jpointer: /named/pointer
//	    pqtype: text
//	    action: discard_false
//	    filter: match
//	    data: expected-value
//
// Omitted members default to text, store, noop and an empty literal.
// Unknown type, action or filter names fail hook construction; nothing
// is deferred to message processing.
//
// # Filters and Actions
//
// Filters test the value a pointer resolved to:
//
//   - noop: always passes (default)
//   - match: canonical text equals the configured literal
//   - substr: canonical text contains the configured literal
//   - exists: the pointer resolved, including to a JSON null
//
// Actions combine the filter result with the needle's role:
//
//   - store: export the field, or null, whatever happens
//   - store_true: export the field when the filter passes
//   - discard_false: drop the whole message when the filter fails
//   - discard_true: drop the whole message when the filter passes
//   - store_meta: export the field and publish it as message metadata
//
// store_true and discard_false abort the message on exactly the same
// filter results. The two differ only in whether the field occupies a
// slot in the frame when the filter passes; a store_true needle whose
// filter fails never exports a null, it drops the message.
//
// # Frame Format
//
// The serialized payload is a big endian uint16 field count followed by
// one uint32 length-prefixed value per stored needle, in declared
// order. Null fields carry the length sentinel 0xFFFFFFFF and no
// payload bytes. Prepending the COPY signature header and appending the
// file trailer turns a sequence of frames into a loadable binary COPY
// stream; that framing belongs to the sinks.
//
// # Timestamp Conversion
//
// Needles with pqtype timestamp parse RFC 3339 UTC timestamps of the
// shape 2019-11-05T11:31:34Z or 2019-11-05T11:31:34.123456Z and export
// microseconds since 2000-01-01T00:00:00Z as a big endian uint64, the
// representation Postgres stores natively. Fractions longer than six
// digits are truncated. Years 2000 through 4027 are accepted; a shared
// table of accumulated leap days keeps the conversion arithmetic flat.
//
// # Thread Safety
//
// A compiled hook is immutable and safe for concurrent use. Process
// keeps all per-invocation state in a scratch slice and parses payloads
// with a pooled fastjson parser.
package hook
