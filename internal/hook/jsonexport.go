package hook

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/valyala/fastjson"

	"github.com/jittakal/kafeventexport/internal/errors"
	"github.com/jittakal/kafeventexport/pkg/hook"
	"github.com/jittakal/kafeventexport/pkg/message"
)

const jsonExportName = string(hook.TypeJSONExport)

// MetadataKey is the metadata key decoded values are published under.
const MetadataKey = "jpointer"

var _ hook.Hook = (*JSONExporter)(nil)

// JSONExporter dereferences configured JSON pointers against each
// message, filters on the extracted values, and replaces the payload
// with a binary COPY frame of the stored fields.
//
// The compiled needle set and the leap day table are shared by all
// invocations and never mutated; per-invocation state lives in a
// scratch slice local to Process. JSONExporter is safe for concurrent
// use.
type JSONExporter struct {
	log     *slog.Logger
	set     *needleSet
	parsers fastjson.ParserPool
	closed  atomic.Bool
}

// NewJSONExporter compiles the jpointers configuration into an
// exporter. Configuration errors are returned, never deferred to
// message processing.
func NewJSONExporter(jpointers []any, logger *slog.Logger) (*JSONExporter, error) {
	rules, err := Normalize(jpointers)
	if err != nil {
		return nil, err
	}

	e := &JSONExporter{
		log: logger,
		set: compile(rules, newLeapTable()),
	}

	logger.Info("jsonexport hook initialized",
		"needles", len(e.set.needles),
		"fields", e.set.stored)

	return e, nil
}

// Name returns the hook type name.
func (e *JSONExporter) Name() string {
	return jsonExportName
}

// Rules returns the compiled rule count and the number of fields each
// frame will carry. Sinks validate their column count against Fields.
func (e *JSONExporter) Rules() (needles, fields int) {
	return len(e.set.needles), int(e.set.stored)
}

// Process runs every needle against the message payload in declared
// order. It returns (false, nil) when a filter decided to discard the
// message and (false, err) when the payload could not be parsed or a
// value could not be converted. On success the payload is replaced by
// the serialized frame and store_meta values are published to the
// message metadata.
func (e *JSONExporter) Process(msg *message.Message) (bool, error) {
	if e.closed.Load() {
		return false, errors.ErrHookClosed
	}

	parser := e.parsers.Get()
	defer e.parsers.Put(parser)

	haystack, err := parser.ParseBytes(msg.Payload)
	if err != nil {
		e.log.Warn("failed to tokenize payload",
			"message_id", msg.ID,
			"error", err)
		return false, &errors.HookError{
			Hook:      jsonExportName,
			MessageID: msg.ID,
			Err:       fmt.Errorf("parse payload: %w", err),
		}
	}

	scratch := make([]needleScratch, len(e.set.needles))

	for i, n := range e.set.needles {
		found := n.resolve(haystack)
		resolved := found != nil
		present := resolved && found.Type() != fastjson.TypeNull

		if !n.decide.apply(n.test.accept(resolved, found), present, &scratch[i]) {
			e.log.Debug("message discarded by needle",
				"message_id", msg.ID,
				"pointer", n.pointer)
			return false, nil
		}

		if !present {
			// unresolved and null both export as a null field
			scratch[i].absent = true
			continue
		}

		if err := n.convert.convert(found, &scratch[i]); err != nil {
			e.log.Warn("failed to dereference pointer",
				"message_id", msg.ID,
				"pointer", n.pointer,
				"error", err)
			return false, &errors.HookError{
				Hook:      jsonExportName,
				MessageID: msg.ID,
				Pointer:   n.pointer,
				Err:       err,
			}
		}

		if scratch[i].metadata {
			scratch[i].canonical = canonicalBytes(found)
		}
	}

	frame := e.set.serialize(scratch)

	for i := range scratch {
		if !scratch[i].metadata {
			continue
		}
		if msg.Meta == nil {
			msg.Meta = message.NewMetadata()
		}
		// string conversion takes the copy that outlives the parser
		msg.Meta.Insert(MetadataKey, message.StringDatum(string(scratch[i].canonical)))
	}

	msg.SetPayload(frame)
	return true, nil
}

// Close marks the exporter closed. Further Process calls fail with
// ErrHookClosed. Close is idempotent.
func (e *JSONExporter) Close() error {
	e.closed.Store(true)
	return nil
}
