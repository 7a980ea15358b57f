// Package hook defines interfaces for message transformation hooks.
//
// Hooks run between consumption and sink delivery. Each hook inspects a
// message and either passes it along (possibly rewriting the payload),
// discards it, or fails it.
package hook

import (
	"github.com/jittakal/kafeventexport/pkg/message"
)

// Type identifies a hook implementation.
type Type string

const (
	// TypeJSONExport extracts JSON fields into binary COPY frames.
	TypeJSONExport Type = "jsonexport"
)

// Hook transforms messages in place.
// All implementations must be safe for concurrent use; the pipeline may
// call Process from multiple goroutines at once.
type Hook interface {
	// Process runs the hook against a message.
	//
	// It returns (true, nil) when the message passed and should continue
	// through the pipeline, (false, nil) when the message was discarded
	// by a filter, and (false, err) when processing failed. The message
	// payload is only modified on success.
	Process(msg *message.Message) (bool, error)

	// Name returns the hook type name.
	Name() string

	// Close releases resources held by the hook.
	Close() error
}
