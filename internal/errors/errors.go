// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/jittakal/kafeventexport/pkg/message"
)

// Sentinel errors for common conditions.
var (
	ErrBufferFull     = errors.New("buffer is full")
	ErrConsumerClosed = errors.New("consumer is closed")
	ErrInvalidMessage = errors.New("invalid message")
	ErrHookClosed     = errors.New("hook is closed")
	ErrUnknownHook    = errors.New("unknown hook type")
	ErrWriterClosed   = errors.New("sink writer is closed")
	ErrConnectionLost = errors.New("connection lost")
)

// HookError represents a per-message failure inside a hook.
type HookError struct {
	Hook      string
	MessageID string
	Pointer   string
	Err       error
}

func (e *HookError) Error() string {
	if e.Pointer != "" {
		return fmt.Sprintf("hook error: hook=%s message_id=%s pointer=%s: %v",
			e.Hook, e.MessageID, e.Pointer, e.Err)
	}
	return fmt.Sprintf("hook error: hook=%s message_id=%s: %v",
		e.Hook, e.MessageID, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// RuleError represents an invalid hook rule detected at startup.
type RuleError struct {
	Hook   string
	Index  int
	Field  string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule error: hook=%s rule=%d field=%s: %s",
		e.Hook, e.Index, e.Field, e.Reason)
}

// ValidationError represents a message envelope violation.
type ValidationError struct {
	MessageID string
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: message_id=%s field=%s: %s",
		e.MessageID, e.Field, e.Reason)
}

// SinkError represents a sink operation failure.
type SinkError struct {
	Operation string
	Target    string
	Err       error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error: operation=%s target=%s: %v",
		e.Operation, e.Target, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// CommitError represents an offset commit failure.
type CommitError struct {
	PartitionID message.PartitionID
	Offset      int64
	Err         error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit error: partition=%s offset=%d: %v",
		e.PartitionID, e.Offset, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking specific error types and sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Check if error implements Retryable interface
	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	// Check specific error types
	var sinkErr *SinkError
	if errors.As(err, &sinkErr) {
		return sinkErr.IsRetryable()
	}

	// Check sentinel errors
	if errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}

// IsRetryable determines if a SinkError is retryable based on the operation type.
func (e *SinkError) IsRetryable() bool {
	// Write, copy and upload operations are generally retryable
	return e.Operation == "write" || e.Operation == "copy" || e.Operation == "upload" || e.Operation == "connect"
}

// IsRetryable determines if a HookError is retryable. Hook failures are
// caused by the message content itself, so redelivery cannot fix them.
func (e *HookError) IsRetryable() bool {
	return false
}
