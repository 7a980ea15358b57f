// Package validator provides message envelope validation.
package validator

import (
	"bytes"
	"fmt"

	"github.com/jittakal/kafeventexport/internal/errors"
	"github.com/jittakal/kafeventexport/pkg/message"
)

// EnvelopeValidator checks that a consumed message satisfies the export
// envelope contract before it enters the hook pipeline.
type EnvelopeValidator struct{}

// NewEnvelopeValidator creates a new envelope validator.
func NewEnvelopeValidator() *EnvelopeValidator {
	return &EnvelopeValidator{}
}

// Validate validates a message. The payload must be present and must not
// contain a NUL byte; hooks treat the payload as a NUL-free byte string
// when handing field boundaries to the frame serializer.
func (v *EnvelopeValidator) Validate(msg *message.Message) error {
	if msg.ID == "" {
		return &errors.ValidationError{
			MessageID: msg.ID,
			Field:     "id",
			Reason:    "required field is missing",
		}
	}

	if len(msg.Payload) == 0 {
		return &errors.ValidationError{
			MessageID: msg.ID,
			Field:     "payload",
			Reason:    "payload is empty",
		}
	}

	if i := bytes.IndexByte(msg.Payload, 0); i >= 0 {
		return &errors.ValidationError{
			MessageID: msg.ID,
			Field:     "payload",
			Reason:    fmt.Sprintf("payload contains NUL byte at offset %d", i),
		}
	}

	return nil
}
