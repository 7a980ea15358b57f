package validator

import (
	"errors"
	"testing"

	apperrors "github.com/jittakal/kafeventexport/internal/errors"
	"github.com/jittakal/kafeventexport/pkg/message"
)

func TestNewEnvelopeValidator(t *testing.T) {
	validator := NewEnvelopeValidator()
	if validator == nil {
		t.Fatal("expected non-nil validator")
	}
}

func TestEnvelopeValidator_ValidateSuccess(t *testing.T) {
	validator := NewEnvelopeValidator()

	tests := []struct {
		name    string
		payload []byte
	}{
		{
			name:    "simple object",
			payload: []byte(`{"id":"widget-7"}`),
		},
		{
			name:    "nested document",
			payload: []byte(`{"order":{"id":"o-1","lines":[1,2,3]}}`),
		},
		{
			name:    "payload with high bytes",
			payload: []byte(`{"name":"café"}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := message.New("test-id", tt.payload)
			if err := validator.Validate(msg); err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}

func TestEnvelopeValidator_ValidateErrors(t *testing.T) {
	validator := NewEnvelopeValidator()

	tests := []struct {
		name      string
		msg       *message.Message
		wantField string
	}{
		{
			name:      "missing id",
			msg:       &message.Message{Payload: []byte(`{}`)},
			wantField: "id",
		},
		{
			name:      "nil payload",
			msg:       &message.Message{ID: "test-id"},
			wantField: "payload",
		},
		{
			name:      "empty payload",
			msg:       &message.Message{ID: "test-id", Payload: []byte{}},
			wantField: "payload",
		},
		{
			name:      "NUL byte in payload",
			msg:       &message.Message{ID: "test-id", Payload: []byte("{\"a\":\"b\x00c\"}")},
			wantField: "payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.msg)
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}

			var valErr *apperrors.ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("Validate() error type = %T, want *errors.ValidationError", err)
			}
			if valErr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", valErr.Field, tt.wantField)
			}
		})
	}
}

func TestEnvelopeValidator_ImplementsInterface(t *testing.T) {
	var _ message.Validator = (*EnvelopeValidator)(nil)
}
