// Package hook implements the message transformation hooks and their factory.
package hook

import (
	"fmt"
	"log/slog"

	"github.com/jittakal/kafeventexport/internal/errors"
	"github.com/jittakal/kafeventexport/pkg/hook"
)

// New creates a hook by type name.
func New(hookType string, jpointers []any, logger *slog.Logger) (hook.Hook, error) {
	switch hook.Type(hookType) {
	case hook.TypeJSONExport:
		return NewJSONExporter(jpointers, logger)
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownHook, hookType)
	}
}

// SupportedTypes returns the hook types the factory can build.
func SupportedTypes() []hook.Type {
	return []hook.Type{
		hook.TypeJSONExport,
	}
}
