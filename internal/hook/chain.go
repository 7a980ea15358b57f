package hook

import (
	"log/slog"

	"github.com/jittakal/kafeventexport/pkg/hook"
	"github.com/jittakal/kafeventexport/pkg/message"
)

// Chain runs hooks against a message in configured order.
type Chain struct {
	log   *slog.Logger
	hooks []hook.Hook
}

// NewChain creates a hook chain.
func NewChain(hooks []hook.Hook, logger *slog.Logger) *Chain {
	return &Chain{
		log:   logger,
		hooks: hooks,
	}
}

// Process passes the message through every hook. The first hook that
// discards or fails the message stops the chain.
func (c *Chain) Process(msg *message.Message) (bool, error) {
	for _, h := range c.hooks {
		ok, err := h.Process(msg)
		if err != nil {
			return false, err
		}
		if !ok {
			c.log.Debug("message discarded",
				"message_id", msg.ID,
				"hook", h.Name())
			return false, nil
		}
	}
	return true, nil
}

// Len returns the number of hooks in the chain.
func (c *Chain) Len() int {
	return len(c.hooks)
}

// Close closes every hook in the chain. All hooks are closed even when
// one of them fails; the first error is returned.
func (c *Chain) Close() error {
	var firstErr error
	for _, h := range c.hooks {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
