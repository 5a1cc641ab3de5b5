// Package bot owns the update-dispatch loop: it polls the platform for
// updates, fans each one out to every registered handler, reports failures
// back to the originating chat, and persists the update watermark.
package bot

import (
	"context"

	"github.com/hexflood/switchboard/internal/telegram"
)

// Handler is a unit of feature logic matching and reacting to messages.
// Process returns whether the message matched the handler's trigger;
// a non-nil error aborts only this handler's processing of this message.
// Handlers must be safe to invoke concurrently.
type Handler interface {
	Name() string
	Process(ctx context.Context, msg *telegram.Message) (handled bool, err error)
}
