// Package health answers liveness pings sent to the bot in chat.
package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/hexflood/switchboard/internal/telegram"
)

// Telegram is the outbound surface the handler needs.
type Telegram interface {
	SendMessage(ctx context.Context, msg telegram.SendMessage) error
}

// Handler replies "pong" to any message starting with "ping".
type Handler struct {
	telegram Telegram
}

func NewHandler(tg Telegram) (*Handler, error) {
	if tg == nil {
		return nil, fmt.Errorf("health: telegram client is required")
	}
	return &Handler{telegram: tg}, nil
}

// Name implements bot.Handler.
func (h *Handler) Name() string { return "HealthCheck" }

// Process implements bot.Handler.
func (h *Handler) Process(ctx context.Context, msg *telegram.Message) (bool, error) {
	if !strings.HasPrefix(msg.Text, "ping") {
		return false, nil
	}
	err := h.telegram.SendMessage(ctx, telegram.SendMessage{
		ChatID:           msg.Chat.ID,
		Text:             "pong",
		ReplyToMessageID: msg.MessageID,
	})
	return true, err
}
