// Package torrent forwards .torrent attachments to a Transmission daemon.
package torrent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hexflood/switchboard/internal/telegram"
	"github.com/hexflood/switchboard/internal/transmission"
)

// Telegram covers the platform calls the handler makes: resolving and
// downloading the attached file, and replying to the chat.
type Telegram interface {
	GetFile(ctx context.Context, fileID string) (telegram.File, error)
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)
	SendMessage(ctx context.Context, msg telegram.SendMessage) error
}

// Downloader accepts raw torrent metainfo.
type Downloader interface {
	AddTorrent(ctx context.Context, metainfo []byte) (*transmission.AddResult, error)
}

// Handler picks up .torrent documents and hands them to the download daemon.
type Handler struct {
	telegram   Telegram
	downloader Downloader
}

type HandlerOpts struct {
	Telegram   Telegram
	Downloader Downloader
}

func NewHandler(opts HandlerOpts) (*Handler, error) {
	if opts.Telegram == nil {
		return nil, fmt.Errorf("torrent: telegram client is required")
	}
	if opts.Downloader == nil {
		return nil, fmt.Errorf("torrent: downloader client is required")
	}
	return &Handler{telegram: opts.Telegram, downloader: opts.Downloader}, nil
}

// Name implements bot.Handler.
func (h *Handler) Name() string { return "Torrent" }

// Process implements bot.Handler. The trigger is a document attachment
// whose file name ends in .torrent; message text is ignored.
func (h *Handler) Process(ctx context.Context, msg *telegram.Message) (bool, error) {
	doc := msg.Document
	if doc == nil || !strings.HasSuffix(doc.FileName, ".torrent") {
		return false, nil
	}

	file, err := h.telegram.GetFile(ctx, doc.FileID)
	if err != nil {
		return true, err
	}
	metainfo, err := h.telegram.DownloadFile(ctx, file.FilePath)
	if err != nil {
		return true, err
	}
	result, err := h.downloader.AddTorrent(ctx, metainfo)
	if err != nil {
		return true, err
	}

	var text string
	switch result.Status {
	case transmission.Duplicate:
		text = fmt.Sprintf("%s is already in the download queue", result.Name)
	default:
		text = fmt.Sprintf("%s added to the download queue", result.Name)
	}
	return true, h.telegram.SendMessage(ctx, telegram.SendMessage{
		ChatID:           msg.Chat.ID,
		Text:             text,
		ReplyToMessageID: msg.MessageID,
	})
}
