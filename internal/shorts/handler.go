// Package shorts downloads short-form videos and posts them back into
// the chat as native video messages.
package shorts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hexflood/switchboard/internal/telegram"
)

const (
	reelPrefix  = "https://www.instagram.com/reel/"
	shortPrefix = "https://www.youtube.com/shorts/"
)

var (
	reelIDRe  = regexp.MustCompile(`(v=|reel/)(?P<id>[^/]*)`)
	shortIDRe = regexp.MustCompile(`(v=|shorts/)(?P<id>[^/]*)`)
)

// Telegram is the outbound surface the handler needs.
type Telegram interface {
	SendVideo(ctx context.Context, chatID int64, path string, replyTo int64) error
}

// VideoDownloader fetches a video URL into a local file.
type VideoDownloader interface {
	DownloadVideo(ctx context.Context, url, outPath string) error
}

// Handler downloads Instagram reels and YouTube shorts and re-sends them
// as video attachments.
type Handler struct {
	telegram   Telegram
	downloader VideoDownloader
	tmpDir     string
}

type HandlerOpts struct {
	Telegram   Telegram
	Downloader VideoDownloader

	// TmpDir hosts the per-message scratch directories. Defaults to the
	// system temp dir.
	TmpDir string
}

func NewHandler(opts HandlerOpts) (*Handler, error) {
	if opts.Telegram == nil {
		return nil, fmt.Errorf("shorts: telegram client is required")
	}
	if opts.Downloader == nil {
		return nil, fmt.Errorf("shorts: downloader is required")
	}
	tmpDir := opts.TmpDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Handler{
		telegram:   opts.Telegram,
		downloader: opts.Downloader,
		tmpDir:     tmpDir,
	}, nil
}

// Name implements bot.Handler.
func (h *Handler) Name() string { return "Downloader" }

// Process implements bot.Handler.
func (h *Handler) Process(ctx context.Context, msg *telegram.Message) (bool, error) {
	text := strings.TrimSpace(msg.Text)

	var re *regexp.Regexp
	switch {
	case strings.HasPrefix(text, reelPrefix):
		re = reelIDRe
	case strings.HasPrefix(text, shortPrefix):
		re = shortIDRe
	default:
		return false, nil
	}
	return true, h.deliver(ctx, msg, text, re)
}

func (h *Handler) deliver(ctx context.Context, msg *telegram.Message, link string, re *regexp.Regexp) error {
	id, err := videoID(re, link)
	if err != nil {
		return err
	}

	// Each message gets its own scratch dir so concurrent downloads of
	// the same video can't clobber each other.
	dir := filepath.Join(h.tmpDir, fmt.Sprintf("tmp_%d", msg.MessageID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("shorts: create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	outPath := filepath.Join(dir, id+".mp4")
	if err := h.downloader.DownloadVideo(ctx, link, outPath); err != nil {
		return err
	}
	return h.telegram.SendVideo(ctx, msg.Chat.ID, outPath, msg.MessageID)
}

func videoID(re *regexp.Regexp, link string) (string, error) {
	m := re.FindStringSubmatch(link)
	if m == nil {
		return "", fmt.Errorf("shorts: no video id in %s", link)
	}
	id := m[re.SubexpIndex("id")]
	if id == "" {
		return "", fmt.Errorf("shorts: no video id in %s", link)
	}
	return id, nil
}
