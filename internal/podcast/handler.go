package podcast

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hexflood/switchboard/internal/telegram"
	"github.com/hexflood/switchboard/internal/youtube"
)

const (
	watchPrefix     = "https://www.youtube.com/watch"
	shortLinkPrefix = "https://youtu.be/"
)

var sourceIDRe = regexp.MustCompile(`(v=|youtu.be/)(?P<id>[^&]*)`)

// Telegram is the slice of the platform client the handler needs.
type Telegram interface {
	SendMessage(ctx context.Context, msg telegram.SendMessage) error
}

// AudioExtractor downloads a video's audio track via the external tool.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, url, outTemplate string) error
}

// MetadataAPI resolves a video ID into its title metadata.
type MetadataAPI interface {
	VideoInfo(ctx context.Context, videoID string) (*youtube.Snippet, error)
}

// Handler ingests submitted video links (and direct audio URLs) into the
// sender's podcast feed and replies with the feed's public address.
type Handler struct {
	telegram  Telegram
	extractor AudioExtractor
	meta      MetadataAPI
	bucket    ObjectStore
	store     *Store
	tmpDir    string
	http      *http.Client
}

// HandlerOpts holds parameters for creating a Handler.
type HandlerOpts struct {
	Telegram  Telegram
	Extractor AudioExtractor
	Metadata  MetadataAPI
	Bucket    ObjectStore
	Store     *Store
	TmpDir    string       // defaults to os.TempDir()
	HTTP      *http.Client // used for the direct-audio path
}

// NewHandler creates a Handler.
func NewHandler(opts HandlerOpts) (*Handler, error) {
	if opts.Telegram == nil {
		return nil, fmt.Errorf("podcast: telegram client is required")
	}
	if opts.Extractor == nil {
		return nil, fmt.Errorf("podcast: extractor is required")
	}
	if opts.Metadata == nil {
		return nil, fmt.Errorf("podcast: metadata client is required")
	}
	if opts.Bucket == nil {
		return nil, fmt.Errorf("podcast: bucket is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("podcast: store is required")
	}
	tmpDir := opts.TmpDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Handler{
		telegram:  opts.Telegram,
		extractor: opts.Extractor,
		meta:      opts.Metadata,
		bucket:    opts.Bucket,
		store:     opts.Store,
		tmpDir:    tmpDir,
		http:      httpClient,
	}, nil
}

// Name implements bot.Handler.
func (h *Handler) Name() string { return "Podcast" }

// Process implements bot.Handler. Video links go through the extractor
// tool; direct audio URLs (mp3 suffix or audio Content-Type on a HEAD
// probe) are fetched as-is.
func (h *Handler) Process(ctx context.Context, msg *telegram.Message) (bool, error) {
	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, watchPrefix), strings.HasPrefix(text, shortLinkPrefix):
		feedURL, err := h.ingestVideo(ctx, msg, text)
		if err != nil {
			return true, err
		}
		return true, h.replyFeed(ctx, msg, feedURL)
	case h.isDirectAudio(ctx, text):
		feedURL, err := h.ingestAudio(ctx, msg, text)
		if err != nil {
			return true, err
		}
		return true, h.replyFeed(ctx, msg, feedURL)
	default:
		return false, nil
	}
}

// ingestVideo runs the full pipeline for a video link: extract audio via
// the subprocess tool, upload, resolve metadata, append to the feed.
func (h *Handler) ingestVideo(ctx context.Context, msg *telegram.Message, link string) (string, error) {
	user, err := senderName(msg)
	if err != nil {
		return "", err
	}
	sourceID, err := extractSourceID(link)
	if err != nil {
		return "", err
	}

	// The tool substitutes %(id)s/%(ext)s itself; the message ID prefix
	// keeps concurrent downloads from colliding.
	outTemplate := filepath.Join(h.tmpDir, fmt.Sprintf("%d", msg.MessageID)+"%(id)s.%(ext)s")
	if err := h.extractor.ExtractAudio(ctx, link, outTemplate); err != nil {
		return "", err
	}
	downloaded := filepath.Join(h.tmpDir, fmt.Sprintf("%d%s.mp3", msg.MessageID, sourceID))
	defer os.Remove(downloaded)

	key := audioKey(user, sourceID)
	if err := h.bucket.PutFile(ctx, key, downloaded); err != nil {
		return "", err
	}

	info, err := h.meta.VideoInfo(ctx, sourceID)
	if err != nil {
		return "", err
	}

	fi, err := os.Stat(downloaded)
	if err != nil {
		return "", fmt.Errorf("podcast: stat downloaded file: %w", err)
	}

	ep := Episode{
		FileSize:     fi.Size(),
		FileURL:      h.bucket.PublicURL(key),
		SourceID:     sourceID,
		CreatedAt:    time.Now().UTC(),
		Title:        info.Title,
		OriginalLink: link,
		MimeType:     "audio/mp3",
	}
	return h.appendAndPublish(ctx, user, ep)
}

// ingestAudio handles the direct-audio companion path: no id extraction,
// no subprocess, the bytes are fetched straight from the URL.
func (h *Handler) ingestAudio(ctx context.Context, msg *telegram.Message, link string) (string, error) {
	user, err := senderName(msg)
	if err != nil {
		return "", err
	}
	sourceID := audioSourceID(link)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("podcast: fetch %s: %w", link, err)
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("podcast: fetch %s: %w", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("podcast: fetch %s: unexpected status %s", link, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("podcast: fetch %s: read body: %w", link, err)
	}

	key := audioKey(user, sourceID)
	if err := h.bucket.Put(ctx, key, data); err != nil {
		return "", err
	}

	mimeType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "audio/") {
		mimeType = "audio/mp3"
	}
	ep := Episode{
		FileSize:     int64(len(data)),
		FileURL:      h.bucket.PublicURL(key),
		SourceID:     sourceID,
		CreatedAt:    time.Now().UTC(),
		Title:        sourceID,
		OriginalLink: link,
		MimeType:     mimeType,
	}
	return h.appendAndPublish(ctx, user, ep)
}

// appendAndPublish stores the episode and regenerates the user's feed
// under the store's per-user lock.
func (h *Handler) appendAndPublish(ctx context.Context, user string, ep Episode) (string, error) {
	feedURL := h.bucket.PublicURL(feedKey(user))
	_, err := h.store.Append(ctx, user, ep, func(list []Episode) error {
		rss, err := BuildFeed(user, feedURL, list)
		if err != nil {
			return err
		}
		return h.bucket.Put(ctx, feedKey(user), []byte(rss))
	})
	if err != nil {
		return "", err
	}
	return feedURL, nil
}

func (h *Handler) replyFeed(ctx context.Context, msg *telegram.Message, feedURL string) error {
	return h.telegram.SendMessage(ctx, telegram.SendMessage{
		ChatID:           msg.Chat.ID,
		Text:             fmt.Sprintf("Podcast feed updated and available at: %s", feedURL),
		ReplyToMessageID: msg.MessageID,
	})
}

// isDirectAudio reports whether text is a URL serving audio: an .mp3 path
// suffix short-circuits, otherwise a HEAD probe checks the Content-Type.
// Probe failures count as no match; this is a trigger predicate, not a
// processing step.
func (h *Handler) isDirectAudio(ctx context.Context, text string) bool {
	if !strings.HasPrefix(text, "http://") && !strings.HasPrefix(text, "https://") {
		return false
	}
	u, err := url.Parse(text)
	if err != nil {
		return false
	}
	if strings.HasSuffix(u.Path, ".mp3") {
		return true
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, text, nil)
	if err != nil {
		return false
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return strings.HasPrefix(resp.Header.Get("Content-Type"), "audio/")
}

// senderName resolves the display name the feed is filed under.
func senderName(msg *telegram.Message) (string, error) {
	if msg.From == nil {
		return "", fmt.Errorf("podcast: message has no sender, can't manage a feed for it")
	}
	return msg.From.FirstName, nil
}

// extractSourceID pulls the video ID out of a watch or short link.
func extractSourceID(link string) (string, error) {
	m := sourceIDRe.FindStringSubmatch(link)
	if m == nil {
		return "", fmt.Errorf("podcast: can't parse video id from %s", link)
	}
	id := m[sourceIDRe.SubexpIndex("id")]
	if id == "" {
		return "", fmt.Errorf("podcast: can't parse video id from %s", link)
	}
	return id, nil
}

// audioSourceID derives an episode ID from a direct audio URL's file name.
func audioSourceID(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	base := path.Base(u.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}
