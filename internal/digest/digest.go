// Package digest sends the owner a daily activity summary built from
// the journal.
package digest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hexflood/switchboard/internal/journal"
	"github.com/hexflood/switchboard/internal/telegram"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the
// duration until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// Stats is the journal query the digest depends on.
type Stats interface {
	Stats(since time.Time) ([]journal.HandlerStats, error)
}

// Telegram is the outbound surface the digest needs.
type Telegram interface {
	SendMessage(ctx context.Context, msg telegram.SendMessage) error
}

// Digest periodically summarizes the last day of handler activity into
// a chat message.
type Digest struct {
	stats    Stats
	telegram Telegram
	chatID   int64
	cronExpr string
}

type Opts struct {
	Stats    Stats
	Telegram Telegram

	// ChatID is the chat the summary is delivered to.
	ChatID int64

	// Cron is a 5-field expression controlling when the summary fires.
	Cron string
}

func New(opts Opts) (*Digest, error) {
	if opts.Stats == nil {
		return nil, fmt.Errorf("digest: stats source is required")
	}
	if opts.Telegram == nil {
		return nil, fmt.Errorf("digest: telegram client is required")
	}
	if opts.ChatID == 0 {
		return nil, fmt.Errorf("digest: chat id is required")
	}
	if _, err := cronParser.Parse(opts.Cron); err != nil {
		return nil, fmt.Errorf("digest: parse cron %q: %w", opts.Cron, err)
	}
	return &Digest{
		stats:    opts.Stats,
		telegram: opts.Telegram,
		chatID:   opts.ChatID,
		cronExpr: opts.Cron,
	}, nil
}

// Run fires the digest on the configured schedule until ctx is
// cancelled. Delivery failures are logged and the schedule continues.
func (d *Digest) Run(ctx context.Context) {
	timer := time.NewTimer(nextCronDuration(d.cronExpr))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := d.send(ctx); err != nil {
				log.Printf("digest: %v", err)
			}
			timer.Reset(nextCronDuration(d.cronExpr))
		}
	}
}

func (d *Digest) send(ctx context.Context) error {
	text, err := d.Summary(time.Now().Add(-24 * time.Hour))
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return d.telegram.SendMessage(ctx, telegram.SendMessage{ChatID: d.chatID, Text: text})
}

// Summary formats the per-handler outcome counts since the given time.
// Returns an empty string when there was no activity.
func (d *Digest) Summary(since time.Time) (string, error) {
	stats, err := d.stats.Stats(since)
	if err != nil {
		return "", err
	}
	if len(stats) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Daily summary:\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%s: %d handled, %d failed\n", s.Handler, s.Handled, s.Failed)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
