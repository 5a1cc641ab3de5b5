package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hexflood/switchboard/internal/telegram"
)

// DefaultRetryDelay is the pause before re-polling after a failed fetch.
const DefaultRetryDelay = time.Second

// Platform is the slice of the platform client the dispatcher needs.
type Platform interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
	SendMessage(ctx context.Context, msg telegram.SendMessage) error
}

// Recorder receives per-(update,handler) outcomes. Writes are best-effort;
// a failing recorder never affects dispatch.
type Recorder interface {
	Record(updateID int64, handler string, chatID int64, status, errText string) error
}

// Outcome statuses passed to the Recorder.
const (
	StatusHandled = "handled"
	StatusFailed  = "failed"
)

// Dispatcher pulls update batches and fans each update out to every handler.
// A handler failure is logged, recorded, and reported to the originating
// chat; it never stops other handlers, other updates, or the loop itself.
type Dispatcher struct {
	platform   Platform
	handlers   []Handler
	offsets    *OffsetStore
	recorder   Recorder
	retryDelay time.Duration
	out        io.Writer

	offset atomic.Int64
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	Platform   Platform
	Handlers   []Handler
	Offsets    *OffsetStore
	Recorder   Recorder      // optional
	RetryDelay time.Duration // defaults to DefaultRetryDelay
	Out        io.Writer     // defaults to os.Stdout
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) (*Dispatcher, error) {
	if opts.Platform == nil {
		return nil, fmt.Errorf("bot: platform is required")
	}
	if len(opts.Handlers) == 0 {
		return nil, fmt.Errorf("bot: at least one handler is required")
	}
	if opts.Offsets == nil {
		return nil, fmt.Errorf("bot: offset store is required")
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Dispatcher{
		platform:   opts.Platform,
		handlers:   opts.Handlers,
		offsets:    opts.Offsets,
		recorder:   opts.Recorder,
		retryDelay: retryDelay,
		out:        out,
	}, nil
}

// Offset returns the current watermark: the highest update ID whose batch
// has been fully dispatched.
func (d *Dispatcher) Offset() int64 {
	return d.offset.Load()
}

// Run polls for updates until the context is cancelled. The watermark is
// advanced and persisted only after every handler has finished with every
// update in the batch.
func (d *Dispatcher) Run(ctx context.Context) error {
	last, err := d.offsets.Load()
	if err != nil {
		return fmt.Errorf("bot: load state: %w", err)
	}
	d.offset.Store(last)
	fmt.Fprintf(d.out, "switchboard: %d handlers registered, resuming from update %d\n", len(d.handlers), last)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "switchboard: dispatcher stopped\n")
			return nil
		default:
		}
		last = d.cycle(ctx, last)
	}
}

// cycle performs one poll-dispatch-persist round and returns the new
// watermark. A fetch failure leaves the watermark unchanged; a persist
// failure is logged only, accepting reprocessing after a restart.
func (d *Dispatcher) cycle(ctx context.Context, last int64) int64 {
	updates, err := d.platform.GetUpdates(ctx, last+1)
	if err != nil {
		log.Printf("bot: get updates from offset %d: %v", last+1, err)
		d.pause(ctx)
		return last
	}
	if len(updates) == 0 {
		return last
	}

	d.dispatchBatch(ctx, updates)

	for _, u := range updates {
		if u.UpdateID > last {
			last = u.UpdateID
		}
	}
	d.offset.Store(last)
	if err := d.offsets.Save(last); err != nil {
		log.Printf("bot: save state %d: %v", last, err)
	}
	return last
}

// dispatchBatch runs every handler against every update in the batch, one
// goroutine per (update, handler) pair, and waits for all of them.
func (d *Dispatcher) dispatchBatch(ctx context.Context, updates []telegram.Update) {
	var wg sync.WaitGroup
	for _, u := range updates {
		if u.Message == nil {
			continue
		}
		for _, h := range d.handlers {
			wg.Add(1)
			go func(u telegram.Update, h Handler) {
				defer wg.Done()
				d.invoke(ctx, h, u)
			}(u, h)
		}
	}
	wg.Wait()
}

// invoke runs one handler against one update and deals with the outcome.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, u telegram.Update) {
	msg := u.Message
	handled, err := h.Process(ctx, msg)
	switch {
	case err != nil:
		log.Printf("bot: handler %s failed on update %d (chat %d): %v", h.Name(), u.UpdateID, msg.Chat.ID, err)
		d.record(u.UpdateID, h.Name(), msg.Chat.ID, StatusFailed, err.Error())
		d.apologize(ctx, h.Name(), msg)
	case handled:
		d.record(u.UpdateID, h.Name(), msg.Chat.ID, StatusHandled, "")
	}
}

// apologize sends a best-effort user-facing notification naming the failing
// handler. A failure to deliver it is logged only; no further escalation.
func (d *Dispatcher) apologize(ctx context.Context, handlerName string, msg *telegram.Message) {
	err := d.platform.SendMessage(ctx, telegram.SendMessage{
		ChatID:           msg.Chat.ID,
		Text:             fmt.Sprintf("Sorry, something went wrong while the %s module was handling your message.", handlerName),
		ReplyToMessageID: msg.MessageID,
	})
	if err != nil {
		log.Printf("bot: send failure notice for handler %s to chat %d: %v", handlerName, msg.Chat.ID, err)
	}
}

// record writes an outcome to the recorder, if one is configured.
func (d *Dispatcher) record(updateID int64, handler string, chatID int64, status, errText string) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Record(updateID, handler, chatID, status, errText); err != nil {
		log.Printf("bot: record outcome for update %d handler %s: %v", updateID, handler, err)
	}
}

// pause sleeps for the retry delay, returning early on cancellation.
func (d *Dispatcher) pause(ctx context.Context) {
	t := time.NewTimer(d.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
