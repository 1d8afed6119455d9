// Package notify turns recording events into status lines and desktop
// notifications.
package notify

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/format"
	"github.com/Heracs/MeetingSonar-sub001/internal/recording"
)

// Compile-time interface implementation checks.
var (
	_ recording.Notifier = (*Console)(nil)
	_ recording.Notifier = (*Desktop)(nil)
)

// AppName is the title of desktop notifications.
const AppName = "MeetingSonar"

// Message renders e as a one-line status message.
func Message(e recording.Event) string {
	switch e.Kind {
	case recording.EventStarted:
		return fmt.Sprintf("Recording started (%s, %s): %s", e.Trigger, e.Sources, filepath.Base(e.Path))
	case recording.EventStopped:
		return fmt.Sprintf("Recording saved (%s): %s", format.Duration(e.Duration), e.Path)
	case recording.EventPaused:
		return fmt.Sprintf("Paused at %s", format.Duration(e.Duration))
	case recording.EventResumed:
		return "Resumed"
	case recording.EventTimerTick:
		return fmt.Sprintf("Recording %s", format.Duration(e.Duration))
	case recording.EventSourceChanged:
		return fmt.Sprintf("Sources: %s", e.Sources)
	case recording.EventError:
		return fmt.Sprintf("Recording error: %v", e.Err)
	case recording.EventMaxDurationReached:
		return fmt.Sprintf("Maximum duration reached (%s), stopping", format.DurationHuman(e.Duration))
	default:
		return e.Kind.String()
	}
}

// ---------------------------------------------------------------------------
// Console
// ---------------------------------------------------------------------------

// Console writes one line per event to w. Timer ticks are reported once per
// progress interval so the terminal is not flooded.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	progress time.Duration
	lastTick time.Duration
}

// NewConsole returns a Console printing progress every interval.
// A zero interval disables progress lines.
func NewConsole(w io.Writer, interval time.Duration) *Console {
	return &Console{w: w, progress: interval}
}

// Notify writes the event's message.
func (c *Console) Notify(e recording.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Kind {
	case recording.EventStarted:
		c.lastTick = 0
	case recording.EventTimerTick:
		if c.progress <= 0 || e.Duration/c.progress == c.lastTick/c.progress {
			return
		}
		c.lastTick = e.Duration
	}
	fmt.Fprintln(c.w, Message(e))
}

// ---------------------------------------------------------------------------
// Desktop
// ---------------------------------------------------------------------------

// ErrClosed indicates the desktop notifier was closed.
var ErrClosed = errors.New("notifier closed")

// queueSize bounds pending desktop notifications.
const queueSize = 16

// DesktopOption configures Desktop.
type DesktopOption func(*Desktop)

// WithDesktopLogger sets the logger for delivery failures.
func WithDesktopLogger(l zerolog.Logger) DesktopOption {
	return func(d *Desktop) {
		d.logger = l.With().Str("component", "notify").Logger()
	}
}

// withSender replaces the system notification call (testing only).
func withSender(fn func(title, message string) error) DesktopOption {
	return func(d *Desktop) {
		d.send = fn
	}
}

// Desktop shows lifecycle events as system notifications. Delivery happens on
// a worker goroutine; events are dropped when the queue is full.
type Desktop struct {
	send   func(title, message string) error
	logger zerolog.Logger

	mu     sync.Mutex
	queue  chan string
	closed bool
	done   chan struct{}
}

// NewDesktop starts the delivery worker. Call Close to stop it.
func NewDesktop(opts ...DesktopOption) *Desktop {
	d := &Desktop{
		send:   beeepNotify,
		logger: zerolog.Nop(),
		queue:  make(chan string, queueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

func beeepNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Notify queues lifecycle events. Ticks, pauses and resumes are ignored.
func (d *Desktop) Notify(e recording.Event) {
	switch e.Kind {
	case recording.EventStarted, recording.EventStopped, recording.EventError,
		recording.EventMaxDurationReached, recording.EventSourceChanged:
	default:
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- Message(e):
	default:
		d.logger.Debug().Str("event", e.Kind.String()).Msg("notification dropped")
	}
}

// Close delivers queued notifications and stops the worker.
func (d *Desktop) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	return nil
}

func (d *Desktop) run() {
	defer close(d.done)
	for msg := range d.queue {
		if err := d.send(AppName, msg); err != nil {
			d.logger.Warn().Err(err).Msg("desktop notification failed")
		}
	}
}
