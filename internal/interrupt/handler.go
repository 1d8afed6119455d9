// Package interrupt turns SIGINT/SIGTERM into a two-stage shutdown: the first
// signal asks the recording to stop and finalize its file, a second one
// within a short window abandons finalization.
package interrupt

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ExitInterrupt is the exit code for interrupt (130 = 128 + SIGINT).
const ExitInterrupt = 130

// DefaultWindow is the time window for a second Ctrl+C to trigger abort.
const DefaultWindow = 2 * time.Second

// Messages shown to the user.
const (
	stopMessage  = "\nStopping, finalizing recording... (press Ctrl+C again to abort)"
	abortMessage = "\nAborted."
)

// Handler watches for interrupt signals.
// The context it returns is canceled on the first signal; Aborted is closed
// on a second signal inside the window.
type Handler struct {
	mu             sync.Mutex
	firstInterrupt time.Time
	interrupted    bool
	stopped        bool
	cancelFunc     context.CancelFunc
	aborted        chan struct{}
	done           chan struct{}
	owned          chan os.Signal

	window  time.Duration
	nowFunc func() time.Time
	stderr  io.Writer
}

// Options holds injectable dependencies for testing.
type Options struct {
	SigCh   <-chan os.Signal
	NowFunc func() time.Time
	Window  time.Duration
	// Stderr must be safe for concurrent writes. Defaults to os.Stderr.
	Stderr io.Writer
}

// NewHandler listens for SIGINT/SIGTERM.
func NewHandler(parent context.Context) (*Handler, context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	h, ctx := NewHandlerWithOptions(parent, Options{SigCh: sigCh})
	h.owned = sigCh
	return h, ctx
}

// NewHandlerWithOptions creates a handler reading signals from opts.SigCh.
// A nil SigCh yields a handler that never fires.
func NewHandlerWithOptions(parent context.Context, opts Options) (*Handler, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		cancelFunc: cancel,
		aborted:    make(chan struct{}),
		done:       make(chan struct{}),
		window:     opts.Window,
		nowFunc:    opts.NowFunc,
		stderr:     opts.Stderr,
	}
	if h.window <= 0 {
		h.window = DefaultWindow
	}
	if h.nowFunc == nil {
		h.nowFunc = time.Now
	}
	if h.stderr == nil {
		h.stderr = os.Stderr
	}

	if opts.SigCh != nil {
		go h.listen(opts.SigCh)
	}
	return h, ctx
}

func (h *Handler) listen(sigCh <-chan os.Signal) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sigCh:
			if !ok {
				return
			}
			if h.handle() {
				return
			}
		}
	}
}

// handle processes one signal and reports whether listening is over.
func (h *Handler) handle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return true
	}
	now := h.nowFunc()

	if !h.interrupted {
		h.interrupted = true
		h.firstInterrupt = now
		h.cancelFunc()
		fmt.Fprintln(h.stderr, stopMessage)
		return false
	}
	if now.Sub(h.firstInterrupt) <= h.window {
		fmt.Fprintln(h.stderr, abortMessage)
		close(h.aborted)
		return true
	}
	// Late second signal restarts the window.
	h.firstInterrupt = now
	return false
}

// WasInterrupted returns true if at least one interrupt was received.
func (h *Handler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// Aborted is closed when the user asks to abandon finalization.
func (h *Handler) Aborted() <-chan struct{} {
	return h.aborted
}

// Stop releases the signal subscription. Safe to call more than once.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	if h.owned != nil {
		signal.Stop(h.owned)
	}
	close(h.done)
}
