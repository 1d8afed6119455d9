// Package encoder turns the mixed PCM stream into a durable audio file.
//
// Appends never block the caller: frames go into a bounded queue drained by
// one writer goroutine, and a full queue is reported as ErrNotReady so the
// real-time path can drop the frame and keep going.
package encoder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
)

// DefaultQueueSize is the number of frames buffered between the real-time
// path and the file writer. About 1.4 s at 1024-sample frames.
const DefaultQueueSize = 64

// Sink is the encoder contract consumed by the recording controller.
type Sink interface {
	ReadyForMoreData() bool
	Append(frame audio.Frame) error
	MarkInputFinished()
	Finish(ctx context.Context) error
	Path() string
}

// backend writes frames to a concrete container.
type backend interface {
	writeFrame(frame audio.Frame) error
	close() error
}

// Compile-time interface implementation check.
var _ Sink = (*Writer)(nil)

// Writer is a queued Sink over a file backend.
type Writer struct {
	path    string
	format  audio.Format
	backend backend
	queue   chan audio.Frame
	done    chan struct{}
	logger  zerolog.Logger

	mu       sync.Mutex
	finished bool

	// err is written by the writer goroutine and read after done is closed.
	err     error
	written atomic.Int64
}

// Option configures a Writer.
type Option func(*writerOptions)

type writerOptions struct {
	queueSize int
	logger    zerolog.Logger
}

// WithQueueSize sets the number of frames buffered before ErrNotReady.
func WithQueueSize(n int) Option {
	return func(o *writerOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *writerOptions) { o.logger = l }
}

func newWriter(path string, format audio.Format, b backend, opts []Option) *Writer {
	o := writerOptions{queueSize: DefaultQueueSize, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	w := &Writer{
		path:    path,
		format:  format,
		backend: b,
		queue:   make(chan audio.Frame, o.queueSize),
		done:    make(chan struct{}),
		logger:  o.logger.With().Str("component", "encoder").Str("path", path).Logger(),
	}
	go w.run()
	return w
}

// run drains the queue into the backend. After the first write error the
// remaining frames are discarded so producers never block.
func (w *Writer) run() {
	defer close(w.done)
	var err error
	for frame := range w.queue {
		if err != nil {
			continue
		}
		if err = w.backend.writeFrame(frame); err != nil {
			w.logger.Error().Err(err).Msg("write frame")
			continue
		}
		w.written.Add(1)
	}
	if cerr := w.backend.close(); cerr != nil && err == nil {
		err = cerr
	}
	w.err = err
}

// Path returns the output file path.
func (w *Writer) Path() string { return w.path }

// Written returns the number of frames written to the backend so far.
func (w *Writer) Written() int64 { return w.written.Load() }

// ReadyForMoreData reports whether Append would currently accept a frame.
func (w *Writer) ReadyForMoreData() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.finished && len(w.queue) < cap(w.queue)
}

// Append queues a frame without blocking.
// Returns ErrNotReady if the queue is full and ErrInputFinished after MarkInputFinished.
func (w *Writer) Append(frame audio.Frame) error {
	if frame.SampleRate != w.format.SampleRate {
		return fmt.Errorf("%w: got %d Hz, want %d Hz", ErrFormatMismatch, frame.SampleRate, w.format.SampleRate)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return ErrInputFinished
	}
	select {
	case w.queue <- frame:
		return nil
	default:
		return ErrNotReady
	}
}

// MarkInputFinished closes the input. Further appends fail. Idempotent.
func (w *Writer) MarkInputFinished() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.finished {
		w.finished = true
		close(w.queue)
	}
}

// Finish marks input finished, waits for queued frames to be written and the
// file to be closed, and returns the first write or close error.
func (w *Writer) Finish(ctx context.Context) error {
	w.MarkInputFinished()
	select {
	case <-w.done:
	case <-ctx.Done():
		return fmt.Errorf("finish %s: %w", w.path, ctx.Err())
	}
	if w.err != nil {
		return fmt.Errorf("finish %s: %w", w.path, w.err)
	}
	w.logger.Debug().Int64("frames", w.Written()).Msg("encoder finished")
	return nil
}
