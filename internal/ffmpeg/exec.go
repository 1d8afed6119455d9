package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Pipe - FFmpeg fed through stdin
// ---------------------------------------------------------------------------

// Pipe is a running FFmpeg process reading its input from stdin.
// Closing stdin lets FFmpeg flush and finalize the output container.
type Pipe struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *syncBuffer
	done   chan error

	mu     sync.Mutex
	closed bool
}

// StartPipe launches ffmpegPath with args, which must read from "pipe:0".
// The process is not bound to ctx: it outlives cancellation until Close is called,
// so an interrupted recording still produces a valid file.
func StartPipe(ctx context.Context, ffmpegPath string, args []string) (*Pipe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// #nosec G204 -- args are built by the encoder, not user input
	cmd := exec.Command(ffmpegPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	stderr := &syncBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	p := &Pipe{cmd: cmd, stdin: stdin, stderr: stderr, done: make(chan error, 1)}
	go func() {
		p.done <- cmd.Wait()
	}()
	return p, nil
}

// Write sends raw input bytes to FFmpeg.
func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, ErrPipeClosed
	}
	n, err := p.stdin.Write(b)
	if err != nil {
		return n, fmt.Errorf("%w: %v\nOutput: %s", ErrPipeClosed, err, p.stderr.String())
	}
	return n, nil
}

// Close closes stdin and waits for FFmpeg to exit, killing it after timeout.
// Safe to call more than once; later calls return nil.
func (p *Pipe) Close(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	_ = p.stdin.Close()

	select {
	case err := <-p.done:
		if err != nil {
			return fmt.Errorf("ffmpeg: %w\nOutput: %s", err, p.stderr.String())
		}
		return nil
	case <-time.After(timeout):
		_ = p.cmd.Process.Kill()
		<-p.done
		return fmt.Errorf("%w: killed after %v", ErrTimeout, timeout)
	}
}

// syncBuffer is a bytes.Buffer safe for the writer goroutine of exec.Cmd
// and readers reporting errors.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// ---------------------------------------------------------------------------
// Executor - testable FFmpeg execution with dependency injection
// ---------------------------------------------------------------------------

// runOutputFn is the function type for running a command and capturing output.
type runOutputFn func(ctx context.Context, path string, args []string) (string, error)

// Executor runs FFmpeg commands with injectable dependencies.
type Executor struct {
	runOutput runOutputFn
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRunOutput sets a custom runOutput function (for testing).
func WithRunOutput(fn runOutputFn) ExecutorOption {
	return func(e *Executor) { e.runOutput = fn }
}

// NewExecutor creates an Executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		runOutput: defaultRunOutput,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOutput executes FFmpeg and captures its output.
func (e *Executor) RunOutput(ctx context.Context, ffmpegPath string, args []string) (string, error) {
	return e.runOutput(ctx, ffmpegPath, args)
}

// defaultRunOutput is the production implementation.
// Returns output even when the command fails, since FFmpeg often exits
// non-zero for probe-style invocations.
func defaultRunOutput(ctx context.Context, ffmpegPath string, args []string) (string, error) {
	// #nosec G204 -- args are built internally
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}
