// Package capture owns the system-audio capture lifecycle.
//
// Platform stream APIs are hidden behind StreamProvider so the lifecycle
// rules (exclusive start, stop-wins cancellation, pause gating) are the same
// for every backend.
package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
)

// Observer receives captured audio and terminal stream failures.
// Callbacks run on the stream's delivery goroutine and must not block.
type Observer interface {
	CaptureDidOutput(frame audio.Frame)
	CaptureDidFail(err error)
}

// ContentFilter selects what a stream captures. Opaque to this package.
type ContentFilter interface {
	Description() string
}

// StreamConfiguration describes the requested capture format.
type StreamConfiguration struct {
	CapturesAudio               bool
	SampleRate                  int
	ChannelCount                int
	ExcludesCurrentProcessAudio bool
}

// DefaultStreamConfiguration is audio-only 48 kHz stereo excluding our own output.
var DefaultStreamConfiguration = StreamConfiguration{
	CapturesAudio:               true,
	SampleRate:                  audio.SampleRate,
	ChannelCount:                audio.Channels,
	ExcludesCurrentProcessAudio: true,
}

// FrameHandler is invoked for each frame of the kind it was registered for.
type FrameHandler func(frame audio.Frame)

// Stream is a started-or-startable platform capture stream.
type Stream interface {
	AddOutput(kind audio.Kind, handler FrameHandler) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// StreamProvider resolves capture targets and builds streams.
// onStop is called at most once if the stream terminates on its own.
type StreamProvider interface {
	ResolveFilter(ctx context.Context, target string) (ContentFilter, error)
	NewStream(filter ContentFilter, cfg StreamConfiguration, onStop func(error)) (Stream, error)
}

// Option configures a SystemAudio.
type Option func(*SystemAudio)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *SystemAudio) {
		s.logger = l.With().Str("component", "system-audio").Logger()
	}
}

// WithStreamConfiguration overrides the requested stream format.
func WithStreamConfiguration(cfg StreamConfiguration) Option {
	return func(s *SystemAudio) {
		s.baseConfig = cfg
	}
}

// SystemAudio captures the audio output of the machine.
//
// All lifecycle flags are mutated only while holding mu. Stream setup and
// teardown run outside the lock; gen detects a stop that raced a start.
type SystemAudio struct {
	mu        sync.Mutex
	capturing bool
	paused    bool
	gen       uint64

	stream Stream
	filter ContentFilter
	config *StreamConfiguration

	observer   Observer
	provider   StreamProvider
	baseConfig StreamConfiguration
	logger     zerolog.Logger
}

// NewSystemAudio creates an idle SystemAudio backed by provider.
func NewSystemAudio(provider StreamProvider, opts ...Option) *SystemAudio {
	s := &SystemAudio{
		provider:   provider,
		baseConfig: DefaultStreamConfiguration,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetObserver sets the receiver of frames and failures.
func (s *SystemAudio) SetObserver(o Observer) {
	s.mu.Lock()
	s.observer = o
	s.mu.Unlock()
}

// IsCapturing reports whether a capture is active or being set up.
func (s *SystemAudio) IsCapturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}

// IsPaused reports whether frame delivery is suspended.
func (s *SystemAudio) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// StartCapture begins capturing target, or the default output when target is empty.
// A call made while a capture is active or starting is a no-op returning nil.
// If StopCapture runs before setup completes, the new stream is torn down
// and ErrCaptureCancelled is returned.
func (s *SystemAudio) StartCapture(ctx context.Context, target string) error {
	s.mu.Lock()
	if s.capturing {
		s.mu.Unlock()
		s.logger.Debug().Msg("start ignored, already capturing")
		return nil
	}
	s.capturing = true
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	stream, filter, cfg, err := s.setup(ctx, target, gen)
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.capturing = false
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.logger.Info().Msg("stop issued during setup, tearing down new stream")
		if stopErr := stream.Stop(ctx); stopErr != nil {
			s.logger.Warn().Err(stopErr).Msg("stop cancelled stream")
		}
		return ErrCaptureCancelled
	}
	s.stream = stream
	s.filter = filter
	s.config = &cfg
	s.mu.Unlock()

	s.logger.Info().Str("target", filter.Description()).Msg("system audio capture started")
	return nil
}

// setup builds and starts a stream without holding mu.
func (s *SystemAudio) setup(ctx context.Context, target string, gen uint64) (Stream, ContentFilter, StreamConfiguration, error) {
	cfg := s.baseConfig
	cfg.CapturesAudio = true

	filter, err := s.provider.ResolveFilter(ctx, target)
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("resolve capture target %q: %w", target, err)
	}

	stream, err := s.provider.NewStream(filter, cfg, func(err error) { s.streamDidStop(gen, err) })
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("create capture stream: %w", err)
	}
	if err := stream.AddOutput(audio.KindAudio, func(f audio.Frame) { s.deliver(gen, f) }); err != nil {
		return nil, nil, cfg, fmt.Errorf("attach audio output: %w", err)
	}
	// Some backends refuse to start without a video consumer.
	if err := stream.AddOutput(audio.KindVideo, func(audio.Frame) {}); err != nil {
		return nil, nil, cfg, fmt.Errorf("attach video output: %w", err)
	}
	if err := stream.Start(ctx); err != nil {
		return nil, nil, cfg, fmt.Errorf("start capture stream: %w", err)
	}
	return stream, filter, cfg, nil
}

// StopCapture stops the active capture. No-op when not capturing.
// capturing is cleared before the stream stop is awaited.
func (s *SystemAudio) StopCapture(ctx context.Context) error {
	s.mu.Lock()
	if !s.capturing {
		s.mu.Unlock()
		return nil
	}
	s.capturing = false
	s.gen++
	stream := s.stream
	s.mu.Unlock()

	var err error
	if stream != nil {
		if err = stream.Stop(ctx); err != nil {
			err = fmt.Errorf("stop capture stream: %w", err)
		}
	}

	s.mu.Lock()
	if !s.capturing {
		s.stream = nil
		s.filter = nil
		s.config = nil
		s.paused = false
	}
	s.mu.Unlock()

	s.logger.Info().Msg("system audio capture stopped")
	return err
}

// PauseCapture suspends frame delivery. No-op unless capturing and not paused.
func (s *SystemAudio) PauseCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capturing && !s.paused {
		s.paused = true
	}
}

// ResumeCapture restores frame delivery. No-op unless capturing and paused.
func (s *SystemAudio) ResumeCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capturing && s.paused {
		s.paused = false
	}
}

// deliver routes one frame from the stream started as gen to the observer.
// Frames from a stream that has since been stopped or superseded are dropped.
func (s *SystemAudio) deliver(gen uint64, frame audio.Frame) {
	s.mu.Lock()
	stale := s.gen != gen
	paused := s.paused
	obs := s.observer
	s.mu.Unlock()

	if stale || paused || obs == nil {
		return
	}
	switch frame.Kind {
	case audio.KindAudio:
		obs.CaptureDidOutput(frame)
	default:
		// Video and microphone payloads are not ours to deliver.
	}
}

// streamDidStop handles a stream terminating on its own.
func (s *SystemAudio) streamDidStop(gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.capturing = false
	s.paused = false
	s.gen++
	s.stream = nil
	s.filter = nil
	s.config = nil
	obs := s.observer
	s.mu.Unlock()

	if err == nil {
		return
	}
	s.logger.Error().Err(err).Msg("system audio stream stopped")
	if obs != nil {
		obs.CaptureDidFail(fmt.Errorf("%w: %w", ErrStreamFailed, err))
	}
}

// MicrophoneDelegate receives microphone frames and terminal failures.
// Callbacks run on the device's audio thread and must not block.
type MicrophoneDelegate interface {
	MicrophoneDidCapture(frame audio.Frame)
	MicrophoneDidFail(err error)
}
