// Package recording orchestrates a meeting recording: source selection,
// permission gating, capture lifecycle, the session timeline and
// asynchronous finalization of the output file.
package recording

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
	"github.com/Heracs/MeetingSonar-sub001/internal/capture"
)

const (
	// MaxDuration is the longest recording; reaching it stops the recording.
	MaxDuration = 2 * time.Hour

	// DefaultTickInterval is the period of status ticks.
	DefaultTickInterval = 500 * time.Millisecond

	// MaxDropRate is the fraction of dropped frames above which finalization warns.
	MaxDropRate = 0.02

	// finalizeTimeout bounds how long the encoder may take to flush and close.
	finalizeTimeout = 30 * time.Second

	// outputDirPerm is the permission mode for a created output directory.
	outputDirPerm = 0o750
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source used for session timing.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = l.With().Str("component", "recording").Logger()
	}
}

// WithOutputDir sets the directory recordings are written to.
func WithOutputDir(dir string) Option {
	return func(c *Controller) { c.outputDir = dir }
}

// WithTickInterval sets the status tick period.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tickInterval = d
		}
	}
}

// WithSystemAudioTarget sets the output device to capture; empty means the default.
func WithSystemAudioTarget(target string) Option {
	return func(c *Controller) { c.target = target }
}

// withFileSystem replaces OS file access (for testing).
func withFileSystem(fs fileSystem) Option {
	return func(c *Controller) { c.fs = fs }
}

// timing holds session wall-clock bookkeeping.
// pauseStart is non-zero iff the controller is Paused.
type timing struct {
	start             time.Time
	pausedAccumulated time.Duration
	pauseStart        time.Time
}

// adjusted returns recorded time at now, excluding pauses, clamped at zero.
func (t timing) adjusted(now time.Time) time.Duration {
	if t.start.IsZero() {
		return 0
	}
	d := now.Sub(t.start) - t.pausedAccumulated
	if !t.pauseStart.IsZero() {
		d -= now.Sub(t.pauseStart)
	}
	return max(d, 0)
}

// finalization tracks one asynchronous file finalization.
type finalization struct {
	done chan struct{}
	err  error // set before done is closed
}

// Controller is the recording state machine.
//
// mu serializes every lifecycle operation and the status tick. The frame
// path only takes sinkMu, which guards the active session, so audio delivery
// never waits on capture start/stop or file I/O.
type Controller struct {
	mu         sync.Mutex
	state      State
	trigger    Trigger
	config     AudioSourceConfig
	timing     timing
	session    *session
	tickStop   chan struct{}
	finalizing *finalization

	sinkMu sync.Mutex
	active *session

	deps         Dependencies
	fs           fileSystem
	now          func() time.Time
	tickInterval time.Duration
	outputDir    string
	target       string
	logger       zerolog.Logger
}

// NewController wires a Controller to its collaborators.
// SystemAudio, Microphone, Mixer, Permissions, Settings and Encoder are required.
func NewController(deps Dependencies, opts ...Option) (*Controller, error) {
	switch {
	case deps.SystemAudio == nil:
		return nil, errors.New("recording: SystemAudio dependency is required")
	case deps.Microphone == nil:
		return nil, errors.New("recording: Microphone dependency is required")
	case deps.Mixer == nil:
		return nil, errors.New("recording: Mixer dependency is required")
	case deps.Permissions == nil:
		return nil, errors.New("recording: Permissions dependency is required")
	case deps.Settings == nil:
		return nil, errors.New("recording: Settings dependency is required")
	case deps.Encoder == nil:
		return nil, errors.New("recording: Encoder dependency is required")
	}
	if deps.Metadata == nil {
		deps.Metadata = nopMetadata{}
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}

	c := &Controller{
		deps:         deps,
		fs:           osFileSystem{},
		now:          time.Now,
		tickInterval: DefaultTickInterval,
		outputDir:    ".",
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	deps.SystemAudio.SetObserver(systemObserver{c})
	deps.Microphone.SetDelegate(micObserver{c})
	deps.Mixer.SetDelegate(c.handleMixedFrame)
	return c, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Trigger returns the trigger of the current or last recording.
func (c *Controller) Trigger() Trigger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trigger
}

// CurrentConfig returns the source configuration of the current recording.
func (c *Controller) CurrentConfig() AudioSourceConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// Duration returns the recorded time so far, excluding pauses.
func (c *Controller) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.durationLocked()
}

func (c *Controller) durationLocked() time.Duration {
	if c.state == Idle {
		return 0
	}
	return c.timing.adjusted(c.now())
}

// CurrentAudioSourceState reports which sources are actually capturing.
func (c *Controller) CurrentAudioSourceState() AudioSourceConfig {
	return AudioSourceConfig{
		IncludeSystemAudio: c.deps.SystemAudio.IsCapturing(),
		IncludeMicrophone:  c.deps.Microphone.IsCapturing(),
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// StartRecording starts a recording for trigger. sourceNameHint, if set,
// is appended to the output filename.
//
// Capture sources that fail to start are reported as recording-error events;
// the start only fails if every enabled source fails.
func (c *Controller) StartRecording(ctx context.Context, trigger Trigger, sourceNameHint string) error {
	if err := c.lockIdle(ctx); err != nil {
		return err
	}
	defer c.mu.Unlock()

	cfg := c.deps.Settings.DefaultConfig(trigger)
	if !cfg.IsValid() {
		return fmt.Errorf("%w for trigger %s", ErrNoAudioSource, trigger)
	}

	screenOK, micOK := c.deps.Permissions.CheckAllPermissions(ctx)
	if cfg.IncludeSystemAudio && !screenOK {
		return ErrScreenCapturePermission
	}
	if cfg.IncludeMicrophone && !micOK {
		return ErrMicrophonePermission
	}

	now := c.now()
	sess, err := c.openSession(trigger, sourceNameHint, now)
	if err != nil {
		return err
	}

	c.deps.Mixer.SetSystemAudioEnabled(cfg.IncludeSystemAudio)
	c.deps.Mixer.SetMicrophoneEnabled(cfg.IncludeMicrophone)

	var failures []error
	if cfg.IncludeSystemAudio {
		if err := c.deps.SystemAudio.StartCapture(ctx, c.target); err != nil {
			failures = append(failures, fmt.Errorf("system audio: %w", err))
			cfg.IncludeSystemAudio = false
			c.deps.Mixer.SetSystemAudioEnabled(false)
		}
	}
	if cfg.IncludeMicrophone {
		if err := c.deps.Microphone.StartCapture(ctx); err != nil {
			failures = append(failures, fmt.Errorf("microphone: %w", err))
			cfg.IncludeMicrophone = false
			c.deps.Mixer.SetMicrophoneEnabled(false)
		}
	}
	if !cfg.IsValid() {
		c.abortSession(sess)
		return fmt.Errorf("no audio source could be started: %w", errors.Join(failures...))
	}

	c.deps.Mixer.Start()
	c.sinkMu.Lock()
	c.active = sess
	c.sinkMu.Unlock()

	c.state = Recording
	c.trigger = trigger
	c.config = cfg
	c.timing = timing{start: now}
	c.session = sess
	c.startTicker()

	entry := Entry{
		ID:         sess.id,
		Filename:   sess.filename,
		Path:       sess.path,
		Trigger:    trigger,
		SourceName: sourceNameHint,
		StartedAt:  now,
		Status:     StatusRecording,
		Sources:    cfg,
	}
	if err := c.deps.Metadata.Add(ctx, entry); err != nil {
		c.logger.Warn().Err(err).Str("file", sess.filename).Msg("register recording metadata")
	}

	c.logger.Info().
		Str("file", sess.path).
		Stringer("trigger", trigger).
		Bool("system_audio", cfg.IncludeSystemAudio).
		Bool("microphone", cfg.IncludeMicrophone).
		Msg("recording started")
	c.deps.Notifier.Notify(Event{Kind: EventStarted, Trigger: trigger, Path: sess.path, Sources: cfg})

	for _, err := range failures {
		c.logger.Error().Err(err).Msg("capture source failed to start")
		c.deps.Notifier.Notify(Event{Kind: EventError, Err: err})
	}
	return nil
}

// lockIdle acquires mu with the controller Idle and no finalization pending.
// On success the caller owns mu.
func (c *Controller) lockIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state != Idle {
			c.mu.Unlock()
			return ErrAlreadyRecording
		}
		fin := c.finalizing
		if fin == nil {
			return nil
		}
		select {
		case <-fin.done:
			return nil
		default:
		}
		c.mu.Unlock()

		c.logger.Debug().Msg("waiting for previous recording to finalize")
		select {
		case <-fin.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// openSession creates the output file and encoder.
func (c *Controller) openSession(trigger Trigger, hint string, now time.Time) (*session, error) {
	if err := c.fs.MkdirAll(c.outputDir, outputDirPerm); err != nil {
		return nil, fmt.Errorf("%w: create output directory: %w", ErrEncoderSetup, err)
	}
	filename := BuildFilename(now, hint, c.deps.Encoder.Extension())
	path := filepath.Join(c.outputDir, filename)

	sink, err := c.deps.Encoder.NewWriter(path, audio.DefaultFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoderSetup, err)
	}

	id := uuid.NewString()
	logger := c.logger.With().Str("recording_id", id).Logger()
	return &session{
		id:         id,
		filename:   filename,
		path:       path,
		trigger:    trigger,
		startedAt:  now,
		sink:       sink,
		normalizer: NewNormalizer(logger),
		logger:     logger,
	}, nil
}

// abortSession discards a session that never became active.
func (c *Controller) abortSession(sess *session) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	if err := sess.sink.Finish(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("close aborted encoder")
	}
	if err := c.fs.Remove(sess.path); err != nil {
		c.logger.Warn().Err(err).Str("file", sess.path).Msg("remove partial file")
	}
	sess.release()
}

// PauseRecording pauses an active recording. No-op unless Recording.
func (c *Controller) PauseRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Recording {
		return
	}
	c.timing.pauseStart = c.now()
	c.state = Paused
	c.deps.Mixer.Pause()
	c.deps.SystemAudio.PauseCapture()
	c.deps.Microphone.PauseCapture()

	d := c.timing.adjusted(c.timing.pauseStart)
	c.logger.Info().Dur("at", d).Msg("recording paused")
	c.deps.Notifier.Notify(Event{Kind: EventPaused, Duration: d})
}

// ResumeRecording resumes a paused recording. No-op unless Paused.
func (c *Controller) ResumeRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Paused {
		return
	}
	now := c.now()
	c.timing.pausedAccumulated += now.Sub(c.timing.pauseStart)
	c.timing.pauseStart = time.Time{}
	c.state = Recording
	c.deps.Mixer.Resume()
	c.deps.SystemAudio.ResumeCapture()
	c.deps.Microphone.ResumeCapture()

	d := c.timing.adjusted(now)
	c.logger.Info().Dur("at", d).Msg("recording resumed")
	c.deps.Notifier.Notify(Event{Kind: EventResumed, Duration: d})
}

// StopRecording stops the recording and starts finalizing the file in the
// background. No-op when Idle. Use WaitFinalized to wait for the file.
func (c *Controller) StopRecording(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(ctx)
}

func (c *Controller) stopLocked(ctx context.Context) error {
	if c.state == Idle {
		return nil
	}
	final := c.durationLocked()
	c.state = Idle

	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}

	var g errgroup.Group
	g.Go(func() error { return c.deps.SystemAudio.StopCapture(ctx) })
	g.Go(func() error { return c.deps.Microphone.StopCapture(ctx) })
	if err := g.Wait(); err != nil {
		c.logger.Warn().Err(err).Msg("stop capture")
	}
	c.deps.Mixer.Stop()

	c.sinkMu.Lock()
	c.active = nil
	c.sinkMu.Unlock()

	sess := c.session
	c.session = nil
	sess.sink.MarkInputFinished()

	fin := &finalization{done: make(chan struct{})}
	c.finalizing = fin
	go c.finalize(sess, final, fin)

	c.logger.Info().Dur("duration", final).Str("file", sess.path).Msg("recording stopped")
	c.deps.Notifier.Notify(Event{Kind: EventStopped, Trigger: sess.trigger, Path: sess.path, Duration: final})
	return nil
}

// finalize flushes the encoder and records the result. It owns sess.
func (c *Controller) finalize(sess *session, duration time.Duration, fin *finalization) {
	defer close(fin.done)
	defer sess.release()

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if err := sess.sink.Finish(ctx); err != nil {
		fin.err = fmt.Errorf("finalize %s: %w", sess.filename, err)
		c.logger.Error().Err(err).Str("file", sess.path).Msg("finalize recording")
		c.deps.Notifier.Notify(Event{Kind: EventError, Path: sess.path, Err: fin.err})
		return
	}

	var size int64
	if info, err := c.fs.Stat(sess.path); err != nil {
		c.logger.Warn().Err(err).Str("file", sess.path).Msg("stat recording")
	} else {
		size = info.Size()
	}

	stats := sess.stats
	rate := stats.DropRate()
	c.logger.Info().
		Str("file", sess.path).
		Int64("size_bytes", size).
		Dur("duration", duration).
		Int64("frames_written", stats.Written).
		Int64("frames_dropped", stats.Dropped()).
		Int64("dropped_timing", stats.DroppedTiming).
		Int64("dropped_not_ready", stats.DroppedNotReady).
		Float64("drop_rate", rate).
		Msg("recording finalized")
	if rate > MaxDropRate {
		c.logger.Warn().Float64("drop_rate", rate).Float64("max", MaxDropRate).Msg("frame drop rate above threshold")
	}

	if err := c.deps.Metadata.UpdateRecordingEnd(ctx, sess.filename, duration, size, StatusCompleted); err != nil {
		c.logger.Warn().Err(err).Str("file", sess.filename).Msg("update recording metadata")
	}
}

// WaitFinalized blocks until the most recent recording's file is finalized
// and returns its finalization error. Returns nil if nothing was recorded.
func (c *Controller) WaitFinalized(ctx context.Context) error {
	c.mu.Lock()
	fin := c.finalizing
	c.mu.Unlock()
	if fin == nil {
		return nil
	}
	select {
	case <-fin.done:
		return fin.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---------------------------------------------------------------------------
// Live source toggling
// ---------------------------------------------------------------------------

// ToggleSystemAudio starts or stops system audio capture mid-recording.
// Returns ErrNotRecording, with no side effects, unless Recording.
func (c *Controller) ToggleSystemAudio(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Recording {
		c.logger.Warn().Stringer("state", c.state).Msg("system audio toggle rejected")
		return ErrNotRecording
	}

	live := c.deps.SystemAudio.IsCapturing()
	switch {
	case enabled && !live:
		if screenOK, _ := c.deps.Permissions.CheckAllPermissions(ctx); !screenOK {
			return ErrScreenCapturePermission
		}
		if err := c.deps.SystemAudio.StartCapture(ctx, c.target); err != nil {
			return fmt.Errorf("start system audio: %w", err)
		}
	case !enabled && live:
		if err := c.deps.SystemAudio.StopCapture(ctx); err != nil {
			return fmt.Errorf("stop system audio: %w", err)
		}
	}

	c.deps.Mixer.SetSystemAudioEnabled(enabled)
	c.config.IncludeSystemAudio = enabled
	c.sourceChangedLocked()
	return nil
}

// ToggleMicrophone starts or stops microphone capture mid-recording.
// Returns ErrNotRecording, with no side effects, unless Recording.
func (c *Controller) ToggleMicrophone(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Recording {
		c.logger.Warn().Stringer("state", c.state).Msg("microphone toggle rejected")
		return ErrNotRecording
	}

	live := c.deps.Microphone.IsCapturing()
	switch {
	case enabled && !live:
		if _, micOK := c.deps.Permissions.CheckAllPermissions(ctx); !micOK {
			return ErrMicrophonePermission
		}
		if err := c.deps.Microphone.StartCapture(ctx); err != nil {
			return fmt.Errorf("start microphone: %w", err)
		}
	case !enabled && live:
		if err := c.deps.Microphone.StopCapture(ctx); err != nil {
			return fmt.Errorf("stop microphone: %w", err)
		}
	}

	c.deps.Mixer.SetMicrophoneEnabled(enabled)
	c.config.IncludeMicrophone = enabled
	c.sourceChangedLocked()
	return nil
}

func (c *Controller) sourceChangedLocked() {
	c.logger.Info().
		Bool("system_audio", c.config.IncludeSystemAudio).
		Bool("microphone", c.config.IncludeMicrophone).
		Msg("audio sources changed")
	c.deps.Notifier.Notify(Event{Kind: EventSourceChanged, Sources: c.config})
}

// ---------------------------------------------------------------------------
// Status tick and max-duration watchdog
// ---------------------------------------------------------------------------

func (c *Controller) startTicker() {
	stop := make(chan struct{})
	c.tickStop = stop
	interval := c.tickInterval
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				c.tick(stop)
			}
		}
	}()
}

// tick runs one status tick unless the ticker that fired has been stopped.
func (c *Controller) tick(stop chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tickStop != stop {
		return
	}
	c.tickLocked()
}

func (c *Controller) tickLocked() {
	if c.state == Idle {
		return
	}
	d := c.durationLocked()
	c.deps.Notifier.Notify(Event{Kind: EventTimerTick, Duration: d})
	if d < MaxDuration {
		return
	}

	c.logger.Warn().Dur("duration", d).Dur("max", MaxDuration).Msg("maximum duration reached, stopping")
	if err := c.stopLocked(context.Background()); err != nil {
		c.logger.Error().Err(err).Msg("auto-stop")
	}
	c.deps.Notifier.Notify(Event{Kind: EventMaxDurationReached, Duration: d})
}

// ---------------------------------------------------------------------------
// Frame path
// ---------------------------------------------------------------------------

// handleMixedFrame receives mixer output. Only sinkMu is taken.
func (c *Controller) handleMixedFrame(frame audio.Frame) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	if c.active == nil {
		return
	}
	c.active.write(frame)
}

func (c *Controller) captureFailed(source string, err error) {
	c.logger.Error().Err(err).Str("source", source).Msg("capture failed, recording continues")
	c.deps.Notifier.Notify(Event{Kind: EventError, Err: fmt.Errorf("%s: %w", source, err)})
}

// systemObserver adapts the controller to capture.Observer.
type systemObserver struct{ c *Controller }

func (o systemObserver) CaptureDidOutput(frame audio.Frame) { o.c.deps.Mixer.AddSystemAudioFrame(frame) }
func (o systemObserver) CaptureDidFail(err error)           { o.c.captureFailed("system audio", err) }

// micObserver adapts the controller to capture.MicrophoneDelegate.
type micObserver struct{ c *Controller }

func (o micObserver) MicrophoneDidCapture(frame audio.Frame) { o.c.deps.Mixer.AddMicrophoneFrame(frame) }
func (o micObserver) MicrophoneDidFail(err error)            { o.c.captureFailed("microphone", err) }

// Compile-time interface implementation checks.
var (
	_ capture.Observer           = systemObserver{}
	_ capture.MicrophoneDelegate = micObserver{}
)
