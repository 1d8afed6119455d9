package cli

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/config"
	"github.com/Heracs/MeetingSonar-sub001/internal/device"
	"github.com/Heracs/MeetingSonar-sub001/internal/logging"
	"github.com/Heracs/MeetingSonar-sub001/internal/recording"
	"github.com/Heracs/MeetingSonar-sub001/internal/transcribe"
)

// ---------------------------------------------------------------------------
// Mock FFmpegResolver
// ---------------------------------------------------------------------------

type mockFFmpegResolver struct {
	ResolveFunc func(ctx context.Context, configured string) (string, error)

	mu           sync.Mutex
	resolveCalls []string // configured paths passed
}

func (m *mockFFmpegResolver) Resolve(ctx context.Context, configured string) (string, error) {
	m.mu.Lock()
	m.resolveCalls = append(m.resolveCalls, configured)
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, configured)
	}
	return "/usr/bin/ffmpeg", nil
}

func (m *mockFFmpegResolver) CheckVersion(context.Context, string) {}

func (m *mockFFmpegResolver) ResolveCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.resolveCalls...)
}

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func() (config.Config, error)
}

func (m *mockConfigLoader) Load() (config.Config, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return config.Config{}, nil
}

// ---------------------------------------------------------------------------
// Mock LoggerFactory
// ---------------------------------------------------------------------------

type mockLoggerFactory struct {
	NewLoggerFunc func(opts logging.Options) (zerolog.Logger, io.Closer, error)

	mu   sync.Mutex
	opts []logging.Options
}

func (m *mockLoggerFactory) NewLogger(opts logging.Options) (zerolog.Logger, io.Closer, error) {
	m.mu.Lock()
	m.opts = append(m.opts, opts)
	m.mu.Unlock()

	if m.NewLoggerFunc != nil {
		return m.NewLoggerFunc(opts)
	}
	return zerolog.Nop(), io.NopCloser(nil), nil
}

func (m *mockLoggerFactory) Options() []logging.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]logging.Options(nil), m.opts...)
}

// ---------------------------------------------------------------------------
// Mock Store + StoreOpener
// ---------------------------------------------------------------------------

type mockStore struct {
	ListFunc            func(ctx context.Context, limit int) ([]recording.Entry, error)
	MarkInterruptedFunc func(ctx context.Context) (int64, error)

	mu         sync.Mutex
	added      []recording.Entry
	updated    []string
	listLimits []int
	closed     int
}

func (m *mockStore) Add(_ context.Context, e recording.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, e)
	return nil
}

func (m *mockStore) UpdateRecordingEnd(_ context.Context, filename string, _ time.Duration, _ int64, _ recording.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, filename)
	return nil
}

func (m *mockStore) List(ctx context.Context, limit int) ([]recording.Entry, error) {
	m.mu.Lock()
	m.listLimits = append(m.listLimits, limit)
	m.mu.Unlock()

	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockStore) MarkInterrupted(ctx context.Context) (int64, error) {
	if m.MarkInterruptedFunc != nil {
		return m.MarkInterruptedFunc(ctx)
	}
	return 0, nil
}

func (m *mockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockStore) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockStore) ListLimits() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.listLimits...)
}

type mockStoreOpener struct {
	store   *mockStore
	OpenErr error

	mu    sync.Mutex
	paths []string
}

func (m *mockStoreOpener) Open(_ context.Context, path string, _ zerolog.Logger) (Store, error) {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.mu.Unlock()

	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	return m.store, nil
}

func (m *mockStoreOpener) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

// ---------------------------------------------------------------------------
// Mock Recorder + RecorderFactory
// ---------------------------------------------------------------------------

// mockRecorder mimics the controller's state machine and events.
// StopRecording writes a small file at the recording path.
type mockRecorder struct {
	StartFunc         func(ctx context.Context, trigger recording.Trigger, hint string) error
	WaitFinalizedFunc func(ctx context.Context) error

	mu       sync.Mutex
	notifier recording.Notifier
	dir      string
	state    recording.State
	sources  recording.AudioSourceConfig
	path     string
	trigger  recording.Trigger
	hint     string
	calls    []string
}

func (m *mockRecorder) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *mockRecorder) StartRecording(ctx context.Context, trigger recording.Trigger, hint string) error {
	if m.StartFunc != nil {
		if err := m.StartFunc(ctx, trigger, hint); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("start")
	if m.state != recording.Idle {
		return recording.ErrAlreadyRecording
	}
	m.state = recording.Recording
	m.trigger = trigger
	m.hint = hint
	m.path = m.dir + "/recording.wav"
	m.notifier.Notify(recording.Event{Kind: recording.EventStarted, Trigger: trigger, Path: m.path, Sources: m.sources})
	return nil
}

func (m *mockRecorder) PauseRecording() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("pause")
	if m.state == recording.Recording {
		m.state = recording.Paused
	}
}

func (m *mockRecorder) ResumeRecording() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("resume")
	if m.state == recording.Paused {
		m.state = recording.Recording
	}
}

func (m *mockRecorder) StopRecording(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

func (m *mockRecorder) stopLocked() error {
	m.record("stop")
	if m.state == recording.Idle {
		return nil
	}
	m.state = recording.Idle
	if err := os.WriteFile(m.path, []byte("RIFF"), 0o644); err != nil {
		return err
	}
	m.notifier.Notify(recording.Event{Kind: recording.EventStopped, Trigger: m.trigger, Path: m.path, Duration: 65 * time.Second})
	return nil
}

// autoStop stops the recording from the recorder's side, as the duration
// limit does.
func (m *mockRecorder) autoStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifier.Notify(recording.Event{Kind: recording.EventMaxDurationReached, Duration: recording.MaxDuration})
	_ = m.stopLocked()
}

func (m *mockRecorder) WaitFinalized(ctx context.Context) error {
	if m.WaitFinalizedFunc != nil {
		return m.WaitFinalizedFunc(ctx)
	}
	return nil
}

func (m *mockRecorder) ToggleSystemAudio(_ context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if enabled {
		m.record("system-on")
	} else {
		m.record("system-off")
	}
	if m.state != recording.Recording {
		return recording.ErrNotRecording
	}
	m.sources.IncludeSystemAudio = enabled
	return nil
}

func (m *mockRecorder) ToggleMicrophone(_ context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if enabled {
		m.record("mic-on")
	} else {
		m.record("mic-off")
	}
	if m.state != recording.Recording {
		return recording.ErrNotRecording
	}
	m.sources.IncludeMicrophone = enabled
	return nil
}

func (m *mockRecorder) State() recording.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockRecorder) CurrentAudioSourceState() recording.AudioSourceConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sources
}

func (m *mockRecorder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockRecorder) Hint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hint
}

func (m *mockRecorder) Trigger() recording.Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trigger
}

type mockRecorderFactory struct {
	recorder *mockRecorder
	Err      error

	mu       sync.Mutex
	configs  []RecorderConfig
	released int
}

func (m *mockRecorderFactory) NewRecorder(cfg RecorderConfig) (Recorder, func(), error) {
	m.mu.Lock()
	m.configs = append(m.configs, cfg)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, nil, m.Err
	}
	m.recorder.mu.Lock()
	m.recorder.notifier = cfg.Notifier
	m.recorder.dir = cfg.OutputDir
	m.recorder.sources = cfg.Settings.DefaultConfig(recording.TriggerManual)
	m.recorder.mu.Unlock()

	return m.recorder, func() {
		m.mu.Lock()
		m.released++
		m.mu.Unlock()
	}, nil
}

func (m *mockRecorderFactory) Configs() []RecorderConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecorderConfig(nil), m.configs...)
}

func (m *mockRecorderFactory) Released() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// ---------------------------------------------------------------------------
// Mock DeviceLister
// ---------------------------------------------------------------------------

type mockDeviceLister struct {
	ListFunc func(ctx context.Context) (device.Inventory, error)
}

func (m *mockDeviceLister) List(ctx context.Context) (device.Inventory, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return device.Inventory{}, nil
}

// ---------------------------------------------------------------------------
// Mock TranscriberFactory + TranscriptJob
// ---------------------------------------------------------------------------

type newJobCall struct {
	APIKey     string
	FFmpegPath string
	Opts       transcribe.Options
	Parallel   int
}

type mockTranscriberFactory struct {
	job *mockJob
	Err error

	mu    sync.Mutex
	calls []newJobCall
}

func (m *mockTranscriberFactory) NewJob(apiKey, ffmpegPath string, opts transcribe.Options, parallel int, _ zerolog.Logger) (TranscriptJob, error) {
	m.mu.Lock()
	m.calls = append(m.calls, newJobCall{APIKey: apiKey, FFmpegPath: ffmpegPath, Opts: opts, Parallel: parallel})
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.job == nil {
		return &mockJob{}, nil
	}
	return m.job, nil
}

func (m *mockTranscriberFactory) Calls() []newJobCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]newJobCall(nil), m.calls...)
}

type mockJob struct {
	RunFunc func(ctx context.Context, audioPath string) (string, error)

	mu    sync.Mutex
	paths []string
}

func (m *mockJob) Run(ctx context.Context, audioPath string) (string, error) {
	m.mu.Lock()
	m.paths = append(m.paths, audioPath)
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, audioPath)
	}
	return "hello world", nil
}

func (m *mockJob) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

// Compile-time interface verification.
var (
	_ FFmpegResolver     = (*mockFFmpegResolver)(nil)
	_ ConfigLoader       = (*mockConfigLoader)(nil)
	_ LoggerFactory      = (*mockLoggerFactory)(nil)
	_ Store              = (*mockStore)(nil)
	_ StoreOpener        = (*mockStoreOpener)(nil)
	_ Recorder           = (*mockRecorder)(nil)
	_ RecorderFactory    = (*mockRecorderFactory)(nil)
	_ DeviceLister       = (*mockDeviceLister)(nil)
	_ TranscriberFactory = (*mockTranscriberFactory)(nil)
	_ TranscriptJob      = (*mockJob)(nil)
)
