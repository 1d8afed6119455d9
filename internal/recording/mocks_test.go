package recording_test

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
	"github.com/Heracs/MeetingSonar-sub001/internal/capture"
	"github.com/Heracs/MeetingSonar-sub001/internal/encoder"
	"github.com/Heracs/MeetingSonar-sub001/internal/recording"
)

// ---------------------------------------------------------------------------
// Fake clock
// ---------------------------------------------------------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Mock SystemAudioCapture
// ---------------------------------------------------------------------------

type mockSystemAudio struct {
	StartFunc func(ctx context.Context, target string) error

	mu         sync.Mutex
	capturing  bool
	paused     bool
	startCalls []string
	stopCalls  int
	observer   capture.Observer
}

func (m *mockSystemAudio) StartCapture(ctx context.Context, target string) error {
	m.mu.Lock()
	m.startCalls = append(m.startCalls, target)
	fn := m.StartFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, target); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.capturing = true
	m.mu.Unlock()
	return nil
}

func (m *mockSystemAudio) StopCapture(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.capturing {
		return nil
	}
	m.stopCalls++
	m.capturing = false
	m.paused = false
	return nil
}

func (m *mockSystemAudio) PauseCapture() {
	m.mu.Lock()
	m.paused = m.capturing
	m.mu.Unlock()
}

func (m *mockSystemAudio) ResumeCapture() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

func (m *mockSystemAudio) IsCapturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturing
}

func (m *mockSystemAudio) SetObserver(o capture.Observer) {
	m.mu.Lock()
	m.observer = o
	m.mu.Unlock()
}

func (m *mockSystemAudio) Observer() capture.Observer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.observer
}

func (m *mockSystemAudio) Calls() (starts, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.startCalls), m.stopCalls
}

// ---------------------------------------------------------------------------
// Mock MicrophoneCapture
// ---------------------------------------------------------------------------

type mockMicrophone struct {
	StartFunc func(ctx context.Context) error

	mu         sync.Mutex
	capturing  bool
	paused     bool
	startCalls int
	stopCalls  int
	delegate   capture.MicrophoneDelegate
}

func (m *mockMicrophone) StartCapture(ctx context.Context) error {
	m.mu.Lock()
	m.startCalls++
	fn := m.StartFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.capturing = true
	m.mu.Unlock()
	return nil
}

func (m *mockMicrophone) StopCapture(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.capturing {
		return nil
	}
	m.stopCalls++
	m.capturing = false
	m.paused = false
	return nil
}

func (m *mockMicrophone) PauseCapture() {
	m.mu.Lock()
	m.paused = m.capturing
	m.mu.Unlock()
}

func (m *mockMicrophone) ResumeCapture() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

func (m *mockMicrophone) IsCapturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturing
}

func (m *mockMicrophone) SetDelegate(d capture.MicrophoneDelegate) {
	m.mu.Lock()
	m.delegate = d
	m.mu.Unlock()
}

func (m *mockMicrophone) Delegate() capture.MicrophoneDelegate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delegate
}

func (m *mockMicrophone) Calls() (starts, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalls, m.stopCalls
}

// ---------------------------------------------------------------------------
// Mock AudioMixer
// ---------------------------------------------------------------------------

// mockMixer forwards nothing on its own; tests push frames with Emit.
type mockMixer struct {
	mu          sync.Mutex
	running     bool
	paused      bool
	systemOn    bool
	micOn       bool
	startCalls  int
	stopCalls   int
	systemAdded int
	micAdded    int
	delegate    func(audio.Frame)
}

func (m *mockMixer) Start() {
	m.mu.Lock()
	m.running = true
	m.startCalls++
	m.mu.Unlock()
}

func (m *mockMixer) Stop() {
	m.mu.Lock()
	m.running = false
	m.stopCalls++
	m.mu.Unlock()
}

func (m *mockMixer) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

func (m *mockMixer) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

func (m *mockMixer) SetSystemAudioEnabled(on bool) {
	m.mu.Lock()
	m.systemOn = on
	m.mu.Unlock()
}

func (m *mockMixer) SetMicrophoneEnabled(on bool) {
	m.mu.Lock()
	m.micOn = on
	m.mu.Unlock()
}

func (m *mockMixer) AddSystemAudioFrame(audio.Frame) {
	m.mu.Lock()
	m.systemAdded++
	m.mu.Unlock()
}

func (m *mockMixer) AddMicrophoneFrame(audio.Frame) {
	m.mu.Lock()
	m.micAdded++
	m.mu.Unlock()
}

func (m *mockMixer) SetDelegate(fn func(audio.Frame)) {
	m.mu.Lock()
	m.delegate = fn
	m.mu.Unlock()
}

// Emit delivers f to the delegate as the mixer goroutine would.
func (m *mockMixer) Emit(f audio.Frame) {
	m.mu.Lock()
	fn := m.delegate
	m.mu.Unlock()
	if fn != nil {
		fn(f)
	}
}

func (m *mockMixer) Enabled() (system, mic bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.systemOn, m.micOn
}

func (m *mockMixer) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}

func (m *mockMixer) Added() (system, mic int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.systemAdded, m.micAdded
}

// ---------------------------------------------------------------------------
// Mock PermissionChecker / SettingsProvider
// ---------------------------------------------------------------------------

type mockPermissions struct {
	mu       sync.Mutex
	screenOK bool
	micOK    bool
	calls    int
}

func (m *mockPermissions) CheckAllPermissions(context.Context) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.screenOK, m.micOK
}

func (m *mockPermissions) Set(screenOK, micOK bool) {
	m.mu.Lock()
	m.screenOK, m.micOK = screenOK, micOK
	m.mu.Unlock()
}

type mockSettings struct {
	DefaultConfigFunc func(recording.Trigger) recording.AudioSourceConfig
}

func (m mockSettings) DefaultConfig(t recording.Trigger) recording.AudioSourceConfig {
	if m.DefaultConfigFunc != nil {
		return m.DefaultConfigFunc(t)
	}
	return recording.AudioSourceConfig{IncludeSystemAudio: true, IncludeMicrophone: true}
}

// ---------------------------------------------------------------------------
// Mock MetadataStore
// ---------------------------------------------------------------------------

type metadataUpdate struct {
	Filename string
	Duration time.Duration
	Size     int64
	Status   recording.Status
}

type mockMetadata struct {
	AddFunc func(ctx context.Context, e recording.Entry) error

	mu      sync.Mutex
	entries []recording.Entry
	updates []metadataUpdate
}

func (m *mockMetadata) Add(ctx context.Context, e recording.Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	if m.AddFunc != nil {
		return m.AddFunc(ctx, e)
	}
	return nil
}

func (m *mockMetadata) UpdateRecordingEnd(ctx context.Context, filename string, d time.Duration, size int64, s recording.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, metadataUpdate{Filename: filename, Duration: d, Size: size, Status: s})
	return nil
}

func (m *mockMetadata) Entries() []recording.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recording.Entry(nil), m.entries...)
}

func (m *mockMetadata) Updates() []metadataUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]metadataUpdate(nil), m.updates...)
}

// ---------------------------------------------------------------------------
// Mock Notifier
// ---------------------------------------------------------------------------

type mockNotifier struct {
	mu     sync.Mutex
	events []recording.Event
}

func (m *mockNotifier) Notify(e recording.Event) {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
}

func (m *mockNotifier) Events() []recording.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recording.Event(nil), m.events...)
}

func (m *mockNotifier) Count(kind recording.EventKind) int {
	var n int
	for _, e := range m.Events() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (m *mockNotifier) Last(kind recording.EventKind) (recording.Event, bool) {
	events := m.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind {
			return events[i], true
		}
	}
	return recording.Event{}, false
}

// ---------------------------------------------------------------------------
// Mock encoder
// ---------------------------------------------------------------------------

type mockSink struct {
	path      string
	finishErr error
	// gate, if set, blocks Finish until closed.
	gate chan struct{}

	mu       sync.Mutex
	ready    bool
	frames   []audio.Frame
	finished bool
	markedIn bool
}

func (s *mockSink) ReadyForMoreData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && !s.markedIn
}

func (s *mockSink) Append(f audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return encoder.ErrNotReady
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *mockSink) MarkInputFinished() {
	s.mu.Lock()
	s.markedIn = true
	s.mu.Unlock()
}

func (s *mockSink) Finish(ctx context.Context) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	return s.finishErr
}

func (s *mockSink) Path() string { return s.path }

func (s *mockSink) SetReady(r bool) {
	s.mu.Lock()
	s.ready = r
	s.mu.Unlock()
}

func (s *mockSink) Frames() []audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audio.Frame(nil), s.frames...)
}

func (s *mockSink) InputFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markedIn
}

func (s *mockSink) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// mockEncoderFactory creates a placeholder file per sink so size and
// removal can be observed on disk.
type mockEncoderFactory struct {
	NewWriterErr error
	FinishErr    error
	Gate         chan struct{}

	mu    sync.Mutex
	sinks []*mockSink
}

func (f *mockEncoderFactory) NewWriter(path string, _ audio.Format) (encoder.Sink, error) {
	if f.NewWriterErr != nil {
		return nil, f.NewWriterErr
	}
	if err := os.WriteFile(path, []byte("RIFF"), 0o600); err != nil {
		return nil, err
	}
	s := &mockSink{path: path, ready: true, finishErr: f.FinishErr, gate: f.Gate}
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
	return s, nil
}

func (f *mockEncoderFactory) Extension() string { return "wav" }

func (f *mockEncoderFactory) Sinks() []*mockSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*mockSink(nil), f.sinks...)
}

func (f *mockEncoderFactory) Last() *mockSink {
	s := f.Sinks()
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}
