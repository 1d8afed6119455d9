package recording

import (
	"context"
	"os"
	"time"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
	"github.com/Heracs/MeetingSonar-sub001/internal/capture"
	"github.com/Heracs/MeetingSonar-sub001/internal/encoder"
)

// ---------------------------------------------------------------------------
// Collaborators - local to this package, following Go idiom
// ---------------------------------------------------------------------------

// SystemAudioCapture captures the machine's audio output.
type SystemAudioCapture interface {
	StartCapture(ctx context.Context, target string) error
	StopCapture(ctx context.Context) error
	PauseCapture()
	ResumeCapture()
	IsCapturing() bool
	SetObserver(o capture.Observer)
}

// MicrophoneCapture captures the default input device.
type MicrophoneCapture interface {
	StartCapture(ctx context.Context) error
	StopCapture(ctx context.Context) error
	PauseCapture()
	ResumeCapture()
	IsCapturing() bool
	SetDelegate(d capture.MicrophoneDelegate)
}

// AudioMixer merges both sources into one stream.
type AudioMixer interface {
	Start()
	Stop()
	Pause()
	Resume()
	SetSystemAudioEnabled(enabled bool)
	SetMicrophoneEnabled(enabled bool)
	AddSystemAudioFrame(frame audio.Frame)
	AddMicrophoneFrame(frame audio.Frame)
	SetDelegate(fn func(audio.Frame))
}

// PermissionChecker reports whether each source can be captured.
type PermissionChecker interface {
	CheckAllPermissions(ctx context.Context) (screenOK, micOK bool)
}

// SettingsProvider resolves the default sources for a trigger.
type SettingsProvider interface {
	DefaultConfig(trigger Trigger) AudioSourceConfig
}

// MetadataStore records recordings.
type MetadataStore interface {
	Add(ctx context.Context, e Entry) error
	UpdateRecordingEnd(ctx context.Context, filename string, duration time.Duration, sizeBytes int64, status Status) error
}

// Notifier receives controller events. Notify is called while the controller
// lock is held and from the finalization goroutine; it must not block or call
// back into the controller.
type Notifier interface {
	Notify(e Event)
}

// EncoderFactory opens one sink per recording.
type EncoderFactory interface {
	NewWriter(path string, format audio.Format) (encoder.Sink, error)
	Extension() string
}

// Dependencies groups every collaborator of a Controller.
// Metadata and Notifier may be nil.
type Dependencies struct {
	SystemAudio SystemAudioCapture
	Microphone  MicrophoneCapture
	Mixer       AudioMixer
	Permissions PermissionChecker
	Settings    SettingsProvider
	Metadata    MetadataStore
	Notifier    Notifier
	Encoder     EncoderFactory
}

// fileSystem is the slice of os the controller needs for output files.
type fileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	Stat(name string) (os.FileInfo, error)
	Remove(name string) error
}

// --- Default implementations ---

type osFileSystem struct{}

func (osFileSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (osFileSystem) Stat(name string) (os.FileInfo, error)        { return os.Stat(name) }
func (osFileSystem) Remove(name string) error                     { return os.Remove(name) }

type nopMetadata struct{}

func (nopMetadata) Add(context.Context, Entry) error { return nil }
func (nopMetadata) UpdateRecordingEnd(context.Context, string, time.Duration, int64, Status) error {
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

// Notify forwards e to every notifier.
func (ns Notifiers) Notify(e Event) {
	for _, n := range ns {
		n.Notify(e)
	}
}
