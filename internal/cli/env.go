package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/capture"
	"github.com/Heracs/MeetingSonar-sub001/internal/config"
	"github.com/Heracs/MeetingSonar-sub001/internal/device"
	"github.com/Heracs/MeetingSonar-sub001/internal/encoder"
	"github.com/Heracs/MeetingSonar-sub001/internal/ffmpeg"
	"github.com/Heracs/MeetingSonar-sub001/internal/interrupt"
	"github.com/Heracs/MeetingSonar-sub001/internal/logging"
	"github.com/Heracs/MeetingSonar-sub001/internal/metadata"
	"github.com/Heracs/MeetingSonar-sub001/internal/mixer"
	"github.com/Heracs/MeetingSonar-sub001/internal/recording"
	"github.com/Heracs/MeetingSonar-sub001/internal/transcribe"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	// I/O and environment
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Now    func() time.Time

	// StateDir returns the directory for logs and the recording index.
	StateDir func() (string, error)

	// Interrupts installs the two-stage Ctrl+C handler for a recording.
	Interrupts func(ctx context.Context) (*interrupt.Handler, context.Context)

	// Factories for domain objects
	FFmpegResolver     FFmpegResolver
	ConfigLoader       ConfigLoader
	LoggerFactory      LoggerFactory
	StoreOpener        StoreOpener
	RecorderFactory    RecorderFactory
	DeviceLister       DeviceLister
	TranscriberFactory TranscriberFactory
}

// FFmpegResolver resolves the path to the FFmpeg binary.
type FFmpegResolver interface {
	Resolve(ctx context.Context, configured string) (string, error)
	CheckVersion(ctx context.Context, ffmpegPath string)
}

// ConfigLoader loads and provides access to configuration.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// LoggerFactory builds the application logger.
type LoggerFactory interface {
	NewLogger(opts logging.Options) (zerolog.Logger, io.Closer, error)
}

// Store is the recording index used by the CLI.
type Store interface {
	recording.MetadataStore
	List(ctx context.Context, limit int) ([]recording.Entry, error)
	MarkInterrupted(ctx context.Context) (int64, error)
	Close() error
}

// StoreOpener opens the recording index.
type StoreOpener interface {
	Open(ctx context.Context, path string, logger zerolog.Logger) (Store, error)
}

// Recorder is the recording controller as seen by the record command.
type Recorder interface {
	StartRecording(ctx context.Context, trigger recording.Trigger, sourceNameHint string) error
	PauseRecording()
	ResumeRecording()
	StopRecording(ctx context.Context) error
	WaitFinalized(ctx context.Context) error
	ToggleSystemAudio(ctx context.Context, enabled bool) error
	ToggleMicrophone(ctx context.Context, enabled bool) error
	State() recording.State
	CurrentAudioSourceState() recording.AudioSourceConfig
}

// RecorderConfig carries what the record command resolved from flags and config.
type RecorderConfig struct {
	OutputDir  string
	Format     string
	FFmpegPath string
	Target     string
	MicDevice  string
	Settings   recording.SettingsProvider
	Metadata   recording.MetadataStore
	Notifier   recording.Notifier
	Logger     zerolog.Logger
}

// RecorderFactory wires a Recorder to the host's audio devices.
// The returned func releases device connections.
type RecorderFactory interface {
	NewRecorder(cfg RecorderConfig) (Recorder, func(), error)
}

// DeviceLister enumerates audio devices.
type DeviceLister interface {
	List(ctx context.Context) (device.Inventory, error)
}

// TranscriptJob turns a recording into text.
type TranscriptJob interface {
	Run(ctx context.Context, audioPath string) (string, error)
}

// TranscriberFactory creates transcription jobs.
type TranscriberFactory interface {
	NewJob(apiKey, ffmpegPath string, opts transcribe.Options, parallel int, logger zerolog.Logger) (TranscriptJob, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdin sets the stdin reader.
func WithStdin(r io.Reader) EnvOption {
	return func(e *Env) {
		e.Stdin = r
	}
}

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithNow sets the time provider.
func WithNow(fn func() time.Time) EnvOption {
	return func(e *Env) {
		e.Now = fn
	}
}

// WithStateDir sets the state directory provider.
func WithStateDir(fn func() (string, error)) EnvOption {
	return func(e *Env) {
		e.StateDir = fn
	}
}

// WithInterrupts sets the interrupt handler constructor.
func WithInterrupts(fn func(ctx context.Context) (*interrupt.Handler, context.Context)) EnvOption {
	return func(e *Env) {
		e.Interrupts = fn
	}
}

// WithFFmpegResolver sets the FFmpeg resolver.
func WithFFmpegResolver(r FFmpegResolver) EnvOption {
	return func(e *Env) {
		e.FFmpegResolver = r
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithLoggerFactory sets the logger factory.
func WithLoggerFactory(f LoggerFactory) EnvOption {
	return func(e *Env) {
		e.LoggerFactory = f
	}
}

// WithStoreOpener sets the recording index opener.
func WithStoreOpener(o StoreOpener) EnvOption {
	return func(e *Env) {
		e.StoreOpener = o
	}
}

// WithRecorderFactory sets the recorder factory.
func WithRecorderFactory(f RecorderFactory) EnvOption {
	return func(e *Env) {
		e.RecorderFactory = f
	}
}

// WithDeviceLister sets the device lister.
func WithDeviceLister(l DeviceLister) EnvOption {
	return func(e *Env) {
		e.DeviceLister = l
	}
}

// WithTranscriberFactory sets the transcriber factory.
func WithTranscriberFactory(f TranscriberFactory) EnvOption {
	return func(e *Env) {
		e.TranscriberFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdin:              os.Stdin,
		Stdout:             os.Stdout,
		Stderr:             os.Stderr,
		Getenv:             os.Getenv,
		Now:                time.Now,
		StateDir:           config.StateDir,
		Interrupts:         interrupt.NewHandler,
		FFmpegResolver:     &defaultFFmpegResolver{},
		ConfigLoader:       &defaultConfigLoader{},
		LoggerFactory:      &defaultLoggerFactory{},
		StoreOpener:        &defaultStoreOpener{},
		RecorderFactory:    &defaultRecorderFactory{},
		DeviceLister:       &defaultDeviceLister{},
		TranscriberFactory: &defaultTranscriberFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultFFmpegResolver implements FFmpegResolver using the ffmpeg package.
type defaultFFmpegResolver struct{}

func (defaultFFmpegResolver) Resolve(ctx context.Context, configured string) (string, error) {
	return ffmpeg.NewResolver(ffmpeg.WithConfiguredPath(configured)).Resolve(ctx)
}

func (defaultFFmpegResolver) CheckVersion(ctx context.Context, ffmpegPath string) {
	ffmpeg.NewVersionChecker().Check(ctx, ffmpegPath)
}

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Config, error) {
	return config.Load()
}

// defaultLoggerFactory implements LoggerFactory using the logging package.
type defaultLoggerFactory struct{}

func (defaultLoggerFactory) NewLogger(opts logging.Options) (zerolog.Logger, io.Closer, error) {
	return logging.New(opts)
}

// defaultStoreOpener implements StoreOpener with the SQLite index.
type defaultStoreOpener struct{}

func (defaultStoreOpener) Open(ctx context.Context, path string, logger zerolog.Logger) (Store, error) {
	return metadata.Open(ctx, path, metadata.WithLogger(logger))
}

// defaultRecorderFactory wires PulseAudio, miniaudio, the mixer and the encoder
// into a recording.Controller.
type defaultRecorderFactory struct{}

func (defaultRecorderFactory) NewRecorder(cfg RecorderConfig) (Recorder, func(), error) {
	pulse := device.NewPulseProvider(device.WithPulseLogger(cfg.Logger))

	micOpts := []device.MicrophoneOption{device.WithMicrophoneLogger(cfg.Logger)}
	if cfg.MicDevice != "" {
		micOpts = append(micOpts, device.WithMicrophoneDevice(cfg.MicDevice))
	}

	ctrl, err := recording.NewController(recording.Dependencies{
		SystemAudio: capture.NewSystemAudio(pulse, capture.WithLogger(cfg.Logger)),
		Microphone:  device.NewMicrophone(micOpts...),
		Mixer:       mixer.New(mixer.WithLogger(cfg.Logger)),
		Permissions: device.NewPermissions(pulse, device.WithPermissionsLogger(cfg.Logger)),
		Settings:    cfg.Settings,
		Metadata:    cfg.Metadata,
		Notifier:    cfg.Notifier,
		Encoder: encoder.Factory{
			Format:     cfg.Format,
			FFmpegPath: cfg.FFmpegPath,
			Logger:     cfg.Logger,
		},
	},
		recording.WithLogger(cfg.Logger),
		recording.WithOutputDir(cfg.OutputDir),
		recording.WithSystemAudioTarget(cfg.Target),
	)
	if err != nil {
		pulse.Close()
		return nil, nil, err
	}
	return ctrl, pulse.Close, nil
}

// defaultDeviceLister lists devices through PulseAudio and miniaudio.
type defaultDeviceLister struct{}

func (defaultDeviceLister) List(ctx context.Context) (device.Inventory, error) {
	pulse := device.NewPulseProvider()
	defer pulse.Close()
	return device.NewLister(pulse).List(ctx)
}

// defaultTranscriberFactory implements TranscriberFactory using OpenAI.
type defaultTranscriberFactory struct{}

func (defaultTranscriberFactory) NewJob(apiKey, ffmpegPath string, opts transcribe.Options, parallel int, logger zerolog.Logger) (TranscriptJob, error) {
	t, err := transcribe.New(apiKey, transcribe.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return transcribe.Job{
		Transcriber: t,
		Splitter:    transcribe.NewSplitter(ffmpegPath, ffmpeg.NewExecutor()),
		Options:     opts,
		Parallel:    parallel,
		Logger:      logger,
	}, nil
}

// Compile-time interface verification.
var (
	_ FFmpegResolver     = (*defaultFFmpegResolver)(nil)
	_ ConfigLoader       = (*defaultConfigLoader)(nil)
	_ LoggerFactory      = (*defaultLoggerFactory)(nil)
	_ StoreOpener        = (*defaultStoreOpener)(nil)
	_ RecorderFactory    = (*defaultRecorderFactory)(nil)
	_ DeviceLister       = (*defaultDeviceLister)(nil)
	_ TranscriberFactory = (*defaultTranscriberFactory)(nil)
	_ Store              = (*metadata.Store)(nil)
	_ Recorder           = (*recording.Controller)(nil)
	_ TranscriptJob      = transcribe.Job{}
)
