package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Heracs/MeetingSonar-sub001/internal/config"
	"github.com/Heracs/MeetingSonar-sub001/internal/encoder"
	"github.com/Heracs/MeetingSonar-sub001/internal/format"
	"github.com/Heracs/MeetingSonar-sub001/internal/notify"
	"github.com/Heracs/MeetingSonar-sub001/internal/recording"
	"github.com/Heracs/MeetingSonar-sub001/internal/transcribe"
)

// progressInterval is how often the console reports elapsed time.
const progressInterval = time.Minute

// recordHelp lists the interactive commands.
const recordHelp = "Commands: p pause, r resume, s toggle system audio, m toggle microphone, q stop (Ctrl+C also stops)"

// recordOptions holds the validated options for the record command.
type recordOptions struct {
	trigger       string
	name          string
	outputDir     string
	format        string
	target        string
	micDevice     string
	noSystemAudio bool
	noMicrophone  bool
	transcribe    bool
	language      string
	verbose       bool
	desktop       bool
}

// RecordCmd creates the record command.
// The env parameter provides injectable dependencies for testing.
func RecordCmd(env *Env) *cobra.Command {
	var opts recordOptions

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record system audio and microphone into one file",
		Long: `Record system audio and the microphone, mixed into a single 48 kHz stereo file.

The sources come from the trigger's defaults in the config file and can be
narrowed with --no-system-audio or --no-microphone. While recording, type a
command and press Enter:

  p  pause          r  resume
  s  toggle system audio
  m  toggle microphone
  q  stop

Ctrl+C stops and finalizes the file; a second Ctrl+C within 2s aborts.
Recordings stop automatically after 2 hours.`,
		Example: `  sonar record                                  # Manual recording, both sources
  sonar record --trigger auto --name Zoom       # As if started by meeting detection
  sonar record --format ogg --transcribe        # Opus file, transcript afterwards
  sonar record --no-system-audio -o ~/notes     # Microphone only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd.Context(), env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.trigger, "trigger", "manual", "What started the recording: manual, auto, reminder")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Source name appended to the filename (e.g., Zoom)")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory for recordings (default: config output-dir or .)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Output format: wav, ogg (default: config format or wav)")
	cmd.Flags().StringVar(&opts.target, "target", "", "Output sink to capture (default: config or default sink)")
	cmd.Flags().StringVar(&opts.micDevice, "mic-device", "", "Capture device name (default: config or system default)")
	cmd.Flags().BoolVar(&opts.noSystemAudio, "no-system-audio", false, "Do not capture system audio")
	cmd.Flags().BoolVar(&opts.noMicrophone, "no-microphone", false, "Do not capture the microphone")
	cmd.Flags().BoolVar(&opts.transcribe, "transcribe", false, "Transcribe the recording with OpenAI when it is saved")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Audio language for --transcribe (ISO 639-1, e.g., en, fr)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Mirror logs to stderr")
	cmd.Flags().BoolVar(&opts.desktop, "notify", true, "Show desktop notifications")

	cmd.MarkFlagsMutuallyExclusive("no-system-audio", "no-microphone")

	return cmd
}

// sourceOverride narrows the configured sources of every trigger.
type sourceOverride struct {
	base          recording.SettingsProvider
	noSystemAudio bool
	noMicrophone  bool
}

func (s sourceOverride) DefaultConfig(t recording.Trigger) recording.AudioSourceConfig {
	cfg := s.base.DefaultConfig(t)
	if s.noSystemAudio {
		cfg.IncludeSystemAudio = false
	}
	if s.noMicrophone {
		cfg.IncludeMicrophone = false
	}
	return cfg
}

var _ recording.SettingsProvider = sourceOverride{}

// runRecord runs one interactive recording session.
// Validation order: trigger -> format -> language -> API key -> output dir -> ffmpeg
func runRecord(ctx context.Context, env *Env, opts recordOptions) error {
	// === VALIDATION (fail-fast) ===

	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}

	trigger, err := recording.ParseTrigger(opts.trigger)
	if err != nil {
		return err
	}

	fmtName := opts.format
	if fmtName == "" {
		fmtName = cfg.Format
	}
	outFormat, err := encoder.ParseFormat(fmtName)
	if err != nil {
		return err
	}

	var apiKey, language string
	if opts.transcribe {
		if language, err = transcribe.ParseLanguage(opts.language); err != nil {
			return err
		}
		if apiKey, err = requireAPIKey(env); err != nil {
			return err
		}
	}

	outputDir := config.ResolveOutputDir(opts.outputDir, cfg.OutputDir)
	if err := config.EnsureOutputDir(outputDir); err != nil {
		return err
	}

	// === SETUP ===

	var ffmpegPath string
	if outFormat == encoder.FormatOGG || opts.transcribe {
		if ffmpegPath, err = env.FFmpegResolver.Resolve(ctx, cfg.FFmpegPath); err != nil {
			return err
		}
		env.FFmpegResolver.CheckVersion(ctx, ffmpegPath)
	}

	st, err := openState(ctx, env, cfg.LogLevel, opts.verbose)
	if err != nil {
		return err
	}
	defer st.close()

	if n, err := st.store.MarkInterrupted(ctx); err != nil {
		st.logger.Warn().Err(err).Msg("recover interrupted recordings")
	} else if n > 0 {
		fmt.Fprintf(env.Stderr, "Marked %d interrupted recording(s) as failed\n", n)
	}

	stopped := make(chan recording.Event, 1)
	notifiers := recording.Notifiers{
		notify.NewConsole(env.Stderr, progressInterval),
		recording.NotifierFunc(func(e recording.Event) {
			if e.Kind != recording.EventStopped {
				return
			}
			select {
			case stopped <- e:
			default:
			}
		}),
	}
	if opts.desktop {
		desktop := notify.NewDesktop(notify.WithDesktopLogger(st.logger))
		defer func() { _ = desktop.Close() }()
		notifiers = append(notifiers, desktop)
	}

	target := opts.target
	if target == "" {
		target = cfg.SystemAudioTarget
	}
	micDevice := opts.micDevice
	if micDevice == "" {
		micDevice = cfg.MicrophoneDevice
	}

	rec, release, err := env.RecorderFactory.NewRecorder(RecorderConfig{
		OutputDir:  outputDir,
		Format:     outFormat,
		FFmpegPath: ffmpegPath,
		Target:     target,
		MicDevice:  micDevice,
		Settings:   sourceOverride{base: cfg, noSystemAudio: opts.noSystemAudio, noMicrophone: opts.noMicrophone},
		Metadata:   st.store,
		Notifier:   notifiers,
		Logger:     st.logger,
	})
	if err != nil {
		return err
	}
	defer release()

	// === RECORD ===

	handler, sessionCtx := env.Interrupts(ctx)
	defer handler.Stop()
	sessionCtx, endSession := context.WithCancel(sessionCtx)
	defer endSession()

	if err := rec.StartRecording(sessionCtx, trigger, opts.name); err != nil {
		return err
	}
	fmt.Fprintln(env.Stderr, recordHelp)

	var last recording.Event
	select {
	case last = <-stopped:
		// Stopped by the duration limit.
	case <-runCommands(sessionCtx, env, rec, st.logger):
	case <-sessionCtx.Done():
	}

	// Finalization must outlive the interrupted session context.
	finishCtx := context.WithoutCancel(ctx)
	if err := rec.StopRecording(finishCtx); err != nil {
		return err
	}
	if last.Path == "" {
		select {
		case last = <-stopped:
		default:
		}
	}

	waitCtx, cancel := context.WithCancel(finishCtx)
	defer cancel()
	go func() {
		select {
		case <-handler.Aborted():
			cancel()
		case <-waitCtx.Done():
		}
	}()
	if err := rec.WaitFinalized(waitCtx); err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %w", ErrAborted, context.Canceled)
		}
		return err
	}

	if last.Path == "" {
		return nil
	}
	if size, err := fileSize(last.Path); err == nil {
		fmt.Fprintf(env.Stderr, "Saved: %s (%s, %s)\n", last.Path, format.Duration(last.Duration), format.Size(size))
	}

	if !opts.transcribe {
		return nil
	}
	if handler.WasInterrupted() {
		fmt.Fprintln(env.Stderr, "Interrupted, skipping transcription")
		return nil
	}
	return transcribeFile(ctx, env, transcribeRequest{
		input:      last.Path,
		output:     transcribe.TranscriptPath(last.Path),
		apiKey:     apiKey,
		ffmpegPath: ffmpegPath,
		options:    transcribe.Options{Language: language},
		parallel:   transcribe.MaxRecommendedParallel,
		logger:     st.logger,
	})
}

// runCommands reads interactive commands from env.Stdin until q, EOF or
// ctx is done. The returned channel is closed on q and on EOF.
func runCommands(ctx context.Context, env *Env, rec Recorder, logger zerolog.Logger) <-chan struct{} {
	quit := make(chan struct{})
	lines := make(chan string)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(env.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-lines:
				if !ok {
					// End of input stops the session like q.
					close(quit)
					return
				}
				if applyCommand(ctx, env.Stderr, rec, strings.TrimSpace(line), logger) {
					close(quit)
					return
				}
			}
		}
	}()
	return quit
}

// applyCommand executes one interactive command and reports whether the
// session should stop.
func applyCommand(ctx context.Context, w io.Writer, rec Recorder, cmd string, logger zerolog.Logger) bool {
	switch strings.ToLower(cmd) {
	case "":
		return false
	case "p", "pause":
		rec.PauseRecording()
	case "r", "resume":
		rec.ResumeRecording()
	case "s", "system":
		on := !rec.CurrentAudioSourceState().IncludeSystemAudio
		if err := rec.ToggleSystemAudio(ctx, on); err != nil {
			logger.Debug().Err(err).Msg("system audio toggle")
			fmt.Fprintf(w, "Cannot toggle system audio: %v\n", err)
		}
	case "m", "mic", "microphone":
		on := !rec.CurrentAudioSourceState().IncludeMicrophone
		if err := rec.ToggleMicrophone(ctx, on); err != nil {
			logger.Debug().Err(err).Msg("microphone toggle")
			fmt.Fprintf(w, "Cannot toggle microphone: %v\n", err)
		}
	case "q", "quit", "stop":
		return true
	default:
		fmt.Fprintln(w, recordHelp)
	}
	return false
}
