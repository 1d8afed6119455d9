package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Heracs/MeetingSonar-sub001/internal/transcribe"
)

// EnvOpenAIAPIKey is the environment variable holding the OpenAI key.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// supportedFormats lists audio formats accepted by OpenAI's transcription API.
// Source: https://platform.openai.com/docs/guides/speech-to-text
var supportedFormats = map[string]bool{
	".ogg":  true,
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".flac": true,
	".mp4":  true,
	".mpeg": true,
	".mpga": true,
	".webm": true,
}

// supportedFormatsList returns a sorted, comma-separated list for error messages.
func supportedFormatsList() string {
	formats := make([]string, 0, len(supportedFormats))
	for ext := range supportedFormats {
		formats = append(formats, strings.TrimPrefix(ext, "."))
	}
	slices.Sort(formats)
	return strings.Join(formats, ", ")
}

// clampParallel constrains parallel request count to valid range [1, MaxRecommendedParallel].
func clampParallel(n int) int {
	if n < 1 {
		return 1
	}
	if n > transcribe.MaxRecommendedParallel {
		return transcribe.MaxRecommendedParallel
	}
	return n
}

// requireAPIKey returns the OpenAI key or ErrAPIKeyMissing.
func requireAPIKey(env *Env) (string, error) {
	key := env.Getenv(EnvOpenAIAPIKey)
	if key == "" {
		return "", fmt.Errorf("%w (set it with: export %s=sk-...)", transcribe.ErrAPIKeyMissing, EnvOpenAIAPIKey)
	}
	return key, nil
}

// transcribeOptions holds the flags of the transcribe command.
type transcribeOptions struct {
	output   string
	language string
	prompt   string
	model    string
	parallel int
	verbose  bool
}

// TranscribeCmd creates the transcribe command.
// The env parameter provides injectable dependencies for testing.
func TranscribeCmd(env *Env) *cobra.Command {
	var opts transcribeOptions

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe a recording",
		Long: `Transcribe a recording using OpenAI's transcription API.

Recordings larger than the 25 MB upload limit are re-encoded to 16 kHz mono
Opus and cut into 10 minute parts, transcribed in parallel.

The transcript is written next to the recording as <audio-file>.txt.

Supported formats: ogg, mp3, wav, m4a, flac, mp4, mpeg, mpga, webm`,
		Example: `  sonar transcribe meeting-2026-01-25-14-30-52.wav
  sonar transcribe standup.ogg -l fr
  sonar transcribe review.ogg --prompt "Participants: Ana, Bo. Topic: Q3 roadmap"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd.Context(), env, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path (default: <audio-file>.txt)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Audio language (ISO 639-1 code, e.g., en, fr, pt-BR)")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "Vocabulary or context hint for the model")
	cmd.Flags().StringVar(&opts.model, "model", transcribe.ModelGPT4oMiniTranscribe, "Transcription model")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", transcribe.MaxRecommendedParallel, "Max concurrent API requests (1-10)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Mirror logs to stderr")

	return cmd
}

// runTranscribe validates the input and transcribes it.
// Validation order: file exists -> format -> language -> API key
func runTranscribe(ctx context.Context, env *Env, inputPath string, opts transcribeOptions) error {
	// === VALIDATION (fail-fast) ===

	if _, err := os.Stat(inputPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, inputPath)
		}
		return fmt.Errorf("cannot access input file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(inputPath))
	if !supportedFormats[ext] {
		return fmt.Errorf("unsupported format %q (supported: %s): %w",
			ext, supportedFormatsList(), ErrUnsupportedFormat)
	}

	language, err := transcribe.ParseLanguage(opts.language)
	if err != nil {
		return err
	}

	apiKey, err := requireAPIKey(env)
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = transcribe.TranscriptPath(inputPath)
	}

	// === SETUP ===

	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}

	ffmpegPath, err := env.FFmpegResolver.Resolve(ctx, cfg.FFmpegPath)
	if err != nil {
		return err
	}
	env.FFmpegResolver.CheckVersion(ctx, ffmpegPath)

	st, err := openState(ctx, env, cfg.LogLevel, opts.verbose)
	if err != nil {
		return err
	}
	defer st.close()

	return transcribeFile(ctx, env, transcribeRequest{
		input:      inputPath,
		output:     output,
		apiKey:     apiKey,
		ffmpegPath: ffmpegPath,
		options:    transcribe.Options{Model: opts.model, Prompt: opts.prompt, Language: language},
		parallel:   clampParallel(opts.parallel),
		logger:     st.logger,
	})
}

// transcribeRequest is one validated transcription.
type transcribeRequest struct {
	input      string
	output     string
	apiKey     string
	ffmpegPath string
	options    transcribe.Options
	parallel   int
	logger     zerolog.Logger
}

// transcribeFile runs the transcription and writes the transcript.
func transcribeFile(ctx context.Context, env *Env, req transcribeRequest) error {
	job, err := env.TranscriberFactory.NewJob(req.apiKey, req.ffmpegPath, req.options, req.parallel, req.logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "Transcribing %s...\n", filepath.Base(req.input))
	text, err := job.Run(ctx, req.input)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(req.output, text+"\n"); err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Transcript: %s\n", req.output)
	return nil
}
