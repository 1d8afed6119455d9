// Package transcribe sends finished recordings to OpenAI speech-to-text.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/Heracs/MeetingSonar-sub001/internal/apierr"
)

// ModelGPT4oMiniTranscribe is the default transcription model.
// go-openai does not define it yet.
const ModelGPT4oMiniTranscribe = "gpt-4o-mini-transcribe"

// MaxRecommendedParallel is the upper limit for concurrent API requests.
// Higher values may trigger rate limiting.
const MaxRecommendedParallel = 10

// Default retry configuration.
const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// Options configures transcription.
type Options struct {
	// Model overrides ModelGPT4oMiniTranscribe.
	Model string

	// Prompt gives the model vocabulary or context, such as meeting topic
	// and participant names.
	Prompt string

	// Language is an ISO 639-1 code. Empty means auto-detect.
	Language string
}

// Transcriber transcribes one audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (string, error)
}

// audioTranscriber is the slice of *openai.Client used here.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Transcriber      = (*OpenAITranscriber)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// OpenAITranscriber transcribes audio using OpenAI's transcription API,
// retrying transient failures with exponential backoff.
type OpenAITranscriber struct {
	client     audioTranscriber
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     zerolog.Logger
}

// TranscriberOption configures an OpenAITranscriber.
type TranscriberOption func(*OpenAITranscriber)

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if n >= 0 {
			t.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if base > 0 {
			t.baseDelay = base
		}
		if max > 0 {
			t.maxDelay = max
		}
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(l zerolog.Logger) TranscriberOption {
	return func(t *OpenAITranscriber) {
		t.logger = l.With().Str("component", "transcribe").Logger()
	}
}

// New builds a transcriber for apiKey.
func New(apiKey string, opts ...TranscriberOption) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	return newTranscriber(openai.NewClient(apiKey), opts...), nil
}

func newTranscriber(client audioTranscriber, opts ...TranscriberOption) *OpenAITranscriber {
	t := &OpenAITranscriber{
		client:     client,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe sends audioPath to the API.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string, opts Options) (string, error) {
	model := opts.Model
	if model == "" {
		model = ModelGPT4oMiniTranscribe
	}
	req := openai.AudioRequest{
		Model:    model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatJSON,
		Prompt:   opts.Prompt,
		Language: opts.Language,
	}

	cfg := apierr.RetryConfig{
		MaxRetries: t.maxRetries,
		BaseDelay:  t.baseDelay,
		MaxDelay:   t.maxDelay,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			t.logger.Warn().Err(err).
				Str("file", filepath.Base(audioPath)).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("transcription retry")
		},
	}
	return apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		resp, err := t.client.CreateTranscription(ctx, req)
		if err != nil {
			return "", classifyError(err)
		}
		return resp.Text, nil
	}, apierr.IsRetryable)
}

// classifyError maps go-openai errors to apierr sentinels.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apierr.FromStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return apierr.FromStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}
	return err
}

// TranscribeAll transcribes chunks concurrently, at most maxParallel at a
// time. Results keep the chunk order. The first failure cancels the rest.
func TranscribeAll(ctx context.Context, chunks []Chunk, t Transcriber, opts Options, maxParallel int) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	if maxParallel < 1 {
		maxParallel = 1
	}

	results := make([]string, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for i, chunk := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := t.Transcribe(ctx, chunk.Path, opts)
			if err != nil {
				return fmt.Errorf("chunk %d (%s): %w", chunk.Index, filepath.Base(chunk.Path), err)
			}
			results[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
