package transcribe

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Job transcribes whole recordings: split, transcribe chunks in parallel,
// join the text.
type Job struct {
	Transcriber Transcriber
	Splitter    *Splitter
	Options     Options
	Parallel    int
	Logger      zerolog.Logger
}

// Run returns the transcript of audioPath.
func (j Job) Run(ctx context.Context, audioPath string) (string, error) {
	chunks, cleanup, err := j.Splitter.Split(ctx, audioPath)
	if err != nil {
		return "", err
	}
	defer cleanup()

	j.Logger.Info().Str("file", audioPath).Int("chunks", len(chunks)).Msg("transcribing")
	parts, err := TranscribeAll(ctx, chunks, j.Transcriber, j.Options, j.Parallel)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p)
	}
	if b.Len() == 0 {
		return "", ErrEmptyTranscript
	}
	return b.String(), nil
}

// TranscriptPath returns the sidecar text file for a recording.
func TranscriptPath(audioPath string) string {
	return audioPath + ".txt"
}
