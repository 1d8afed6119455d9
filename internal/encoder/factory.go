package encoder

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
)

// Supported output containers.
const (
	FormatWAV = "wav"
	FormatOGG = "ogg"
)

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", FormatWAV:
		return FormatWAV, nil
	case FormatOGG, "opus":
		return FormatOGG, nil
	default:
		return "", fmt.Errorf("%w: %q (expected wav or ogg)", ErrUnsupportedFormat, s)
	}
}

// Factory opens a Writer per recording.
type Factory struct {
	Format     string // FormatWAV or FormatOGG.
	FFmpegPath string // Required for FormatOGG.
	QueueSize  int
	Logger     zerolog.Logger
}

// Extension returns the file extension for the configured format, without the dot.
func (f Factory) Extension() string {
	if f.Format == FormatOGG {
		return "ogg"
	}
	return "wav"
}

// NewWriter opens an encoder writing format-PCM to path.
func (f Factory) NewWriter(path string, format audio.Format) (Sink, error) {
	opts := []Option{WithLogger(f.Logger), WithQueueSize(f.QueueSize)}
	var (
		w   *Writer
		err error
	)
	switch f.Format {
	case FormatOGG:
		w, err = NewFFmpegWriter(context.Background(), f.FFmpegPath, path, format, opts...)
	case FormatWAV, "":
		w, err = NewWAVWriter(path, format, opts...)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, f.Format)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}
