package encoder

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
	"github.com/Heracs/MeetingSonar-sub001/internal/ffmpeg"
)

// gracefulShutdownTimeout is the time to wait for FFmpeg to finalize the file.
const gracefulShutdownTimeout = 5 * time.Second

// pipe is a running encoder process fed raw PCM.
type pipe interface {
	io.Writer
	Close(timeout time.Duration) error
}

// pipeStarter launches an encoder process.
type pipeStarter func(ctx context.Context, ffmpegPath string, args []string) (pipe, error)

func defaultPipeStarter(ctx context.Context, ffmpegPath string, args []string) (pipe, error) {
	return ffmpeg.StartPipe(ctx, ffmpegPath, args)
}

// ffmpegBackend pipes float32 PCM into FFmpeg.
type ffmpegBackend struct {
	pipe    pipe
	format  audio.Format
	scratch []byte
}

// NewFFmpegWriter starts FFmpeg and returns a Writer encoding OGG Opus to path.
func NewFFmpegWriter(ctx context.Context, ffmpegPath, path string, format audio.Format, opts ...Option) (*Writer, error) {
	return newFFmpegWriter(ctx, defaultPipeStarter, ffmpegPath, path, format, opts...)
}

func newFFmpegWriter(ctx context.Context, start pipeStarter, ffmpegPath, path string, format audio.Format, opts ...Option) (*Writer, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty: %w", ffmpeg.ErrNotFound)
	}
	p, err := start(ctx, ffmpegPath, buildPipeArgs(format, path))
	if err != nil {
		return nil, err
	}
	return newWriter(path, format, &ffmpegBackend{pipe: p, format: format}, opts), nil
}

// buildPipeArgs reads interleaved f32le from stdin and encodes to output.
func buildPipeArgs(format audio.Format, output string) []string {
	args := []string{
		"-y", // Overwrite output without asking.
		"-loglevel", "error",
		"-f", "f32le", // Raw float32 little-endian input.
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.Channels),
		"-i", "pipe:0",
	}
	args = append(args, encodingArgs()...)
	args = append(args, output)
	return args
}

// encodingArgs returns the standard encoding arguments for OGG Opus output.
// This is the single source of truth for output encoding parameters.
func encodingArgs() []string {
	return []string{
		"-c:a", "libopus", // OGG Opus codec.
		"-ar", "16000", // 16kHz sample rate.
		"-ac", "1", // Mono.
		"-b:a", "50k", // 50kbps bitrate.
	}
}

func (b *ffmpegBackend) writeFrame(frame audio.Frame) error {
	samples := audio.Remix(frame.Samples, frame.Channels, b.format.Channels)
	b.scratch = audio.AppendFloat32LE(b.scratch[:0], samples)
	if _, err := b.pipe.Write(b.scratch); err != nil {
		return err
	}
	return nil
}

func (b *ffmpegBackend) close() error {
	return b.pipe.Close(gracefulShutdownTimeout)
}
