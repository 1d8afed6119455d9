package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// MaxUploadBytes is the API's per-request file limit.
const MaxUploadBytes = 25 << 20

// defaultSegment keeps a 24 kbps mono chunk around 2 MB.
const defaultSegment = 10 * time.Minute

// chunkPrefix marks directories created by Split.
const chunkPrefix = "meetingsonar-chunks-"

// Chunk is one piece of a recording sent as its own request.
type Chunk struct {
	Index int
	Path  string
}

// commandRunner runs ffmpeg and returns its combined output.
// *ffmpeg.Executor satisfies it.
type commandRunner interface {
	RunOutput(ctx context.Context, ffmpegPath string, args []string) (string, error)
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithSegment sets the chunk duration.
func WithSegment(d time.Duration) SplitterOption {
	return func(s *Splitter) {
		if d > 0 {
			s.segment = d
		}
	}
}

// WithMaxBytes sets the size under which an OGG recording is uploaded as is.
func WithMaxBytes(n int64) SplitterOption {
	return func(s *Splitter) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithTempDir sets the parent directory for chunk directories.
func WithTempDir(dir string) SplitterOption {
	return func(s *Splitter) { s.tempDir = dir }
}

// Splitter cuts recordings into upload-sized OGG Opus chunks.
type Splitter struct {
	ffmpegPath string
	run        commandRunner
	segment    time.Duration
	maxBytes   int64
	tempDir    string
}

// NewSplitter returns a Splitter invoking ffmpegPath through run.
func NewSplitter(ffmpegPath string, run commandRunner, opts ...SplitterOption) *Splitter {
	s := &Splitter{
		ffmpegPath: ffmpegPath,
		run:        run,
		segment:    defaultSegment,
		maxBytes:   MaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split returns the chunks for audioPath and a cleanup func removing any
// files it created. Small OGG files are returned unchanged. Everything else
// is re-encoded to 16 kHz mono Opus and cut every segment.
func (s *Splitter) Split(ctx context.Context, audioPath string) ([]Chunk, func(), error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read recording: %w", err)
	}
	if strings.EqualFold(filepath.Ext(audioPath), ".ogg") && info.Size() <= s.maxBytes {
		return []Chunk{{Index: 0, Path: audioPath}}, func() {}, nil
	}

	dir, err := os.MkdirTemp(s.tempDir, chunkPrefix+"*")
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create chunk directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	out, err := s.run.RunOutput(ctx, s.ffmpegPath, s.args(audioPath, dir))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("%w: %v\nOutput: %s", ErrSplitFailed, err, out)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "chunk_*.ogg"))
	if err != nil || len(paths) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("%w: ffmpeg produced no chunks", ErrSplitFailed)
	}
	slices.Sort(paths)
	chunks := make([]Chunk, len(paths))
	for i, p := range paths {
		chunks[i] = Chunk{Index: i, Path: p}
	}
	return chunks, cleanup, nil
}

func (s *Splitter) args(audioPath, dir string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", audioPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libopus",
		"-b:a", "24k",
		"-application", "voip",
		"-f", "segment",
		"-segment_time", strconv.Itoa(int(s.segment / time.Second)),
		"-reset_timestamps", "1",
		filepath.Join(dir, "chunk_%03d.ogg"),
	}
}
