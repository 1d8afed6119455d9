// Package logging builds the application logger: JSON lines in a rotating
// file under the state directory, and a console view on stderr when verbose.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file inside Options.Dir.
const FileName = "sonar.log"

// Rotation defaults.
const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 5
	defaultMaxAgeDays = 30
)

// ErrInvalidLevel indicates an unknown log level name.
var ErrInvalidLevel = errors.New("invalid log level")

// Options configures New.
type Options struct {
	Dir       string    // log file directory; empty disables the file
	Level     string    // debug, info, warn, error; empty means info
	Verbose   bool      // mirror logs to Console
	Console   io.Writer // defaults to os.Stderr
	MaxSizeMB int       // rotate after this size; 0 uses 10
}

// New returns the logger and a closer for its file. The closer is never nil.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var (
		writers []io.Writer
		closer  io.Closer = nopCloser{}
	)
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil { // #nosec G301 -- user state dir
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("cannot create log directory: %w", err)
		}
		size := opts.MaxSizeMB
		if size <= 0 {
			size = defaultMaxSizeMB
		}
		file := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, FileName),
			MaxSize:    size,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, file)
		closer = file
	}
	if opts.Verbose {
		out := opts.Console
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
	}
	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Str("app", "sonar").
		Logger()
	return logger, closer, nil
}

// ParseLevel maps a config value to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("%w: %q (expected debug, info, warn or error)", ErrInvalidLevel, s)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
