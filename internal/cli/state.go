package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/logging"
)

// indexFile is the recording index inside the state directory.
const indexFile = "recordings.db"

// state bundles the logger and the recording index shared by commands.
type state struct {
	logger zerolog.Logger
	store  Store
	closer io.Closer
}

// openState prepares the state directory, the log file and the index.
func openState(ctx context.Context, env *Env, level string, verbose bool) (*state, error) {
	dir, err := env.StateDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("cannot create state directory: %w", err)
	}

	logger, closer, err := env.LoggerFactory.NewLogger(logging.Options{
		Dir:     dir,
		Level:   level,
		Verbose: verbose,
		Console: env.Stderr,
	})
	if err != nil {
		return nil, err
	}

	store, err := env.StoreOpener.Open(ctx, filepath.Join(dir, indexFile), logger)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	return &state{logger: logger, store: store, closer: closer}, nil
}

func (s *state) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("close recording index")
	}
	_ = s.closer.Close()
}
