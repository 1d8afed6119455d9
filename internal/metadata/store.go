// Package metadata keeps the index of recordings in a SQLite database.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/Heracs/MeetingSonar-sub001/internal/recording"
)

// Compile-time interface implementation check.
var _ recording.MetadataStore = (*Store)(nil)

// timeLayout is how timestamps are stored; it sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dsnPragmas make concurrent writers wait instead of failing with SQLITE_BUSY.
const dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = l.With().Str("component", "metadata").Logger()
	}
}

// Store persists recording entries. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil { // #nosec G301 -- user state dir
		return nil, fmt.Errorf("create metadata dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS recordings (
  id TEXT PRIMARY KEY,
  filename TEXT NOT NULL UNIQUE,
  path TEXT NOT NULL,
  trigger_name TEXT NOT NULL,
  source_name TEXT NOT NULL DEFAULT '',
  started_at TEXT NOT NULL,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  size_bytes INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  system_audio INTEGER NOT NULL,
  microphone INTEGER NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS recordings_started_at ON recordings (started_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create recordings table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts e, replacing any entry with the same ID.
func (s *Store) Add(ctx context.Context, e recording.Entry) error {
	const stmt = `
INSERT INTO recordings (id, filename, path, trigger_name, source_name, started_at, duration_ms, size_bytes, status, system_audio, microphone, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  filename=excluded.filename,
  path=excluded.path,
  trigger_name=excluded.trigger_name,
  source_name=excluded.source_name,
  started_at=excluded.started_at,
  duration_ms=excluded.duration_ms,
  size_bytes=excluded.size_bytes,
  status=excluded.status,
  system_audio=excluded.system_audio,
  microphone=excluded.microphone,
  updated_at=excluded.updated_at;
`
	_, err := s.db.ExecContext(ctx, stmt,
		e.ID,
		e.Filename,
		e.Path,
		e.Trigger.String(),
		e.SourceName,
		e.StartedAt.UTC().Format(timeLayout),
		e.Duration.Milliseconds(),
		e.SizeBytes,
		string(e.Status),
		e.Sources.IncludeSystemAudio,
		e.Sources.IncludeMicrophone,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert recording %s: %w", e.Filename, err)
	}
	s.logger.Debug().Str("file", e.Filename).Msg("recording registered")
	return nil
}

// UpdateRecordingEnd sets the final duration, size and status of filename.
// Returns ErrNotFound if filename was never added.
func (s *Store) UpdateRecordingEnd(ctx context.Context, filename string, duration time.Duration, sizeBytes int64, status recording.Status) error {
	const stmt = `
UPDATE recordings SET duration_ms = ?, size_bytes = ?, status = ?, updated_at = ?
WHERE filename = ?;
`
	res, err := s.db.ExecContext(ctx, stmt,
		duration.Milliseconds(),
		sizeBytes,
		string(status),
		time.Now().UTC().Format(timeLayout),
		filename,
	)
	if err != nil {
		return fmt.Errorf("update recording %s: %w", filename, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update recording %s: %w", filename, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return nil
}

// MarkInterrupted fails every entry still marked as recording, which only
// happens when a previous process died mid-recording. Returns the count.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recordings SET status = ?, updated_at = ? WHERE status = ?;`,
		string(recording.StatusFailed),
		time.Now().UTC().Format(timeLayout),
		string(recording.StatusRecording),
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted recordings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark interrupted recordings: %w", err)
	}
	if n > 0 {
		s.logger.Warn().Int64("count", n).Msg("marked interrupted recordings as failed")
	}
	return n, nil
}

const selectColumns = `id, filename, path, trigger_name, source_name, started_at, duration_ms, size_bytes, status, system_audio, microphone`

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]recording.Entry, error) {
	q := `SELECT ` + selectColumns + ` FROM recordings ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []recording.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return entries, nil
}

// Get returns the entry for filename.
func (s *Store) Get(ctx context.Context, filename string) (recording.Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM recordings WHERE filename = ?`, filename)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return recording.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (recording.Entry, error) {
	var (
		e          recording.Entry
		trigger    string
		startedAt  string
		durationMS int64
		status     string
	)
	err := sc.Scan(
		&e.ID,
		&e.Filename,
		&e.Path,
		&trigger,
		&e.SourceName,
		&startedAt,
		&durationMS,
		&e.SizeBytes,
		&status,
		&e.Sources.IncludeSystemAudio,
		&e.Sources.IncludeMicrophone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan recording: %w", err)
	}
	if e.Trigger, err = recording.ParseTrigger(trigger); err != nil {
		return e, fmt.Errorf("recording %s: %w", e.Filename, err)
	}
	if e.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return e, fmt.Errorf("recording %s: started_at: %w", e.Filename, err)
	}
	e.Duration = time.Duration(durationMS) * time.Millisecond
	e.Status = recording.Status(status)
	return e, nil
}
