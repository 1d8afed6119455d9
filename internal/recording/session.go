package recording

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
	"github.com/Heracs/MeetingSonar-sub001/internal/encoder"
)

// filenamePrefix starts every output filename.
const filenamePrefix = "MeetingSonar_"

// filenameTimeLayout is the timestamp portion of output filenames.
const filenameTimeLayout = "2006-01-02_15-04-05"

// maxHintLength bounds the source-name portion of a filename.
const maxHintLength = 48

var unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// BuildFilename returns MeetingSonar_<timestamp>[_<hint>].<ext>.
// The hint is sanitized for use in a file name and omitted if empty.
func BuildFilename(startedAt time.Time, hint, ext string) string {
	var b strings.Builder
	b.WriteString(filenamePrefix)
	b.WriteString(startedAt.Format(filenameTimeLayout))
	if h := sanitizeHint(hint); h != "" {
		b.WriteByte('_')
		b.WriteString(h)
	}
	b.WriteByte('.')
	b.WriteString(strings.TrimPrefix(ext, "."))
	return b.String()
}

func sanitizeHint(hint string) string {
	h := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(hint), "_")
	h = strings.Trim(h, "._-")
	if r := []rune(h); len(r) > maxHintLength {
		h = strings.TrimRight(string(r[:maxHintLength]), "._-")
	}
	return h
}

// sessionStats counts frame outcomes on the write path.
type sessionStats struct {
	Written         int64
	DroppedTiming   int64
	DroppedNotReady int64
	DroppedOther    int64
}

// Dropped returns all dropped frames.
func (s sessionStats) Dropped() int64 {
	return s.DroppedTiming + s.DroppedNotReady + s.DroppedOther
}

// DropRate returns dropped / (written + dropped), or 0 with no frames.
func (s sessionStats) DropRate() float64 {
	total := s.Written + s.Dropped()
	if total == 0 {
		return 0
	}
	return float64(s.Dropped()) / float64(total)
}

// session is the per-recording state shared by the lifecycle and the frame path.
// Write-path fields are guarded by Controller.sinkMu while the session is active
// and owned by the finalizer afterwards.
type session struct {
	id        string
	filename  string
	path      string
	trigger   Trigger
	startedAt time.Time

	sink       encoder.Sink
	normalizer *Normalizer
	stats      sessionStats
	logger     zerolog.Logger
}

// write rebases and hands one mixed frame to the encoder, dropping it on failure.
func (s *session) write(frame audio.Frame) {
	rebased, err := s.normalizer.Rebase(frame)
	if err != nil {
		s.stats.DroppedTiming++
		s.logger.Warn().Err(err).Int64("dropped", s.stats.DroppedTiming).Msg("dropping frame with unusable timing")
		return
	}
	if !s.sink.ReadyForMoreData() {
		s.stats.DroppedNotReady++
		s.logDrop("encoder not ready", s.stats.DroppedNotReady)
		return
	}
	if err := s.sink.Append(rebased); err != nil {
		if errors.Is(err, encoder.ErrNotReady) {
			s.stats.DroppedNotReady++
			s.logDrop("encoder not ready", s.stats.DroppedNotReady)
			return
		}
		s.stats.DroppedOther++
		s.logger.Error().Err(err).Msg("append frame")
		return
	}
	s.stats.Written++
}

// logDrop logs the first drop and then every 50th.
func (s *session) logDrop(reason string, n int64) {
	if n%50 == 1 {
		s.logger.Warn().Int64("dropped", n).Msg("dropping frame: " + reason)
	}
}

// release drops references held by the session once finalization is over.
func (s *session) release() {
	s.sink = nil
	s.normalizer = nil
	s.stats = sessionStats{}
}
