package recording

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
)

// diagnosticFrames is how many initial frames of a session have their timing logged.
const diagnosticFrames = 10

// Normalizer rebases capture timestamps onto a session timeline starting at zero.
// The anchor is the presentation timestamp of the first frame seen.
// Not safe for concurrent use; the controller serializes calls.
type Normalizer struct {
	anchor audio.Timestamp
	last   audio.Timestamp
	seen   int
	logger zerolog.Logger
}

// NewNormalizer returns a Normalizer with no anchor.
func NewNormalizer(logger zerolog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Anchor returns the session anchor, or an invalid timestamp before the first frame.
func (n *Normalizer) Anchor() audio.Timestamp { return n.anchor }

// Rebase returns a copy of frame with its timing shifted by the anchor.
// Frames earlier than the anchor or than the previous output frame are rejected.
func (n *Normalizer) Rebase(frame audio.Frame) (audio.Frame, error) {
	if !frame.PTS.IsValid() {
		return audio.Frame{}, fmt.Errorf("frame pts: %w", audio.ErrInvalidTiming)
	}
	if !n.anchor.IsValid() {
		n.anchor = frame.PTS
		n.logger.Debug().Stringer("anchor", n.anchor).Msg("session timeline anchored")
	}

	adjusted, err := frame.PTS.Sub(n.anchor)
	if err != nil {
		return audio.Frame{}, fmt.Errorf("rebase %s: %w", frame.PTS, err)
	}
	if n.last.IsValid() && adjusted.Compare(n.last) < 0 {
		return audio.Frame{}, fmt.Errorf("%w: %s after %s", ErrNonMonotonic, adjusted, n.last)
	}

	out := frame
	if err := out.Retime(adjusted); err != nil {
		return audio.Frame{}, err
	}
	n.last = adjusted

	n.seen++
	if n.seen <= diagnosticFrames {
		n.logger.Debug().
			Int("frame", n.seen).
			Stringer("original", frame.PTS).
			Stringer("adjusted", adjusted).
			Msg("frame timing")
	}
	return out, nil
}
