package device

import (
	"time"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
)

// stamper turns device callbacks into timestamped frames.
// PTS counts delivered sample frames from the host time the device started,
// so device jitter never moves the timeline backwards.
// Not safe for concurrent use; devices deliver on one thread.
type stamper struct {
	kind   audio.Kind
	format audio.Format
	base   int64
	count  int64
}

func newStamper(kind audio.Kind, format audio.Format, start time.Time) *stamper {
	return &stamper{kind: kind, format: format, base: audio.HostTicks(start, format.SampleRate)}
}

// frame wraps interleaved samples; samples must not be reused by the caller.
func (s *stamper) frame(samples []float32) audio.Frame {
	pts := audio.NewTimestamp(s.base+s.count, int32(s.format.SampleRate))
	f := audio.NewFrame(s.kind, pts, s.format, samples)
	s.count += int64(f.NumFrames())
	return f
}
