// Package audio defines the PCM frame and timestamp types shared by capture,
// mixing and encoding.
package audio

import (
	"fmt"
	"math"
	"time"
)

// Kind identifies what a capture stream delivered.
// Platform capture APIs may surface more than audio on the same stream.
type Kind int

const (
	// KindAudio is captured system/application audio.
	KindAudio Kind = iota
	// KindVideo is a video frame. Never used, but some capture APIs require a handler.
	KindVideo
	// KindMicrophone is microphone audio surfaced by a system capture stream.
	KindMicrophone
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindMicrophone:
		return "microphone"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Pipeline audio format. Capture streams and the mixer output share it,
// so no resampling happens inside the process.
const (
	SampleRate = 48000
	Channels   = 2
)

// Format describes interleaved float32 PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is the format delivered by the mixer to the encoder.
var DefaultFormat = Format{SampleRate: SampleRate, Channels: Channels}

// Timestamp is a rational time value: Value ticks at Scale ticks per second.
// A zero Scale marks the timestamp invalid.
type Timestamp struct {
	Value int64
	Scale int32
}

// InvalidTimestamp is the zero Timestamp.
var InvalidTimestamp = Timestamp{}

// NewTimestamp returns a Timestamp of value ticks at scale ticks per second.
func NewTimestamp(value int64, scale int32) Timestamp {
	return Timestamp{Value: value, Scale: scale}
}

// HostTicks converts a wall-clock instant to sample ticks at rate.
func HostTicks(t time.Time, rate int) int64 {
	return t.UnixMicro() * int64(rate) / int64(time.Second/time.Microsecond)
}

// IsValid reports whether t carries a usable time.
func (t Timestamp) IsValid() bool {
	return t.Scale > 0
}

// Seconds returns t in seconds. Invalid timestamps return NaN.
func (t Timestamp) Seconds() float64 {
	if !t.IsValid() {
		return math.NaN()
	}
	return float64(t.Value) / float64(t.Scale)
}

// Duration converts t to a time.Duration.
func (t Timestamp) Duration() time.Duration {
	if !t.IsValid() {
		return 0
	}
	sec := t.Value / int64(t.Scale)
	rem := t.Value % int64(t.Scale)
	return time.Duration(sec)*time.Second + time.Duration(rem*int64(time.Second)/int64(t.Scale))
}

// Rescale converts t to the given scale, truncating toward zero.
func (t Timestamp) Rescale(scale int32) (Timestamp, error) {
	if !t.IsValid() || scale <= 0 {
		return InvalidTimestamp, ErrInvalidTiming
	}
	if t.Scale == scale {
		return t, nil
	}
	hi, lo := t.Value/int64(t.Scale), t.Value%int64(t.Scale)
	if hi > math.MaxInt64/int64(scale) || hi < math.MinInt64/int64(scale) {
		return InvalidTimestamp, fmt.Errorf("rescale %d/%d to %d: %w", t.Value, t.Scale, scale, ErrInvalidTiming)
	}
	return Timestamp{Value: hi*int64(scale) + lo*int64(scale)/int64(t.Scale), Scale: scale}, nil
}

// Sub returns t - o expressed in t's scale.
func (t Timestamp) Sub(o Timestamp) (Timestamp, error) {
	if !t.IsValid() || !o.IsValid() {
		return InvalidTimestamp, ErrInvalidTiming
	}
	o, err := o.Rescale(t.Scale)
	if err != nil {
		return InvalidTimestamp, err
	}
	return Timestamp{Value: t.Value - o.Value, Scale: t.Scale}, nil
}

// Compare returns -1, 0 or +1 depending on whether t is before, equal to, or after o.
// Both timestamps must be valid.
func (t Timestamp) Compare(o Timestamp) int {
	l := t.Value * int64(o.Scale)
	r := o.Value * int64(t.Scale)
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

// String formats t as value/scale.
func (t Timestamp) String() string {
	if !t.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%d/%d (%.3fs)", t.Value, t.Scale, t.Seconds())
}

// Frame is one unit of timestamped raw audio.
// Samples are interleaved float32 in [-1, 1].
type Frame struct {
	Kind       Kind
	PTS        Timestamp // Presentation timestamp in the producer's clock domain.
	DTS        Timestamp // Decode timestamp; always invalid for raw PCM.
	Duration   Timestamp
	SampleRate int
	Channels   int
	Samples    []float32
}

// NumFrames returns the number of sample frames (samples per channel).
func (f Frame) NumFrames() int {
	if f.Channels <= 0 {
		return 0
	}
	return len(f.Samples) / f.Channels
}

// Format returns the PCM format of f.
func (f Frame) Format() Format {
	return Format{SampleRate: f.SampleRate, Channels: f.Channels}
}

// Retime rewrites the frame's timing in place.
// The duration is unchanged and the decode timestamp is marked invalid.
// Fails, leaving f untouched, if pts is invalid or negative.
func (f *Frame) Retime(pts Timestamp) error {
	if !pts.IsValid() {
		return fmt.Errorf("retime to %s: %w", pts, ErrInvalidTiming)
	}
	if pts.Value < 0 {
		return fmt.Errorf("retime to negative %s: %w", pts, ErrInvalidTiming)
	}
	f.PTS = pts
	f.DTS = InvalidTimestamp
	return nil
}

// NewFrame builds an audio frame at pts whose duration is derived from the sample count.
func NewFrame(kind Kind, pts Timestamp, format Format, samples []float32) Frame {
	n := 0
	if format.Channels > 0 {
		n = len(samples) / format.Channels
	}
	return Frame{
		Kind:       kind,
		PTS:        pts,
		DTS:        InvalidTimestamp,
		Duration:   NewTimestamp(int64(n), int32(format.SampleRate)),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Samples:    samples,
	}
}
