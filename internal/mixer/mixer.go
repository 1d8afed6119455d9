// Package mixer merges system audio and microphone into one contiguous stream.
//
// Output is paced by the wall clock, not by either input, so a silent or
// disabled source never stalls the recording. Missing input is replaced by
// silence.
package mixer

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
)

const (
	// FrameSize is the number of sample frames per emitted frame.
	FrameSize = 1024

	// maxBuffered caps each source buffer, in seconds of audio.
	maxBuffered = 2 * time.Second

	// defaultLatency delays output so capture chunks arrive before they are due.
	defaultLatency = 200 * time.Millisecond

	// defaultTickInterval is how often the pump checks for due frames.
	defaultTickInterval = 10 * time.Millisecond
)

// source is a FIFO of interleaved stereo samples for one input.
type source struct {
	name    string
	enabled bool
	samples []float32
	dropped int64 // samples discarded by the buffer cap
}

func (s *source) push(in []float32, limit int) {
	s.samples = append(s.samples, in...)
	if over := len(s.samples) - limit; over > 0 {
		s.samples = s.samples[over:]
		s.dropped += int64(over)
	}
}

// take adds up to n samples into dst and reports how many were available.
func (s *source) take(dst []float32) int {
	n := min(len(dst), len(s.samples))
	for i := 0; i < n; i++ {
		dst[i] += s.samples[i]
	}
	s.samples = s.samples[n:]
	return n
}

// Option configures a Mixer.
type Option func(*Mixer)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Mixer) {
		m.logger = l.With().Str("component", "mixer").Logger()
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Mixer) { m.now = now }
}

// WithTickInterval sets how often due frames are emitted.
func WithTickInterval(d time.Duration) Option {
	return func(m *Mixer) { m.tick = d }
}

// WithLatency sets how far output trails the wall clock.
func WithLatency(d time.Duration) Option {
	return func(m *Mixer) { m.latency = d }
}

// Mixer sums two sources into 48 kHz stereo frames.
type Mixer struct {
	mu       sync.Mutex
	system   source
	mic      source
	running  bool
	paused   bool
	delegate func(audio.Frame)

	// Pacing: frames due = elapsed since ref, minus frames emitted since ref.
	ref        time.Time
	refEmitted int64
	emitted    int64
	basePTS    int64
	rejected   int64

	stop chan struct{}
	wg   sync.WaitGroup

	now     func() time.Time
	tick    time.Duration
	latency time.Duration
	format  audio.Format
	logger  zerolog.Logger
}

// New creates a stopped Mixer with both sources enabled.
func New(opts ...Option) *Mixer {
	m := &Mixer{
		system:  source{name: "system", enabled: true},
		mic:     source{name: "microphone", enabled: true},
		now:     time.Now,
		tick:    defaultTickInterval,
		latency: defaultLatency,
		format:  audio.DefaultFormat,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetDelegate sets the receiver of mixed frames. It is called from the
// mixer goroutine and must not block.
func (m *Mixer) SetDelegate(fn func(audio.Frame)) {
	m.mu.Lock()
	m.delegate = fn
	m.mu.Unlock()
}

// SetSystemAudioEnabled includes or excludes system audio from the mix.
func (m *Mixer) SetSystemAudioEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setEnabled(&m.system, enabled)
}

// SetMicrophoneEnabled includes or excludes the microphone from the mix.
func (m *Mixer) SetMicrophoneEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setEnabled(&m.mic, enabled)
}

func (m *Mixer) setEnabled(s *source, enabled bool) {
	if s.enabled == enabled {
		return
	}
	s.enabled = enabled
	if !enabled {
		s.samples = s.samples[:0]
	}
	m.logger.Debug().Str("source", s.name).Bool("enabled", enabled).Msg("source toggled")
}

// AddSystemAudioFrame buffers a system audio frame.
func (m *Mixer) AddSystemAudioFrame(frame audio.Frame) {
	m.add(&m.system, frame)
}

// AddMicrophoneFrame buffers a microphone frame.
func (m *Mixer) AddMicrophoneFrame(frame audio.Frame) {
	m.add(&m.mic, frame)
}

func (m *Mixer) add(s *source, frame audio.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.paused || !s.enabled {
		return
	}
	if frame.SampleRate != m.format.SampleRate {
		m.rejected++
		// Log the first rejection and then every 100th to avoid flooding.
		if m.rejected%100 == 1 {
			m.logger.Warn().
				Str("source", s.name).
				Int("sample_rate", frame.SampleRate).
				Int64("rejected", m.rejected).
				Msg("dropping frame with unexpected sample rate")
		}
		return
	}
	samples := audio.Remix(frame.Samples, frame.Channels, m.format.Channels)
	s.push(samples, m.bufferLimit())
}

func (m *Mixer) bufferLimit() int {
	return int(maxBuffered.Seconds() * float64(m.format.SampleRate*m.format.Channels))
}

// Start begins emitting frames. No-op if already running.
func (m *Mixer) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	now := m.now()
	m.running = true
	m.paused = false
	m.ref = now
	m.refEmitted = 0
	m.emitted = 0
	m.rejected = 0
	m.basePTS = audio.HostTicks(now, m.format.SampleRate)
	m.system.samples = m.system.samples[:0]
	m.mic.samples = m.mic.samples[:0]
	m.stop = make(chan struct{})

	m.wg.Add(1)
	go m.loop(m.stop)
	m.logger.Debug().Msg("mixer started")
}

// Stop halts the pump, emits whatever whole frames are still buffered,
// and clears the buffers. No-op if not running.
func (m *Mixer) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	frames := m.drain()
	deliver := m.delegate
	dropped := m.system.dropped + m.mic.dropped
	m.system.samples, m.mic.samples = nil, nil
	m.system.dropped, m.mic.dropped = 0, 0
	m.mu.Unlock()

	emit(deliver, frames)
	m.logger.Debug().Int64("overflow_samples", dropped).Msg("mixer stopped")
}

// Pause freezes output; the timeline resumes where it left off.
func (m *Mixer) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running && !m.paused {
		m.paused = true
	}
}

// Resume restarts output after Pause. Audio buffered before the pause is discarded.
func (m *Mixer) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || !m.paused {
		return
	}
	m.paused = false
	m.ref = m.now()
	m.refEmitted = m.emitted
	m.system.samples = m.system.samples[:0]
	m.mic.samples = m.mic.samples[:0]
}

func (m *Mixer) loop(stop <-chan struct{}) {
	defer m.wg.Done()
	t := time.NewTicker(m.tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			m.pump()
		}
	}
}

// pump emits every frame that is due according to the clock.
func (m *Mixer) pump() {
	m.mu.Lock()
	if !m.running || m.paused {
		m.mu.Unlock()
		return
	}
	elapsed := m.now().Sub(m.ref) - m.latency
	due := int64(elapsed.Seconds()*float64(m.format.SampleRate)) - (m.emitted - m.refEmitted)
	var frames []audio.Frame
	for ; due >= FrameSize; due -= FrameSize {
		frames = append(frames, m.mixFrame(FrameSize))
	}
	deliver := m.delegate
	m.mu.Unlock()

	emit(deliver, frames)
}

// drain mixes the remaining buffered audio into whole frames.
func (m *Mixer) drain() []audio.Frame {
	pending := 0
	if m.system.enabled {
		pending = len(m.system.samples)
	}
	if m.mic.enabled {
		pending = max(pending, len(m.mic.samples))
	}
	var frames []audio.Frame
	for n := pending / m.format.Channels; n >= FrameSize; n -= FrameSize {
		frames = append(frames, m.mixFrame(FrameSize))
	}
	return frames
}

// mixFrame sums n sample frames from enabled sources, padding with silence.
func (m *Mixer) mixFrame(n int) audio.Frame {
	out := make([]float32, n*m.format.Channels)
	if m.system.enabled {
		m.system.take(out)
	}
	if m.mic.enabled {
		m.mic.take(out)
	}
	for i, s := range out {
		switch {
		case s > 1:
			out[i] = 1
		case s < -1:
			out[i] = -1
		}
	}
	pts := audio.NewTimestamp(m.basePTS+m.emitted, int32(m.format.SampleRate))
	m.emitted += int64(n)
	return audio.NewFrame(audio.KindAudio, pts, m.format, out)
}

func emit(deliver func(audio.Frame), frames []audio.Frame) {
	if deliver == nil {
		return
	}
	for _, f := range frames {
		deliver(f)
	}
}
