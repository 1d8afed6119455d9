package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
	"github.com/Heracs/MeetingSonar-sub001/internal/capture"
)

// Compile-time interface implementation checks.
var (
	_ capture.StreamProvider = (*PulseProvider)(nil)
	_ capture.Stream         = (*pulseStream)(nil)
	_ capture.ContentFilter  = pulseFilter{}
)

const (
	// applicationName identifies us to the sound server.
	applicationName = "MeetingSonar"

	// fragmentFrames is the requested record fragment, in sample frames (~21 ms).
	fragmentFrames = 1024

	// watchInterval is how often a running stream is checked for server-side termination.
	watchInterval = 250 * time.Millisecond
)

// PulseOption configures a PulseProvider.
type PulseOption func(*PulseProvider)

// WithPulseLogger sets the logger.
func WithPulseLogger(l zerolog.Logger) PulseOption {
	return func(p *PulseProvider) {
		p.logger = l.With().Str("component", "pulse").Logger()
	}
}

// WithPulseClock sets the time source used to stamp frames.
func WithPulseClock(now func() time.Time) PulseOption {
	return func(p *PulseProvider) { p.now = now }
}

// PulseProvider captures system audio from the monitor source of a
// PulseAudio (or PipeWire-Pulse) sink. The server connection is opened
// lazily and shared by every stream.
type PulseProvider struct {
	mu     sync.Mutex
	client *pulse.Client

	now    func() time.Time
	logger zerolog.Logger
}

// NewPulseProvider returns a provider that connects on first use.
func NewPulseProvider(opts ...PulseOption) *PulseProvider {
	p := &PulseProvider{
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// connect returns the shared client, dialing the server if needed.
func (p *PulseProvider) connect() (*pulse.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName(applicationName))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServerUnavailable, err)
	}
	p.client = c
	p.logger.Debug().Msg("connected to sound server")
	return c, nil
}

// Close disconnects from the server. Streams must be stopped first.
func (p *PulseProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

// pulseFilter selects the sink whose monitor is recorded.
type pulseFilter struct {
	sink *pulse.Sink
}

func (f pulseFilter) Description() string {
	return fmt.Sprintf("%s (%s)", f.sink.Name(), f.sink.ID())
}

// ResolveFilter finds the sink named target, or the default sink if target is empty.
func (p *PulseProvider) ResolveFilter(_ context.Context, target string) (capture.ContentFilter, error) {
	c, err := p.connect()
	if err != nil {
		return nil, err
	}
	var sink *pulse.Sink
	if target == "" {
		sink, err = c.DefaultSink()
	} else {
		sink, err = c.SinkByID(target)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: sink %q: %w", ErrNoDevice, target, err)
	}
	return pulseFilter{sink: sink}, nil
}

// NewStream prepares a monitor record stream; nothing is captured until Start.
func (p *PulseProvider) NewStream(filter capture.ContentFilter, cfg capture.StreamConfiguration, onStop func(error)) (capture.Stream, error) {
	f, ok := filter.(pulseFilter)
	if !ok {
		return nil, fmt.Errorf("unsupported content filter %T", filter)
	}
	c, err := p.connect()
	if err != nil {
		return nil, err
	}
	if cfg.ExcludesCurrentProcessAudio {
		// A sink monitor carries every client's output, ours included.
		p.logger.Debug().Msg("monitor capture cannot exclude own audio")
	}
	format := audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.ChannelCount}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		format = audio.DefaultFormat
	}
	return &pulseStream{
		client: c,
		sink:   f.sink,
		format: format,
		onStop: onStop,
		now:    p.now,
		logger: p.logger,
	}, nil
}

// pulseStream is one monitor recording.
type pulseStream struct {
	client *pulse.Client
	sink   *pulse.Sink
	format audio.Format
	onStop func(error)
	now    func() time.Time
	logger zerolog.Logger

	handler capture.FrameHandler
	stamp   *stamper

	mu      sync.Mutex
	rec     *pulse.RecordStream
	done    chan struct{}
	stopped bool
}

// AddOutput registers the audio handler. A monitor has no video, so other
// kinds are accepted and never called.
func (s *pulseStream) AddOutput(kind audio.Kind, handler capture.FrameHandler) error {
	if kind == audio.KindAudio {
		s.handler = handler
	}
	return nil
}

func (s *pulseStream) Start(_ context.Context) error {
	channels := pulse.RecordStereo
	if s.format.Channels == 1 {
		channels = pulse.RecordMono
	}
	s.stamp = newStamper(audio.KindAudio, s.format, s.now())

	rec, err := s.client.NewRecord(
		pulse.Float32Writer(s.write),
		pulse.RecordMonitor(s.sink),
		channels,
		pulse.RecordSampleRate(s.format.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(fragmentFrames*s.format.Channels*4)),
		pulse.RecordMediaName("meeting audio"),
	)
	if err != nil {
		return fmt.Errorf("create record stream: %w", err)
	}

	s.mu.Lock()
	s.rec = rec
	s.done = make(chan struct{})
	s.mu.Unlock()

	rec.Start()
	go s.watch(rec, s.done)
	return nil
}

// write is called by the client's reader goroutine; p is reused afterwards.
func (s *pulseStream) write(p []float32) (int, error) {
	if s.handler == nil || len(p) == 0 {
		return len(p), nil
	}
	samples := make([]float32, len(p)-len(p)%s.format.Channels)
	copy(samples, p)
	s.handler(s.stamp.frame(samples))
	return len(p), nil
}

// watch reports a stream the server ended, for example when the sink disappears.
func (s *pulseStream) watch(rec *pulse.RecordStream, done chan struct{}) {
	t := time.NewTicker(watchInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if rec.Running() {
				continue
			}
			err := rec.Error()
			if err == nil {
				err = ErrDeviceStopped
			}
			s.mu.Lock()
			if s.stopped {
				s.mu.Unlock()
				return
			}
			s.stopped = true
			close(done)
			s.mu.Unlock()
			rec.Close()
			if s.onStop != nil {
				s.onStop(err)
			}
			return
		}
	}
}

func (s *pulseStream) Stop(_ context.Context) error {
	s.mu.Lock()
	if s.stopped || s.rec == nil {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.done)
	rec := s.rec
	s.mu.Unlock()

	rec.Stop()
	rec.Close()
	if err := rec.Error(); err != nil {
		return fmt.Errorf("record stream: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Probes used by Permissions and Lister
// ---------------------------------------------------------------------------

// defaultSinkReachable reports whether the server is up with a default sink.
func (p *PulseProvider) defaultSinkReachable(_ context.Context) error {
	c, err := p.connect()
	if err != nil {
		return err
	}
	if _, err := c.DefaultSink(); err != nil {
		return fmt.Errorf("%w: default sink: %w", ErrNoDevice, err)
	}
	return nil
}

// outputs lists sinks whose monitors can be recorded.
func (p *PulseProvider) outputs(_ context.Context) ([]Info, error) {
	c, err := p.connect()
	if err != nil {
		return nil, err
	}
	sinks, err := c.ListSinks()
	if err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}
	var defaultID string
	if d, err := c.DefaultSink(); err == nil {
		defaultID = d.ID()
	}
	infos := make([]Info, 0, len(sinks))
	for _, s := range sinks {
		infos = append(infos, Info{
			ID:      s.ID(),
			Name:    s.Name(),
			Role:    RoleOutput,
			Class:   ClassUnknown,
			Default: s.ID() == defaultID,
		})
	}
	return infos, nil
}
