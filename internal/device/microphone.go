package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
	"github.com/Heracs/MeetingSonar-sub001/internal/capture"
)

// inputConfig is what the microphone asks of the capture backend.
type inputConfig struct {
	Format     audio.Format
	DeviceName string // substring of the device name; empty selects automatically
}

// inputDevice is an opened capture device.
type inputDevice interface {
	Start() error
	Stop() error
	Uninit()
}

// deviceOpener opens a capture device. onData receives interleaved float32 LE
// bytes on the audio thread; onStop fires whenever the device stops.
type deviceOpener func(cfg inputConfig, onData func([]byte), onStop func()) (inputDevice, error)

// MicrophoneOption configures a Microphone.
type MicrophoneOption func(*Microphone)

// WithMicrophoneLogger sets the logger.
func WithMicrophoneLogger(l zerolog.Logger) MicrophoneOption {
	return func(m *Microphone) {
		m.logger = l.With().Str("component", "microphone").Logger()
	}
}

// WithMicrophoneDevice selects the input whose name contains name.
func WithMicrophoneDevice(name string) MicrophoneOption {
	return func(m *Microphone) { m.deviceName = name }
}

// WithMicrophoneClock sets the time source used to stamp frames.
func WithMicrophoneClock(now func() time.Time) MicrophoneOption {
	return func(m *Microphone) { m.now = now }
}

// withDeviceOpener replaces the capture backend (for testing).
func withDeviceOpener(open deviceOpener) MicrophoneOption {
	return func(m *Microphone) { m.open = open }
}

// Microphone captures an input device through miniaudio.
//
// Lifecycle flags change only under mu; the device is started and stopped
// outside it because miniaudio may deliver a callback while Start or Stop is
// in progress. gen tells callbacks of a replaced device apart.
type Microphone struct {
	mu        sync.Mutex
	capturing bool
	paused    bool
	gen       uint64
	dev       inputDevice
	delegate  capture.MicrophoneDelegate

	open       deviceOpener
	format     audio.Format
	deviceName string
	now        func() time.Time
	logger     zerolog.Logger
}

// NewMicrophone returns an idle microphone capturing 48 kHz stereo.
func NewMicrophone(opts ...MicrophoneOption) *Microphone {
	m := &Microphone{
		open:   openMalgoDevice,
		format: audio.DefaultFormat,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetDelegate sets the receiver of frames and failures.
func (m *Microphone) SetDelegate(d capture.MicrophoneDelegate) {
	m.mu.Lock()
	m.delegate = d
	m.mu.Unlock()
}

// IsCapturing reports whether the device is running or starting.
func (m *Microphone) IsCapturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturing
}

// IsPaused reports whether frame delivery is suspended.
func (m *Microphone) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// StartCapture opens and starts the input device. No-op while capturing.
func (m *Microphone) StartCapture(_ context.Context) error {
	m.mu.Lock()
	if m.capturing {
		m.mu.Unlock()
		return nil
	}
	m.capturing = true
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	st := newStamper(audio.KindMicrophone, m.format, m.now())
	dev, err := m.open(
		inputConfig{Format: m.format, DeviceName: m.deviceName},
		func(b []byte) { m.onData(gen, st, b) },
		func() { m.onStop(gen) },
	)
	if err == nil {
		if err = dev.Start(); err != nil {
			dev.Uninit()
			err = fmt.Errorf("start input device: %w", err)
		}
	}
	if err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.capturing = false
		}
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.logger.Info().Msg("stop issued during setup, closing device")
		_ = dev.Stop()
		dev.Uninit()
		return capture.ErrCaptureCancelled
	}
	m.dev = dev
	m.mu.Unlock()

	m.logger.Info().Str("device", m.deviceName).Msg("microphone capture started")
	return nil
}

// StopCapture stops and releases the device. No-op when not capturing.
func (m *Microphone) StopCapture(_ context.Context) error {
	m.mu.Lock()
	if !m.capturing {
		m.mu.Unlock()
		return nil
	}
	m.capturing = false
	m.paused = false
	m.gen++
	dev := m.dev
	m.dev = nil
	m.mu.Unlock()

	if dev == nil {
		return nil
	}
	err := dev.Stop()
	dev.Uninit()
	m.logger.Info().Msg("microphone capture stopped")
	if err != nil {
		return fmt.Errorf("stop input device: %w", err)
	}
	return nil
}

// PauseCapture suspends frame delivery; the device keeps running.
// No-op unless capturing and not paused.
func (m *Microphone) PauseCapture() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capturing && !m.paused {
		m.paused = true
	}
}

// ResumeCapture restores frame delivery. No-op unless capturing and paused.
func (m *Microphone) ResumeCapture() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capturing && m.paused {
		m.paused = false
	}
}

// onData runs on the audio thread. Paused frames still advance the sample
// clock so timestamps stay continuous across a pause.
func (m *Microphone) onData(gen uint64, st *stamper, b []byte) {
	samples := audio.Float32FromLE(b)
	if n := len(samples) % st.format.Channels; n != 0 {
		samples = samples[:len(samples)-n]
	}
	if len(samples) == 0 {
		return
	}
	frame := st.frame(samples)

	m.mu.Lock()
	deliver := m.gen == gen && m.capturing && !m.paused
	d := m.delegate
	m.mu.Unlock()

	if deliver && d != nil {
		d.MicrophoneDidCapture(frame)
	}
}

// onStop handles the device stopping. Stops we asked for have already bumped gen.
func (m *Microphone) onStop(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || !m.capturing {
		m.mu.Unlock()
		return
	}
	m.capturing = false
	m.paused = false
	m.gen++
	dev := m.dev
	m.dev = nil
	d := m.delegate
	m.mu.Unlock()

	m.logger.Error().Msg("microphone stopped unexpectedly")
	if dev != nil {
		// Device teardown is not allowed from its own callback.
		go dev.Uninit()
	}
	if d != nil {
		d.MicrophoneDidFail(ErrDeviceStopped)
	}
}
