package device

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
)

// Export internals for testing.
// This file is only compiled during tests (suffix _test.go).

type (
	InputConfig = inputConfig
	InputDevice = inputDevice
)

// WithDeviceOpener exports withDeviceOpener for testing.
func WithDeviceOpener(open func(cfg InputConfig, onData func([]byte), onStop func()) (InputDevice, error)) MicrophoneOption {
	return withDeviceOpener(open)
}

// SelectInput exports selectInput for testing.
var SelectInput = selectInput

// NewTestLister builds a Lister from plain functions.
func NewTestLister(outputs, inputs func(context.Context) ([]Info, error)) *Lister {
	return &Lister{outputs: outputs, inputs: inputs}
}

// NewTestPermissions builds Permissions from plain probes.
func NewTestPermissions(system func(context.Context) error, mic func(context.Context) ([]Info, error)) *Permissions {
	return &Permissions{system: system, mic: mic, logger: zerolog.Nop()}
}

// StampFrames runs samples chunks through a stamper started at start.
func StampFrames(start time.Time, chunks ...[]float32) []audio.Frame {
	st := newStamper(audio.KindAudio, audio.DefaultFormat, start)
	out := make([]audio.Frame, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, st.frame(c))
	}
	return out
}
