package device

import "errors"

// ErrNoDevice indicates no usable capture device was found.
var ErrNoDevice = errors.New("no audio device found")

// ErrServerUnavailable indicates the PulseAudio (or PipeWire-Pulse) server could not be reached.
var ErrServerUnavailable = errors.New("audio server unavailable")

// ErrDeviceStopped indicates a device stopped delivering audio without being asked to.
var ErrDeviceStopped = errors.New("audio device stopped unexpectedly")
