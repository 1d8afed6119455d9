package recording

import "errors"

// ErrAlreadyRecording indicates StartRecording was called while not idle.
var ErrAlreadyRecording = errors.New("recording already in progress")

// ErrNoAudioSource indicates the resolved source configuration enables no source.
var ErrNoAudioSource = errors.New("no audio source enabled")

// ErrScreenCapturePermission indicates system audio capture is not permitted or available.
var ErrScreenCapturePermission = errors.New("system audio capture permission denied")

// ErrMicrophonePermission indicates microphone capture is not permitted or available.
var ErrMicrophonePermission = errors.New("microphone permission denied")

// ErrEncoderSetup indicates the output file or encoder could not be opened.
var ErrEncoderSetup = errors.New("encoder setup failed")

// ErrNotRecording indicates an operation that requires an active, unpaused recording.
var ErrNotRecording = errors.New("not recording")

// ErrNonMonotonic indicates a frame would move the session timeline backwards.
var ErrNonMonotonic = errors.New("non-monotonic frame timestamp")

// ErrInvalidTrigger indicates an unknown trigger name.
var ErrInvalidTrigger = errors.New("invalid trigger")
