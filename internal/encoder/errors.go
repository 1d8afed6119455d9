package encoder

import "errors"

// ErrNotReady indicates the writer queue is full; the frame was not accepted.
var ErrNotReady = errors.New("encoder not ready for more data")

// ErrInputFinished indicates Append was called after MarkInputFinished.
var ErrInputFinished = errors.New("encoder input already finished")

// ErrFormatMismatch indicates a frame does not match the writer's sample rate.
var ErrFormatMismatch = errors.New("frame format does not match writer")

// ErrUnsupportedFormat indicates an unknown output container was requested.
var ErrUnsupportedFormat = errors.New("unsupported output format")
