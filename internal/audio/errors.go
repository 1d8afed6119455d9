package audio

import "errors"

// ErrInvalidTiming indicates a frame timestamp could not be computed or rewritten.
var ErrInvalidTiming = errors.New("invalid frame timing")
