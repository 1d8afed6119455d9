package capture

import "errors"

// ErrCaptureCancelled indicates StopCapture ran while StartCapture was still setting up.
var ErrCaptureCancelled = errors.New("capture cancelled by concurrent stop")

// ErrNoContent indicates no capturable output (display or sink) was found.
var ErrNoContent = errors.New("no capturable audio content")

// ErrStreamFailed indicates the platform stream stopped with an error.
var ErrStreamFailed = errors.New("capture stream failed")
