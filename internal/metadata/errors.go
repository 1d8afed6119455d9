package metadata

import "errors"

// ErrNotFound indicates no entry matches the requested filename.
var ErrNotFound = errors.New("recording not found")
