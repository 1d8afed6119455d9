package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrUnsupportedFormat indicates an audio file has an unsupported extension.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrOutputExists indicates the output file already exists.
	ErrOutputExists = errors.New("output file already exists")

	// ErrInvalidLimit indicates a non-positive --limit.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrAborted indicates finalization was abandoned by a second interrupt.
	ErrAborted = errors.New("recording aborted before finalization")
)
