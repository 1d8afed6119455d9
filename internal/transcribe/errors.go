package transcribe

import "errors"

// ErrAPIKeyMissing indicates OPENAI_API_KEY environment variable is not set.
var ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

// ErrSplitFailed indicates ffmpeg could not cut a recording into upload-sized chunks.
var ErrSplitFailed = errors.New("failed to split recording")

// ErrEmptyTranscript indicates the API returned no text for the whole recording.
var ErrEmptyTranscript = errors.New("transcript is empty")

// ErrInvalidLanguage indicates a language code the API does not accept.
var ErrInvalidLanguage = errors.New("invalid language code")
