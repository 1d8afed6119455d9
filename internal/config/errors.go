package config

import "errors"

// ErrUnknownKey indicates a key that is not a configuration setting.
var ErrUnknownKey = errors.New("unknown config key")

// ErrInvalidValue indicates a value that is not valid for its key.
var ErrInvalidValue = errors.New("invalid config value")

// ErrNotDirectory indicates the output path exists but is a file.
var ErrNotDirectory = errors.New("path is not a directory")

// ErrNotWritable indicates the output directory cannot be written to.
var ErrNotWritable = errors.New("directory is not writable")
