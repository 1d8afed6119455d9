// Package config loads and stores user settings in a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Heracs/MeetingSonar-sub001/internal/encoder"
	"github.com/Heracs/MeetingSonar-sub001/internal/logging"
	"github.com/Heracs/MeetingSonar-sub001/internal/recording"
)

// Compile-time interface implementation check.
var _ recording.SettingsProvider = Config{}

// Config keys.
const (
	KeyOutputDir         = "output-dir"
	KeyFormat            = "format"
	KeySystemAudioTarget = "system-audio-target"
	KeyMicrophoneDevice  = "microphone-device"
	KeyLogLevel          = "log-level"
	KeyFFmpegPath        = "ffmpeg-path"

	sourcesPrefix     = "sources."
	sourceSystemAudio = "system-audio"
	sourceMicrophone  = "microphone"
)

// Environment variable fallbacks.
const (
	EnvOutputDir = "SONAR_OUTPUT_DIR"
	EnvFormat    = "SONAR_FORMAT"
)

// appDir names the per-user config and state directories.
const appDir = "meetingsonar"

// Sources selects the default capture sources of one trigger.
type Sources struct {
	SystemAudio bool `toml:"system-audio"`
	Microphone  bool `toml:"microphone"`
}

// defaultSources records both sources for every trigger.
var defaultSources = Sources{SystemAudio: true, Microphone: true}

// Config holds user configuration loaded from
// $XDG_CONFIG_HOME/meetingsonar/config.toml.
type Config struct {
	OutputDir         string             `toml:"output-dir,omitempty"`
	Format            string             `toml:"format,omitempty"`
	SystemAudioTarget string             `toml:"system-audio-target,omitempty"`
	MicrophoneDevice  string             `toml:"microphone-device,omitempty"`
	LogLevel          string             `toml:"log-level,omitempty"`
	FFmpegPath        string             `toml:"ffmpeg-path,omitempty"`
	Sources           map[string]Sources `toml:"sources,omitempty"`
}

// DefaultConfig returns the configured sources for trigger, both by default.
func (c Config) DefaultConfig(trigger recording.Trigger) recording.AudioSourceConfig {
	s, ok := c.Sources[trigger.String()]
	if !ok {
		s = defaultSources
	}
	return recording.AudioSourceConfig{
		IncludeSystemAudio: s.SystemAudio,
		IncludeMicrophone:  s.Microphone,
	}
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

// Dir returns the configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/meetingsonar.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appDir), nil
}

// StateDir returns the directory for logs and the recording index.
// Uses XDG_STATE_HOME if set, otherwise ~/.local/state/meetingsonar.
func StateDir() (string, error) {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", appDir), nil
}

// path returns the full path to the config file.
func path() (string, error) {
	d, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.toml"), nil
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the configuration file and environment variables.
// Precedence: config file values, then environment variable fallbacks.
// A missing file is not an error.
func Load() (Config, error) {
	cfg, err := loadFile()
	if err != nil {
		return cfg, err
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.Getenv(EnvOutputDir)
	}
	if cfg.Format == "" {
		cfg.Format = os.Getenv(EnvFormat)
	}
	cfg.OutputDir = ExpandPath(cfg.OutputDir)
	return cfg, nil
}

// loadFile reads only the config file.
func loadFile() (Config, error) {
	var cfg Config
	p, err := path()
	if err != nil {
		return cfg, err
	}
	if _, err := toml.DecodeFile(p, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", p, err)
	}
	return cfg, nil
}

// save writes cfg to the config file, creating its directory.
func save(cfg Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	// #nosec G302 G304 -- config file with standard permissions, path from home dir
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	return f.Close()
}

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

// Keys lists every settable key in display order.
func Keys() []string {
	keys := []string{KeyOutputDir, KeyFormat, KeySystemAudioTarget, KeyMicrophoneDevice, KeyLogLevel, KeyFFmpegPath}
	for _, t := range recording.Triggers {
		keys = append(keys,
			sourcesPrefix+t.String()+"."+sourceSystemAudio,
			sourcesPrefix+t.String()+"."+sourceMicrophone,
		)
	}
	return keys
}

// IsValidKey reports whether key is a configuration key.
func IsValidKey(key string) bool {
	return slices.Contains(Keys(), key)
}

// Value returns the string form of key and whether it is explicitly set.
// Source keys report their effective value even when unset.
func (c Config) Value(key string) (string, bool, error) {
	switch key {
	case KeyOutputDir:
		return c.OutputDir, c.OutputDir != "", nil
	case KeyFormat:
		return c.Format, c.Format != "", nil
	case KeySystemAudioTarget:
		return c.SystemAudioTarget, c.SystemAudioTarget != "", nil
	case KeyMicrophoneDevice:
		return c.MicrophoneDevice, c.MicrophoneDevice != "", nil
	case KeyLogLevel:
		return c.LogLevel, c.LogLevel != "", nil
	case KeyFFmpegPath:
		return c.FFmpegPath, c.FFmpegPath != "", nil
	}
	trigger, field, err := parseSourceKey(key)
	if err != nil {
		return "", false, err
	}
	s, ok := c.Sources[trigger]
	if !ok {
		s = defaultSources
	}
	v := s.SystemAudio
	if field == sourceMicrophone {
		v = s.Microphone
	}
	return strconv.FormatBool(v), ok, nil
}

// Set validates value and assigns it to key.
func (c *Config) Set(key, value string) error {
	switch key {
	case KeyOutputDir:
		c.OutputDir = value
	case KeyFormat:
		f, err := encoder.ParseFormat(value)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		c.Format = f
	case KeySystemAudioTarget:
		c.SystemAudioTarget = value
	case KeyMicrophoneDevice:
		c.MicrophoneDevice = value
	case KeyLogLevel:
		if value == "" {
			return fmt.Errorf("%w: log-level cannot be empty", ErrInvalidValue)
		}
		if _, err := logging.ParseLevel(value); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		c.LogLevel = strings.ToLower(value)
	case KeyFFmpegPath:
		c.FFmpegPath = value
	default:
		trigger, field, err := parseSourceKey(key)
		if err != nil {
			return err
		}
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects true or false, got %q", ErrInvalidValue, key, value)
		}
		if c.Sources == nil {
			c.Sources = make(map[string]Sources)
		}
		s, ok := c.Sources[trigger]
		if !ok {
			s = defaultSources
		}
		if field == sourceMicrophone {
			s.Microphone = on
		} else {
			s.SystemAudio = on
		}
		c.Sources[trigger] = s
	}
	return nil
}

// parseSourceKey splits sources.<trigger>.<field>.
func parseSourceKey(key string) (trigger, field string, err error) {
	rest, ok := strings.CutPrefix(key, sourcesPrefix)
	if !ok {
		return "", "", fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	trigger, field, ok = strings.Cut(rest, ".")
	if !ok || (field != sourceSystemAudio && field != sourceMicrophone) {
		return "", "", fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	t, err := recording.ParseTrigger(trigger)
	if err != nil || t.String() != trigger {
		return "", "", fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	return trigger, field, nil
}

// Save sets a single key in the config file, keeping the other settings.
func Save(key, value string) error {
	if !IsValidKey(key) {
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	cfg, err := loadFile()
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	return save(cfg)
}

// Get reads a single value from the config file.
// Returns an empty string if the key is not set.
func Get(key string) (string, error) {
	if !IsValidKey(key) {
		return "", fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	cfg, err := loadFile()
	if err != nil {
		return "", err
	}
	v, set, err := cfg.Value(key)
	if err != nil || !set {
		return "", err
	}
	return v, nil
}

// List returns every explicitly set value in the config file.
func List() (map[string]string, error) {
	cfg, err := loadFile()
	if err != nil {
		return nil, err
	}
	data := make(map[string]string)
	for _, key := range Keys() {
		if v, set, _ := cfg.Value(key); set {
			data[key] = v
		}
	}
	return data, nil
}

// ---------------------------------------------------------------------------
// Output directory
// ---------------------------------------------------------------------------

// ResolveOutputDir picks the recording directory: the flag if set, then the
// configured directory, then the current directory. ~ is expanded.
func ResolveOutputDir(flagDir, configDir string) string {
	switch {
	case flagDir != "":
		return filepath.Clean(ExpandPath(flagDir))
	case configDir != "":
		return filepath.Clean(ExpandPath(configDir))
	default:
		return "."
	}
}

// EnsureOutputDir checks that d is a writable directory, creating it if missing.
func EnsureOutputDir(d string) error {
	if d == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}
	d = ExpandPath(d)

	info, err := os.Stat(d)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(d, 0o750); err != nil { // #nosec G301 -- user output dir
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, d)
	}

	testFile := filepath.Join(d, ".meetingsonar-write-test")
	f, err := os.Create(testFile) // #nosec G304 -- path is constructed from validated dir
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotWritable, err)
	}
	_ = f.Close()
	_ = os.Remove(testFile)
	return nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}
