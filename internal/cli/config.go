package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Heracs/MeetingSonar-sub001/internal/config"
)

// envFallbacks maps keys to the environment variables read when unset.
var envFallbacks = map[string]string{
	config.KeyOutputDir: config.EnvOutputDir,
	config.KeyFormat:    config.EnvFormat,
}

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Configuration is stored in ~/.config/meetingsonar/config.toml.
Settings can also be overridden via environment variables.

Supported settings:
  output-dir                   Directory for recordings (env: SONAR_OUTPUT_DIR)
  format                       wav or ogg (env: SONAR_FORMAT)
  system-audio-target          Output sink to capture (default sink if unset)
  microphone-device            Capture device name (system default if unset)
  log-level                    debug, info, warn, error
  ffmpeg-path                  FFmpeg binary (env: FFMPEG_PATH, then PATH)
  sources.<trigger>.system-audio   true/false, trigger is manual, auto or reminder
  sources.<trigger>.microphone     true/false`,
		Example: `  sonar config set output-dir ~/Recordings
  sonar config set sources.auto.microphone false
  sonar config get format
  sonar config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

The output directory is created if it doesn't exist.`,
		Example: `  sonar config set output-dir ~/Recordings
  sonar config set format ogg`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value.

Prints the value to stdout, or nothing if not set. Source keys print their
effective value.`,
		Example: `  sonar config get output-dir`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, args[0])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List all configuration values.

Shows both values from the config file and environment variable overrides.`,
		Example: `  sonar config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env)
		},
	}
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, key, value string) error {
	if !config.IsValidKey(key) {
		return unknownKeyError(key)
	}

	if key == config.KeyOutputDir {
		expanded := config.ExpandPath(value)
		if err := config.EnsureOutputDir(expanded); err != nil {
			return fmt.Errorf("invalid output-dir: %w", err)
		}
		value = expanded
	}

	if err := config.Save(key, value); err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// runConfigGet handles the "config get" command.
func runConfigGet(env *Env, key string) error {
	if !config.IsValidKey(key) {
		return unknownKeyError(key)
	}

	value, err := config.Get(key)
	if err != nil {
		return err
	}
	if value == "" {
		if name, ok := envFallbacks[key]; ok {
			value = env.Getenv(name)
		}
	}
	if value == "" && strings.HasPrefix(key, "sources.") {
		cfg, err := env.ConfigLoader.Load()
		if err != nil {
			return err
		}
		if value, _, err = cfg.Value(key); err != nil {
			return err
		}
	}

	if value != "" {
		fmt.Fprintln(env.Stdout, value)
	}
	return nil
}

// runConfigList handles the "config list" command.
func runConfigList(env *Env) error {
	data, err := config.List()
	if err != nil {
		return err
	}

	for key, name := range envFallbacks {
		if _, ok := data[key]; ok {
			continue
		}
		if v := env.Getenv(name); v != "" {
			data[key] = v + " (from env)"
		}
	}

	if len(data) == 0 {
		fmt.Fprintln(env.Stdout, "No configuration set.")
		fmt.Fprintln(env.Stdout, "\nAvailable settings:")
		for _, key := range config.Keys() {
			fmt.Fprintf(env.Stdout, "  %s\n", key)
		}
		return nil
	}

	for _, key := range config.Keys() {
		if v, ok := data[key]; ok {
			fmt.Fprintf(env.Stdout, "%s=%s\n", key, v)
		}
	}
	return nil
}

func unknownKeyError(key string) error {
	return fmt.Errorf("%w %q (valid keys: %s)", config.ErrUnknownKey, key, strings.Join(config.Keys(), ", "))
}
