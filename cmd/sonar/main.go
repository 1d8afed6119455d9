// Command sonar records meetings: system audio and microphone mixed into
// one file, indexed locally and optionally transcribed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Heracs/MeetingSonar-sub001/internal/apierr"
	"github.com/Heracs/MeetingSonar-sub001/internal/cli"
	"github.com/Heracs/MeetingSonar-sub001/internal/config"
	"github.com/Heracs/MeetingSonar-sub001/internal/device"
	"github.com/Heracs/MeetingSonar-sub001/internal/encoder"
	"github.com/Heracs/MeetingSonar-sub001/internal/ffmpeg"
	"github.com/Heracs/MeetingSonar-sub001/internal/interrupt"
	"github.com/Heracs/MeetingSonar-sub001/internal/recording"
	"github.com/Heracs/MeetingSonar-sub001/internal/transcribe"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitGeneral       = 1
	ExitUsage         = 2
	ExitSetup         = 3
	ExitValidation    = 4
	ExitTranscription = 5
	ExitInterrupt     = interrupt.ExitInterrupt
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// Context with signal cancellation.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd(cli.DefaultEnv()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// rootCmd assembles the command tree.
func rootCmd(env *cli.Env) *cobra.Command {
	root := &cobra.Command{
		Use:     "sonar",
		Short:   "Record meetings from system audio and microphone",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(cli.RecordCmd(env))
	root.AddCommand(cli.DevicesCmd(env))
	root.AddCommand(cli.ListCmd(env))
	root.AddCommand(cli.TranscribeCmd(env))
	root.AddCommand(cli.ConfigCmd(env))
	return root
}

// setupErrors need the user to install or fix something before retrying.
var setupErrors = []error{
	ffmpeg.ErrNotFound,
	transcribe.ErrAPIKeyMissing,
	device.ErrNoDevice,
	device.ErrServerUnavailable,
	recording.ErrNoAudioSource,
	recording.ErrScreenCapturePermission,
	recording.ErrMicrophonePermission,
	recording.ErrEncoderSetup,
	config.ErrNotDirectory,
	config.ErrNotWritable,
}

// validationErrors are bad input.
var validationErrors = []error{
	config.ErrUnknownKey,
	config.ErrInvalidValue,
	recording.ErrInvalidTrigger,
	encoder.ErrUnsupportedFormat,
	transcribe.ErrInvalidLanguage,
	transcribe.ErrSplitFailed,
	cli.ErrUnsupportedFormat,
	cli.ErrFileNotFound,
	cli.ErrOutputExists,
	cli.ErrInvalidLimit,
}

// transcriptionErrors come from the transcription API.
var transcriptionErrors = []error{
	apierr.ErrRateLimit,
	apierr.ErrQuotaExceeded,
	apierr.ErrTimeout,
	apierr.ErrAuthFailed,
	apierr.ErrBadRequest,
	apierr.ErrServer,
	transcribe.ErrEmptyTranscript,
}

// exitCode maps errors to exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	// Check for context cancellation (interrupt).
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Cobra doesn't expose typed errors, so we check for known error message patterns.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	switch {
	case isAny(err, setupErrors):
		return ExitSetup
	case isAny(err, validationErrors):
		return ExitValidation
	case isAny(err, transcriptionErrors):
		return ExitTranscription
	}
	return ExitGeneral
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// These patterns are stable across Cobra versions (tested with v1.8+).
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"unknown command",           // Subcommand doesn't exist
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",         // Too few arguments
	"requires at most",          // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
