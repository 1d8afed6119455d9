package cli

// Notes:
// - These tests write a real config file under a temp XDG_CONFIG_HOME, so
//   they use t.Setenv and cannot run in parallel.

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Heracs/MeetingSonar-sub001/internal/config"
)

// isolateConfig points the config file at a temp directory.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.EnvOutputDir, "")
	t.Setenv(config.EnvFormat, "")
}

func TestRunConfigSet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{name: "format", key: config.KeyFormat, value: "opus"},
		{name: "log level", key: config.KeyLogLevel, value: "debug"},
		{name: "source toggle", key: "sources.auto.microphone", value: "false"},
		{name: "unknown key", key: "color", value: "blue", wantErr: config.ErrUnknownKey},
		{name: "bad format", key: config.KeyFormat, value: "flac", wantErr: config.ErrInvalidValue},
		{name: "bad bool", key: "sources.manual.system-audio", value: "maybe", wantErr: config.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfig(t)
			env, _, out := testEnv(t, "")

			err := runConfigSet(env, tt.key, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("runConfigSet() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("runConfigSet() error = %v", err)
			}
			if !strings.Contains(out.stderr.String(), "Set "+tt.key+" = ") {
				t.Errorf("stderr = %q", out.stderr.String())
			}
		})
	}
}

func TestRunConfigSet_OutputDirCreated(t *testing.T) {
	isolateConfig(t)
	env, _, _ := testEnv(t, "")
	dir := filepath.Join(t.TempDir(), "nested", "recordings")

	if err := runConfigSet(env, config.KeyOutputDir, dir); err != nil {
		t.Fatalf("runConfigSet() error = %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("output dir not created: %v", err)
	}
	if got, _ := config.Get(config.KeyOutputDir); got != dir {
		t.Errorf("stored output-dir = %q, want %q", got, dir)
	}
}

func TestRunConfigGet(t *testing.T) {
	isolateConfig(t)
	env, _, out := testEnv(t, "")

	if err := runConfigSet(env, config.KeyFormat, "ogg"); err != nil {
		t.Fatal(err)
	}
	if err := runConfigGet(env, config.KeyFormat); err != nil {
		t.Fatalf("runConfigGet() error = %v", err)
	}
	if got := strings.TrimSpace(out.stdout.String()); got != "ogg" {
		t.Errorf("get format = %q, want ogg", got)
	}
}

func TestRunConfigGet_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		getenv map[string]string
		want   string
	}{
		{name: "env fallback", key: config.KeyOutputDir, getenv: map[string]string{config.EnvOutputDir: "/from/env"}, want: "/from/env"},
		{name: "unset prints nothing", key: config.KeySystemAudioTarget, want: ""},
		{name: "source default", key: "sources.reminder.system-audio", want: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfig(t)
			env, _, out := testEnv(t, "")
			env.Getenv = staticEnv(tt.getenv)

			if err := runConfigGet(env, tt.key); err != nil {
				t.Fatalf("runConfigGet() error = %v", err)
			}
			if got := strings.TrimSpace(out.stdout.String()); got != tt.want {
				t.Errorf("get %s = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestRunConfigGet_UnknownKey(t *testing.T) {
	isolateConfig(t)
	env, _, _ := testEnv(t, "")

	err := runConfigGet(env, "sources.calendar.microphone")
	if !errors.Is(err, config.ErrUnknownKey) {
		t.Fatalf("runConfigGet() error = %v, want ErrUnknownKey", err)
	}
	if !strings.Contains(err.Error(), config.KeyOutputDir) {
		t.Errorf("error should list valid keys: %v", err)
	}
}

func TestRunConfigList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		isolateConfig(t)
		env, _, out := testEnv(t, "")
		env.Getenv = staticEnv(nil)

		if err := runConfigList(env); err != nil {
			t.Fatalf("runConfigList() error = %v", err)
		}
		got := out.stdout.String()
		if !strings.Contains(got, "No configuration set.") || !strings.Contains(got, "  sources.auto.microphone") {
			t.Errorf("output = %q", got)
		}
	})

	t.Run("file and env values in key order", func(t *testing.T) {
		isolateConfig(t)
		env, _, out := testEnv(t, "")
		env.Getenv = staticEnv(map[string]string{config.EnvOutputDir: "/env/dir"})

		if err := runConfigSet(env, config.KeyLogLevel, "warn"); err != nil {
			t.Fatal(err)
		}
		if err := runConfigSet(env, config.KeyFormat, "wav"); err != nil {
			t.Fatal(err)
		}
		if err := runConfigList(env); err != nil {
			t.Fatalf("runConfigList() error = %v", err)
		}

		want := "output-dir=/env/dir (from env)\nformat=wav\nlog-level=warn\n"
		if got := out.stdout.String(); got != want {
			t.Errorf("list = %q, want %q", got, want)
		}
	})
}
