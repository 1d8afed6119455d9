package notify_test

// Notes:
// - Desktop delivery is replaced with a recording sender; beeep is never called.
// - Close drains the queue, so assertions after Close see every accepted message.

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Heracs/MeetingSonar-sub001/internal/notify"
	"github.com/Heracs/MeetingSonar-sub001/internal/recording"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type recordingSender struct {
	mu    sync.Mutex
	calls []string
	err   error
	block chan struct{}
}

func (s *recordingSender) send(title, message string) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, title+": "+message)
	return s.err
}

func (s *recordingSender) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ---------------------------------------------------------------------------
// TestMessage
// ---------------------------------------------------------------------------

func TestMessage(t *testing.T) {
	t.Parallel()

	both := recording.AudioSourceConfig{IncludeSystemAudio: true, IncludeMicrophone: true}
	tests := []struct {
		name  string
		event recording.Event
		want  string
	}{
		{
			name:  "started",
			event: recording.Event{Kind: recording.EventStarted, Trigger: recording.TriggerAuto, Sources: both, Path: "/rec/a.ogg"},
			want:  "Recording started (auto, system audio + microphone): a.ogg",
		},
		{
			name:  "stopped",
			event: recording.Event{Kind: recording.EventStopped, Duration: 65 * time.Second, Path: "/rec/a.ogg"},
			want:  "Recording saved (01:05): /rec/a.ogg",
		},
		{
			name:  "paused",
			event: recording.Event{Kind: recording.EventPaused, Duration: time.Hour},
			want:  "Paused at 01:00:00",
		},
		{
			name:  "source changed",
			event: recording.Event{Kind: recording.EventSourceChanged, Sources: recording.AudioSourceConfig{IncludeMicrophone: true}},
			want:  "Sources: microphone",
		},
		{
			name:  "error",
			event: recording.Event{Kind: recording.EventError, Err: errors.New("device gone")},
			want:  "Recording error: device gone",
		},
		{
			name:  "max duration",
			event: recording.Event{Kind: recording.EventMaxDurationReached, Duration: 2 * time.Hour},
			want:  "Maximum duration reached (2h), stopping",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := notify.Message(tt.event); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestConsole
// ---------------------------------------------------------------------------

func TestConsole_ThrottlesTicks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := notify.NewConsole(&buf, time.Minute)

	c.Notify(recording.Event{Kind: recording.EventStarted, Path: "x.wav"})
	for s := 1; s <= 125; s++ {
		c.Notify(recording.Event{Kind: recording.EventTimerTick, Duration: time.Duration(s) * time.Second})
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if lines[1] != "Recording 01:00" || lines[2] != "Recording 02:00" {
		t.Errorf("progress lines = %q", lines[1:])
	}
}

func TestConsole_ZeroIntervalHidesTicks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := notify.NewConsole(&buf, 0)
	c.Notify(recording.Event{Kind: recording.EventTimerTick, Duration: time.Hour})
	c.Notify(recording.Event{Kind: recording.EventResumed})

	if got := buf.String(); got != "Resumed\n" {
		t.Errorf("output = %q, want only Resumed", got)
	}
}

// ---------------------------------------------------------------------------
// TestDesktop
// ---------------------------------------------------------------------------

func TestDesktop_FiltersEvents(t *testing.T) {
	t.Parallel()

	s := &recordingSender{}
	d := notify.NewDesktop(notify.WithSender(s.send))

	d.Notify(recording.Event{Kind: recording.EventStarted, Path: "a.wav"})
	d.Notify(recording.Event{Kind: recording.EventTimerTick, Duration: time.Second})
	d.Notify(recording.Event{Kind: recording.EventPaused})
	d.Notify(recording.Event{Kind: recording.EventStopped, Path: "a.wav"})
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got := s.messages()
	if len(got) != 2 {
		t.Fatalf("sent %d notifications, want 2: %v", len(got), got)
	}
	if !strings.HasPrefix(got[0], notify.AppName+": Recording started") {
		t.Errorf("first notification = %q", got[0])
	}
}

func TestDesktop_DropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	s := &recordingSender{block: make(chan struct{})}
	d := notify.NewDesktop(notify.WithSender(s.send))

	for i := 0; i < 100; i++ {
		d.Notify(recording.Event{Kind: recording.EventError, Err: errors.New("x")})
	}
	close(s.block)
	_ = d.Close()

	if n := len(s.messages()); n >= 100 || n == 0 {
		t.Errorf("sent %d notifications, want some dropped", n)
	}
}

func TestDesktop_SendFailureKeepsRunning(t *testing.T) {
	t.Parallel()

	s := &recordingSender{err: errors.New("no dbus")}
	d := notify.NewDesktop(notify.WithSender(s.send))
	d.Notify(recording.Event{Kind: recording.EventStarted})
	d.Notify(recording.Event{Kind: recording.EventStopped})
	_ = d.Close()

	if n := len(s.messages()); n != 2 {
		t.Errorf("sent %d notifications, want 2", n)
	}
}

func TestDesktop_CloseTwice(t *testing.T) {
	t.Parallel()

	d := notify.NewDesktop(notify.WithSender(func(string, string) error { return nil }))
	if err := d.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := d.Close(); !errors.Is(err, notify.ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
	// Notify after close is a no-op.
	d.Notify(recording.Event{Kind: recording.EventStarted})
}
