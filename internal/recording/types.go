package recording

import (
	"fmt"
	"strings"
	"time"
)

// State is the recording lifecycle state.
type State int

const (
	// Idle means no recording is active.
	Idle State = iota
	// Recording means audio is being captured and written.
	Recording
	// Paused means the session is open but nothing is captured.
	Paused
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Trigger is what initiated a recording. It selects the default sources.
type Trigger int

const (
	// TriggerManual is a user-initiated recording.
	TriggerManual Trigger = iota
	// TriggerAuto is started by meeting detection.
	TriggerAuto
	// TriggerSmartReminder is started from a reminder prompt.
	TriggerSmartReminder
)

// Triggers lists every trigger in declaration order.
var Triggers = []Trigger{TriggerManual, TriggerAuto, TriggerSmartReminder}

// String returns the CLI/config name of the Trigger.
func (t Trigger) String() string {
	switch t {
	case TriggerManual:
		return "manual"
	case TriggerAuto:
		return "auto"
	case TriggerSmartReminder:
		return "reminder"
	default:
		return fmt.Sprintf("Trigger(%d)", t)
	}
}

// ParseTrigger parses manual, auto or reminder.
func ParseTrigger(s string) (Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual", "":
		return TriggerManual, nil
	case "auto":
		return TriggerAuto, nil
	case "reminder", "smart-reminder", "smartreminder":
		return TriggerSmartReminder, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected manual, auto or reminder)", ErrInvalidTrigger, s)
	}
}

// AudioSourceConfig selects which sources a recording captures.
type AudioSourceConfig struct {
	IncludeSystemAudio bool
	IncludeMicrophone  bool
}

// IsValid reports whether at least one source is enabled.
func (c AudioSourceConfig) IsValid() bool {
	return c.IncludeSystemAudio || c.IncludeMicrophone
}

// String returns a short human description.
func (c AudioSourceConfig) String() string {
	switch {
	case c.IncludeSystemAudio && c.IncludeMicrophone:
		return "system audio + microphone"
	case c.IncludeSystemAudio:
		return "system audio"
	case c.IncludeMicrophone:
		return "microphone"
	default:
		return "none"
	}
}

// Status is the lifecycle status of a metadata entry.
type Status string

const (
	StatusRecording Status = "recording"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry is the metadata record of one recording.
type Entry struct {
	ID         string
	Filename   string
	Path       string
	Trigger    Trigger
	SourceName string
	StartedAt  time.Time
	Duration   time.Duration
	SizeBytes  int64
	Status     Status
	Sources    AudioSourceConfig
}

// EventKind identifies a controller notification.
type EventKind int

const (
	EventStarted EventKind = iota
	EventStopped
	EventPaused
	EventResumed
	EventTimerTick
	EventSourceChanged
	EventError
	EventMaxDurationReached
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "recording-started"
	case EventStopped:
		return "recording-stopped"
	case EventPaused:
		return "recording-paused"
	case EventResumed:
		return "recording-resumed"
	case EventTimerTick:
		return "timer-tick"
	case EventSourceChanged:
		return "audio-source-changed"
	case EventError:
		return "recording-error"
	case EventMaxDurationReached:
		return "max-duration-reached"
	default:
		return fmt.Sprintf("EventKind(%d)", k)
	}
}

// Event is a controller notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	Trigger  Trigger
	Path     string
	Duration time.Duration
	Sources  AudioSourceConfig
	Err      error
}
