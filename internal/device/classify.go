package device

import (
	"sort"
	"strings"
)

// Class ranks a device for microphone selection.
type Class int

const (
	// ClassMicrophone looks like a real input (built-in mic, headset, webcam).
	ClassMicrophone Class = iota
	// ClassUnknown gives no hint either way.
	ClassUnknown
	// ClassVirtual is a loopback, monitor or meeting-app virtual device.
	ClassVirtual
)

// String returns the lowercase class name.
func (c Class) String() string {
	switch c {
	case ClassMicrophone:
		return "microphone"
	case ClassVirtual:
		return "virtual"
	default:
		return "unknown"
	}
}

// virtualAudioDevices lists virtual devices that must never be picked as the microphone.
// They are loopbacks for screen sharing, and recording them as input would
// double the system audio in the mix.
var virtualAudioDevices = []string{
	// macOS
	"AirBeamTV",
	"ZoomAudioDevice",
	"Microsoft Teams Audio",
	"BlackHole",
	"Soundflower",
	"Loopback Audio",
	// Windows
	"Stereo Mix",
	"Wave Out Mix",
	"What U Hear",
	"Lo que escucha", // Spanish locale
	"CABLE Output",
	"VB-Audio Virtual Cable",
	"virtual-audio-capturer",
	"VoiceMeeter",
	// Linux (PulseAudio/PipeWire)
	".monitor",
	"Monitor of ",
}

// isVirtualAudioDevice checks if a device name matches a known virtual audio device.
func isVirtualAudioDevice(name string) bool {
	nameLower := strings.ToLower(name)
	for _, virtual := range virtualAudioDevices {
		if strings.Contains(nameLower, strings.ToLower(virtual)) {
			return true
		}
	}
	return false
}

// isMicrophoneDevice checks if a device name looks like a real microphone.
func isMicrophoneDevice(name string) bool {
	nameLower := strings.ToLower(name)
	return strings.Contains(nameLower, "micro") ||
		strings.Contains(nameLower, "mic ") ||
		strings.HasSuffix(nameLower, " mic") ||
		strings.Contains(nameLower, "input") ||
		strings.Contains(nameLower, "headset") ||
		strings.Contains(nameLower, "webcam") ||
		strings.Contains(nameLower, "usb audio") ||
		strings.Contains(nameLower, "capture") ||
		strings.Contains(nameLower, "analog-stereo") && !strings.Contains(nameLower, ".monitor")
}

// Classify ranks a device by its name. Virtual matches win over microphone
// matches, so "Monitor of Built-in Microphone" is virtual.
func Classify(name string) Class {
	switch {
	case isVirtualAudioDevice(name):
		return ClassVirtual
	case isMicrophoneDevice(name):
		return ClassMicrophone
	default:
		return ClassUnknown
	}
}

// SortInputs orders devices real microphones first, virtual devices last,
// keeping the default device first within its class. The sort is stable.
func SortInputs(devices []Info) {
	sort.SliceStable(devices, func(i, j int) bool {
		ci, cj := devices[i].Class, devices[j].Class
		if ci != cj {
			return ci < cj
		}
		return devices[i].Default && !devices[j].Default
	})
}
