package listener

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when an event is not valid in the current
// state. Callers that race legitimately (a hotkey toggle landing during
// transcription) should treat it as a benign rejection.
var ErrIllegalTransition = errors.New("illegal state transition")

// State is the capture controller lifecycle state.
type State int

const (
	// StateIdle means the controller is not running: no device, no hotkey.
	StateIdle State = iota

	// StateArmed means the device is open and frames are being classified,
	// waiting for speech onset or a manual toggle.
	StateArmed

	// StateRecording means frames are accumulating into the capture buffer.
	StateRecording

	// StateTranscribing means the buffer was handed to the engine and the
	// result is pending.
	StateTranscribing
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	default:
		return "unknown"
	}
}

// Event drives state transitions.
type Event int

const (
	// EventStart arms an idle controller.
	EventStart Event = iota

	// EventSpeech begins recording: speech onset in VAD mode, toggle-down
	// in manual mode.
	EventSpeech

	// EventEndCapture ends recording and hands the buffer to the engine:
	// silence timeout in VAD mode, toggle in manual mode.
	EventEndCapture

	// EventTranscribed completes transcription, re-arming the controller.
	EventTranscribed

	// EventStop forces the controller to idle from any state.
	EventStop
)

// String returns the lowercase event name.
func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventSpeech:
		return "speech"
	case EventEndCapture:
		return "end_capture"
	case EventTranscribed:
		return "transcribed"
	case EventStop:
		return "stop"
	default:
		return "unknown"
	}
}

// transition is the single source of truth for the controller lifecycle.
// Every state change in this package goes through it.
func transition(s State, e Event) (State, error) {
	if e == EventStop {
		return StateIdle, nil
	}
	switch s {
	case StateIdle:
		if e == EventStart {
			return StateArmed, nil
		}
	case StateArmed:
		if e == EventSpeech {
			return StateRecording, nil
		}
	case StateRecording:
		if e == EventEndCapture {
			return StateTranscribing, nil
		}
	case StateTranscribing:
		if e == EventTranscribed {
			return StateArmed, nil
		}
	}
	return s, fmt.Errorf("%w: %s in state %s", ErrIllegalTransition, e, s)
}
