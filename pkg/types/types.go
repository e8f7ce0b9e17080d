// Package types defines the shared types used across all Parley packages.
//
// These are the cross-cutting data structures exchanged between the speech
// queue, the capture controller, the provider backends, and the tool surface.
// Each package defines its own domain types; only data that would otherwise
// cause circular imports lives here.
package types

import "time"

// Utterance is a single outgoing text-to-speech request — the unit of queuing.
// An Utterance is immutable once enqueued and owned exclusively by the speech
// queue until it completes, is cancelled, or is dropped.
type Utterance struct {
	// Text is the content to synthesize. Never empty for an accepted utterance.
	Text string

	// Voice overrides the configured default voice when non-empty. The value is
	// backend-specific (a piper model name, a `say` voice, an OpenAI voice id).
	Voice string

	// Speed is the speech rate factor in the range [0.5, 2.0]. 1.0 = normal.
	Speed float64

	// Seq is the monotonic sequence number assigned at enqueue time. Playback
	// order equals Seq order.
	Seq uint64
}

// Outcome describes how a queued utterance ended.
type Outcome int

const (
	// OutcomePlayed means the utterance was synthesized and played to completion.
	OutcomePlayed Outcome = iota

	// OutcomeCancelled means playback was aborted by a stop signal or CancelAll.
	OutcomeCancelled

	// OutcomeFailed means every synthesis backend failed for this utterance.
	// The queue keeps running; the failure is per-utterance only.
	OutcomeFailed
)

// String returns the human-readable name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePlayed:
		return "played"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transcription is the result of transcribing one completed capture session.
// Exactly one Transcription is produced per session; it is consumed by at most
// one blocked waiter or left as the last known result for polling.
type Transcription struct {
	// Text is the recognized speech content.
	Text string

	// Language is the BCP-47 tag of the detected or configured language.
	// May be empty if the engine does not report it.
	Language string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// engine does not report confidence.
	Confidence float64

	// AudioDuration is the length of the transcribed audio buffer.
	AudioDuration time.Duration

	// CreatedAt is when the transcription completed.
	CreatedAt time.Time
}

// Status markers returned by the listening surface instead of transcribed
// text when no (new) result is available. Callers distinguish these from real
// transcriptions by exact string match, so they must never change.
const (
	// MarkerReady means the controller is armed and waiting for speech.
	MarkerReady = "[Ready]"

	// MarkerRecording means a capture session is in progress.
	MarkerRecording = "[Recording...]"

	// MarkerTranscribing means a capture session ended and the engine is running.
	MarkerTranscribing = "[Transcribing...]"

	// MarkerTimeout means a blocking wait elapsed without a new transcription.
	MarkerTimeout = "[Timeout]"

	// MarkerIdle means the controller has not been started.
	MarkerIdle = "[Idle]"
)
