// Package coord implements the coordination channel between the speaker and
// listener halves of a voice session, which may live in separate processes.
//
// Three pieces of state are shared:
//
//   - the stop signal, a one-shot edge: any process can raise it and the
//     speech worker consumes it, aborting the in-flight utterance;
//   - the speaking flag, true while audio is being played, so the capture
//     side can discard its own output instead of transcribing it;
//   - the finished timestamp, the wall-clock instant playback last ended,
//     which drives the capture side's echo-guard window.
//
// Two implementations exist: Memory for single-process sessions and tests,
// and File for cross-process sessions using marker files under a shared
// directory.
package coord

import "time"

// Store is the coordination state shared between speaker and listener.
// Implementations must be safe for concurrent use.
type Store interface {
	// SignalStop raises the stop signal. Raising an already-raised signal
	// is a no-op.
	SignalStop() error

	// ConsumeStop atomically checks and clears the stop signal. Returns
	// true if a signal was present. Exactly one consumer observes any
	// given signal.
	ConsumeStop() (bool, error)

	// SetSpeaking sets or clears the speaking flag.
	SetSpeaking(on bool) error

	// Speaking reports the speaking flag. Implementations may serve a
	// briefly cached value; the capture loop calls this on every frame.
	Speaking() (bool, error)

	// MarkFinished records t as the instant playback last ended.
	MarkFinished(t time.Time) error

	// LastFinished returns the most recent MarkFinished value, or the zero
	// time if playback has never finished.
	LastFinished() (time.Time, error)
}
