// Package tts defines the Backend interface for text-to-speech engines.
//
// A Backend wraps a speech synthesis engine (a local Piper process, the
// OpenAI speech API, or the platform speech command) and presents a uniform
// utterance-at-a-time interface: one Synthesize call produces one playable
// [audio.Clip]. The speech queue plays clips itself so playback can be
// aborted between poll intervals; a backend that insists on doing its own
// playback (macOS `say`) additionally implements [Direct] and the queue
// drives it through Speak instead.
//
// Availability is probed separately from synthesis so the fallback chain can
// skip a dead backend without paying a synthesis timeout. Implementations
// must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/parleyio/parley/pkg/audio"
)

// ErrUnavailable is returned by Available when the backend cannot currently
// serve requests (binary missing, server unreachable, no API key).
var ErrUnavailable = errors.New("tts backend unavailable")

// Request is one utterance to synthesise.
type Request struct {
	// Text is the utterance text. Never empty; the speech queue validates
	// before enqueueing.
	Text string

	// Voice is a backend-specific voice identifier. Empty selects the
	// backend's default voice.
	Voice string

	// Speed is the playback rate multiplier in [0.5, 2.0]. 1.0 is normal.
	Speed float64
}

// Backend is the abstraction over any synthesis engine.
type Backend interface {
	// Name returns the backend identifier used in config, logs and metrics
	// (e.g. "piper", "openai").
	Name() string

	// Available reports whether the backend can currently synthesise.
	// Returns nil when healthy, or an error (wrapping [ErrUnavailable])
	// describing why not. Implementations should answer quickly; callers
	// cache the result.
	Available(ctx context.Context) error

	// Synthesize converts one utterance to a playable clip. Honors ctx
	// cancellation by killing any subprocess or in-flight request.
	Synthesize(ctx context.Context, req Request) (*audio.Clip, error)
}

// Direct is implemented by backends that play through their own output path
// instead of returning PCM. Speak blocks until the utterance has been spoken
// or ctx is cancelled; cancellation must stop audible output promptly.
type Direct interface {
	Speak(ctx context.Context, req Request) error
}
