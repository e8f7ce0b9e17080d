// Package stt defines the Engine interface for speech-to-text backends.
//
// An Engine wraps a transcription service (local whisper.cpp via CGO, a
// whisper.cpp server, Deepgram, or the OpenAI API) behind a batch interface:
// the capture controller hands over one complete recording and receives one
// transcription. Capture in Parley is utterance-oriented — recording stops
// before transcription starts — so a streaming session abstraction would add
// connection management without saving any latency the user can perceive.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/parleyio/parley/pkg/types"
)

// ErrNoSpeech is returned when the recording contains no transcribable
// speech. Callers surface this as an empty result rather than a failure.
var ErrNoSpeech = errors.New("stt: no speech in audio")

// Engine is the abstraction over any transcription backend.
type Engine interface {
	// Name returns the engine identifier used in config, logs and metrics
	// (e.g. "whisper", "deepgram").
	Name() string

	// Transcribe converts one complete recording to text. samples is mono
	// float32 PCM at 16 kHz. Returns [ErrNoSpeech] (wrapped) when the audio
	// contains nothing to transcribe, or another error on backend failure.
	Transcribe(ctx context.Context, samples []float32) (types.Transcription, error)

	// Close releases backend resources (loaded models, connections).
	// Calling Close more than once is safe.
	Close() error
}
