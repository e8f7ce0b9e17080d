package resilience

import (
	"context"

	"github.com/parleyio/parley/internal/observe"
	"github.com/parleyio/parley/pkg/audio"
	"github.com/parleyio/parley/pkg/provider/tts"
)

// SpeechResult is the outcome of one fallback synthesis attempt.
type SpeechResult struct {
	// Clip is the synthesised audio, nil when Direct is true.
	Clip *audio.Clip

	// Backend is the name of the backend that served the utterance.
	Backend string

	// Direct reports that the backend played the utterance through its own
	// output path; there is nothing left for the caller to play.
	Direct bool
}

// SpeechFallback runs one utterance through a chain of TTS backends. Each
// backend has its own circuit breaker, and availability is checked through a
// shared [tts.HealthCache] before synthesis so a dead backend costs one
// cached probe, not a synthesis timeout. A backend that fails synthesis has
// its health entry invalidated so the next utterance re-probes it.
type SpeechFallback struct {
	group  *FallbackGroup[tts.Backend]
	health *tts.HealthCache
}

// NewSpeechFallback creates a [SpeechFallback] with primary as the preferred
// backend. health may be nil, in which case every attempt probes directly.
func NewSpeechFallback(primary tts.Backend, cfg FallbackConfig, health *tts.HealthCache) *SpeechFallback {
	return &SpeechFallback{
		group:  NewFallbackGroup(primary, primary.Name(), cfg),
		health: health,
	}
}

// AddFallback registers an additional backend at the end of the chain.
func (f *SpeechFallback) AddFallback(b tts.Backend) {
	f.group.AddFallback(b.Name(), b)
}

// WithMetrics counts failovers between backends under the "tts" chain.
func (f *SpeechFallback) WithMetrics(m *observe.Metrics) {
	f.group.WithMetrics("tts", m)
}

// Backends returns the backend names in try order.
func (f *SpeechFallback) Backends() []string {
	return f.group.Names()
}

// BreakerStates returns the circuit breaker state per backend.
func (f *SpeechFallback) BreakerStates() map[string]State {
	return f.group.BreakerStates()
}

// Utter synthesises (or, for [tts.Direct] backends, speaks) one utterance
// using the first healthy backend. The whole attempt honors ctx: cancelling
// it aborts an in-flight subprocess or request and is not retried on the
// next backend.
func (f *SpeechFallback) Utter(ctx context.Context, req tts.Request) (SpeechResult, error) {
	return ExecuteWithResultCtx(ctx, f.group, func(b tts.Backend) (SpeechResult, error) {
		if err := f.checkHealth(ctx, b); err != nil {
			return SpeechResult{}, err
		}

		if direct, ok := b.(tts.Direct); ok {
			if err := direct.Speak(ctx, req); err != nil {
				f.invalidate(b)
				return SpeechResult{}, err
			}
			return SpeechResult{Backend: b.Name(), Direct: true}, nil
		}

		clip, err := b.Synthesize(ctx, req)
		if err != nil {
			f.invalidate(b)
			return SpeechResult{}, err
		}
		return SpeechResult{Clip: clip, Backend: b.Name()}, nil
	})
}

func (f *SpeechFallback) checkHealth(ctx context.Context, b tts.Backend) error {
	if f.health == nil {
		return b.Available(ctx)
	}
	return f.health.Check(ctx, b)
}

func (f *SpeechFallback) invalidate(b tts.Backend) {
	if f.health != nil {
		f.health.Invalidate(b.Name())
	}
}
