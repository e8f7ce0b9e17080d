package resilience

import (
	"context"

	"github.com/parleyio/parley/internal/observe"
	"github.com/parleyio/parley/pkg/provider/stt"
	"github.com/parleyio/parley/pkg/types"
)

// TranscribeFallback implements [stt.Engine] with automatic failover across
// multiple transcription engines. Each engine has its own circuit breaker.
type TranscribeFallback struct {
	group *FallbackGroup[stt.Engine]
}

// Compile-time interface assertion.
var _ stt.Engine = (*TranscribeFallback)(nil)

// NewTranscribeFallback creates a [TranscribeFallback] with primary as the
// preferred engine.
func NewTranscribeFallback(primary stt.Engine, cfg FallbackConfig) *TranscribeFallback {
	return &TranscribeFallback{
		group: NewFallbackGroup(primary, primary.Name(), cfg),
	}
}

// AddFallback registers an additional engine at the end of the chain.
func (f *TranscribeFallback) AddFallback(e stt.Engine) {
	f.group.AddFallback(e.Name(), e)
}

// WithMetrics counts failovers between engines under the "stt" chain.
func (f *TranscribeFallback) WithMetrics(m *observe.Metrics) {
	f.group.WithMetrics("stt", m)
}

// Name implements stt.Engine.
func (f *TranscribeFallback) Name() string { return "fallback" }

// Engines returns the engine names in try order.
func (f *TranscribeFallback) Engines() []string {
	return f.group.Names()
}

// BreakerStates returns the circuit breaker state per engine.
func (f *TranscribeFallback) BreakerStates() map[string]State {
	return f.group.BreakerStates()
}

// Transcribe runs the recording through the first healthy engine.
func (f *TranscribeFallback) Transcribe(ctx context.Context, samples []float32) (types.Transcription, error) {
	return ExecuteWithResultCtx(ctx, f.group, func(e stt.Engine) (types.Transcription, error) {
		return e.Transcribe(ctx, samples)
	})
}

// Close closes every engine in the chain, returning the first error.
func (f *TranscribeFallback) Close() error {
	var firstErr error
	for i := range f.group.entries {
		if err := f.group.entries[i].value.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
