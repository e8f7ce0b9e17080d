// Package mock provides a test double for the tts.Backend interface.
//
// Use Backend to script synthesis results and verify which requests reach
// the backend:
//
//	b := &mock.Backend{
//	    BackendName: "primary",
//	    SynthesizeClip: &audio.Clip{PCM: []byte{0, 0}, SampleRate: 16000, Channels: 1},
//	}
//	clip, _ := b.Synthesize(ctx, tts.Request{Text: "hi"})
package mock

import (
	"context"
	"sync"

	"github.com/parleyio/parley/pkg/audio"
	"github.com/parleyio/parley/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Req is the request passed to Synthesize.
	Req tts.Request
}

// Backend is a mock implementation of tts.Backend.
type Backend struct {
	mu sync.Mutex

	// BackendName is returned by Name. Defaults to "mock".
	BackendName string

	// AvailableErr, if non-nil, is returned from Available.
	AvailableErr error

	// SynthesizeClip is returned by Synthesize when SynthesizeErr is nil.
	// When nil, a short silent clip is returned.
	SynthesizeClip *audio.Clip

	// SynthesizeErr, if non-nil, is returned from Synthesize.
	SynthesizeErr error

	// SynthesizeErrs, if non-empty, is consumed one error per call before
	// SynthesizeErr is consulted. A nil element means success.
	SynthesizeErrs []error

	// AvailableCalls counts invocations of Available.
	AvailableCalls int

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

var _ tts.Backend = (*Backend)(nil)

// Name implements tts.Backend.
func (b *Backend) Name() string {
	if b.BackendName == "" {
		return "mock"
	}
	return b.BackendName
}

// Available records the call and returns AvailableErr.
func (b *Backend) Available(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.AvailableCalls++
	return b.AvailableErr
}

// Synthesize records the call and returns the configured result.
func (b *Backend) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	b.mu.Lock()
	b.SynthesizeCalls = append(b.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Req: req})
	var err error
	if len(b.SynthesizeErrs) > 0 {
		err = b.SynthesizeErrs[0]
		b.SynthesizeErrs = b.SynthesizeErrs[1:]
	} else {
		err = b.SynthesizeErr
	}
	clip := b.SynthesizeClip
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if clip != nil {
		return clip, nil
	}
	return &audio.Clip{
		PCM:        make([]byte, 320),
		SampleRate: 16000,
		Channels:   1,
	}, nil
}

// Calls returns a snapshot of the recorded synthesis calls.
func (b *Backend) Calls() []SynthesizeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SynthesizeCall, len(b.SynthesizeCalls))
	copy(out, b.SynthesizeCalls)
	return out
}

// Requests returns the texts of all recorded synthesis requests.
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.SynthesizeCalls))
	for i, c := range b.SynthesizeCalls {
		out[i] = c.Req.Text
	}
	return out
}
