// Package mock provides a test double for the stt.Engine interface.
//
// Use Engine to script transcription results and inspect the audio that
// reached the backend:
//
//	e := &mock.Engine{Result: types.Transcription{Text: "hello"}}
//	got, _ := e.Transcribe(ctx, samples)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/parleyio/parley/pkg/provider/stt"
	"github.com/parleyio/parley/pkg/types"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Samples is a copy of the audio passed to Transcribe.
	Samples []float32
}

// Engine is a mock implementation of stt.Engine.
type Engine struct {
	mu sync.Mutex

	// EngineName is returned by Name. Defaults to "mock".
	EngineName string

	// Result is returned by Transcribe when Err is nil.
	Result types.Transcription

	// Err, if non-nil, is returned from Transcribe.
	Err error

	// Delay, if set, makes Transcribe block for the given duration or until
	// the context is cancelled.
	Delay time.Duration

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	// CloseCalls counts invocations of Close.
	CloseCalls int
}

var _ stt.Engine = (*Engine)(nil)

// Name implements stt.Engine.
func (e *Engine) Name() string {
	if e.EngineName == "" {
		return "mock"
	}
	return e.EngineName
}

// Transcribe records the call and returns the configured result.
func (e *Engine) Transcribe(ctx context.Context, samples []float32) (types.Transcription, error) {
	cp := make([]float32, len(samples))
	copy(cp, samples)

	e.mu.Lock()
	e.TranscribeCalls = append(e.TranscribeCalls, TranscribeCall{Ctx: ctx, Samples: cp})
	result, err, delay := e.Result, e.Err, e.Delay
	e.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.Transcription{}, ctx.Err()
		}
	}
	if err != nil {
		return types.Transcription{}, err
	}
	return result, nil
}

// Calls returns a snapshot of the recorded Transcribe calls.
func (e *Engine) Calls() []TranscribeCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TranscribeCall, len(e.TranscribeCalls))
	copy(out, e.TranscribeCalls)
	return out
}

// Close records the call.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCalls++
	return nil
}
