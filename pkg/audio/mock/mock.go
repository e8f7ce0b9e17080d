// Package mock provides test doubles for the audio device interfaces.
//
// Use Capture to feed scripted frames to consumers and Player to verify
// which clips were played and to simulate slow or failing playback.
//
// Example:
//
//	c := mock.NewCapture(16000)
//	c.Push([]float32{0.1, 0.2})
//	p := &mock.Player{}
//	_ = p.Play(ctx, clip)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/parleyio/parley/pkg/audio"
)

// Capture is a mock implementation of audio.CaptureDevice. Frames are
// injected with Push rather than read from hardware.
type Capture struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned from Start.
	StartErr error

	// StopErr, if non-nil, is returned from Stop.
	StopErr error

	// ProbeErr, if non-nil, is returned from Probe.
	ProbeErr error

	// StartCalls counts invocations of Start.
	StartCalls int

	// StopCalls counts invocations of Stop.
	StopCalls int

	rate    int
	frames  chan audio.Frame
	started bool
}

var _ audio.CaptureDevice = (*Capture)(nil)

// NewCapture returns a mock capture device reporting the given sample rate.
func NewCapture(sampleRate int) *Capture {
	return &Capture{
		rate:   sampleRate,
		frames: make(chan audio.Frame, 256),
	}
}

// Push injects one frame, stamped with the current time.
func (c *Capture) Push(samples []float32) {
	c.PushAt(samples, time.Now())
}

// PushAt injects one frame with an explicit timestamp.
func (c *Capture) PushAt(samples []float32, ts time.Time) {
	cp := make([]float32, len(samples))
	copy(cp, samples)
	c.frames <- audio.Frame{Samples: cp, Timestamp: ts}
}

// Start records the call and returns StartErr.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StartCalls++
	if c.StartErr != nil {
		return c.StartErr
	}
	c.started = true
	return nil
}

// Stop records the call and returns StopErr.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StopCalls++
	c.started = false
	return c.StopErr
}

// Probe returns ProbeErr.
func (c *Capture) Probe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ProbeErr
}

// Started reports whether the device is between Start and Stop.
func (c *Capture) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Frames returns the injected frame channel.
func (c *Capture) Frames() <-chan audio.Frame {
	return c.frames
}

// SampleRate returns the rate given to NewCapture.
func (c *Capture) SampleRate() int {
	return c.rate
}

// Close is a no-op.
func (c *Capture) Close() error {
	return nil
}

// PlayCall records a single invocation of Play.
type PlayCall struct {
	// Ctx is the context passed to Play.
	Ctx context.Context
	// Clip is the clip passed to Play.
	Clip audio.Clip
}

// Player is a mock implementation of audio.Player.
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned from Play.
	PlayErr error

	// PlayDelay, if set, makes Play block for the given duration or until
	// the context is cancelled, whichever happens first.
	PlayDelay time.Duration

	// PlayCalls records every call to Play in order.
	PlayCalls []PlayCall
}

var _ audio.Player = (*Player)(nil)

// Play records the call, then honors PlayDelay and PlayErr.
func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	p.mu.Lock()
	p.PlayCalls = append(p.PlayCalls, PlayCall{Ctx: ctx, Clip: clip})
	delay, err := p.PlayDelay, p.PlayErr
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// Calls returns a snapshot of the recorded Play calls.
func (p *Player) Calls() []PlayCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlayCall, len(p.PlayCalls))
	copy(out, p.PlayCalls)
	return out
}
