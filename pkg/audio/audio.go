// Package audio defines the device abstractions and PCM utilities for
// Parley's capture and playback paths.
//
// The two primary abstractions are:
//
//   - [CaptureDevice] — an open microphone producing fixed-size float32
//     frames on a channel.
//   - [Player] — a speaker sink that plays one complete [Clip] at a time,
//     honouring context cancellation for immediate abort.
//
// Concrete implementations live in subpackages (audio/portaudio for real
// hardware, audio/mock for tests). The interfaces are intentionally narrow:
// the speech queue is the only writer to the output device and the capture
// controller is the only reader of the input device, so neither interface
// exposes any sharing or mixing machinery.
package audio

import (
	"context"
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned when the underlying audio hardware cannot
// be opened. It is surfaced to callers as a failed status, never a panic.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// Frame is one fixed-size block of captured audio.
type Frame struct {
	// Samples holds mono float32 PCM in [-1.0, 1.0].
	Samples []float32

	// Timestamp is the wall-clock capture time of the frame. Silence timers
	// are measured against this, not against delivery time, so channel
	// jitter does not bias end-of-speech detection.
	Timestamp time.Time
}

// Clip is a complete playable audio buffer.
type Clip struct {
	// PCM is 16-bit signed little-endian audio data.
	PCM []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels is the channel count. Synthesis backends produce mono.
	Channels int
}

// Duration returns the play time of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	ch := c.Channels
	if ch <= 0 {
		ch = 1
	}
	samples := len(c.PCM) / 2 / ch
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// CaptureDevice is an exclusive handle on the audio input device.
//
// Start opens the hardware stream and begins delivering frames; Stop closes
// the stream and releases the microphone (some platforms surface an in-use
// indicator tied to the open handle, so Stop must fully release it).
// Implementations must be safe for concurrent use.
type CaptureDevice interface {
	// Start begins capture. Frames are delivered on the Frames channel until
	// ctx is cancelled or Stop is called. Returns [ErrDeviceUnavailable]
	// (wrapped) if the hardware cannot be opened, or an error if capture is
	// already running.
	Start(ctx context.Context) error

	// Stop ends capture and releases the device. Idempotent.
	Stop() error

	// Frames returns the channel delivering captured frames. The channel is
	// never closed by Stop; a paused device simply stops sending.
	Frames() <-chan Frame

	// SampleRate returns the capture sample rate in Hz.
	SampleRate() int

	// Close releases all resources. The device cannot be restarted after Close.
	Close() error
}

// Prober is implemented by capture devices that can report availability
// without holding the hardware open. Health checks use it to surface a
// missing or busy microphone before a recording is attempted.
type Prober interface {
	// Probe reports whether the device could be opened right now. Returns
	// [ErrDeviceUnavailable] (wrapped) when it could not.
	Probe(ctx context.Context) error
}

// Player is an exclusive handle on the audio output device.
//
// Play blocks until the clip has been played to completion or ctx is
// cancelled; cancellation must abort within one output buffer's duration.
// At most one Play call runs at a time; a second concurrent call returns an
// error rather than overlapping audio.
type Player interface {
	Play(ctx context.Context, clip Clip) error
}
