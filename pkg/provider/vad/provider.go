// Package vad defines the Detector interface for voice activity detection
// backends and the Tracker that turns per-frame detections into
// speech-start and end-of-speech edges.
//
// A Detector is a stateless-looking frame classifier: given one audio frame
// it answers "does this frame contain speech". Implementations live in
// subpackages (vad/webrtc wrapping the WebRTC detector, vad/energy as a
// pure-Go RMS fallback, vad/mock for tests). Detection is synchronous by
// design so it can sit directly in the capture loop without adding latency.
//
// The Tracker layers session state on top: debouncing so a single noisy
// frame cannot trigger capture, and a silence timeout measured against frame
// timestamps so end-of-speech fires a fixed interval after the last speech
// frame regardless of delivery jitter.
package vad

import "errors"

// ErrClosed is returned by a Detector after Close.
var ErrClosed = errors.New("vad: detector closed")

// Detector classifies single audio frames as speech or non-speech.
//
// A Detector is used by exactly one capture loop at a time and need not be
// safe for concurrent use unless documented otherwise.
type Detector interface {
	// IsSpeech reports whether the frame contains speech. The frame is mono
	// float32 PCM at the rate the detector was configured with. Returns an
	// error if the frame size is unsupported or the backend fails.
	IsSpeech(samples []float32) (bool, error)

	// Reset clears any internal smoothing state without closing the detector.
	Reset()

	// Close releases backend resources. Calling Close more than once is safe.
	Close() error
}

// Config holds the parameters common to all detector backends.
type Config struct {
	// SampleRate is the audio sample rate in Hz. WebRTC VAD accepts 8000,
	// 16000, 32000 or 48000.
	SampleRate int

	// Mode is the WebRTC aggressiveness (0 least to 3 most aggressive).
	// Ignored by backends without a mode knob.
	Mode int
}
