// Package webrtc implements the vad.Detector interface on top of the WebRTC
// voice activity detector (github.com/maxhawkins/go-webrtcvad).
//
// The WebRTC detector is the default backend: it is robust against
// background noise and cheap enough to run on every capture frame. It only
// accepts 10, 20 or 30 ms frames at 8, 16, 32 or 48 kHz; larger frames are
// split into 10 ms sub-frames and classified as speech if any sub-frame is.
package webrtc

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/parleyio/parley/pkg/audio"
	"github.com/parleyio/parley/pkg/provider/vad"
)

// Detector wraps a WebRTC VAD instance.
type Detector struct {
	mu         sync.Mutex
	inner      *webrtcvad.VAD
	sampleRate int
	closed     bool
}

var _ vad.Detector = (*Detector)(nil)

// New creates a WebRTC detector. cfg.Mode selects the aggressiveness
// (0 least to 3 most aggressive, clamped); cfg.SampleRate must be one of
// 8000, 16000, 32000 or 48000.
func New(cfg vad.Config) (*Detector, error) {
	switch cfg.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("webrtc vad: unsupported sample rate %d", cfg.SampleRate)
	}

	inner, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc vad: create: %w", err)
	}

	mode := cfg.Mode
	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}
	if err := inner.SetMode(mode); err != nil {
		return nil, fmt.Errorf("webrtc vad: set mode %d: %w", mode, err)
	}

	return &Detector{inner: inner, sampleRate: cfg.SampleRate}, nil
}

// IsSpeech classifies the frame. Frames longer than 10 ms are evaluated in
// 10 ms sub-frames; any speech sub-frame makes the whole frame speech. A
// frame shorter than 10 ms is zero-padded.
func (d *Detector) IsSpeech(samples []float32) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, vad.ErrClosed
	}

	subFrame := d.sampleRate / 100
	int16s := audio.Float32ToInt16(samples)
	if len(int16s) < subFrame {
		padded := make([]int16, subFrame)
		copy(padded, int16s)
		int16s = padded
	}

	for off := 0; off+subFrame <= len(int16s); off += subFrame {
		chunk := int16s[off : off+subFrame]
		raw := make([]byte, len(chunk)*2)
		for i, s := range chunk {
			raw[i*2] = byte(s)
			raw[i*2+1] = byte(s >> 8)
		}
		active, err := d.inner.Process(d.sampleRate, raw)
		if err != nil {
			return false, fmt.Errorf("webrtc vad: process: %w", err)
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}

// Reset is a no-op; the WebRTC detector keeps no cross-frame state worth
// clearing.
func (d *Detector) Reset() {}

// Close marks the detector unusable.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
