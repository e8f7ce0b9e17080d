// Package energy implements a pure-Go vad.Detector based on RMS energy with
// hysteresis. It needs no cgo and serves as the fallback backend when the
// WebRTC detector is unavailable, at the cost of more false positives in
// noisy environments.
package energy

import (
	"math"

	"github.com/parleyio/parley/pkg/provider/vad"
)

// Detector classifies frames by RMS level with separate enter and exit
// thresholds so the decision does not flicker at the boundary.
type Detector struct {
	speechThreshold  float64
	silenceThreshold float64
	inSpeech         bool
	closed           bool
}

var _ vad.Detector = (*Detector)(nil)

// Option configures a Detector.
type Option func(*Detector)

// WithThresholds overrides the enter (speech) and exit (silence) RMS levels.
// speech must be >= silence for the hysteresis to work.
func WithThresholds(speech, silence float64) Option {
	return func(d *Detector) {
		d.speechThreshold = speech
		d.silenceThreshold = silence
	}
}

// New creates an energy detector tuned for 16 kHz microphone input.
func New(opts ...Option) *Detector {
	d := &Detector{
		speechThreshold:  0.015,
		silenceThreshold: 0.008,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsSpeech reports whether the frame's RMS level crosses the active
// threshold. While in speech the lower silence threshold applies, so a
// brief dip does not end the decision.
func (d *Detector) IsSpeech(samples []float32) (bool, error) {
	if d.closed {
		return false, vad.ErrClosed
	}
	level := rms(samples)
	if d.inSpeech {
		if level < d.silenceThreshold {
			d.inSpeech = false
		}
	} else {
		if level >= d.speechThreshold {
			d.inSpeech = true
		}
	}
	return d.inSpeech, nil
}

// Reset clears the hysteresis state.
func (d *Detector) Reset() {
	d.inSpeech = false
}

// Close marks the detector unusable.
func (d *Detector) Close() error {
	d.closed = true
	return nil
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
