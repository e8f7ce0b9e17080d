// Package mock provides a test double for the vad.Detector interface.
//
// Use Detector to script per-frame decisions:
//
//	d := &mock.Detector{Decisions: []bool{true, true, true, false}}
//	got, _ := d.IsSpeech(frame)
//
// Once the scripted decisions are exhausted, Default is returned.
package mock

import (
	"sync"

	"github.com/parleyio/parley/pkg/provider/vad"
)

// Detector is a mock implementation of vad.Detector.
type Detector struct {
	mu sync.Mutex

	// Decisions is the scripted sequence of IsSpeech results, consumed one
	// per call.
	Decisions []bool

	// Default is returned once Decisions is exhausted.
	Default bool

	// Err, if non-nil, is returned from every IsSpeech call.
	Err error

	// Frames records a copy of every frame passed to IsSpeech.
	Frames [][]float32

	// ResetCalls counts invocations of Reset.
	ResetCalls int

	next   int
	closed bool
}

var _ vad.Detector = (*Detector)(nil)

// IsSpeech records the frame and returns the next scripted decision.
func (d *Detector) IsSpeech(samples []float32) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, vad.ErrClosed
	}
	cp := make([]float32, len(samples))
	copy(cp, samples)
	d.Frames = append(d.Frames, cp)
	if d.Err != nil {
		return false, d.Err
	}
	if d.next < len(d.Decisions) {
		decision := d.Decisions[d.next]
		d.next++
		return decision, nil
	}
	return d.Default, nil
}

// Reset records the call.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResetCalls++
}

// Close marks the detector closed.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
