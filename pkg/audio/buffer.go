package audio

import (
	"sync"
	"time"
)

// CaptureBuffer accumulates the frames of one capture session. Frames are
// appended in arrival order and taken out atomically: Take returns the whole
// buffer and empties it in one critical section, so a session's audio is
// never handed off partially.
type CaptureBuffer struct {
	mu      sync.Mutex
	samples []float32
	started time.Time
}

// NewCaptureBuffer creates a buffer pre-sized for about ten seconds of
// 16 kHz audio.
func NewCaptureBuffer() *CaptureBuffer {
	return &CaptureBuffer{
		samples: make([]float32, 0, 16000*10),
	}
}

// Append adds samples to the buffer. The first append records the session
// start time.
func (b *CaptureBuffer) Append(samples []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.samples) == 0 {
		b.started = time.Now()
	}
	b.samples = append(b.samples, samples...)
}

// Take returns all buffered samples and empties the buffer atomically.
func (b *CaptureBuffer) Take() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.samples
	b.samples = make([]float32, 0, cap(out))
	b.started = time.Time{}
	return out
}

// Len returns the number of buffered samples.
func (b *CaptureBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Duration returns the buffered audio length at the given sample rate.
func (b *CaptureBuffer) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Duration(len(b.samples)) * time.Second / time.Duration(sampleRate)
}

// StartedAt returns when the first sample of the current session arrived, or
// the zero time if the buffer is empty.
func (b *CaptureBuffer) StartedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// Clear discards all buffered samples.
func (b *CaptureBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
	b.started = time.Time{}
}

// TrimTo drops the oldest samples so at most maxSamples remain. Used as a
// safety cap so a stuck session cannot grow without bound.
func (b *CaptureBuffer) TrimTo(maxSamples int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.samples) > maxSamples {
		b.samples = b.samples[len(b.samples)-maxSamples:]
	}
}
