package portaudio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parleyio/parley/pkg/audio"
)

// fakeStream blocks in Read until Stop is called, like a hardware stream
// waiting on samples, and records whether Close overlapped a Read.
type fakeStream struct {
	mu            sync.Mutex
	stopped       chan struct{}
	closed        bool
	reading       bool
	closedMidRead bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{stopped: make(chan struct{})}
}

func (f *fakeStream) Start() error { return nil }

func (f *fakeStream) Stop() error {
	close(f.stopped)
	return nil
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.reading {
		f.closedMidRead = true
	}
	return nil
}

func (f *fakeStream) Read() error {
	f.mu.Lock()
	f.reading = true
	if f.closed {
		f.closedMidRead = true
	}
	f.mu.Unlock()

	<-f.stopped
	// The hardware takes a moment to unwind a pending read.
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.reading = false
	f.mu.Unlock()
	return errors.New("stream stopped")
}

func TestStop_WaitsForReadLoop(t *testing.T) {
	fs := newFakeStream()
	c := &Capture{
		sampleRate: DefaultSampleRate,
		frameSize:  DefaultFrameSize,
		frames:     make(chan audio.Frame, 4),
		running:    true,
		stream:     fs,
		loopDone:   make(chan struct{}),
	}
	go c.readLoop(context.Background(), fs, make([]float32, c.frameSize), c.loopDone)

	// Let the loop reach the blocking Read before stopping.
	time.Sleep(10 * time.Millisecond)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	fs.mu.Lock()
	closedMidRead, closed := fs.closedMidRead, fs.closed
	fs.mu.Unlock()
	if closedMidRead {
		t.Error("stream was closed while a Read was still in flight")
	}
	if !closed {
		t.Error("stream was not closed")
	}

	if err := c.Stop(); err != nil {
		t.Errorf("second Stop() error: %v", err)
	}
}
