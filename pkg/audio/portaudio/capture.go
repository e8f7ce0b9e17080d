// Package portaudio implements the audio device interfaces on real hardware
// via PortAudio (github.com/gordonklaus/portaudio).
//
// The package provides [Capture] for microphone input and [Player] for
// speaker output. Both hold the device exclusively: Parley's single-writer
// rule means exactly one Capture and one Player exist per process, owned by
// the capture controller and the speech queue respectively.
package portaudio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/parleyio/parley/pkg/audio"
)

const (
	// DefaultSampleRate is 16 kHz — the rate transcription engines expect.
	DefaultSampleRate = 16000

	// DefaultFrameSize is the capture block size in samples (32 ms at 16 kHz).
	DefaultFrameSize = 512
)

// CaptureConfig holds the parameters for opening the input device.
type CaptureConfig struct {
	// SampleRate in Hz. Default 16000.
	SampleRate int

	// FrameSize is the number of samples per delivered frame. Default 512.
	FrameSize int

	// DeviceName selects a specific input device by name. Empty or "default"
	// uses the system default input.
	DeviceName string
}

// inputStream is the subset of *pa.Stream the capture path uses, split out
// so the read/stop ordering can be exercised without hardware.
type inputStream interface {
	Start() error
	Stop() error
	Close() error
	Read() error
}

// Capture reads mono float32 frames from the microphone.
type Capture struct {
	mu         sync.RWMutex
	stream     inputStream
	loopDone   chan struct{}
	sampleRate int
	frameSize  int
	deviceName string
	running    bool
	frames     chan audio.Frame
}

// Compile-time interface assertions.
var (
	_ audio.CaptureDevice = (*Capture)(nil)
	_ audio.Prober        = (*Capture)(nil)
)

// NewCapture initialises PortAudio and returns a ready-to-start capture
// device. Call Close to release PortAudio when the device is no longer needed.
func NewCapture(cfg CaptureConfig) (*Capture, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %v", audio.ErrDeviceUnavailable, err)
	}
	return &Capture{
		sampleRate: cfg.SampleRate,
		frameSize:  cfg.FrameSize,
		deviceName: cfg.DeviceName,
		frames:     make(chan audio.Frame, 64),
	}, nil
}

// Start opens the input stream and begins delivering frames until ctx is
// cancelled or Stop is called.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("capture already running")
	}

	buffer := make([]float32, c.frameSize)
	stream, err := c.openStream(buffer)
	if err != nil {
		return fmt.Errorf("%w: open input stream: %v", audio.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: start input stream: %v", audio.ErrDeviceUnavailable, err)
	}

	c.stream = stream
	c.loopDone = make(chan struct{})
	c.running = true
	go c.readLoop(ctx, stream, buffer, c.loopDone)
	return nil
}

// openStream opens either the named device or the system default input.
func (c *Capture) openStream(buffer []float32) (*pa.Stream, error) {
	if c.deviceName != "" && c.deviceName != "default" {
		dev, err := findInputDevice(c.deviceName)
		if err != nil {
			slog.Warn("input device not found, falling back to default",
				"device", c.deviceName, "err", err)
		} else {
			params := pa.StreamParameters{
				Input: pa.StreamDeviceParameters{
					Device:   dev,
					Channels: 1,
					Latency:  dev.DefaultLowInputLatency,
				},
				SampleRate:      float64(c.sampleRate),
				FramesPerBuffer: c.frameSize,
			}
			return pa.OpenStream(params, buffer)
		}
	}
	return pa.OpenDefaultStream(1, 0, float64(c.sampleRate), c.frameSize, buffer)
}

// findInputDevice locates a PortAudio input device by name.
func findInputDevice(name string) (*pa.DeviceInfo, error) {
	devices, err := pa.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("input device %q not found", name)
}

// readLoop blocks on the hardware stream and forwards frames. Frames are
// dropped when the consumer falls behind rather than blocking the device.
// Closes done on exit; Stop waits on it before closing the stream so Read
// never races a Close.
func (c *Capture) readLoop(ctx context.Context, stream inputStream, buffer []float32, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		running := c.running
		c.mu.RUnlock()
		if !running {
			return
		}

		if err := stream.Read(); err != nil {
			c.mu.RLock()
			stillRunning := c.running
			c.mu.RUnlock()
			if !stillRunning {
				return
			}
			continue
		}

		samples := make([]float32, len(buffer))
		copy(samples, buffer)

		select {
		case c.frames <- audio.Frame{Samples: samples, Timestamp: time.Now()}:
		default:
		}
	}
}

// Stop ends capture and closes the hardware stream, releasing the
// microphone handle. Idempotent. The stream is closed only after the read
// loop has exited, so a blocked Read is first unblocked by stream.Stop.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	stream, done := c.stream, c.loopDone
	c.stream = nil
	c.mu.Unlock()

	if stream == nil {
		return nil
	}
	if err := stream.Stop(); err != nil {
		slog.Debug("input stream stop failed", "err", err)
	}
	if done != nil {
		<-done
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("close input stream: %w", err)
	}
	return nil
}

// Probe reports whether the configured input device exists. A running
// capture already holds the device, which counts as available. Satisfies
// [audio.Prober] for health checks.
func (c *Capture) Probe(ctx context.Context) error {
	c.mu.RLock()
	running := c.running
	c.mu.RUnlock()
	if running {
		return nil
	}

	if c.deviceName != "" && c.deviceName != "default" {
		if _, err := findInputDevice(c.deviceName); err != nil {
			return fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
		}
		return nil
	}
	if _, err := pa.DefaultInputDevice(); err != nil {
		return fmt.Errorf("%w: no default input device: %v", audio.ErrDeviceUnavailable, err)
	}
	return nil
}

// Frames returns the capture frame channel.
func (c *Capture) Frames() <-chan audio.Frame {
	return c.frames
}

// SampleRate returns the configured capture rate in Hz.
func (c *Capture) SampleRate() int {
	return c.sampleRate
}

// Close stops capture and terminates this handle's PortAudio reference.
func (c *Capture) Close() error {
	if err := c.Stop(); err != nil {
		return err
	}
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("terminate portaudio: %w", err)
	}
	return nil
}

// InputDevices lists the available capture devices.
func InputDevices() ([]DeviceInfo, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %v", audio.ErrDeviceUnavailable, err)
	}
	defer pa.Terminate()

	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	defaultInput, _ := pa.DefaultInputDevice()
	var out []DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels == 0 {
			continue
		}
		out = append(out, DeviceInfo{
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         defaultInput != nil && dev.Name == defaultInput.Name,
		})
	}
	return out, nil
}

// DeviceInfo describes one audio input device.
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}
