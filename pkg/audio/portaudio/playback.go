package portaudio

import (
	"context"
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/parleyio/parley/pkg/audio"
)

// playbackChunk is the output block size in frames. Small enough that a
// cancelled Play returns within a few tens of milliseconds.
const playbackChunk = 1024

// Player writes PCM clips to the default output device.
type Player struct {
	mu      sync.Mutex
	playing bool
}

var _ audio.Player = (*Player)(nil)

// NewPlayer initialises PortAudio for output. Call Close when done.
func NewPlayer() (*Player, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %v", audio.ErrDeviceUnavailable, err)
	}
	return &Player{}, nil
}

// Play blocks until the clip has been written to the device, ctx is
// cancelled, or an error occurs. At most one Play runs at a time.
func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return fmt.Errorf("playback already in progress")
	}
	p.playing = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	if clip.SampleRate <= 0 || clip.Channels <= 0 {
		return fmt.Errorf("invalid clip: rate=%d channels=%d", clip.SampleRate, clip.Channels)
	}
	samples := audio.PCMToFloat32(clip.PCM)
	if len(samples) == 0 {
		return nil
	}

	buffer := make([]float32, playbackChunk*clip.Channels)
	stream, err := pa.OpenDefaultStream(0, clip.Channels, float64(clip.SampleRate), playbackChunk, buffer)
	if err != nil {
		return fmt.Errorf("%w: open output stream: %v", audio.ErrDeviceUnavailable, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("%w: start output stream: %v", audio.ErrDeviceUnavailable, err)
	}
	defer stream.Stop()

	for offset := 0; offset < len(samples); offset += len(buffer) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buffer, samples[offset:])
		for i := n; i < len(buffer); i++ {
			buffer[i] = 0
		}
		if err := stream.Write(); err != nil {
			// Underflow is recoverable, anything else is not.
			if err == pa.OutputUnderflowed {
				continue
			}
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}

// Close releases this handle's PortAudio reference.
func (p *Player) Close() error {
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("terminate portaudio: %w", err)
	}
	return nil
}
