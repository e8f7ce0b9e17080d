package tts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parleyio/parley/pkg/audio"
)

// probeBackend counts Available calls and returns a configurable error.
type probeBackend struct {
	mu    sync.Mutex
	name  string
	err   error
	calls int
}

func (b *probeBackend) Name() string { return b.name }

func (b *probeBackend) Available(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.err
}

func (b *probeBackend) Synthesize(ctx context.Context, req Request) (*audio.Clip, error) {
	return &audio.Clip{SampleRate: 16000, Channels: 1}, nil
}

func (b *probeBackend) probeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestHealthCacheCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	b := &probeBackend{name: "a"}
	c := NewHealthCache(time.Minute)

	for range 5 {
		if err := c.Check(ctx, b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := b.probeCount(); got != 1 {
		t.Fatalf("expected 1 probe within TTL, got %d", got)
	}
}

func TestHealthCacheCachesFailures(t *testing.T) {
	ctx := context.Background()
	b := &probeBackend{name: "a", err: ErrUnavailable}
	c := NewHealthCache(time.Minute)

	for range 3 {
		if err := c.Check(ctx, b); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	}
	if got := b.probeCount(); got != 1 {
		t.Fatalf("failed result should be cached too, got %d probes", got)
	}
}

func TestHealthCacheExpiry(t *testing.T) {
	ctx := context.Background()
	b := &probeBackend{name: "a"}
	c := NewHealthCache(time.Minute)

	clock := time.Unix(0, 0)
	c.now = func() time.Time { return clock }

	c.Check(ctx, b)
	clock = clock.Add(61 * time.Second)
	c.Check(ctx, b)

	if got := b.probeCount(); got != 2 {
		t.Fatalf("expected re-probe after TTL, got %d probes", got)
	}
}

func TestHealthCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	b := &probeBackend{name: "a"}
	c := NewHealthCache(time.Minute)

	c.Check(ctx, b)
	c.Invalidate("a")
	c.Check(ctx, b)

	if got := b.probeCount(); got != 2 {
		t.Fatalf("expected probe after invalidate, got %d", got)
	}
}
