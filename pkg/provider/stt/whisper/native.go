// This file contains the native Engine implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/parleyio/parley/pkg/provider/stt"
	"github.com/parleyio/parley/pkg/types"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Compile-time assertion that Native satisfies stt.Engine.
var _ stt.Engine = (*Native)(nil)

// Native implements stt.Engine using the whisper.cpp Go bindings (CGO),
// eliminating HTTP overhead entirely. The model is loaded once at startup
// and shared across transcriptions; each Transcribe call creates its own
// whisper context because contexts are not thread-safe.
type Native struct {
	mu       sync.Mutex
	model    whisperlib.Model
	language string
	closed   bool
}

// NativeOption is a functional option for configuring a Native engine.
type NativeOption func(*Native)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// NewNative creates a Native engine, loading the whisper.cpp model from the
// given file path. The caller must call Close when the engine is no longer
// needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	n := &Native{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Name implements stt.Engine.
func (n *Native) Name() string { return "whisper" }

// Transcribe runs whisper.cpp inference on the recording.
func (n *Native) Transcribe(ctx context.Context, samples []float32) (types.Transcription, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcription{}, err
	}
	if len(samples) == 0 {
		return types.Transcription{}, fmt.Errorf("whisper: %w", stt.ErrNoSpeech)
	}

	n.mu.Lock()
	closed := n.closed
	model := n.model
	n.mu.Unlock()
	if closed {
		return types.Transcription{}, errors.New("whisper: engine closed")
	}

	wctx, err := model.NewContext()
	if err != nil {
		return types.Transcription{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(n.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", n.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return types.Transcription{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Transcription{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	text := strings.Join(parts, " ")
	if text == "" {
		return types.Transcription{}, fmt.Errorf("whisper: %w", stt.ErrNoSpeech)
	}

	return types.Transcription{
		Text:          text,
		Language:      n.language,
		AudioDuration: time.Duration(len(samples)) * time.Second / defaultSampleRate,
		CreatedAt:     time.Now(),
	}, nil
}

// Close releases the whisper model.
func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	if n.model != nil {
		return n.model.Close()
	}
	return nil
}
