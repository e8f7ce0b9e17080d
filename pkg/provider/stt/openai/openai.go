// Package openai provides an STT engine using the OpenAI transcription API.
// It implements the stt.Engine interface.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/parleyio/parley/pkg/audio"
	"github.com/parleyio/parley/pkg/provider/stt"
	"github.com/parleyio/parley/pkg/types"
)

const sampleRate = 16000

// Compile-time assertion that Engine satisfies stt.Engine.
var _ stt.Engine = (*Engine)(nil)

// config holds optional configuration for the engine.
type config struct {
	baseURL  string
	model    string
	language string
	timeout  time.Duration
}

// Option is a functional option for Engine.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel sets the transcription model (e.g. "whisper-1").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithLanguage sets the ISO-639-1 language hint.
func WithLanguage(language string) Option {
	return func(c *config) {
		c.language = language
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Engine implements stt.Engine using the OpenAI transcription endpoint.
type Engine struct {
	client   oai.Client
	model    string
	language string
}

// New constructs an OpenAI STT engine. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}

	cfg := &config{model: string(oai.AudioModelWhisper1)}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Engine{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
	}, nil
}

// Name implements stt.Engine.
func (e *Engine) Name() string { return "openai" }

// Transcribe uploads the recording as WAV and returns the transcript.
func (e *Engine) Transcribe(ctx context.Context, samples []float32) (types.Transcription, error) {
	if len(samples) == 0 {
		return types.Transcription{}, fmt.Errorf("openai stt: %w", stt.ErrNoSpeech)
	}

	wav := audio.EncodeWAV(samples, sampleRate)
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(e.model),
	}
	if e.language != "" {
		params.Language = oai.String(e.language)
	}

	resp, err := e.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return types.Transcription{}, fmt.Errorf("openai stt: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return types.Transcription{}, fmt.Errorf("openai stt: %w", stt.ErrNoSpeech)
	}

	return types.Transcription{
		Text:          text,
		Language:      e.language,
		AudioDuration: time.Duration(len(samples)) * time.Second / sampleRate,
		CreatedAt:     time.Now(),
	}, nil
}

// Close is a no-op; the client is stateless.
func (e *Engine) Close() error { return nil }
