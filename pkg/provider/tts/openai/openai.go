// Package openai provides a TTS backend using the OpenAI speech API. It
// implements the tts.Backend interface.
//
// Synthesis requests PCM output, which the API delivers as 24 kHz mono
// 16-bit samples, so clips can be played without a decode step.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/parleyio/parley/pkg/audio"
	"github.com/parleyio/parley/pkg/provider/tts"
)

// pcmSampleRate is the fixed rate of the API's PCM response format.
const pcmSampleRate = 24000

const defaultVoice = "alloy"

// Compile-time interface assertion.
var _ tts.Backend = (*Backend)(nil)

// config holds optional configuration for the backend.
type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Backend.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel sets the speech model (e.g. "tts-1", "tts-1-hd").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Backend implements tts.Backend using the OpenAI speech endpoint.
type Backend struct {
	client oai.Client
	model  string
}

// New constructs an OpenAI TTS backend. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}

	cfg := &config{model: string(oai.SpeechModelTTS1)}
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

	return &Backend{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
	}, nil
}

// Name implements tts.Backend.
func (b *Backend) Name() string { return "openai" }

// Available reports healthy when the configuration is usable. Network
// reachability is not probed here; a failed synthesis invalidates the
// cached health entry instead.
func (b *Backend) Available(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Synthesize requests one utterance as PCM and wraps it in a clip.
func (b *Backend) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	voice := req.Voice
	if voice == "" {
		voice = defaultVoice
	}

	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(b.model),
		Input:          req.Text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if req.Speed > 0 && req.Speed != 1.0 {
		params.Speed = oai.Float(req.Speed)
	}

	resp, err := b.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read response: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("openai tts: empty audio response")
	}

	return &audio.Clip{
		PCM:        pcm,
		SampleRate: pcmSampleRate,
		Channels:   1,
	}, nil
}
