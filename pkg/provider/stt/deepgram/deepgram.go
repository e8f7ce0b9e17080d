// Package deepgram provides a Deepgram-backed STT engine using the Deepgram
// streaming WebSocket API. It implements the stt.Engine interface.
//
// Parley's capture is utterance-oriented, so the engine uses the streaming
// API in one-shot mode: each Transcribe call dials the socket, streams the
// recording as binary frames, sends CloseStream, collects the final results
// and hangs up. Interim results are disabled.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/parleyio/parley/pkg/audio"
	"github.com/parleyio/parley/pkg/provider/stt"
	"github.com/parleyio/parley/pkg/types"
)

const (
	defaultEndpoint   = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// audioChunkBytes is the binary frame size used when streaming the
	// recording to Deepgram.
	audioChunkBytes = 8192
)

// Compile-time assertion that Engine satisfies stt.Engine.
var _ stt.Engine = (*Engine)(nil)

// Option is a functional option for configuring the Deepgram Engine.
type Option func(*Engine)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(e *Engine) {
		e.language = language
	}
}

// WithEndpoint overrides the Deepgram WebSocket endpoint. Used in tests.
func WithEndpoint(endpoint string) Option {
	return func(e *Engine) {
		e.endpoint = endpoint
	}
}

// Engine implements stt.Engine backed by the Deepgram streaming API.
type Engine struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New creates a new Deepgram Engine. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	e := &Engine{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: defaultEndpoint,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Name implements stt.Engine.
func (e *Engine) Name() string { return "deepgram" }

// buildURL constructs the streaming endpoint URL.
func (e *Engine) buildURL() (string, error) {
	u, err := url.Parse(e.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", e.model)
	q.Set("language", e.language)
	q.Set("punctuate", "true")
	q.Set("interim_results", "false")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(defaultSampleRate))
	q.Set("channels", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Transcribe streams the recording over one WebSocket connection and
// returns the combined final transcript.
func (e *Engine) Transcribe(ctx context.Context, samples []float32) (types.Transcription, error) {
	if len(samples) == 0 {
		return types.Transcription{}, fmt.Errorf("deepgram: %w", stt.ErrNoSpeech)
	}

	wsURL, err := e.buildURL()
	if err != nil {
		return types.Transcription{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+e.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return types.Transcription{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	pcm := audio.Float32ToPCM(samples)
	for off := 0; off < len(pcm); off += audioChunkBytes {
		end := min(off+audioChunkBytes, len(pcm))
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[off:end]); err != nil {
			return types.Transcription{}, fmt.Errorf("deepgram: send audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return types.Transcription{}, fmt.Errorf("deepgram: close stream: %w", err)
	}

	var parts []string
	var confidence float64
	var results int
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			// Deepgram closes the socket after the final result.
			break
		}
		var parsed deepgramResponse
		if err := json.Unmarshal(msg, &parsed); err != nil {
			continue
		}
		if parsed.Type != "" && parsed.Type != "Results" {
			continue
		}
		if !parsed.IsFinal || len(parsed.Channel.Alternatives) == 0 {
			continue
		}
		alt := parsed.Channel.Alternatives[0]
		if text := strings.TrimSpace(alt.Transcript); text != "" {
			parts = append(parts, text)
			confidence += alt.Confidence
			results++
		}
	}

	if len(parts) == 0 {
		return types.Transcription{}, fmt.Errorf("deepgram: %w", stt.ErrNoSpeech)
	}
	if results > 0 {
		confidence /= float64(results)
	}

	return types.Transcription{
		Text:          strings.Join(parts, " "),
		Language:      e.language,
		Confidence:    confidence,
		AudioDuration: time.Duration(len(samples)) * time.Second / defaultSampleRate,
		CreatedAt:     time.Now(),
	}, nil
}

// Close is a no-op; connections are per-call.
func (e *Engine) Close() error { return nil }
