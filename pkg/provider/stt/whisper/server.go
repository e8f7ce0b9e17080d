// Package whisper provides whisper.cpp-backed STT engines in two flavours:
// Native links the model in-process via CGO, Server talks to a running
// whisper.cpp server (POST /inference) over HTTP.
//
// The server flavour keeps the binary CGO-free and lets several processes
// share one loaded model:
//
//	e, err := whisper.NewServer("http://localhost:8080",
//	    whisper.WithServerLanguage("en"),
//	)
//	result, err := e.Transcribe(ctx, samples)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/parleyio/parley/pkg/audio"
	"github.com/parleyio/parley/pkg/provider/stt"
	"github.com/parleyio/parley/pkg/types"
)

// Compile-time assertion that Server satisfies stt.Engine.
var _ stt.Engine = (*Server)(nil)

// Server implements stt.Engine against a whisper.cpp server instance.
type Server struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

// ServerOption is a functional option for configuring a Server engine.
type ServerOption func(*Server)

// WithServerLanguage sets the BCP-47 language code for transcription.
// Defaults to "en".
func WithServerLanguage(lang string) ServerOption {
	return func(s *Server) { s.language = lang }
}

// WithServerTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithServerTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.httpClient.Timeout = d }
}

// NewServer creates a Server engine talking to the whisper.cpp server at
// serverURL (e.g. "http://localhost:8080"). serverURL must be non-empty.
func NewServer(serverURL string, opts ...ServerOption) (*Server, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	s := &Server{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Name implements stt.Engine.
func (s *Server) Name() string { return "whisper-server" }

// inferenceResponse is the JSON body returned by POST /inference.
type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Transcribe encodes the recording as WAV and POSTs it to the /inference
// endpoint as multipart/form-data.
func (s *Server) Transcribe(ctx context.Context, samples []float32) (types.Transcription, error) {
	if len(samples) == 0 {
		return types.Transcription{}, fmt.Errorf("whisper: %w", stt.ErrNoSpeech)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return types.Transcription{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio.EncodeWAV(samples, defaultSampleRate)); err != nil {
		return types.Transcription{}, fmt.Errorf("whisper: write wav: %w", err)
	}
	if err := mw.WriteField("language", s.language); err != nil {
		return types.Transcription{}, fmt.Errorf("whisper: write field: %w", err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return types.Transcription{}, fmt.Errorf("whisper: write field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return types.Transcription{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := s.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return types.Transcription{}, fmt.Errorf("whisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return types.Transcription{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transcription{}, fmt.Errorf("whisper: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.Transcription{}, fmt.Errorf("whisper: server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return types.Transcription{}, fmt.Errorf("whisper: decode response: %w", err)
	}
	if parsed.Error != "" {
		return types.Transcription{}, fmt.Errorf("whisper: server error: %s", parsed.Error)
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return types.Transcription{}, fmt.Errorf("whisper: %w", stt.ErrNoSpeech)
	}

	return types.Transcription{
		Text:          text,
		Language:      s.language,
		AudioDuration: time.Duration(len(samples)) * time.Second / defaultSampleRate,
		CreatedAt:     time.Now(),
	}, nil
}

// Close is a no-op; the server owns the model.
func (s *Server) Close() error { return nil }
