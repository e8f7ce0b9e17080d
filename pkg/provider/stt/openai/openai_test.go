package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parleyio/parley/pkg/provider/stt"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestTranscribe(t *testing.T) {
	var gotPath string
	var gotWAVLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		data, _ := io.ReadAll(f)
		gotWAVLen = len(data)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "transcribed text"})
	}))
	defer srv.Close()

	e, err := New("test-key", WithBaseURL(srv.URL), WithLanguage("en"))
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	result, err := e.Transcribe(context.Background(), make([]float32, 16000))
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if result.Text != "transcribed text" {
		t.Errorf("unexpected text %q", result.Text)
	}
	if gotPath != "/audio/transcriptions" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotWAVLen != 16000*2+44 {
		t.Errorf("unexpected wav upload size %d", gotWAVLen)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	e, err := New("test-key")
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if _, err := e.Transcribe(context.Background(), nil); !errors.Is(err, stt.ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech, got %v", err)
	}
}
