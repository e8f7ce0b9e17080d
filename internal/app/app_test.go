package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parleyio/parley/internal/app"
	"github.com/parleyio/parley/internal/config"
	"github.com/parleyio/parley/internal/coord"
	"github.com/parleyio/parley/pkg/audio"
	audiomock "github.com/parleyio/parley/pkg/audio/mock"
	sttmock "github.com/parleyio/parley/pkg/provider/stt/mock"
	"github.com/parleyio/parley/pkg/provider/tts"
	ttsmock "github.com/parleyio/parley/pkg/provider/tts/mock"
	vadmock "github.com/parleyio/parley/pkg/provider/vad/mock"
)

func testEngines() *app.Engines {
	return &app.Engines{
		Backends: []tts.Backend{&ttsmock.Backend{BackendName: "primary"}},
		STT:      &sttmock.Engine{},
		VAD:      &vadmock.Detector{},
		Capture:  audiomock.NewCapture(16000),
		Player:   &audiomock.Player{},
	}
}

func TestNew_DuplexWiresBothHalves(t *testing.T) {
	cfg := &config.Config{Mode: config.ModeDuplex}

	a, err := app.New(cfg, testEngines(), "test", app.WithStore(coord.NewMemory()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Queue() == nil {
		t.Error("duplex mode should build the speech queue")
	}
	if a.Controller() == nil {
		t.Error("duplex mode should build the capture controller")
	}
}

func TestNew_SpeakModeSkipsListener(t *testing.T) {
	cfg := &config.Config{Mode: config.ModeSpeak}
	engines := testEngines()
	engines.STT = nil
	engines.VAD = nil
	engines.Capture = nil

	a, err := app.New(cfg, engines, "test", app.WithStore(coord.NewMemory()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Queue() == nil {
		t.Error("speak mode should build the speech queue")
	}
	if a.Controller() != nil {
		t.Error("speak mode should not build the capture controller")
	}
}

func TestNew_ListenModeSkipsSpeaker(t *testing.T) {
	cfg := &config.Config{Mode: config.ModeListen}
	engines := testEngines()
	engines.Backends = nil
	engines.Player = nil

	a, err := app.New(cfg, engines, "test", app.WithStore(coord.NewMemory()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Queue() != nil {
		t.Error("listen mode should not build the speech queue")
	}
	if a.Controller() == nil {
		t.Error("listen mode should build the capture controller")
	}
}

func TestNew_SpeakModeRequiresBackend(t *testing.T) {
	cfg := &config.Config{Mode: config.ModeSpeak}
	engines := testEngines()
	engines.Backends = nil

	_, err := app.New(cfg, engines, "test", app.WithStore(coord.NewMemory()))
	if err == nil {
		t.Fatal("expected error for speak mode without backends")
	}
}

func TestNew_ListenModeRequiresEngine(t *testing.T) {
	cfg := &config.Config{Mode: config.ModeListen}
	engines := testEngines()
	engines.STT = nil

	_, err := app.New(cfg, engines, "test", app.WithStore(coord.NewMemory()))
	if err == nil {
		t.Fatal("expected error for listen mode without an stt engine")
	}
}

func TestNew_FileStoreInSplitMode(t *testing.T) {
	cfg := &config.Config{
		Mode:         config.ModeSpeak,
		Coordination: config.CoordinationConfig{Dir: t.TempDir()},
	}
	engines := testEngines()
	engines.STT = nil
	engines.VAD = nil
	engines.Capture = nil

	a, err := app.New(cfg, engines, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a.Shutdown(context.Background())
}

func TestNew_OpensTranscriptLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	cfg := &config.Config{
		Mode:       config.ModeListen,
		Transcript: config.TranscriptConfig{Path: path},
	}
	engines := testEngines()
	engines.Backends = nil
	engines.Player = nil

	a, err := app.New(cfg, engines, "test", app.WithStore(coord.NewMemory()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown(context.Background())

	if _, err := os.Stat(path); err != nil {
		t.Errorf("transcript log should exist: %v", err)
	}
}

func TestReadyz_ReportsCaptureDevice(t *testing.T) {
	cfg := &config.Config{
		Mode:   config.ModeListen,
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0"},
	}
	engines := testEngines()
	engines.Backends = nil
	engines.Player = nil
	capture := audiomock.NewCapture(16000)
	capture.ProbeErr = audio.ErrDeviceUnavailable
	engines.Capture = capture

	a, err := app.New(cfg, engines, "test", app.WithStore(coord.NewMemory()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown(context.Background())

	h := a.Handler()
	if h == nil {
		t.Fatal("a listen address should build the observability handler")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with an unavailable device = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rec.Body.String(), "audio") {
		t.Errorf("readyz body should report the audio check, got %q", rec.Body.String())
	}

	capture.ProbeErr = nil
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz with a healthy device = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	cfg := &config.Config{Mode: config.ModeDuplex}

	a, err := app.New(cfg, testEngines(), "test", app.WithStore(coord.NewMemory()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("first shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("second shutdown: %v", err)
	}
}
