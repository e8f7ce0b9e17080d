package config_test

import (
	"testing"

	"github.com/parleyio/parley/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		VAD: config.VADConfig{
			Engine:          config.EngineEntry{Name: "webrtc", Options: map[string]any{"aggressiveness": 2}},
			MinSpeechFrames: 3,
		},
		Capture: config.CaptureConfig{SilenceTimeoutMs: 2000},
	}
	d := config.Diff(cfg, cfg)
	if d.Any() {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.VADChanged || d.CaptureChanged || d.SpeechChanged {
		t.Errorf("unrelated sections flagged: %+v", d)
	}
}

func TestDiff_VADOptionChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		VAD: config.VADConfig{
			Engine: config.EngineEntry{Name: "webrtc", Options: map[string]any{"aggressiveness": 1}},
		},
	}
	new := &config.Config{
		VAD: config.VADConfig{
			Engine: config.EngineEntry{Name: "webrtc", Options: map[string]any{"aggressiveness": 3}},
		},
	}

	d := config.Diff(old, new)
	if !d.VADChanged {
		t.Error("expected VADChanged=true for changed engine option")
	}
}

func TestDiff_MinSpeechFramesChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{VAD: config.VADConfig{MinSpeechFrames: 3}}
	new := &config.Config{VAD: config.VADConfig{MinSpeechFrames: 5}}

	d := config.Diff(old, new)
	if !d.VADChanged {
		t.Error("expected VADChanged=true for changed min_speech_frames")
	}
}

func TestDiff_CaptureChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Capture: config.CaptureConfig{SilenceTimeoutMs: 2000, AutoResume: true}}
	new := &config.Config{Capture: config.CaptureConfig{SilenceTimeoutMs: 1500, AutoResume: true}}

	d := config.Diff(old, new)
	if !d.CaptureChanged {
		t.Error("expected CaptureChanged=true")
	}
	if d.VADChanged || d.SpeechChanged {
		t.Errorf("unrelated sections flagged: %+v", d)
	}
}

func TestDiff_SpeechDefaultsChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{TTS: config.TTSConfig{DefaultVoice: "amy", DefaultSpeed: 1.0}}
	new := &config.Config{TTS: config.TTSConfig{DefaultVoice: "amy", DefaultSpeed: 1.2}}

	d := config.Diff(old, new)
	if !d.SpeechChanged {
		t.Error("expected SpeechChanged=true for changed default_speed")
	}
}

func TestDiff_BackendChainChangeIsNotHotReloadable(t *testing.T) {
	t.Parallel()
	// Swapping the fallback chain requires a restart, so it must not show
	// up in the diff.
	old := &config.Config{
		TTS: config.TTSConfig{Backends: []config.EngineEntry{{Name: "piper"}}},
	}
	new := &config.Config{
		TTS: config.TTSConfig{Backends: []config.EngineEntry{{Name: "openai"}}},
	}

	d := config.Diff(old, new)
	if d.Any() {
		t.Errorf("backend chain change should not be tracked, got %+v", d)
	}
}
