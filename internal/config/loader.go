package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidEngineNames lists known engine names per kind. Used by [Validate] to
// warn about unrecognised names without rejecting third-party registrations.
var ValidEngineNames = map[string][]string{
	"tts": {"piper", "say", "openai", "mock"},
	"stt": {"whisper", "whisper-server", "deepgram", "openai", "mock"},
	"vad": {"webrtc", "energy", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found; soft problems are
// logged as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Mode != "" && !cfg.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("mode %q is invalid; valid values: duplex, speak, listen", cfg.Mode))
	}

	// Speech queue defaults.
	if cfg.TTS.DefaultSpeed != 0 && (cfg.TTS.DefaultSpeed < 0.5 || cfg.TTS.DefaultSpeed > 2.0) {
		errs = append(errs, fmt.Errorf("tts.default_speed %.2f is out of range [0.5, 2.0]", cfg.TTS.DefaultSpeed))
	}
	if cfg.TTS.StopPollMs < 0 {
		errs = append(errs, fmt.Errorf("tts.stop_poll_ms must not be negative"))
	}
	speaks := cfg.Mode == "" || cfg.Mode == ModeDuplex || cfg.Mode == ModeSpeak
	if speaks && len(cfg.TTS.Backends) == 0 {
		slog.Warn("no tts backends configured; speak tools will fail until one is added")
	}
	seen := make(map[string]int, len(cfg.TTS.Backends))
	for i, b := range cfg.TTS.Backends {
		prefix := fmt.Sprintf("tts.backends[%d]", i)
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[b.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of tts.backends[%d]", prefix, b.Name, prev))
		}
		seen[b.Name] = i
		validateEngineName("tts", b.Name)
	}

	// Capture side.
	listens := cfg.Mode == "" || cfg.Mode == ModeDuplex || cfg.Mode == ModeListen
	if listens && len(cfg.STT.Chain()) == 0 {
		slog.Warn("no stt engine configured; listening tools will fail until one is added")
	}
	if len(cfg.STT.Engines) > 0 && cfg.STT.Engine.Name != "" {
		slog.Warn("stt.engine is ignored because stt.engines is set", "engine", cfg.STT.Engine.Name)
	}
	seenSTT := make(map[string]int, len(cfg.STT.Engines))
	for i, e := range cfg.STT.Engines {
		prefix := fmt.Sprintf("stt.engines[%d]", i)
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seenSTT[e.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of stt.engines[%d]", prefix, e.Name, prev))
		}
		seenSTT[e.Name] = i
		validateEngineName("stt", e.Name)
	}
	validateEngineName("stt", cfg.STT.Engine.Name)
	validateEngineName("vad", cfg.VAD.Engine.Name)
	if cfg.VAD.MinSpeechFrames < 0 {
		errs = append(errs, fmt.Errorf("vad.min_speech_frames must not be negative"))
	}
	if cfg.Capture.SilenceTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("capture.silence_timeout_ms must not be negative"))
	}

	// Audio device.
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must not be negative"))
	}

	// Coordination.
	switch cfg.Coordination.Store {
	case "", "memory", "file":
	default:
		errs = append(errs, fmt.Errorf("coordination.store %q is invalid; valid values: memory, file", cfg.Coordination.Store))
	}
	if cfg.Mode == ModeSpeak || cfg.Mode == ModeListen {
		if cfg.Coordination.Store == "memory" {
			slog.Warn("memory coordination store in a split-process mode; the sibling process will not see stop signals",
				"mode", cfg.Mode)
		}
	}

	return errors.Join(errs...)
}

// validateEngineName logs a warning if name is non-empty and not found in the
// [ValidEngineNames] list for the given kind.
func validateEngineName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidEngineNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown engine name, may be a typo or third-party registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
