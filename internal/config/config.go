// Package config provides the configuration schema, loader, engine registry,
// and polling file watcher for the Parley voice session daemon.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Mode selects which pipeline halves this process runs.
type Mode string

const (
	// ModeDuplex runs the speaker and listener in one process with an
	// in-memory coordination store.
	ModeDuplex Mode = "duplex"

	// ModeSpeak runs only the speech queue; coordination goes through the
	// file store so a sibling listen process can participate.
	ModeSpeak Mode = "speak"

	// ModeListen runs only the capture controller.
	ModeListen Mode = "listen"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	return m == ModeDuplex || m == ModeSpeak || m == ModeListen
}

// Config is the root configuration structure for Parley.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Mode         Mode               `yaml:"mode"`
	Audio        AudioConfig        `yaml:"audio"`
	VAD          VADConfig          `yaml:"vad"`
	TTS          TTSConfig          `yaml:"tts"`
	STT          STTConfig          `yaml:"stt"`
	Capture      CaptureConfig      `yaml:"capture"`
	Coordination CoordinationConfig `yaml:"coordination"`
	Transcript   TranscriptConfig   `yaml:"transcript"`
}

// ServerConfig holds the observability endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for /healthz, /readyz, and /metrics
	// (e.g., ":8080"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds capture device settings.
type AudioConfig struct {
	// SampleRate is the capture rate in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is the number of samples per capture frame. Default 512.
	FrameSize int `yaml:"frame_size"`

	// InputDevice selects the capture device by substring match of its
	// name. Empty uses the system default.
	InputDevice string `yaml:"input_device"`
}

// VADConfig selects and tunes the voice activity detector.
type VADConfig struct {
	// Engine selects the registered detector (e.g., "webrtc", "energy").
	Engine EngineEntry `yaml:"engine"`

	// MinSpeechFrames is how many consecutive speech frames confirm speech
	// onset. Default 3.
	MinSpeechFrames int `yaml:"min_speech_frames"`
}

// TTSConfig configures the synthesis fallback chain.
type TTSConfig struct {
	// Backends is the fallback chain in priority order. The first entry is
	// the primary.
	Backends []EngineEntry `yaml:"backends"`

	// DefaultVoice is used for utterances without an explicit voice.
	DefaultVoice string `yaml:"default_voice"`

	// DefaultSpeed is used for utterances without an explicit speed.
	// Must lie in [0.5, 2.0] when set; 0 means 1.0.
	DefaultSpeed float64 `yaml:"default_speed"`

	// HealthTTLSec is how long a backend availability probe is cached, in
	// seconds. Default 30.
	HealthTTLSec int `yaml:"health_ttl_sec"`

	// StopPollMs is the stop-signal polling interval during playback, in
	// milliseconds. Default 50.
	StopPollMs int `yaml:"stop_poll_ms"`
}

// STTConfig selects the transcription engine, or a fallback chain of them.
type STTConfig struct {
	// Engine selects the registered engine (e.g., "whisper",
	// "whisper-server", "deepgram", "openai").
	Engine EngineEntry `yaml:"engine"`

	// Engines is the transcription fallback chain in priority order; the
	// first entry is the primary. When set it takes precedence over Engine.
	Engines []EngineEntry `yaml:"engines"`
}

// Chain returns the configured engine entries in try order: Engines when
// set, otherwise the single Engine (or nothing when neither is configured).
func (s STTConfig) Chain() []EngineEntry {
	if len(s.Engines) > 0 {
		return s.Engines
	}
	if s.Engine.Name != "" {
		return []EngineEntry{s.Engine}
	}
	return nil
}

// CaptureConfig tunes the capture controller defaults. Tool calls may
// override them per session.
type CaptureConfig struct {
	// SilenceTimeoutMs ends a recording after this much continuous silence.
	// Default 2000.
	SilenceTimeoutMs int `yaml:"silence_timeout_ms"`

	// EchoDelayMs is the post-playback window during which frames are
	// discarded. Default 400.
	EchoDelayMs int `yaml:"echo_delay_ms"`

	// AutoResume re-arms after each transcription.
	AutoResume bool `yaml:"auto_resume"`

	// Manual disables VAD-driven recording in favour of the hotkey toggle.
	Manual bool `yaml:"manual"`

	// Hotkey is the toggle key, combined with ctrl+shift (a letter or
	// "space"). Empty disables the hotkey.
	Hotkey string `yaml:"hotkey"`

	// MaxRecordingSec caps a single recording. Default 120.
	MaxRecordingSec int `yaml:"max_recording_sec"`
}

// CoordinationConfig selects the coordination store.
type CoordinationConfig struct {
	// Store is "memory" or "file". Empty picks memory for duplex mode and
	// file otherwise.
	Store string `yaml:"store"`

	// Dir is the marker directory for the file store. Empty uses the
	// default under the system temp directory.
	Dir string `yaml:"dir"`
}

// TranscriptConfig configures the transcript log.
type TranscriptConfig struct {
	// Path is the JSONL log file. Empty disables transcript logging.
	Path string `yaml:"path"`
}

// EngineEntry is the common configuration block shared by all pluggable
// engines and backends. The Name field looks up the constructor in the
// [Registry].
type EngineEntry struct {
	// Name selects the registered implementation (e.g., "piper",
	// "deepgram", "webrtc").
	Name string `yaml:"name"`

	// APIKey is the authentication key for cloud engines, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the engine's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the engine: an OpenAI model name, a
	// Deepgram model, or a local model file path.
	Model string `yaml:"model"`

	// Language is the BCP-47 language hint for transcription engines.
	Language string `yaml:"language"`

	// Options holds engine-specific values not covered by the standard
	// fields (e.g., piper binary path, webrtc aggressiveness).
	Options map[string]any `yaml:"options"`
}

// StringOption returns the named option as a string, or def when absent or
// not a string.
func (e EngineEntry) StringOption(key, def string) string {
	if v, ok := e.Options[key].(string); ok {
		return v
	}
	return def
}

// IntOption returns the named option as an int, or def when absent. YAML
// decodes integers as int, so only that case is handled.
func (e EngineEntry) IntOption(key string, def int) int {
	if v, ok := e.Options[key].(int); ok {
		return v
	}
	return def
}

// FloatOption returns the named option as a float64, accepting ints too.
func (e EngineEntry) FloatOption(key string, def float64) float64 {
	switch v := e.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}
