// Command parley is the Parley voice session daemon. It serves speech and
// capture tools over MCP stdio; logs and the optional observability endpoint
// stay off stdout so the protocol stream is never corrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parleyio/parley/internal/app"
	"github.com/parleyio/parley/internal/config"
	"github.com/parleyio/parley/internal/observe"
	"github.com/parleyio/parley/internal/resilience"
	"github.com/parleyio/parley/pkg/audio/portaudio"
	"github.com/parleyio/parley/pkg/provider/stt"
	"github.com/parleyio/parley/pkg/provider/stt/deepgram"
	sttmock "github.com/parleyio/parley/pkg/provider/stt/mock"
	sttopenai "github.com/parleyio/parley/pkg/provider/stt/openai"
	"github.com/parleyio/parley/pkg/provider/stt/whisper"
	"github.com/parleyio/parley/pkg/provider/tts"
	ttsmock "github.com/parleyio/parley/pkg/provider/tts/mock"
	ttsopenai "github.com/parleyio/parley/pkg/provider/tts/openai"
	"github.com/parleyio/parley/pkg/provider/tts/piper"
	"github.com/parleyio/parley/pkg/provider/tts/say"
	"github.com/parleyio/parley/pkg/provider/vad"
	"github.com/parleyio/parley/pkg/provider/vad/energy"
	vadmock "github.com/parleyio/parley/pkg/provider/vad/mock"
	"github.com/parleyio/parley/pkg/provider/vad/webrtc"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	modeFlag := flag.String("mode", "", "override the configured mode: duplex, speak or listen")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "parley: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		}
		return 1
	}
	if *modeFlag != "" {
		m := config.Mode(*modeFlag)
		if !m.IsValid() {
			fmt.Fprintf(os.Stderr, "parley: invalid -mode %q\n", *modeFlag)
			return 1
		}
		cfg.Mode = m
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so the config watcher can adjust it at
	// runtime. Logs go to stderr; stdout belongs to the MCP transport.
	level := &slog.LevelVar{}
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("parley starting",
		"version", version,
		"config", *configPath,
		"mode", cfg.Mode,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "parley",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "error", err)
		}
	}()

	// ── Engine registry ───────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinEngines(reg, cfg)

	engines, err := buildEngines(cfg, reg)
	if err != nil {
		slog.Error("failed to build engines", "error", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(cfg, engines, version)
	if err != nil {
		slog.Error("failed to initialise application", "error", err)
		return 1
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if !d.Any() {
			slog.Info("config changed; no hot-reloadable fields affected, restart to apply")
			return
		}
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.VADChanged || d.CaptureChanged || d.SpeechChanged {
			slog.Warn("detector or session tuning changed; applies to the next start_listening / speak call after restart")
		}
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("serving MCP tools on stdio")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "error", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Engine wiring ─────────────────────────────────────────────────────────────

// registerBuiltinEngines wires all built-in engine factories into reg. Each
// factory receives a config.EngineEntry and constructs the engine from the
// real implementation packages. The mock engines are registered too so the
// daemon can be exercised without audio hardware or API keys.
func registerBuiltinEngines(reg *config.Registry, cfg *config.Config) {
	sampleRate := cfg.Audio.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("piper", func(entry config.EngineEntry) (tts.Backend, error) {
		binary := entry.StringOption("binary", "piper")
		var opts []piper.Option
		if dir := entry.StringOption("voices_dir", ""); dir != "" {
			opts = append(opts, piper.WithVoicesDir(dir))
		}
		if rate := entry.IntOption("sample_rate", 0); rate > 0 {
			opts = append(opts, piper.WithSampleRate(rate))
		}
		return piper.New(binary, entry.Model, opts...)
	})

	reg.RegisterTTS("say", func(entry config.EngineEntry) (tts.Backend, error) {
		var opts []say.Option
		if voice := entry.StringOption("voice", ""); voice != "" {
			opts = append(opts, say.WithVoice(voice))
		}
		return say.New(opts...), nil
	})

	reg.RegisterTTS("openai", func(entry config.EngineEntry) (tts.Backend, error) {
		var opts []ttsopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(entry.Model))
		}
		return ttsopenai.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("mock", func(entry config.EngineEntry) (tts.Backend, error) {
		return &ttsmock.Backend{BackendName: "mock"}, nil
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.EngineEntry) (stt.Engine, error) {
		var opts []whisper.NativeOption
		if entry.Language != "" {
			opts = append(opts, whisper.WithNativeLanguage(entry.Language))
		}
		return whisper.NewNative(entry.Model, opts...)
	})

	reg.RegisterSTT("whisper-server", func(entry config.EngineEntry) (stt.Engine, error) {
		var opts []whisper.ServerOption
		if entry.Language != "" {
			opts = append(opts, whisper.WithServerLanguage(entry.Language))
		}
		return whisper.NewServer(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.EngineEntry) (stt.Engine, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, deepgram.WithLanguage(entry.Language))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.EngineEntry) (stt.Engine, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, sttopenai.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, sttopenai.WithLanguage(entry.Language))
		}
		return sttopenai.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("mock", func(entry config.EngineEntry) (stt.Engine, error) {
		return &sttmock.Engine{}, nil
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("webrtc", func(entry config.EngineEntry) (vad.Detector, error) {
		return webrtc.New(vad.Config{
			SampleRate: sampleRate,
			Mode:       entry.IntOption("aggressiveness", 2),
		})
	})

	reg.RegisterVAD("energy", func(entry config.EngineEntry) (vad.Detector, error) {
		var opts []energy.Option
		speech := entry.FloatOption("speech_threshold", 0)
		silence := entry.FloatOption("silence_threshold", 0)
		if speech > 0 && silence > 0 {
			opts = append(opts, energy.WithThresholds(speech, silence))
		}
		return energy.New(opts...), nil
	})

	reg.RegisterVAD("mock", func(entry config.EngineEntry) (vad.Detector, error) {
		return &vadmock.Detector{}, nil
	})
}

// buildEngines instantiates the engines the configured mode needs.
func buildEngines(cfg *config.Config, reg *config.Registry) (*app.Engines, error) {
	engines := &app.Engines{}

	speaks := cfg.Mode == "" || cfg.Mode == config.ModeDuplex || cfg.Mode == config.ModeSpeak
	listens := cfg.Mode == "" || cfg.Mode == config.ModeDuplex || cfg.Mode == config.ModeListen

	if speaks {
		for _, entry := range cfg.TTS.Backends {
			b, err := reg.CreateTTS(entry)
			if err != nil {
				return nil, fmt.Errorf("create tts backend %q: %w", entry.Name, err)
			}
			engines.Backends = append(engines.Backends, b)
			slog.Info("engine created", "kind", "tts", "name", entry.Name)
		}

		player, err := portaudio.NewPlayer()
		if err != nil {
			return nil, fmt.Errorf("open playback device: %w", err)
		}
		engines.Player = player
	}

	if listens {
		if entries := cfg.STT.Chain(); len(entries) > 0 {
			chain := make([]stt.Engine, 0, len(entries))
			for _, entry := range entries {
				e, err := reg.CreateSTT(entry)
				if err != nil {
					return nil, fmt.Errorf("create stt engine %q: %w", entry.Name, err)
				}
				chain = append(chain, e)
				slog.Info("engine created", "kind", "stt", "name", entry.Name)
			}
			if len(chain) == 1 {
				engines.STT = chain[0]
			} else {
				fb := resilience.NewTranscribeFallback(chain[0], resilience.FallbackConfig{})
				for _, e := range chain[1:] {
					fb.AddFallback(e)
				}
				fb.WithMetrics(observe.DefaultMetrics())
				engines.STT = fb
				slog.Info("stt fallback chain ready", "engines", fb.Engines())
			}
		}

		vadEntry := cfg.VAD.Engine
		if vadEntry.Name == "" {
			// energy needs no native dependencies, so it is the safe default.
			vadEntry.Name = "energy"
		}
		d, err := reg.CreateVAD(vadEntry)
		if err != nil {
			return nil, fmt.Errorf("create vad detector %q: %w", vadEntry.Name, err)
		}
		engines.VAD = d
		slog.Info("engine created", "kind", "vad", "name", vadEntry.Name)

		capture, err := portaudio.NewCapture(portaudio.CaptureConfig{
			SampleRate: cfg.Audio.SampleRate,
			FrameSize:  cfg.Audio.FrameSize,
			DeviceName: cfg.Audio.InputDevice,
		})
		if err != nil {
			return nil, fmt.Errorf("open capture device: %w", err)
		}
		engines.Capture = capture
	}

	return engines, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
