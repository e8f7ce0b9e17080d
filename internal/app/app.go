// Package app wires all Parley subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems according to the configured mode, Run executes the MCP server
// and background loops, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/parleyio/parley/internal/config"
	"github.com/parleyio/parley/internal/coord"
	"github.com/parleyio/parley/internal/health"
	"github.com/parleyio/parley/internal/listener"
	"github.com/parleyio/parley/internal/mcp"
	"github.com/parleyio/parley/internal/observe"
	"github.com/parleyio/parley/internal/resilience"
	"github.com/parleyio/parley/internal/speaker"
	"github.com/parleyio/parley/internal/transcript"
	"github.com/parleyio/parley/pkg/audio"
	"github.com/parleyio/parley/pkg/provider/stt"
	"github.com/parleyio/parley/pkg/provider/tts"
	"github.com/parleyio/parley/pkg/provider/vad"
)

// Engines holds the concrete engine instances the application runs on. Nil
// slots are allowed for halves the configured mode does not use. Populated by
// main.go via the config registry.
type Engines struct {
	// Backends is the synthesis fallback chain in priority order.
	Backends []tts.Backend

	// STT transcribes completed recordings.
	STT stt.Engine

	// VAD detects speech in capture frames.
	VAD vad.Detector

	// Capture is the microphone.
	Capture audio.CaptureDevice

	// Player renders synthesised clips.
	Player audio.Player
}

// App owns all subsystem lifetimes and serves the voice session over MCP.
type App struct {
	cfg     *config.Config
	engines *Engines
	version string

	store   coord.Store
	metrics *observe.Metrics
	chain   *resilience.SpeechFallback
	queue   *speaker.Queue
	ctl     *listener.Controller

	httpSrv *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a coordination store instead of creating one from config.
func WithStore(s coord.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects a metrics handle instead of using the global provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The engines struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles.
func New(cfg *config.Config, engines *Engines, version string, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		engines: engines,
		version: version,
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(); err != nil {
		return nil, fmt.Errorf("app: init coordination store: %w", err)
	}
	if a.speaks() {
		if err := a.initSpeaker(); err != nil {
			return nil, fmt.Errorf("app: init speaker: %w", err)
		}
	}
	if a.listens() {
		if err := a.initListener(); err != nil {
			return nil, fmt.Errorf("app: init listener: %w", err)
		}
	}
	a.initHTTP()

	return a, nil
}

// mode returns the configured mode, defaulting to duplex.
func (a *App) mode() config.Mode {
	if a.cfg.Mode == "" {
		return config.ModeDuplex
	}
	return a.cfg.Mode
}

func (a *App) speaks() bool {
	return a.mode() == config.ModeDuplex || a.mode() == config.ModeSpeak
}

func (a *App) listens() bool {
	return a.mode() == config.ModeDuplex || a.mode() == config.ModeListen
}

// Queue returns the speech queue, or nil in listen mode.
func (a *App) Queue() *speaker.Queue { return a.queue }

// Controller returns the capture controller, or nil in speak mode.
func (a *App) Controller() *listener.Controller { return a.ctl }

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore picks the coordination store. Duplex defaults to the in-memory
// store; split modes default to the file store so both processes see the
// same signals.
func (a *App) initStore() error {
	if a.store != nil {
		return nil // injected
	}

	name := a.cfg.Coordination.Store
	if name == "" {
		if a.mode() == config.ModeDuplex {
			name = "memory"
		} else {
			name = "file"
		}
	}

	switch name {
	case "memory":
		a.store = coord.NewMemory()
	case "file":
		fs, err := coord.NewFile(a.cfg.Coordination.Dir)
		if err != nil {
			return err
		}
		a.store = fs
	default:
		return fmt.Errorf("unknown store %q", name)
	}

	slog.Info("coordination store ready", "store", name)
	return nil
}

// initSpeaker builds the fallback chain and the speech queue.
func (a *App) initSpeaker() error {
	if len(a.engines.Backends) == 0 {
		return fmt.Errorf("at least one tts backend is required in %s mode", a.mode())
	}

	ttl := 30 * time.Second
	if a.cfg.TTS.HealthTTLSec > 0 {
		ttl = time.Duration(a.cfg.TTS.HealthTTLSec) * time.Second
	}
	cache := tts.NewHealthCache(ttl)

	a.chain = resilience.NewSpeechFallback(a.engines.Backends[0], resilience.FallbackConfig{}, cache)
	for _, b := range a.engines.Backends[1:] {
		a.chain.AddFallback(b)
	}
	a.chain.WithMetrics(a.metrics)

	var qopts []speaker.Option
	if a.cfg.TTS.DefaultVoice != "" {
		qopts = append(qopts, speaker.WithDefaultVoice(a.cfg.TTS.DefaultVoice))
	}
	if a.cfg.TTS.DefaultSpeed != 0 {
		qopts = append(qopts, speaker.WithDefaultSpeed(a.cfg.TTS.DefaultSpeed))
	}
	if a.cfg.TTS.StopPollMs > 0 {
		qopts = append(qopts, speaker.WithStopPollInterval(time.Duration(a.cfg.TTS.StopPollMs)*time.Millisecond))
	}
	qopts = append(qopts, speaker.WithMetrics(a.metrics))

	a.queue = speaker.New(a.chain, a.engines.Player, a.store, qopts...)

	for _, b := range a.engines.Backends {
		slog.Info("tts backend registered", "backend", b.Name())
	}
	return nil
}

// initListener builds the capture controller and its transcript sink.
func (a *App) initListener() error {
	if a.engines.STT == nil {
		return fmt.Errorf("an stt engine is required in %s mode", a.mode())
	}
	if a.engines.VAD == nil {
		return fmt.Errorf("a vad detector is required in %s mode", a.mode())
	}
	if a.engines.Capture == nil {
		return fmt.Errorf("a capture device is required in %s mode", a.mode())
	}

	lopts := []listener.Option{listener.WithMetrics(a.metrics)}

	if a.cfg.VAD.MinSpeechFrames > 0 || a.cfg.Capture.SilenceTimeoutMs > 0 {
		lopts = append(lopts, listener.WithTrackerConfig(vad.TrackerConfig{
			MinSpeechFrames: a.cfg.VAD.MinSpeechFrames,
			SilenceTimeout:  time.Duration(a.cfg.Capture.SilenceTimeoutMs) * time.Millisecond,
		}))
	}

	if path := a.cfg.Transcript.Path; path != "" {
		log, err := transcript.Open(path)
		if err != nil {
			return fmt.Errorf("open transcript log: %w", err)
		}
		a.closers = append(a.closers, log.Close)
		lopts = append(lopts, listener.WithSink(log))
		slog.Info("transcript log open", "path", path)
	}

	// In duplex mode an interrupt also sweeps the speech queue, so stale
	// utterances cannot resume after the user barges in.
	if a.queue != nil {
		q := a.queue
		lopts = append(lopts, listener.WithInterruptHook(func() { q.CancelAll() }))
	}

	a.ctl = listener.New(a.engines.Capture, a.engines.VAD, a.engines.STT, a.store, lopts...)
	return nil
}

// initHTTP assembles the observability endpoint when one is configured.
func (a *App) initHTTP() {
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		return
	}

	var checkers []health.Checker
	if a.chain != nil {
		checkers = append(checkers, health.SynthesisChecker(a.chain))
		for _, b := range a.engines.Backends {
			checkers = append(checkers, health.BackendChecker(b))
		}
	}
	if a.engines.STT != nil {
		checkers = append(checkers, health.EngineChecker(a.engines.STT.Name(), func() bool { return false }))
	}
	if a.engines.Capture != nil {
		// Devices that cannot report availability count as healthy.
		probe := func(ctx context.Context) error { return nil }
		if p, ok := a.engines.Capture.(audio.Prober); ok {
			probe = p.Probe
		}
		checkers = append(checkers, health.DeviceChecker(probe))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	a.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Handler returns the observability HTTP handler, or nil when no listen
// address is configured.
func (a *App) Handler() http.Handler {
	if a.httpSrv == nil {
		return nil
	}
	return a.httpSrv.Handler
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves MCP tools on stdio and runs the background loops until ctx is
// cancelled. It returns the first error from any subsystem, or nil on a
// clean shutdown.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.queue != nil {
		g.Go(func() error {
			err := a.queue.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if a.ctl != nil && a.cfg.Capture.Hotkey != "" {
		if err := listener.RegisterHotkey(ctx, a.ctl, a.cfg.Capture.Hotkey); err != nil {
			slog.Warn("hotkey unavailable", "key", a.cfg.Capture.Hotkey, "error", err)
		}
	}

	if a.httpSrv != nil {
		g.Go(func() error {
			slog.Info("observability endpoint listening", "addr", a.httpSrv.Addr)
			if err := a.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.httpSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		err := mcp.RunStdio(ctx, a.mcpServer())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	slog.Info("parley running", "mode", a.mode(), "version", a.version)
	return g.Wait()
}

// mcpServer builds the MCP server matching the configured mode.
func (a *App) mcpServer() *sdk.Server {
	switch {
	case a.queue != nil && a.ctl != nil:
		return mcp.NewDuplexServer(a.queue, a.ctl, a.version)
	case a.queue != nil:
		return mcp.NewSpeakServer(a.queue, a.version)
	default:
		return mcp.NewListenServer(a.ctl, a.version)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		if a.ctl != nil {
			if err := a.ctl.Close(); err != nil {
				slog.Warn("listener close error", "error", err)
			}
		}
		if a.queue != nil {
			a.queue.CancelAll()
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
