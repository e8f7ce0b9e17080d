// Package listener implements the incoming half of a voice session: a
// capture controller that owns the audio input device, classifies frames
// through a voice activity detector, records utterances, and hands completed
// buffers to a transcription engine.
//
// The controller is a small state machine (Idle, Armed, Recording,
// Transcribing) driven by a single pump goroutine that consumes device
// frames. Turn-taking with the speaker half goes through the coordination
// store: while the speaking flag is set, and for an echo-guard window after
// playback finishes, frames are read but discarded so the session never
// transcribes its own voice.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parleyio/parley/internal/coord"
	"github.com/parleyio/parley/internal/observe"
	"github.com/parleyio/parley/pkg/audio"
	"github.com/parleyio/parley/pkg/provider/stt"
	"github.com/parleyio/parley/pkg/provider/vad"
	"github.com/parleyio/parley/pkg/types"
)

var (
	// ErrAlreadyActive is returned by Start when the controller is not idle.
	ErrAlreadyActive = errors.New("capture already active")

	// ErrNotActive is returned by operations that require a running
	// controller.
	ErrNotActive = errors.New("capture not active")
)

// Defaults for StartOptions zero values.
const (
	DefaultSilenceTimeout = 2 * time.Second
	DefaultEchoDelay      = 400 * time.Millisecond
	DefaultMaxRecording   = 2 * time.Minute
)

// StartOptions configures one listening session.
type StartOptions struct {
	// Manual disables VAD-driven recording; recording starts and stops via
	// ToggleRecording (typically bound to a hotkey).
	Manual bool

	// SilenceTimeout ends a VAD recording after this much continuous
	// silence, measured from the last speech frame. Zero means
	// DefaultSilenceTimeout.
	SilenceTimeout time.Duration

	// AutoResume re-arms the controller after each transcription instead of
	// going idle.
	AutoResume bool

	// EchoDelay is how long after playback finishes frames are still
	// discarded. Zero means DefaultEchoDelay.
	EchoDelay time.Duration

	// MaxRecording caps a single recording; a longer one is force-ended and
	// transcribed. Zero means DefaultMaxRecording.
	MaxRecording time.Duration
}

func (o *StartOptions) applyDefaults() {
	if o.SilenceTimeout <= 0 {
		o.SilenceTimeout = DefaultSilenceTimeout
	}
	if o.EchoDelay == 0 {
		o.EchoDelay = DefaultEchoDelay
	} else if o.EchoDelay < 0 {
		// Negative disables the guard entirely.
		o.EchoDelay = 0
	}
	if o.MaxRecording <= 0 {
		o.MaxRecording = DefaultMaxRecording
	}
}

// Sink receives every completed transcription, e.g. a transcript log.
type Sink interface {
	Append(types.Transcription) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithSink adds a transcription sink.
func WithSink(s Sink) Option {
	return func(c *Controller) { c.sink = s }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithInterruptHook sets a function invoked by Interrupt in addition to the
// coordination stop signal, e.g. the co-located speech queue's CancelAll.
func WithInterruptHook(fn func()) Option {
	return func(c *Controller) { c.interruptHook = fn }
}

// WithTrackerConfig overrides the speech edge tracker configuration.
func WithTrackerConfig(cfg vad.TrackerConfig) Option {
	return func(c *Controller) { c.trackerCfg = cfg }
}

// Controller owns the capture device and drives one listening session at a
// time. All methods are safe for concurrent use.
type Controller struct {
	device   audio.CaptureDevice
	detector vad.Detector
	engine   stt.Engine
	store    coord.Store

	sink          Sink
	metrics       *observe.Metrics
	interruptHook func()
	trackerCfg    vad.TrackerConfig

	mu       sync.Mutex
	state    State
	opts     StartOptions
	last     types.Transcription
	fresh    bool          // last has not been consumed yet
	notify   chan struct{} // closed and replaced on every new result
	force    chan struct{} // wakes the pump when a toggle ends a recording
	pumpStop context.CancelFunc
	pumpDone chan struct{}
}

// New creates a capture controller. The device, detector, and engine are
// owned by the controller once Start succeeds; Close releases them.
func New(device audio.CaptureDevice, detector vad.Detector, engine stt.Engine, store coord.Store, opts ...Option) *Controller {
	c := &Controller{
		device:     device,
		detector:   detector,
		engine:     engine,
		store:      store,
		trackerCfg: vad.DefaultTrackerConfig(),
		notify:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Start arms an idle controller: opens the device and launches the frame
// pump. Returns [ErrAlreadyActive] when called in any other state and a
// wrapped [audio.ErrDeviceUnavailable] when the device cannot be opened.
func (c *Controller) Start(ctx context.Context, opts StartOptions) error {
	opts.applyDefaults()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return fmt.Errorf("%w: state %s", ErrAlreadyActive, c.state)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	if err := c.device.Start(pumpCtx); err != nil {
		cancel()
		return fmt.Errorf("opening capture device: %w", err)
	}

	next, err := transition(c.state, EventStart)
	if err != nil {
		cancel()
		_ = c.device.Stop()
		return err
	}
	c.state = next
	c.opts = opts
	c.force = make(chan struct{}, 1)
	c.pumpStop = cancel
	c.pumpDone = make(chan struct{})
	c.metrics.CaptureActive.Add(ctx, 1)

	go c.pump(pumpCtx, opts, c.force, c.pumpDone)
	slog.Info("listening started",
		"manual", opts.Manual,
		"auto_resume", opts.AutoResume,
		"silence_timeout", opts.SilenceTimeout)
	return nil
}

// Stop forces the controller to idle, releasing the device. Any recording in
// progress is discarded. Idempotent.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.state, _ = transition(c.state, EventStop)
	cancel, done := c.pumpStop, c.pumpDone
	c.pumpStop, c.pumpDone = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	err := c.device.Stop()
	c.metrics.CaptureActive.Add(context.Background(), -1)
	slog.Info("listening stopped")
	return err
}

// Interrupt forces the controller to idle and requests cancellation of any
// in-flight speech: it raises the coordination stop signal and invokes the
// interrupt hook when one is configured. Idempotent.
func (c *Controller) Interrupt(reason string) error {
	slog.Info("interrupt requested", "reason", reason)
	stopErr := c.Stop()
	if err := c.store.SignalStop(); err != nil {
		slog.Warn("raising stop signal", "error", err)
	}
	if c.interruptHook != nil {
		c.interruptHook()
	}
	return stopErr
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status is a point-in-time snapshot of the controller and the options of
// the active session.
type Status struct {
	// State is the lifecycle state.
	State State

	// AutoStop reports whether the VAD silence timeout ends recordings.
	// False in manual mode and while idle.
	AutoStop bool

	// AutoResume reports whether the controller re-arms after each
	// transcription. False while idle.
	AutoResume bool
}

// Status returns the current state together with the active session options.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{State: c.state}
	if c.state != StateIdle {
		st.AutoStop = !c.opts.Manual
		st.AutoResume = c.opts.AutoResume
	}
	return st
}

// ToggleRecording flips between waiting and recording in manual mode. In
// VAD mode it can still force-start or force-end a recording. Returns
// [ErrNotActive] when the controller is idle.
func (c *Controller) ToggleRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateIdle:
		return ErrNotActive
	case StateArmed:
		next, err := transition(c.state, EventSpeech)
		if err != nil {
			return err
		}
		c.state = next
		slog.Debug("recording started", "trigger", "toggle")
		return nil
	case StateRecording:
		next, err := transition(c.state, EventEndCapture)
		if err != nil {
			return err
		}
		c.state = next
		// Wake the pump so the handoff does not wait for the next frame.
		select {
		case c.force <- struct{}{}:
		default:
		}
		return nil
	default:
		return fmt.Errorf("%w: toggle in state %s", ErrIllegalTransition, c.state)
	}
}

// Result returns the most recent unconsumed transcription text, or a status
// marker when none is available. With wait set it blocks up to timeout for a
// new result, returning [types.MarkerTimeout] when none arrives. Each
// transcription is consumed by at most one caller.
func (c *Controller) Result(wait bool, timeout time.Duration) string {
	deadline := time.Now().Add(timeout)
	for {
		c.mu.Lock()
		if c.fresh {
			c.fresh = false
			text := c.last.Text
			c.mu.Unlock()
			return text
		}
		if !wait {
			marker := c.markerLocked()
			c.mu.Unlock()
			return marker
		}
		ch := c.notify
		c.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return types.MarkerTimeout
		}
		timer := time.NewTimer(remaining)
		select {
		case <-ch:
			timer.Stop()
		case <-timer.C:
			return types.MarkerTimeout
		}
	}
}

// Last returns the most recent transcription without consuming it, and
// whether one exists.
func (c *Controller) Last() (types.Transcription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, !c.last.CreatedAt.IsZero()
}

// markerLocked maps the current state to its status marker. Caller holds mu.
func (c *Controller) markerLocked() string {
	switch c.state {
	case StateArmed:
		return types.MarkerReady
	case StateRecording:
		return types.MarkerRecording
	case StateTranscribing:
		return types.MarkerTranscribing
	default:
		return types.MarkerIdle
	}
}

// Close stops the controller and releases the device, detector, and engine.
func (c *Controller) Close() error {
	errStop := c.Stop()
	return errors.Join(errStop, c.detector.Close(), c.engine.Close(), c.device.Close())
}

// pump is the frame loop. It owns the VAD tracker and the capture buffer;
// transcription runs inline, blocking the pump, so there is exactly one
// session in flight at a time.
func (c *Controller) pump(ctx context.Context, opts StartOptions, force <-chan struct{}, done chan struct{}) {
	defer close(done)

	tracker := vad.NewTracker(vad.TrackerConfig{
		MinSpeechFrames: c.trackerCfg.MinSpeechFrames,
		SilenceTimeout:  opts.SilenceTimeout,
	})
	buf := audio.NewCaptureBuffer()
	maxSamples := int(opts.MaxRecording.Seconds() * float64(c.device.SampleRate()))

	for {
		select {
		case <-ctx.Done():
			return
		case <-force:
			// A toggle ended the recording; hand the buffer off now
			// rather than waiting for another frame to arrive.
			if c.State() == StateTranscribing {
				c.transcribe(ctx, opts, tracker, buf)
			}
		case frame, ok := <-c.device.Frames():
			if !ok {
				return
			}
			c.handleFrame(ctx, frame, opts, tracker, buf, maxSamples)
		}
	}
}

// handleFrame processes one capture frame according to the current state.
func (c *Controller) handleFrame(ctx context.Context, frame audio.Frame, opts StartOptions, tracker *vad.Tracker, buf *audio.CaptureBuffer, maxSamples int) {
	if c.discard(ctx, frame, opts) {
		// Discarded frames must not count toward speech onset, but a
		// recording already in progress keeps its segment so the silence
		// timeout can still fire.
		if c.State() != StateRecording {
			tracker.Reset()
		}
		return
	}

	switch c.State() {
	case StateArmed:
		if opts.Manual {
			return
		}
		isSpeech, err := c.detector.IsSpeech(frame.Samples)
		if err != nil {
			slog.Warn("vad classification failed", "error", err)
			return
		}
		if tracker.Update(isSpeech, frame.Timestamp) == vad.EdgeSpeechStart {
			c.mu.Lock()
			if next, err := transition(c.state, EventSpeech); err == nil {
				c.state = next
			}
			c.mu.Unlock()
			buf.Append(frame.Samples)
			// The user talking over queued speech should silence it. A
			// signal raised while nothing is playing is consumed as stale
			// before the next utterance starts.
			if err := c.store.SignalStop(); err != nil {
				slog.Warn("stop signal failed", "error", err)
			}
			slog.Debug("recording started", "trigger", "vad")
		}

	case StateRecording:
		buf.Append(frame.Samples)
		if maxSamples > 0 && buf.Len() >= maxSamples {
			slog.Warn("recording hit length cap, forcing transcription",
				"duration", buf.Duration(c.device.SampleRate()))
			c.endCapture(ctx, EventEndCapture, opts, tracker, buf)
			return
		}
		if !opts.Manual {
			isSpeech, err := c.detector.IsSpeech(frame.Samples)
			if err != nil {
				slog.Warn("vad classification failed", "error", err)
				return
			}
			if tracker.Update(isSpeech, frame.Timestamp) == vad.EdgeSilenceTimeout {
				c.endCapture(ctx, EventEndCapture, opts, tracker, buf)
			}
		}

	case StateTranscribing:
		// A toggle raced this frame; the handoff runs off the force
		// channel, so the frame is simply dropped.
	}
}

// discard reports whether the frame must be dropped for turn-taking: the
// speaker half is mid-playback, or we are inside the echo-guard window after
// playback finished.
func (c *Controller) discard(ctx context.Context, frame audio.Frame, opts StartOptions) bool {
	speaking, err := c.store.Speaking()
	if err != nil {
		slog.Warn("reading speaking flag", "error", err)
	}
	if speaking {
		c.metrics.DiscardedFrames.Add(ctx, 1)
		return true
	}
	last, err := c.store.LastFinished()
	if err != nil {
		slog.Warn("reading finished timestamp", "error", err)
		return false
	}
	if !last.IsZero() && frame.Timestamp.Sub(last) < opts.EchoDelay {
		c.metrics.DiscardedFrames.Add(ctx, 1)
		return true
	}
	return false
}

// endCapture transitions out of Recording and transcribes the buffer inline.
func (c *Controller) endCapture(ctx context.Context, ev Event, opts StartOptions, tracker *vad.Tracker, buf *audio.CaptureBuffer) {
	c.mu.Lock()
	if next, err := transition(c.state, ev); err == nil {
		c.state = next
	}
	c.mu.Unlock()
	c.transcribe(ctx, opts, tracker, buf)
}

// transcribe takes the buffer, runs the engine, publishes the result, and
// re-arms or idles per AutoResume.
func (c *Controller) transcribe(ctx context.Context, opts StartOptions, tracker *vad.Tracker, buf *audio.CaptureBuffer) {
	samples := buf.Take()
	duration := time.Duration(len(samples)) * time.Second / time.Duration(c.device.SampleRate())
	tracker.Reset()
	c.detector.Reset()
	c.metrics.CaptureDuration.Record(ctx, duration.Seconds())

	start := time.Now()
	tr, err := c.engine.Transcribe(ctx, samples)
	c.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())

	switch {
	case errors.Is(err, stt.ErrNoSpeech):
		slog.Debug("no speech in captured buffer", "duration", duration)
	case err != nil:
		slog.Error("transcription failed", "engine", c.engine.Name(), "error", err)
		c.metrics.RecordBackendError(ctx, c.engine.Name(), "transcription")
	default:
		slog.Info("transcribed",
			"engine", c.engine.Name(),
			"chars", len(tr.Text),
			"audio_duration", duration)
		c.publish(tr)
	}

	var cancel context.CancelFunc
	autoStopped := false
	c.mu.Lock()
	if c.state == StateTranscribing {
		if opts.AutoResume {
			if next, terr := transition(c.state, EventTranscribed); terr == nil {
				c.state = next
			}
		} else {
			c.state, _ = transition(c.state, EventStop)
			autoStopped = true
			cancel = c.pumpStop
			c.pumpStop = nil
		}
	}
	c.mu.Unlock()

	if autoStopped {
		// The pump (us) exits via the cancelled context; release the device
		// so the microphone indicator clears.
		if cancel != nil {
			cancel()
		}
		_ = c.device.Stop()
		c.metrics.CaptureActive.Add(context.Background(), -1)
		slog.Info("listening stopped", "trigger", "single_shot")
	}
}

// publish stores the transcription, marks it unconsumed, and wakes waiters.
func (c *Controller) publish(tr types.Transcription) {
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now()
	}
	c.mu.Lock()
	c.last = tr
	c.fresh = true
	close(c.notify)
	c.notify = make(chan struct{})
	c.mu.Unlock()

	if c.sink != nil {
		if err := c.sink.Append(tr); err != nil {
			slog.Warn("appending to transcript sink", "error", err)
		}
	}
}
