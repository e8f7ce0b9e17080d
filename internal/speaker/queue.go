// Package speaker implements the outgoing half of a voice session: a FIFO
// speech queue drained by a single worker goroutine that synthesises each
// utterance through a fallback chain of TTS backends and plays it on the
// audio output device.
//
// The worker owns the output device exclusively. Between utterances it
// consumes any stale stop signal from the coordination store; while an
// utterance is in flight it polls the store so a stop raised by the listener
// half (possibly in another process) aborts exactly that utterance. The
// speaking flag and finished timestamp are maintained around every playback
// so the capture side can guard against transcribing our own voice.
package speaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parleyio/parley/internal/coord"
	"github.com/parleyio/parley/internal/observe"
	"github.com/parleyio/parley/internal/resilience"
	"github.com/parleyio/parley/pkg/audio"
	"github.com/parleyio/parley/pkg/provider/tts"
	"github.com/parleyio/parley/pkg/types"
	"go.opentelemetry.io/otel/metric"
)

func withBackend(name string) metric.RecordOption {
	return metric.WithAttributes(observe.Attr("backend", name))
}

var (
	// ErrEmptyText is returned by Enqueue when the utterance text is empty.
	ErrEmptyText = errors.New("utterance text is empty")

	// ErrSpeedOutOfRange is returned by Enqueue when the speed factor lies
	// outside [MinSpeed, MaxSpeed]. Out-of-range speeds are rejected, never
	// clamped.
	ErrSpeedOutOfRange = errors.New("speed out of range")
)

// Speed factor bounds accepted by Enqueue.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// DefaultStopPollInterval is how often the worker checks the coordination
// store for a stop signal while an utterance is in flight.
const DefaultStopPollInterval = 50 * time.Millisecond

// Option configures a Queue.
type Option func(*Queue)

// WithDefaultVoice sets the voice used for utterances that do not specify one.
func WithDefaultVoice(voice string) Option {
	return func(q *Queue) { q.defaultVoice = voice }
}

// WithDefaultSpeed sets the speed used for utterances enqueued with speed 0.
// Must itself lie within [MinSpeed, MaxSpeed].
func WithDefaultSpeed(speed float64) Option {
	return func(q *Queue) { q.defaultSpeed = speed }
}

// WithStopPollInterval overrides [DefaultStopPollInterval].
func WithStopPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.stopPoll = d
		}
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// Status is a point-in-time snapshot of the queue, safe to report across
// process boundaries.
type Status struct {
	// Pending is the number of utterances waiting behind the current one.
	Pending int

	// Speaking reports whether an utterance is currently in flight.
	Speaking bool

	// Generation increments on every CancelAll sweep. Utterances enqueued
	// after a sweep belong to the new generation and are never cleared by it.
	Generation uint64
}

// Queue is the speech queue. Enqueue is non-blocking and safe for concurrent
// use; exactly one Run worker drains the queue in Seq order.
type Queue struct {
	chain   *resilience.SpeechFallback
	player  audio.Player
	store   coord.Store
	metrics *observe.Metrics

	defaultVoice string
	defaultSpeed float64
	stopPoll     time.Duration

	mu         sync.Mutex
	cond       *sync.Cond
	pending    []types.Utterance
	nextSeq    uint64
	doneSeq    uint64 // highest Seq that has completed, been cleared, or failed
	generation uint64
	inFlight   bool
	// cancelCurrent aborts the in-flight utterance. Registered by the
	// worker under the same lock that pops the utterance and invoked by
	// CancelAll under mu, so a sweep covers the utterance in transit to the
	// worker and never aborts one picked up after the sweep.
	cancelCurrent context.CancelFunc
}

// New creates a speech queue draining into the given fallback chain, output
// device, and coordination store. Call [Queue.Run] to start the worker.
func New(chain *resilience.SpeechFallback, player audio.Player, store coord.Store, opts ...Option) *Queue {
	q := &Queue{
		chain:        chain,
		player:       player,
		store:        store,
		defaultSpeed: 1.0,
		stopPoll:     DefaultStopPollInterval,
	}
	q.cond = sync.NewCond(&q.mu)
	for _, opt := range opts {
		opt(q)
	}
	if q.metrics == nil {
		q.metrics = observe.DefaultMetrics()
	}
	return q
}

// Enqueue validates and appends an utterance, returning its sequence number.
// It never blocks on synthesis or playback. Voice and speed fall back to the
// configured defaults when empty and zero respectively; an explicit speed
// outside [MinSpeed, MaxSpeed] is rejected with [ErrSpeedOutOfRange].
func (q *Queue) Enqueue(text, voice string, speed float64) (uint64, error) {
	if text == "" {
		return 0, ErrEmptyText
	}
	if speed == 0 {
		speed = q.defaultSpeed
	}
	if speed < MinSpeed || speed > MaxSpeed {
		return 0, fmt.Errorf("%w: %g not in [%g, %g]", ErrSpeedOutOfRange, speed, MinSpeed, MaxSpeed)
	}
	if voice == "" {
		voice = q.defaultVoice
	}

	q.mu.Lock()
	q.nextSeq++
	utt := types.Utterance{Text: text, Voice: voice, Speed: speed, Seq: q.nextSeq}
	q.pending = append(q.pending, utt)
	q.mu.Unlock()
	q.cond.Broadcast()

	q.metrics.QueueDepth.Add(context.Background(), 1)
	return utt.Seq, nil
}

// EnqueueAndWait enqueues like [Queue.Enqueue] and then blocks until every
// utterance enqueued before it, and itself, has completed or been cleared.
// It is a join on the queue position, not a per-utterance completion watch:
// a CancelAll sweep releases the wait immediately. Returns the context error
// when ctx expires first.
func (q *Queue) EnqueueAndWait(ctx context.Context, text, voice string, speed float64) error {
	seq, err := q.Enqueue(text, voice, speed)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, q.cond.Broadcast)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.doneSeq < seq {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.cond.Wait()
	}
	return nil
}

// CancelAll clears every pending utterance and aborts the in-flight one, if
// any. Returns the number of pending utterances cleared; the in-flight
// utterance is not counted. Idempotent: a second call with nothing queued
// returns 0. Utterances enqueued after CancelAll returns belong to a new
// generation and are unaffected.
func (q *Queue) CancelAll() int {
	q.mu.Lock()
	cleared := len(q.pending)
	if cleared > 0 {
		// Release queue-join waiters for the swept range.
		if last := q.pending[cleared-1].Seq; last > q.doneSeq {
			q.doneSeq = last
		}
		q.pending = nil
	}
	q.generation++
	if q.cancelCurrent != nil {
		q.cancelCurrent()
	}
	q.mu.Unlock()
	q.cond.Broadcast()

	if cleared > 0 {
		q.metrics.QueueDepth.Add(context.Background(), int64(-cleared))
	}
	return cleared
}

// Stop raises the stop signal on the coordination store, aborting the
// in-flight utterance without touching the pending queue.
func (q *Queue) Stop() error {
	return q.store.SignalStop()
}

// Status returns a snapshot of the queue state.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		Pending:    len(q.pending),
		Speaking:   q.inFlight,
		Generation: q.generation,
	}
}

// Run drains the queue until ctx is cancelled. It must be called exactly
// once. A returned error is always ctx's error; per-utterance failures are
// logged and counted but never stop the worker.
func (q *Queue) Run(ctx context.Context) error {
	wake := context.AfterFunc(ctx, q.cond.Broadcast)
	defer wake()

	for {
		utt, playCtx, cancel, ok := q.next(ctx)
		if !ok {
			return ctx.Err()
		}
		q.metrics.QueueDepth.Add(ctx, -1)
		q.process(ctx, playCtx, cancel, utt)
	}
}

// next blocks until an utterance is available or ctx is done. The cancel
// function for the utterance is registered under the same lock that pops it,
// so there is no window in which a CancelAll sweep sees neither the pending
// entry nor a cancelable current one.
func (q *Queue) next(ctx context.Context) (types.Utterance, context.Context, context.CancelFunc, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 {
		if ctx.Err() != nil {
			return types.Utterance{}, nil, nil, false
		}
		q.cond.Wait()
	}
	utt := q.pending[0]
	q.pending = q.pending[1:]

	playCtx, cancel := context.WithCancel(ctx)
	q.cancelCurrent = cancel
	q.inFlight = true
	return utt, playCtx, cancel, true
}

// process runs one utterance through synthesis and playback. playCtx and
// cancel were registered by next.
func (q *Queue) process(ctx, playCtx context.Context, cancel context.CancelFunc, utt types.Utterance) {
	// A stop raised while the queue was idle must not abort this fresh
	// utterance; consume and discard it before arming the poller.
	if stale, err := q.store.ConsumeStop(); err != nil {
		slog.Warn("consuming stale stop signal", "error", err)
	} else if stale {
		slog.Debug("discarded stale stop signal", "seq", utt.Seq)
	}

	pollerDone := q.pollStop(playCtx, cancel)

	if err := q.store.SetSpeaking(true); err != nil {
		slog.Warn("setting speaking flag", "error", err)
	}

	outcome, backend := q.speak(playCtx, utt)

	spoke := outcome != types.OutcomeFailed
	if err := q.store.SetSpeaking(false); err != nil {
		slog.Warn("clearing speaking flag", "error", err)
	}
	if spoke {
		// Failed utterances produced no audio, so they do not move the
		// echo-guard window.
		if err := q.store.MarkFinished(time.Now()); err != nil {
			slog.Warn("recording finished timestamp", "error", err)
		}
	}

	cancel()
	<-pollerDone

	q.mu.Lock()
	q.cancelCurrent = nil
	q.inFlight = false
	if utt.Seq > q.doneSeq {
		q.doneSeq = utt.Seq
	}
	q.mu.Unlock()
	q.cond.Broadcast()

	q.metrics.RecordUtterance(ctx, backend, outcome.String())
}

// speak synthesises and plays one utterance, returning its outcome and the
// backend that served it ("" when no backend did).
func (q *Queue) speak(ctx context.Context, utt types.Utterance) (types.Outcome, string) {
	req := tts.Request{Text: utt.Text, Voice: utt.Voice, Speed: utt.Speed}

	synthStart := time.Now()
	res, err := q.chain.Utter(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			slog.Info("utterance cancelled during synthesis", "seq", utt.Seq)
			return types.OutcomeCancelled, ""
		}
		slog.Error("all synthesis backends failed, dropping utterance",
			"seq", utt.Seq, "error", err)
		return types.OutcomeFailed, ""
	}
	q.metrics.SynthesisDuration.Record(ctx, time.Since(synthStart).Seconds(),
		withBackend(res.Backend))

	if res.Direct {
		// The backend played through its own output path.
		return types.OutcomePlayed, res.Backend
	}

	playStart := time.Now()
	err = q.player.Play(ctx, *res.Clip)
	q.metrics.PlaybackDuration.Record(ctx, time.Since(playStart).Seconds(),
		withBackend(res.Backend))
	if err != nil {
		if ctx.Err() != nil {
			slog.Info("playback aborted by stop signal", "seq", utt.Seq, "backend", res.Backend)
			return types.OutcomeCancelled, res.Backend
		}
		slog.Error("playback failed", "seq", utt.Seq, "backend", res.Backend, "error", err)
		return types.OutcomeFailed, res.Backend
	}
	return types.OutcomePlayed, res.Backend
}

// pollStop watches the coordination store for a stop signal while an
// utterance is in flight and cancels it when one arrives. The poller only
// runs between consume-stale and utterance completion, so it can never eat a
// signal meant for a later utterance. The returned channel closes when the
// poller has exited.
func (q *Queue) pollStop(ctx context.Context, cancel context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(q.stopPoll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stopped, err := q.store.ConsumeStop()
				if err != nil {
					slog.Warn("polling stop signal", "error", err)
					continue
				}
				if stopped {
					slog.Info("stop signal received, aborting utterance")
					cancel()
					return
				}
			}
		}
	}()
	return done
}
