package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/parleyio/parley/internal/coord"
	"github.com/parleyio/parley/internal/listener"
	"github.com/parleyio/parley/internal/resilience"
	"github.com/parleyio/parley/internal/speaker"
	audiomock "github.com/parleyio/parley/pkg/audio/mock"
	sttmock "github.com/parleyio/parley/pkg/provider/stt/mock"
	ttsmock "github.com/parleyio/parley/pkg/provider/tts/mock"
	vadmock "github.com/parleyio/parley/pkg/provider/vad/mock"
	"github.com/parleyio/parley/pkg/types"
)

func resultText(t *testing.T, res *sdk.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("result has %d content blocks, want 1", len(res.Content))
	}
	tc, ok := res.Content[0].(*sdk.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func newSpeakFixture(t *testing.T) (*speakServer, *ttsmock.Backend, *audiomock.Player) {
	t.Helper()
	backend := &ttsmock.Backend{}
	player := &audiomock.Player{}
	chain := resilience.NewSpeechFallback(backend, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Name:         "test",
			MaxFailures:  5,
			ResetTimeout: time.Second,
			HalfOpenMax:  1,
		},
	}, nil)
	q := speaker.New(chain, player, coord.NewMemory())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &speakServer{queue: q}, backend, player
}

func TestSpeak_QueuesUtterance(t *testing.T) {
	s, backend, _ := newSpeakFixture(t)

	res, _, err := s.speak(context.Background(), nil, SpeakInput{Text: "hello"})
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if res.IsError {
		t.Fatalf("speak returned error result: %s", resultText(t, res))
	}
	if got := resultText(t, res); !strings.HasPrefix(got, "queued utterance ") {
		t.Errorf("result = %q", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(backend.Requests()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := backend.Requests(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("backend requests = %v", got)
	}
}

func TestSpeak_RejectsBadInput(t *testing.T) {
	s, _, _ := newSpeakFixture(t)

	res, _, err := s.speak(context.Background(), nil, SpeakInput{Text: ""})
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if !res.IsError {
		t.Error("empty text accepted")
	}

	res, _, _ = s.speak(context.Background(), nil, SpeakInput{Text: "hi", Speed: 4})
	if !res.IsError {
		t.Error("speed 4 accepted")
	}
	if got := resultText(t, res); !strings.Contains(got, "speed out of range") {
		t.Errorf("error text = %q", got)
	}
}

func TestSpeakAndWait_BlocksUntilPlayed(t *testing.T) {
	s, _, player := newSpeakFixture(t)

	res, _, err := s.speakAndWait(context.Background(), nil, SpeakInput{Text: "hello"})
	if err != nil {
		t.Fatalf("speak_and_wait: %v", err)
	}
	if res.IsError {
		t.Fatalf("error result: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != "spoken" {
		t.Errorf("result = %q", got)
	}
	if calls := len(player.Calls()); calls != 1 {
		t.Errorf("player calls = %d, want 1 (playback finished before return)", calls)
	}
}

func TestSpeakAndWait_Timeout(t *testing.T) {
	s, _, player := newSpeakFixture(t)
	player.PlayDelay = time.Second

	res, _, err := s.speakAndWait(context.Background(), nil,
		SpeakInput{Text: "slow", TimeoutMs: 50})
	if err != nil {
		t.Fatalf("speak_and_wait: %v", err)
	}
	if !res.IsError {
		t.Error("expected timeout error result")
	}
	s.queue.CancelAll()
}

func TestStopSpeaking_ClearsQueue(t *testing.T) {
	s, _, player := newSpeakFixture(t)
	player.PlayDelay = 5 * time.Second

	for _, text := range []string{"a", "b", "c"} {
		if _, err := s.queue.Enqueue(text, "", 0); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(player.Calls()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	res, _, err := s.stopSpeaking(context.Background(), nil, emptyInput{})
	if err != nil {
		t.Fatalf("stop_speaking: %v", err)
	}
	if got := resultText(t, res); !strings.Contains(got, "cleared 2") {
		t.Errorf("result = %q, want cleared 2", got)
	}
	if pending := s.queue.Status().Pending; pending != 0 {
		t.Errorf("pending after stop = %d, want 0", pending)
	}
}

func TestSkip_AbortsCurrentUtteranceOnly(t *testing.T) {
	s, _, player := newSpeakFixture(t)
	player.PlayDelay = 5 * time.Second

	for _, text := range []string{"first", "second"} {
		if _, err := s.queue.Enqueue(text, "", 0); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(player.Calls()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	res, _, err := s.skip(context.Background(), nil, emptyInput{})
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if got := resultText(t, res); got != "skipped" {
		t.Errorf("result = %q", got)
	}

	// The second utterance still reaches the player.
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(player.Calls()) < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	if calls := len(player.Calls()); calls != 2 {
		t.Errorf("player calls = %d, want 2 (queue kept going after skip)", calls)
	}
	s.queue.CancelAll()
}

func TestSpeechStatus(t *testing.T) {
	s, _, _ := newSpeakFixture(t)

	res, _, err := s.status(context.Background(), nil, emptyInput{})
	if err != nil {
		t.Fatalf("speech_status: %v", err)
	}
	if got := resultText(t, res); got != "silent, 0 queued" {
		t.Errorf("status = %q", got)
	}
}

func newListenFixture(t *testing.T) (*listenServer, *audiomock.Capture, *coord.Memory) {
	t.Helper()
	capture := audiomock.NewCapture(16000)
	store := coord.NewMemory()
	ctl := listener.New(capture, &vadmock.Detector{},
		&sttmock.Engine{Result: types.Transcription{Text: "hi there"}}, store)
	t.Cleanup(func() { _ = ctl.Stop() })
	return &listenServer{ctl: ctl}, capture, store
}

func TestListenLifecycle(t *testing.T) {
	s, _, _ := newListenFixture(t)
	ctx := context.Background()

	res, _, err := s.status(ctx, nil, emptyInput{})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got := resultText(t, res); got != "idle, auto_stop=false, auto_resume=false" {
		t.Errorf("initial status = %q", got)
	}

	res, _, _ = s.start(ctx, nil, StartListeningInput{AutoResume: true})
	if res.IsError {
		t.Fatalf("start error: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != types.MarkerReady {
		t.Errorf("start = %q", got)
	}

	res, _, _ = s.status(ctx, nil, emptyInput{})
	if got := resultText(t, res); got != "armed, auto_stop=true, auto_resume=true" {
		t.Errorf("status while armed = %q", got)
	}

	// Starting twice is reported, not an error.
	res, _, _ = s.start(ctx, nil, StartListeningInput{})
	if res.IsError || resultText(t, res) != "already listening" {
		t.Errorf("second start = %q", resultText(t, res))
	}

	res, _, _ = s.getTranscription(ctx, nil, GetTranscriptionInput{})
	if got := resultText(t, res); got != types.MarkerReady {
		t.Errorf("get_transcription while armed = %q", got)
	}

	res, _, _ = s.stop(ctx, nil, emptyInput{})
	if got := resultText(t, res); got != "stopped listening" {
		t.Errorf("stop = %q", got)
	}
	res, _, _ = s.status(ctx, nil, emptyInput{})
	if got := resultText(t, res); got != "idle, auto_stop=false, auto_resume=false" {
		t.Errorf("status after stop = %q", got)
	}
}

func TestToggleRecording_DrivesManualSession(t *testing.T) {
	s, capture, _ := newListenFixture(t)
	ctx := context.Background()

	res, _, err := s.toggle(ctx, nil, emptyInput{})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !res.IsError {
		t.Error("toggle while idle should fail")
	}

	if res, _, _ := s.start(ctx, nil, StartListeningInput{Manual: true}); res.IsError {
		t.Fatalf("start: %s", resultText(t, res))
	}

	res, _, _ = s.toggle(ctx, nil, emptyInput{})
	if got := resultText(t, res); got != types.MarkerRecording {
		t.Errorf("first toggle = %q, want %q", got, types.MarkerRecording)
	}

	capture.Push(make([]float32, 160))
	capture.Push(make([]float32, 160))
	time.Sleep(200 * time.Millisecond) // let the pump drain both frames

	res, _, _ = s.toggle(ctx, nil, emptyInput{})
	if res.IsError {
		t.Fatalf("second toggle: %s", resultText(t, res))
	}

	// The handoff runs without any further frames arriving.
	res, _, _ = s.getTranscription(ctx, nil, GetTranscriptionInput{Wait: true, TimeoutMs: 2000})
	if got := resultText(t, res); got != "hi there" {
		t.Errorf("get_transcription = %q, want the transcription", got)
	}
}

func TestNewServers_RegisterTools(t *testing.T) {
	sp, _, _ := newSpeakFixture(t)
	if srv := NewSpeakServer(sp.queue, "test"); srv == nil {
		t.Fatal("NewSpeakServer returned nil")
	}
	ls, _, _ := newListenFixture(t)
	if srv := NewListenServer(ls.ctl, "test"); srv == nil {
		t.Fatal("NewListenServer returned nil")
	}
	if srv := NewDuplexServer(sp.queue, ls.ctl, "test"); srv == nil {
		t.Fatal("NewDuplexServer returned nil")
	}
}

func TestGetTranscription_WaitTimesOut(t *testing.T) {
	s, _, _ := newListenFixture(t)
	ctx := context.Background()

	if res, _, _ := s.start(ctx, nil, StartListeningInput{}); res.IsError {
		t.Fatalf("start: %s", resultText(t, res))
	}
	res, _, err := s.getTranscription(ctx, nil, GetTranscriptionInput{Wait: true, TimeoutMs: 50})
	if err != nil {
		t.Fatalf("get_transcription: %v", err)
	}
	if got := resultText(t, res); got != types.MarkerTimeout {
		t.Errorf("result = %q, want %q", got, types.MarkerTimeout)
	}
}

func TestInterrupt_RaisesStop(t *testing.T) {
	s, _, store := newListenFixture(t)
	ctx := context.Background()

	if res, _, _ := s.start(ctx, nil, StartListeningInput{}); res.IsError {
		t.Fatalf("start: %s", resultText(t, res))
	}
	res, _, err := s.interrupt(ctx, nil, InterruptInput{Reason: "user barge-in"})
	if err != nil {
		t.Fatalf("interrupt: %v", err)
	}
	if got := resultText(t, res); got != "interrupted" {
		t.Errorf("result = %q", got)
	}
	if stopped, _ := store.ConsumeStop(); !stopped {
		t.Error("interrupt did not raise the stop signal")
	}
}
