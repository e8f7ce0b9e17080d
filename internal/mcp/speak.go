package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/parleyio/parley/internal/speaker"
)

// defaultWaitTimeout bounds speak_and_wait when the caller gives no timeout,
// so a stuck backend can never hang the tool call forever.
const defaultWaitTimeout = 2 * time.Minute

// SpeakInput is the argument schema for speak and speak_and_wait.
type SpeakInput struct {
	Text  string  `json:"text" jsonschema:"the text to speak"`
	Voice string  `json:"voice,omitempty" jsonschema:"voice override, backend specific"`
	Speed float64 `json:"speed,omitempty" jsonschema:"speech rate factor between 0.5 and 2.0, 0 for the default"`

	// TimeoutMs only applies to speak_and_wait.
	TimeoutMs int `json:"timeout_ms,omitempty" jsonschema:"how long speak_and_wait may block, in milliseconds"`
}

type emptyInput struct{}

// speakServer adapts the speech queue to MCP tools.
type speakServer struct {
	queue *speaker.Queue
}

// NewSpeakServer builds the speak endpoint over the given queue.
func NewSpeakServer(queue *speaker.Queue, version string) *sdk.Server {
	srv := sdk.NewServer(&sdk.Implementation{Name: "parley-speak", Version: version}, nil)
	addSpeakTools(srv, queue)
	return srv
}

// addSpeakTools registers the speech tools on srv.
func addSpeakTools(srv *sdk.Server, queue *speaker.Queue) {
	s := &speakServer{queue: queue}

	sdk.AddTool(srv, &sdk.Tool{
		Name:        "speak",
		Description: "Queue text for speech synthesis and return immediately.",
	}, s.speak)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "speak_and_wait",
		Description: "Queue text for speech synthesis and return once it and everything queued before it has played.",
	}, s.speakAndWait)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "stop_speaking",
		Description: "Abort the utterance currently playing and discard every queued one.",
	}, s.stopSpeaking)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "skip",
		Description: "Skip the utterance currently playing; queued utterances continue.",
	}, s.skip)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "speech_status",
		Description: "Report whether speech is playing and how many utterances are queued.",
	}, s.status)
}

func (s *speakServer) speak(ctx context.Context, req *sdk.CallToolRequest, in SpeakInput) (*sdk.CallToolResult, any, error) {
	seq, err := s.queue.Enqueue(in.Text, in.Voice, in.Speed)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("queued utterance %d", seq)), nil, nil
}

func (s *speakServer) speakAndWait(ctx context.Context, req *sdk.CallToolRequest, in SpeakInput) (*sdk.CallToolResult, any, error) {
	timeout := defaultWaitTimeout
	if in.TimeoutMs > 0 {
		timeout = time.Duration(in.TimeoutMs) * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.queue.EnqueueAndWait(waitCtx, in.Text, in.Voice, in.Speed)
	switch {
	case err == nil:
		return textResult("spoken"), nil, nil
	case waitCtx.Err() != nil:
		return errorResult(fmt.Errorf("still speaking after %s", timeout)), nil, nil
	default:
		return errorResult(err), nil, nil
	}
}

func (s *speakServer) stopSpeaking(ctx context.Context, req *sdk.CallToolRequest, in emptyInput) (*sdk.CallToolResult, any, error) {
	// Raise the stop signal first so a direct backend mid-sentence aborts
	// too, then sweep the queue. The count excludes the in-flight utterance.
	if err := s.queue.Stop(); err != nil {
		slog.Warn("raising stop signal", "error", err)
	}
	cleared := s.queue.CancelAll()
	return textResult(fmt.Sprintf("stopped, cleared %d queued utterances", cleared)), nil, nil
}

func (s *speakServer) skip(ctx context.Context, req *sdk.CallToolRequest, in emptyInput) (*sdk.CallToolResult, any, error) {
	if err := s.queue.Stop(); err != nil {
		return errorResult(err), nil, nil
	}
	return textResult("skipped"), nil, nil
}

func (s *speakServer) status(ctx context.Context, req *sdk.CallToolRequest, in emptyInput) (*sdk.CallToolResult, any, error) {
	st := s.queue.Status()
	if st.Speaking {
		return textResult(fmt.Sprintf("speaking, %d queued", st.Pending)), nil, nil
	}
	return textResult(fmt.Sprintf("silent, %d queued", st.Pending)), nil, nil
}
