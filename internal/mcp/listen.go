package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/parleyio/parley/internal/listener"
	"github.com/parleyio/parley/pkg/types"
)

// defaultResultTimeout bounds a waiting get_transcription call with no
// explicit timeout.
const defaultResultTimeout = 30 * time.Second

// StartListeningInput is the argument schema for start_listening.
type StartListeningInput struct {
	Manual           bool `json:"manual,omitempty" jsonschema:"disable voice activity detection, record only between toggles"`
	SilenceTimeoutMs int  `json:"silence_timeout_ms,omitempty" jsonschema:"milliseconds of silence that end a recording, 0 for the default"`
	AutoResume       bool `json:"auto_resume,omitempty" jsonschema:"keep listening for the next utterance after each transcription"`
	EchoDelayMs      int  `json:"echo_delay_ms,omitempty" jsonschema:"milliseconds after playback during which audio is ignored, 0 for the default"`
}

// GetTranscriptionInput is the argument schema for get_transcription.
type GetTranscriptionInput struct {
	Wait      bool `json:"wait,omitempty" jsonschema:"block until a new transcription arrives or the timeout expires"`
	TimeoutMs int  `json:"timeout_ms,omitempty" jsonschema:"maximum milliseconds to block when wait is set"`
}

// InterruptInput is the argument schema for interrupt.
type InterruptInput struct {
	Reason string `json:"reason,omitempty" jsonschema:"why the session is being interrupted"`
}

// listenServer adapts the capture controller to MCP tools.
type listenServer struct {
	ctl *listener.Controller
}

// NewListenServer builds the listen endpoint over the given controller.
func NewListenServer(ctl *listener.Controller, version string) *sdk.Server {
	srv := sdk.NewServer(&sdk.Implementation{Name: "parley-listen", Version: version}, nil)
	addListenTools(srv, ctl)
	return srv
}

// addListenTools registers the capture tools on srv.
func addListenTools(srv *sdk.Server, ctl *listener.Controller) {
	s := &listenServer{ctl: ctl}

	sdk.AddTool(srv, &sdk.Tool{
		Name:        "start_listening",
		Description: "Open the microphone and wait for speech.",
	}, s.start)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "stop_listening",
		Description: "Close the microphone and discard any recording in progress.",
	}, s.stop)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "toggle_recording",
		Description: "Start a recording while armed, or end one and transcribe it immediately.",
	}, s.toggle)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "listening_status",
		Description: "Report the capture state (idle, armed, recording, transcribing) and the active session options.",
	}, s.status)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "get_transcription",
		Description: "Fetch the latest transcription, or a status marker when none is ready.",
	}, s.getTranscription)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "interrupt",
		Description: "Stop listening and abort any speech in progress across the session.",
	}, s.interrupt)
}

func (s *listenServer) start(ctx context.Context, req *sdk.CallToolRequest, in StartListeningInput) (*sdk.CallToolResult, any, error) {
	opts := listener.StartOptions{
		Manual:         in.Manual,
		SilenceTimeout: time.Duration(in.SilenceTimeoutMs) * time.Millisecond,
		AutoResume:     in.AutoResume,
		EchoDelay:      time.Duration(in.EchoDelayMs) * time.Millisecond,
	}
	if err := s.ctl.Start(ctx, opts); err != nil {
		if errors.Is(err, listener.ErrAlreadyActive) {
			return textResult("already listening"), nil, nil
		}
		return errorResult(err), nil, nil
	}
	return textResult(types.MarkerReady), nil, nil
}

func (s *listenServer) stop(ctx context.Context, req *sdk.CallToolRequest, in emptyInput) (*sdk.CallToolResult, any, error) {
	if err := s.ctl.Stop(); err != nil {
		return errorResult(err), nil, nil
	}
	return textResult("stopped listening"), nil, nil
}

func (s *listenServer) toggle(ctx context.Context, req *sdk.CallToolRequest, in emptyInput) (*sdk.CallToolResult, any, error) {
	if err := s.ctl.ToggleRecording(); err != nil {
		return errorResult(err), nil, nil
	}
	if s.ctl.State() == listener.StateRecording {
		return textResult(types.MarkerRecording), nil, nil
	}
	return textResult(types.MarkerTranscribing), nil, nil
}

func (s *listenServer) status(ctx context.Context, req *sdk.CallToolRequest, in emptyInput) (*sdk.CallToolResult, any, error) {
	st := s.ctl.Status()
	return textResult(fmt.Sprintf("%s, auto_stop=%t, auto_resume=%t",
		st.State, st.AutoStop, st.AutoResume)), nil, nil
}

func (s *listenServer) getTranscription(ctx context.Context, req *sdk.CallToolRequest, in GetTranscriptionInput) (*sdk.CallToolResult, any, error) {
	timeout := defaultResultTimeout
	if in.TimeoutMs > 0 {
		timeout = time.Duration(in.TimeoutMs) * time.Millisecond
	}
	return textResult(s.ctl.Result(in.Wait, timeout)), nil, nil
}

func (s *listenServer) interrupt(ctx context.Context, req *sdk.CallToolRequest, in InterruptInput) (*sdk.CallToolResult, any, error) {
	reason := in.Reason
	if reason == "" {
		reason = "unspecified"
	}
	if err := s.ctl.Interrupt(reason); err != nil {
		return errorResult(err), nil, nil
	}
	return textResult("interrupted"), nil, nil
}
