// Package mcp exposes the voice session over the Model Context Protocol.
//
// Two logical endpoints are served, mirroring the speaker/listener split so
// each half can run in its own process:
//
//   - the speak endpoint: speak, speak_and_wait, stop_speaking, skip,
//     speech_status
//   - the listen endpoint: start_listening, stop_listening, toggle_recording,
//     listening_status, get_transcription, interrupt
//
// Both are stdio servers built on the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk). Tool failures that the caller
// can act on (bad input, wrong state) are returned in-band as error results;
// only transport-level problems surface as protocol errors.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/parleyio/parley/internal/listener"
	"github.com/parleyio/parley/internal/speaker"
)

// NewDuplexServer builds a single server carrying both tool sets, used when
// the speaker and listener run in one process.
func NewDuplexServer(queue *speaker.Queue, ctl *listener.Controller, version string) *sdk.Server {
	srv := sdk.NewServer(&sdk.Implementation{Name: "parley", Version: version}, nil)
	addSpeakTools(srv, queue)
	addListenTools(srv, ctl)
	return srv
}

// textResult wraps a plain string as a successful tool result.
func textResult(text string) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: text}},
	}
}

// errorResult wraps an error as an in-band tool failure.
func errorResult(err error) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

// RunStdio serves srv on stdin/stdout until ctx is cancelled.
func RunStdio(ctx context.Context, srv *sdk.Server) error {
	return srv.Run(ctx, &sdk.StdioTransport{})
}
