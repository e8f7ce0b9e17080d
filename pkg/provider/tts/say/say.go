// Package say provides a TTS backend driving the macOS `say` command. It
// implements both tts.Backend and tts.Direct: `say` plays through the system
// output itself rather than returning PCM, so the speech queue calls Speak
// instead of Synthesize for this backend.
//
// Long utterances are spoken sentence by sentence so that cancellation takes
// effect at the next sentence boundary instead of after the whole text.
package say

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/parleyio/parley/pkg/audio"
	"github.com/parleyio/parley/pkg/provider/tts"
)

// baseRate is the `say` default speaking rate in words per minute. Request
// speed multiplies it.
const baseRate = 200

var (
	_ tts.Backend = (*Backend)(nil)
	_ tts.Direct  = (*Backend)(nil)
)

// Option is a functional option for configuring a say Backend.
type Option func(*Backend)

// WithVoice sets the default voice (e.g. "Samantha"). A request voice
// overrides it.
func WithVoice(voice string) Option {
	return func(b *Backend) {
		b.voice = voice
	}
}

// Backend implements tts.Backend and tts.Direct using /usr/bin/say.
type Backend struct {
	voice string

	// overridable in tests
	goos     string
	lookPath func(string) (string, error)
	runCmd   func(ctx context.Context, name string, args ...string) error
}

// New creates a say backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		runCmd: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Name implements tts.Backend.
func (b *Backend) Name() string { return "say" }

// Available reports healthy only on darwin with the say binary present.
func (b *Backend) Available(ctx context.Context) error {
	if b.goos != "darwin" {
		return fmt.Errorf("%w: say requires darwin, running on %s", tts.ErrUnavailable, b.goos)
	}
	if _, err := b.lookPath("say"); err != nil {
		return fmt.Errorf("%w: say binary not found: %v", tts.ErrUnavailable, err)
	}
	return nil
}

// Synthesize is unsupported; say plays directly. The speech queue detects
// the Direct interface and never calls this.
func (b *Backend) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	return nil, fmt.Errorf("say: direct-playback backend does not synthesise")
}

// Speak speaks the request text sentence by sentence, honoring ctx between
// sentences.
func (b *Backend) Speak(ctx context.Context, req tts.Request) error {
	voice := req.Voice
	if voice == "" {
		voice = b.voice
	}
	rate := baseRate
	if req.Speed > 0 {
		rate = int(float64(baseRate) * req.Speed)
	}

	for _, sentence := range SplitSentences(req.Text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		var args []string
		if voice != "" {
			args = append(args, "-v", voice)
		}
		args = append(args, "-r", strconv.Itoa(rate), sentence)

		if err := b.runCmd(ctx, "say", args...); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("say: %w", err)
		}
	}
	return nil
}

// SplitSentences splits text at sentence-final punctuation and newlines.
// Punctuation stays attached to its sentence.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		switch r {
		case '.', '!', '?', ':', '\n':
			if s := current.String(); len(strings.TrimSpace(s)) > 1 {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		sentences = append(sentences, current.String())
	}
	return sentences
}
