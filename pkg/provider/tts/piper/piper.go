// Package piper provides a Piper-backed TTS backend that invokes the piper
// binary as a subprocess. It implements the tts.Backend interface.
//
// Piper is invoked once per utterance with --output_raw, producing 16-bit
// mono PCM on stdout at the voice model's native sample rate (22050 Hz for
// most published models). Speed is mapped to piper's --length_scale, which
// is the inverse of the rate multiplier.
//
// Typical usage:
//
//	b, err := piper.New("/opt/piper/piper", "/opt/piper/voices/en_US-amy-medium.onnx",
//	    piper.WithSampleRate(22050),
//	)
//	clip, err := b.Synthesize(ctx, tts.Request{Text: "hello", Speed: 1.2})
package piper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parleyio/parley/pkg/audio"
	"github.com/parleyio/parley/pkg/provider/tts"
)

// defaultSampleRate matches the medium-quality published Piper voices.
const defaultSampleRate = 22050

// Compile-time interface assertion.
var _ tts.Backend = (*Backend)(nil)

// Option is a functional option for configuring a Piper Backend.
type Option func(*Backend)

// WithSampleRate overrides the output sample rate reported for synthesised
// clips. Must match the voice model's native rate.
func WithSampleRate(rate int) Option {
	return func(b *Backend) {
		b.sampleRate = rate
	}
}

// WithVoicesDir sets the directory searched when a request names a voice
// other than the configured model. Voice "amy" resolves to amy.onnx in this
// directory.
func WithVoicesDir(dir string) Option {
	return func(b *Backend) {
		b.voicesDir = dir
	}
}

// Backend implements tts.Backend by shelling out to the piper binary.
type Backend struct {
	binaryPath string
	modelPath  string
	voicesDir  string
	sampleRate int
	espeakData string
}

// New creates a Piper backend. binaryPath and modelPath must point at the
// piper executable and a voice model (.onnx); the model's .json config must
// sit next to it. Existence is checked lazily in Available so a machine
// without piper can still construct the backend and report unhealthy.
func New(binaryPath, modelPath string, opts ...Option) (*Backend, error) {
	if binaryPath == "" {
		return nil, errors.New("piper: binary path must not be empty")
	}
	if modelPath == "" {
		return nil, errors.New("piper: model path must not be empty")
	}
	b := &Backend{
		binaryPath: binaryPath,
		modelPath:  modelPath,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(b)
	}
	// espeak-ng-data shipped next to the binary, when present.
	espeak := filepath.Join(filepath.Dir(binaryPath), "espeak-ng-data")
	if _, err := os.Stat(espeak); err == nil {
		b.espeakData = espeak
	}
	return b, nil
}

// Name implements tts.Backend.
func (b *Backend) Name() string { return "piper" }

// Available reports whether the binary and model are present on disk.
func (b *Backend) Available(ctx context.Context) error {
	if _, err := os.Stat(b.binaryPath); err != nil {
		return fmt.Errorf("%w: piper binary %s: %v", tts.ErrUnavailable, b.binaryPath, err)
	}
	if _, err := os.Stat(b.modelPath); err != nil {
		return fmt.Errorf("%w: piper model %s: %v", tts.ErrUnavailable, b.modelPath, err)
	}
	if _, err := os.Stat(b.modelPath + ".json"); err != nil {
		return fmt.Errorf("%w: piper model config %s.json: %v", tts.ErrUnavailable, b.modelPath, err)
	}
	return nil
}

// Synthesize runs piper once and wraps its raw PCM output in a clip.
func (b *Backend) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	model := b.modelPath
	if req.Voice != "" && b.voicesDir != "" {
		candidate := filepath.Join(b.voicesDir, req.Voice+".onnx")
		if _, err := os.Stat(candidate); err == nil {
			model = candidate
		}
	}

	args := []string{
		"--model", model,
		"--config", model + ".json",
		"--output_raw",
	}
	if req.Speed > 0 && req.Speed != 1.0 {
		// length_scale stretches phoneme duration, so it is the inverse of
		// the requested rate.
		args = append(args, "--length_scale", strconv.FormatFloat(1.0/req.Speed, 'f', 3, 64))
	}
	if b.espeakData != "" {
		args = append(args, "--espeak_data", b.espeakData)
	}

	cmd := exec.CommandContext(ctx, b.binaryPath, args...)
	cmd.Stdin = strings.NewReader(req.Text)
	cmd.Dir = filepath.Dir(b.binaryPath)
	cmd.Env = append(os.Environ(),
		"DYLD_LIBRARY_PATH="+filepath.Dir(b.binaryPath),
		"LD_LIBRARY_PATH="+filepath.Dir(b.binaryPath),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("piper: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("piper: no audio produced, stderr: %s", strings.TrimSpace(stderr.String()))
	}

	return &audio.Clip{
		PCM:        stdout.Bytes(),
		SampleRate: b.sampleRate,
		Channels:   1,
	}, nil
}
