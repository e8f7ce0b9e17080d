package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/parleyio/parley/internal/resilience"
	"github.com/parleyio/parley/pkg/provider/tts"
)

// SynthesisChecker reports ready when at least one backend in the synthesis
// chain has a closed circuit breaker. A chain where every breaker is open
// means no utterance can currently be served.
func SynthesisChecker(chain *resilience.SpeechFallback) Checker {
	return Checker{
		Name: "tts",
		Check: func(ctx context.Context) error {
			states := chain.BreakerStates()
			var open []string
			for name, st := range states {
				if st == resilience.StateOpen {
					open = append(open, name)
				}
			}
			if len(open) == len(states) {
				return fmt.Errorf("all synthesis backends open: %s", strings.Join(open, ", "))
			}
			return nil
		},
	}
}

// BackendChecker probes a single TTS backend's availability directly. Useful
// for surfacing per-backend state without waiting for an utterance to fail.
func BackendChecker(b tts.Backend) Checker {
	return Checker{
		Name: "tts:" + b.Name(),
		Check: func(ctx context.Context) error {
			return b.Available(ctx)
		},
	}
}

// EngineChecker reports the transcription engine by name. Engines have no
// probe operation; a constructed engine holds its resources (model, client),
// so the check only fails once the engine has been closed or replaced with
// nil.
func EngineChecker(name string, closed func() bool) Checker {
	return Checker{
		Name: "stt:" + name,
		Check: func(ctx context.Context) error {
			if closed != nil && closed() {
				return fmt.Errorf("engine %s is closed", name)
			}
			return nil
		},
	}
}

// DeviceChecker reports whether the audio capture device is currently
// deliverable, via a probe supplied by the owner (the device cannot be
// opened twice to test it).
func DeviceChecker(probe func(ctx context.Context) error) Checker {
	return Checker{
		Name:  "audio",
		Check: probe,
	}
}
