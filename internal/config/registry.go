package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/parleyio/parley/pkg/provider/stt"
	"github.com/parleyio/parley/pkg/provider/tts"
	"github.com/parleyio/parley/pkg/provider/vad"
)

// ErrEngineNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrEngineNotRegistered = errors.New("config: engine not registered")

// Registry maps engine names to their constructor functions for each engine
// kind. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	tts map[string]func(EngineEntry) (tts.Backend, error)
	stt map[string]func(EngineEntry) (stt.Engine, error)
	vad map[string]func(EngineEntry) (vad.Detector, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		tts: make(map[string]func(EngineEntry) (tts.Backend, error)),
		stt: make(map[string]func(EngineEntry) (stt.Engine, error)),
		vad: make(map[string]func(EngineEntry) (vad.Detector, error)),
	}
}

// RegisterTTS registers a synthesis backend factory under name. Subsequent
// calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTTS(name string, factory func(EngineEntry) (tts.Backend, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterSTT registers a transcription engine factory under name.
func (r *Registry) RegisterSTT(name string, factory func(EngineEntry) (stt.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterVAD registers a voice activity detector factory under name.
func (r *Registry) RegisterVAD(name string, factory func(EngineEntry) (vad.Detector, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// CreateTTS instantiates a synthesis backend using the factory registered
// under entry.Name. Returns [ErrEngineNotRegistered] if none is registered.
func (r *Registry) CreateTTS(entry EngineEntry) (tts.Backend, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrEngineNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates a transcription engine using the factory registered
// under entry.Name.
func (r *Registry) CreateSTT(entry EngineEntry) (stt.Engine, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrEngineNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateVAD instantiates a detector using the factory registered under
// entry.Name.
func (r *Registry) CreateVAD(entry EngineEntry) (vad.Detector, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrEngineNotRegistered, entry.Name)
	}
	return factory(entry)
}
