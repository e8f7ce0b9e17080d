package coord

import (
	"sync"
	"time"
)

// Memory is an in-process Store. It is the default when speaker and
// listener run in the same process.
type Memory struct {
	mu       sync.Mutex
	stop     bool
	speaking bool
	finished time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{}
}

// SignalStop implements Store.
func (m *Memory) SignalStop() error {
	m.mu.Lock()
	m.stop = true
	m.mu.Unlock()
	return nil
}

// ConsumeStop implements Store.
func (m *Memory) ConsumeStop() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.stop
	m.stop = false
	return was, nil
}

// SetSpeaking implements Store.
func (m *Memory) SetSpeaking(on bool) error {
	m.mu.Lock()
	m.speaking = on
	m.mu.Unlock()
	return nil
}

// Speaking implements Store.
func (m *Memory) Speaking() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking, nil
}

// MarkFinished implements Store.
func (m *Memory) MarkFinished(t time.Time) error {
	m.mu.Lock()
	m.finished = t
	m.mu.Unlock()
	return nil
}

// LastFinished implements Store.
func (m *Memory) LastFinished() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished, nil
}
