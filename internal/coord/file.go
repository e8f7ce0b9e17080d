package coord

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	stopFile     = "stop"
	speakingFile = "speaking"
	finishedFile = "finished"

	// speakingCacheTTL bounds how often Speaking hits the filesystem. The
	// capture loop asks on every frame (every ~30 ms), so uncached stats
	// would dominate the loop.
	speakingCacheTTL = 50 * time.Millisecond

	// speakingStaleAfter guards against a crashed speaker leaving the flag
	// file behind. A flag older than this reads as not speaking.
	speakingStaleAfter = 5 * time.Minute
)

// File is a Store backed by marker files in a shared directory, allowing a
// speaker process and a listener process to coordinate.
//
// The stop signal is the existence of the stop file; consuming it is an
// os.Remove, which the filesystem serialises so only one consumer wins.
// Writes go through a create-temp-then-rename so a reader never observes a
// partially written file.
type File struct {
	dir string

	mu            sync.Mutex
	speakingCache bool
	speakingAt    time.Time

	now func() time.Time
}

var _ Store = (*File)(nil)

// NewFile creates a file store rooted at dir, creating the directory if
// needed. An empty dir defaults to a "parley" directory under the system
// temp directory.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "parley")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("coord: create dir %s: %w", dir, err)
	}
	return &File{dir: dir, now: time.Now}, nil
}

// Dir returns the coordination directory.
func (f *File) Dir() string { return f.dir }

// writeAtomic writes content to name via a temp file and rename.
func (f *File) writeAtomic(name, content string) error {
	tmp, err := os.CreateTemp(f.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("coord: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("coord: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("coord: close temp: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(f.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("coord: rename: %w", err)
	}
	return nil
}

// SignalStop implements Store.
func (f *File) SignalStop() error {
	return f.writeAtomic(stopFile, f.now().Format(time.RFC3339Nano))
}

// ConsumeStop implements Store. Removal doubles as the consume step: the
// first process whose Remove succeeds owns the signal.
func (f *File) ConsumeStop() (bool, error) {
	err := os.Remove(filepath.Join(f.dir, stopFile))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("coord: consume stop: %w", err)
}

// SetSpeaking implements Store.
func (f *File) SetSpeaking(on bool) error {
	f.mu.Lock()
	f.speakingCache = on
	f.speakingAt = f.now()
	f.mu.Unlock()

	if on {
		return f.writeAtomic(speakingFile, f.now().Format(time.RFC3339Nano))
	}
	if err := os.Remove(filepath.Join(f.dir, speakingFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("coord: clear speaking: %w", err)
	}
	return nil
}

// Speaking implements Store. Results are cached for a short interval.
func (f *File) Speaking() (bool, error) {
	f.mu.Lock()
	if f.now().Sub(f.speakingAt) < speakingCacheTTL {
		cached := f.speakingCache
		f.mu.Unlock()
		return cached, nil
	}
	f.mu.Unlock()

	on, err := f.readSpeaking()
	if err != nil {
		return false, err
	}

	f.mu.Lock()
	f.speakingCache = on
	f.speakingAt = f.now()
	f.mu.Unlock()
	return on, nil
}

func (f *File) readSpeaking() (bool, error) {
	raw, err := os.ReadFile(filepath.Join(f.dir, speakingFile))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("coord: read speaking: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(raw)))
	if err != nil {
		// Unparseable flag counts as set; clearing it is SetSpeaking's job.
		return true, nil
	}
	if f.now().Sub(ts) > speakingStaleAfter {
		return false, nil
	}
	return true, nil
}

// MarkFinished implements Store.
func (f *File) MarkFinished(t time.Time) error {
	return f.writeAtomic(finishedFile, t.Format(time.RFC3339Nano))
}

// LastFinished implements Store.
func (f *File) LastFinished() (time.Time, error) {
	raw, err := os.ReadFile(filepath.Join(f.dir, finishedFile))
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("coord: read finished: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(raw)))
	if err != nil {
		return time.Time{}, fmt.Errorf("coord: parse finished timestamp: %w", err)
	}
	return ts, nil
}
