// Package transcript persists transcription results as an append-only JSONL
// log. Other processes poll the file to pick up what was said without talking
// to the capture process directly; each line is a complete JSON object, so a
// reader never sees a torn record as long as appends stay under the
// platform's atomic write size.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parleyio/parley/pkg/types"
)

// Entry is one logged transcription line.
type Entry struct {
	Text          string    `json:"text"`
	Language      string    `json:"language,omitempty"`
	Confidence    float64   `json:"confidence,omitempty"`
	AudioDuration float64   `json:"audio_duration_s,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Log is an append-only JSONL transcription log. Safe for concurrent use
// within one process; cross-process writers each hold their own Log on the
// same path and rely on O_APPEND line atomicity.
type Log struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// Open opens (creating if needed) the log at path. The parent directory is
// created as well.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating transcript dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening transcript log: %w", err)
	}
	return &Log{path: path, f: f}, nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes one transcription as a single JSON line.
func (l *Log) Append(tr types.Transcription) error {
	e := Entry{
		Text:          tr.Text,
		Language:      tr.Language,
		Confidence:    tr.Confidence,
		AudioDuration: tr.AudioDuration.Seconds(),
		CreatedAt:     tr.CreatedAt,
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding transcript entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return os.ErrClosed
	}
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("appending transcript entry: %w", err)
	}
	return nil
}

// Tail returns up to n most recent entries, oldest first. Reads the file
// fresh on every call so it sees appends from other processes.
func (l *Log) Tail(n int) ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			// A torn or corrupt line is skipped, not fatal.
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// Close closes the underlying file. Appends after Close fail.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
