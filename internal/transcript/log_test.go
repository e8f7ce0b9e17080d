package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parleyio/parley/pkg/types"
)

func TestAppendAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcripts", "log.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	for _, text := range []string{"first", "second", "third"} {
		err := l.Append(types.Transcription{
			Text:          text,
			Language:      "en",
			Confidence:    0.9,
			AudioDuration: 2 * time.Second,
			CreatedAt:     time.Now(),
		})
		if err != nil {
			t.Fatalf("Append(%q): %v", text, err)
		}
	}

	entries, err := l.Tail(2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Tail(2) returned %d entries", len(entries))
	}
	if entries[0].Text != "second" || entries[1].Text != "third" {
		t.Errorf("Tail(2) = %q, %q; want second, third", entries[0].Text, entries[1].Text)
	}
	if entries[1].AudioDuration != 2 {
		t.Errorf("AudioDuration = %v, want 2", entries[1].AudioDuration)
	}
}

func TestAppend_OneJSONLinePerEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	if err := l.Append(types.Transcription{Text: "hello world"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	s := string(data)
	if !strings.HasSuffix(s, "\n") {
		t.Error("entry not newline-terminated")
	}
	if n := strings.Count(s, "\n"); n != 1 {
		t.Errorf("expected 1 line, got %d", n)
	}
	if !strings.Contains(s, `"text":"hello world"`) {
		t.Errorf("line missing text field: %s", s)
	}
}

func TestTail_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	if err := l.Append(types.Transcription{Text: "good"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString("{torn\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	f.Close()
	if err := l.Append(types.Transcription{Text: "after"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := l.Tail(0)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (corrupt line skipped)", len(entries))
	}
	if entries[0].Text != "good" || entries[1].Text != "after" {
		t.Errorf("entries = %v", entries)
	}
}

func TestAppendAfterClose(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "log.jsonl"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := l.Append(types.Transcription{Text: "late"}); err == nil {
		t.Error("Append after Close succeeded")
	}
}
