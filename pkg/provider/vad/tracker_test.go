package vad

import (
	"testing"
	"time"
)

func trackerAt(t *testing.T, minFrames int, timeout time.Duration) (*Tracker, time.Time) {
	t.Helper()
	return NewTracker(TrackerConfig{MinSpeechFrames: minFrames, SilenceTimeout: timeout}), time.Unix(1000, 0)
}

func TestTrackerDebounce(t *testing.T) {
	tr, now := trackerAt(t, 3, time.Second)

	for i := range 2 {
		if edge := tr.Update(true, now.Add(time.Duration(i)*30*time.Millisecond)); edge != EdgeNone {
			t.Fatalf("frame %d: expected no edge below threshold, got %v", i, edge)
		}
	}
	if edge := tr.Update(true, now.Add(60*time.Millisecond)); edge != EdgeSpeechStart {
		t.Fatalf("expected speech start on frame 3, got %v", edge)
	}
	if !tr.Active() {
		t.Error("tracker should be active after speech start")
	}
}

func TestTrackerDebounceResetsOnSilence(t *testing.T) {
	tr, now := trackerAt(t, 3, time.Second)

	tr.Update(true, now)
	tr.Update(true, now.Add(30*time.Millisecond))
	tr.Update(false, now.Add(60*time.Millisecond))

	// The run restarts, so two more speech frames must not trigger.
	tr.Update(true, now.Add(90*time.Millisecond))
	if edge := tr.Update(true, now.Add(120*time.Millisecond)); edge != EdgeNone {
		t.Fatalf("expected debounce count to reset after silence, got %v", edge)
	}
	if edge := tr.Update(true, now.Add(150*time.Millisecond)); edge != EdgeSpeechStart {
		t.Fatalf("expected speech start on third consecutive frame, got %v", edge)
	}
}

func TestTrackerSilenceTimeout(t *testing.T) {
	tr, now := trackerAt(t, 1, time.Second)

	if edge := tr.Update(true, now); edge != EdgeSpeechStart {
		t.Fatalf("expected speech start, got %v", edge)
	}
	if edge := tr.Update(false, now.Add(999*time.Millisecond)); edge != EdgeNone {
		t.Fatalf("expected no edge before timeout, got %v", edge)
	}
	if edge := tr.Update(false, now.Add(time.Second)); edge != EdgeSilenceTimeout {
		t.Fatalf("expected silence timeout at deadline, got %v", edge)
	}
	if tr.Active() {
		t.Error("tracker should be inactive after timeout")
	}
}

func TestTrackerSpeechReschedulesDeadline(t *testing.T) {
	tr, now := trackerAt(t, 1, time.Second)
	tr.Update(true, now)

	// One millisecond before the deadline, a speech frame arrives. The
	// deadline must move a full second forward from that frame.
	tr.Update(true, now.Add(999*time.Millisecond))

	if edge := tr.Update(false, now.Add(1998*time.Millisecond)); edge != EdgeNone {
		t.Fatalf("expected rescheduled deadline not yet reached, got %v", edge)
	}
	if edge := tr.Update(false, now.Add(1999*time.Millisecond)); edge != EdgeSilenceTimeout {
		t.Fatalf("expected timeout one second after last speech, got %v", edge)
	}
}

func TestTrackerResetClearsPendingState(t *testing.T) {
	tr, now := trackerAt(t, 3, time.Second)

	tr.Update(true, now)
	tr.Update(true, now.Add(30*time.Millisecond))
	tr.Reset()

	if edge := tr.Update(true, now.Add(60*time.Millisecond)); edge != EdgeNone {
		t.Fatalf("debounce count survived reset: %v", edge)
	}

	// Reset mid-segment discards the silence deadline too.
	tr2, now2 := trackerAt(t, 1, time.Second)
	tr2.Update(true, now2)
	tr2.Reset()
	if tr2.Active() {
		t.Error("tracker still active after reset")
	}
	if edge := tr2.Update(false, now2.Add(2*time.Second)); edge != EdgeNone {
		t.Fatalf("stale deadline fired after reset: %v", edge)
	}
}

func TestTrackerSilenceFor(t *testing.T) {
	tr, now := trackerAt(t, 1, 5*time.Second)
	if d := tr.SilenceFor(now); d != 0 {
		t.Fatalf("inactive tracker should report zero silence, got %v", d)
	}
	tr.Update(true, now)
	tr.Update(false, now.Add(time.Second))
	if d := tr.SilenceFor(now.Add(1500 * time.Millisecond)); d != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s of silence, got %v", d)
	}
}
