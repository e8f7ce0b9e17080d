package vad

import "time"

// Edge is a state transition reported by the Tracker.
type Edge int

const (
	// EdgeNone means no transition occurred on this update.
	EdgeNone Edge = iota

	// EdgeSpeechStart means the debounce threshold was just crossed and a
	// speech segment has begun.
	EdgeSpeechStart

	// EdgeSilenceTimeout means the configured silence interval has elapsed
	// since the last speech frame and the segment has ended.
	EdgeSilenceTimeout
)

// String implements fmt.Stringer.
func (e Edge) String() string {
	switch e {
	case EdgeSpeechStart:
		return "speech_start"
	case EdgeSilenceTimeout:
		return "silence_timeout"
	default:
		return "none"
	}
}

// TrackerConfig holds the edge detection parameters.
type TrackerConfig struct {
	// MinSpeechFrames is the number of consecutive speech frames required
	// before a segment starts. Debounces clicks and short noise bursts.
	MinSpeechFrames int

	// SilenceTimeout is how long after the last speech frame a segment is
	// considered ended.
	SilenceTimeout time.Duration
}

// DefaultTrackerConfig matches 30 ms frames at 16 kHz: three frames
// (about 90 ms) to open a segment, two seconds of silence to close it.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MinSpeechFrames: 3,
		SilenceTimeout:  2 * time.Second,
	}
}

// Tracker converts a stream of per-frame speech decisions into segment
// edges. It is driven entirely by the timestamps passed to Update, so each
// speech frame implicitly reschedules the silence deadline and the caller
// decides the clock. Not safe for concurrent use; the capture loop owns it.
type Tracker struct {
	cfg        TrackerConfig
	active     bool
	speechRun  int
	lastSpeech time.Time
}

// NewTracker creates a tracker. Zero or negative config fields fall back to
// the defaults.
func NewTracker(cfg TrackerConfig) *Tracker {
	def := DefaultTrackerConfig()
	if cfg.MinSpeechFrames <= 0 {
		cfg.MinSpeechFrames = def.MinSpeechFrames
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = def.SilenceTimeout
	}
	return &Tracker{cfg: cfg}
}

// Update feeds one frame decision stamped at now and returns the resulting
// edge, if any.
//
// While inactive, consecutive speech frames are counted; reaching
// MinSpeechFrames returns EdgeSpeechStart and a non-speech frame resets the
// count. While active, every speech frame moves the silence deadline
// forward; a frame arriving at or after lastSpeech+SilenceTimeout returns
// EdgeSilenceTimeout and deactivates the tracker.
func (t *Tracker) Update(isSpeech bool, now time.Time) Edge {
	if !t.active {
		if !isSpeech {
			t.speechRun = 0
			return EdgeNone
		}
		t.speechRun++
		if t.speechRun < t.cfg.MinSpeechFrames {
			return EdgeNone
		}
		t.active = true
		t.speechRun = 0
		t.lastSpeech = now
		return EdgeSpeechStart
	}

	if isSpeech {
		t.lastSpeech = now
		return EdgeNone
	}
	if now.Sub(t.lastSpeech) >= t.cfg.SilenceTimeout {
		t.active = false
		return EdgeSilenceTimeout
	}
	return EdgeNone
}

// Active reports whether a speech segment is currently open.
func (t *Tracker) Active() bool {
	return t.active
}

// SilenceFor returns how long the tracker has been without speech at the
// given instant. Zero while inactive.
func (t *Tracker) SilenceFor(now time.Time) time.Duration {
	if !t.active {
		return 0
	}
	d := now.Sub(t.lastSpeech)
	if d < 0 {
		return 0
	}
	return d
}

// Reset returns the tracker to the inactive state and discards any pending
// debounce count and silence deadline.
func (t *Tracker) Reset() {
	t.active = false
	t.speechRun = 0
	t.lastSpeech = time.Time{}
}
