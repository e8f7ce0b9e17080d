package config

import "reflect"

// ConfigDiff describes what changed between two configs. Only fields that
// can be safely hot-reloaded are tracked; everything else needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VADChanged covers the detector tuning (engine options and debounce).
	VADChanged bool

	// CaptureChanged covers the listener defaults (silence timeout, echo
	// delay, auto-resume, manual mode).
	CaptureChanged bool

	// SpeechChanged covers the queue defaults (voice, speed, stop poll).
	SpeechChanged bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.VADChanged || d.CaptureChanged || d.SpeechChanged
}

// Diff compares old and new configs and returns what changed. Only tracks
// changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.VAD.MinSpeechFrames != new.VAD.MinSpeechFrames ||
		!engineEntryEqual(old.VAD.Engine, new.VAD.Engine) {
		d.VADChanged = true
	}

	if old.Capture != new.Capture {
		d.CaptureChanged = true
	}

	if old.TTS.DefaultVoice != new.TTS.DefaultVoice ||
		old.TTS.DefaultSpeed != new.TTS.DefaultSpeed ||
		old.TTS.StopPollMs != new.TTS.StopPollMs {
		d.SpeechChanged = true
	}

	return d
}

// engineEntryEqual compares two entries including their options map.
func engineEntryEqual(a, b EngineEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL ||
		a.Model != b.Model || a.Language != b.Language {
		return false
	}
	return reflect.DeepEqual(a.Options, b.Options)
}
