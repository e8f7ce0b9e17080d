package audio

import (
	"testing"
)

func TestEncodeDecodeWAV(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 0.5, -0.5}
	data := EncodeWAV(samples, 16000)

	clip, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if clip.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", clip.SampleRate)
	}
	if clip.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", clip.Channels)
	}
	if len(clip.PCM) != len(samples)*2 {
		t.Errorf("expected %d PCM bytes, got %d", len(samples)*2, len(clip.PCM))
	}

	out := PCMToFloat32(clip.PCM)
	for i := range samples {
		diff := out[i] - samples[i]
		if diff > 0.001 || diff < -0.001 {
			t.Errorf("sample %d: expected %f, got %f", i, samples[i], out[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"too small": []byte("RIFF"),
		"not riff":  make([]byte, 64),
	}
	for name, data := range cases {
		if _, err := DecodeWAV(data); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

func TestDecodeWAVRejectsCompressed(t *testing.T) {
	data := EncodeWAV([]float32{0, 0}, 8000)
	// Flip the format code in the fmt chunk from PCM to IEEE float.
	data[20] = 3
	if _, err := DecodeWAV(data); err == nil {
		t.Fatal("expected error for non-PCM format code")
	}
}

func TestClipDuration(t *testing.T) {
	clip := Clip{PCM: make([]byte, 32000), SampleRate: 16000, Channels: 1}
	if got := clip.Duration(); got.Seconds() != 1.0 {
		t.Errorf("expected 1s, got %v", got)
	}
}
