package audio

import "encoding/binary"

// Float32ToPCM converts float32 samples in [-1.0, 1.0] to 16-bit signed
// little-endian PCM bytes. Out-of-range samples are clamped.
func Float32ToPCM(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s*32767)))
	}
	return pcm
}

// PCMToFloat32 converts 16-bit signed little-endian PCM bytes to float32
// samples normalised to [-1.0, 1.0]. A trailing odd byte is ignored.
func PCMToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// Float32ToInt16 converts float32 samples to int16 values, clamping
// out-of-range input. Frame classifiers (WebRTC VAD) want int16 input.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// DownmixToMono averages interleaved multi-channel float32 samples into a
// mono buffer. If channels is 1 the input is returned unchanged.
func DownmixToMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	perChannel := len(samples) / channels
	mono := make([]float32, perChannel)
	for i := range perChannel {
		var sum float32
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
