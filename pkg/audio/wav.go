package audio

import (
	"encoding/binary"
	"fmt"
)

// EncodeWAV wraps 16-bit mono PCM samples in a minimal RIFF/WAVE container.
// Cloud transcription APIs and whisper-server both want WAV uploads rather
// than raw PCM.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	pcm := Float32ToPCM(samples)
	dataLen := len(pcm)

	buf := make([]byte, 0, 44+dataLen)
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataLen))
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, 1) // mono
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate*2)) // byte rate
	buf = binary.LittleEndian.AppendUint16(buf, 2)                    // block align
	buf = binary.LittleEndian.AppendUint16(buf, 16)                   // bits per sample

	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataLen))
	buf = append(buf, pcm...)
	return buf
}

// DecodeWAV parses a RIFF/WAVE file and returns the contained 16-bit PCM
// data as a [Clip]. Only uncompressed PCM is supported; other codecs return
// an error.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) < 44 {
		return Clip{}, fmt.Errorf("wav: file too small (%d bytes)", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, fmt.Errorf("wav: not a RIFF/WAVE file")
	}

	var (
		sampleRate int
		channels   int
		format     int
		dataStart  int
		dataSize   int
	)

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && pos+8+16 <= len(data) {
				format = int(binary.LittleEndian.Uint16(data[pos+8 : pos+10]))
				channels = int(binary.LittleEndian.Uint16(data[pos+10 : pos+12]))
				sampleRate = int(binary.LittleEndian.Uint32(data[pos+12 : pos+16]))
			}
		case "data":
			dataStart = pos + 8
			dataSize = chunkSize
		}

		pos += 8 + chunkSize
		if pos%2 != 0 {
			pos++ // chunks are word-aligned
		}
	}

	if sampleRate == 0 || dataStart == 0 {
		return Clip{}, fmt.Errorf("wav: missing fmt or data chunk")
	}
	if format != 1 {
		return Clip{}, fmt.Errorf("wav: unsupported format code %d (want PCM)", format)
	}
	if dataStart+dataSize > len(data) {
		dataSize = len(data) - dataStart
	}

	return Clip{
		PCM:        data[dataStart : dataStart+dataSize],
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}
