package audio

import (
	"encoding/binary"
	"fmt"
)

// WAV container support for the two places the pipeline touches files: the
// transcription upload (STT services want a RIFF header, not bare PCM) and
// synthesis responses (TTS servers answer with WAV).

// EncodeWAV wraps mono 16-bit PCM in a minimal RIFF/WAVE container.
func EncodeWAV(b Buffer) []byte {
	data := b.Bytes()
	out := make([]byte, 44+len(data))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(data)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(out[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(out[24:28], uint32(b.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(b.SampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(out[32:34], 2)                      // block align
	binary.LittleEndian.PutUint16(out[34:36], 16)                     // bits per sample

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(data)))
	copy(out[44:], data)
	return out
}

// DecodeWAV parses a RIFF/WAVE container holding 16-bit PCM. Multi-channel
// input is downmixed to mono by averaging.
func DecodeWAV(data []byte) (Buffer, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Buffer{}, fmt.Errorf("audio: not a RIFF/WAVE stream")
	}

	var (
		sampleRate int
		channels   int
		bits       int
		pcmData    []byte
	)

	// Walk the chunk list; real-world encoders emit LIST/fact chunks between
	// fmt and data.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return Buffer{}, fmt.Errorf("audio: fmt chunk too small (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return Buffer{}, fmt.Errorf("audio: unsupported WAV format code %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcmData = data[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if sampleRate == 0 || channels == 0 {
		return Buffer{}, fmt.Errorf("audio: missing fmt chunk")
	}
	if bits != 16 {
		return Buffer{}, fmt.Errorf("audio: unsupported bit depth %d (want 16)", bits)
	}
	if pcmData == nil {
		return Buffer{}, fmt.Errorf("audio: missing data chunk")
	}

	samples := DecodeLE(pcmData)
	if channels > 1 {
		mono := make([]int16, len(samples)/channels)
		for i := range mono {
			var sum int
			for c := range channels {
				sum += int(samples[i*channels+c])
			}
			mono[i] = int16(sum / channels)
		}
		samples = mono
	}
	return Buffer{PCM: samples, SampleRate: sampleRate}, nil
}

// ResampleMono16 converts mono 16-bit PCM between sample rates using linear
// interpolation. Good enough for speech; this is not a music pipeline.
func ResampleMono16(pcm []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || len(pcm) == 0 {
		return pcm
	}
	outLen := int(int64(len(pcm)) * int64(dstRate) / int64(srcRate))
	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) * float64(srcRate) / float64(dstRate)
		idx := int(pos)
		if idx >= len(pcm)-1 {
			out[i] = pcm[len(pcm)-1]
			continue
		}
		frac := pos - float64(idx)
		a, b := float64(pcm[idx]), float64(pcm[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}
