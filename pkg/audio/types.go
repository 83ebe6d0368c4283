// Package audio defines the core audio types flowing through the capture
// pipeline: frames read from an input device, the bounded queue that decouples
// the hardware callback from detection, and small signal-level helpers.
package audio

import "time"

// Frame is a single fixed-length chunk of mono 16-bit PCM captured from an
// input stream. Frames are treated as immutable once captured: every consumer
// reads, nobody writes.
type Frame struct {
	// PCM samples, signed 16-bit, single channel.
	PCM []int16

	// SampleRate in Hz (16000 for the detection pipeline).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the wall-clock length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(f.PCM)) * time.Second / time.Duration(f.SampleRate)
}

// Buffer is a contiguous utterance recording assembled from frames.
type Buffer struct {
	// PCM samples, signed 16-bit, single channel. Nil or empty when no speech
	// was observed during capture.
	PCM []int16

	// SampleRate in Hz.
	SampleRate int
}

// Empty reports whether the buffer holds no audio worth transcribing.
func (b Buffer) Empty() bool { return len(b.PCM) == 0 }

// Duration returns the wall-clock length of the buffered audio.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(b.PCM)) * time.Second / time.Duration(b.SampleRate)
}

// Bytes encodes the buffer's samples as little-endian 16-bit PCM, the wire
// layout expected by external scorers, players, and WAV containers.
func (b Buffer) Bytes() []byte {
	return EncodeLE(b.PCM)
}

// EncodeLE converts int16 samples to little-endian bytes.
func EncodeLE(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// DecodeLE converts little-endian 16-bit PCM bytes to samples. A trailing odd
// byte is ignored.
func DecodeLE(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(data[2*i]) | int16(data[2*i+1])<<8
	}
	return out
}
