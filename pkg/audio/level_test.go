package audio

import (
	"math"
	"testing"
)

func TestRMSSilence(t *testing.T) {
	if got := RMS(make([]int16, 480)); got != 0 {
		t.Fatalf("RMS(silence) = %v, want 0", got)
	}
	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v, want 0", got)
	}
}

func TestRMSFullScaleSquare(t *testing.T) {
	pcm := make([]int16, 256)
	for i := range pcm {
		if i%2 == 0 {
			pcm[i] = math.MaxInt16
		} else {
			pcm[i] = -math.MaxInt16
		}
	}
	got := RMS(pcm)
	if math.Abs(got-1.0) > 0.001 {
		t.Fatalf("RMS(full-scale square) = %v, want ~1.0", got)
	}
}

func TestPeak(t *testing.T) {
	pcm := []int16{0, 100, -16384, 200}
	got := Peak(pcm)
	want := 16384.0 / 32768.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Peak() = %v, want %v", got, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pcm := []int16{0, 1, -1, math.MaxInt16, math.MinInt16, 12345}
	got := DecodeLE(EncodeLE(pcm))
	if len(got) != len(pcm) {
		t.Fatalf("round-trip length = %d, want %d", len(got), len(pcm))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], pcm[i])
		}
	}
}

func TestBufferEmpty(t *testing.T) {
	if !(Buffer{}).Empty() {
		t.Fatal("zero Buffer should be empty")
	}
	b := Buffer{PCM: []int16{1}, SampleRate: 16000}
	if b.Empty() {
		t.Fatal("non-zero Buffer reported empty")
	}
}
