package audio

import "testing"

func TestWAVRoundTrip(t *testing.T) {
	in := Buffer{PCM: []int16{0, 1000, -1000, 32767, -32768}, SampleRate: 16000}
	out, err := DecodeWAV(EncodeWAV(in))
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if out.SampleRate != in.SampleRate {
		t.Fatalf("SampleRate = %d, want %d", out.SampleRate, in.SampleRate)
	}
	if len(out.PCM) != len(in.PCM) {
		t.Fatalf("sample count = %d, want %d", len(out.PCM), len(in.PCM))
	}
	for i := range in.PCM {
		if out.PCM[i] != in.PCM[i] {
			t.Fatalf("sample %d = %d, want %d", i, out.PCM[i], in.PCM[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := DecodeWAV([]byte("definitely not audio")); err == nil {
		t.Fatal("DecodeWAV accepted garbage input")
	}
}

func TestDecodeWAVDownmixesStereo(t *testing.T) {
	// Hand-build a stereo container: L=100, R=300 should average to 200.
	mono := Buffer{PCM: []int16{0, 0}, SampleRate: 8000}
	wav := EncodeWAV(mono)
	// Patch channel count and interleave stereo samples.
	wav[22] = 2
	stereo := EncodeLE([]int16{100, 300, -100, -300})
	wav = append(wav[:44], stereo...)
	wav[40] = byte(len(stereo))

	out, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	want := []int16{200, -200}
	if len(out.PCM) != len(want) {
		t.Fatalf("sample count = %d, want %d", len(out.PCM), len(want))
	}
	for i := range want {
		if out.PCM[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, out.PCM[i], want[i])
		}
	}
}

func TestResampleMono16(t *testing.T) {
	src := make([]int16, 160) // 10 ms at 16 kHz
	got := ResampleMono16(src, 16000, 22050)
	wantLen := 160 * 22050 / 16000
	if len(got) != wantLen {
		t.Fatalf("resampled length = %d, want %d", len(got), wantLen)
	}
	// Same-rate input passes through untouched.
	if out := ResampleMono16(src, 16000, 16000); len(out) != len(src) {
		t.Fatalf("same-rate resample changed length: %d", len(out))
	}
}
