package wake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fantasma-ai/fantasma/pkg/audio"
	"github.com/fantasma-ai/fantasma/pkg/provider/wake/mock"
)

func quietFrame() audio.Frame {
	return audio.Frame{PCM: make([]int16, 480), SampleRate: 16000}
}

func loudFrame() audio.Frame {
	pcm := make([]int16, 480)
	for i := range pcm {
		if i%2 == 0 {
			pcm[i] = 20000
		} else {
			pcm[i] = -20000
		}
	}
	return audio.Frame{PCM: pcm, SampleRate: 16000}
}

func baseConfig() Config {
	return Config{
		Threshold:       0.5,
		StrictThreshold: 0.75,
		NoiseCeiling:    0.2,
		Persistence:     2,
		Cooldown:        2 * time.Second,
	}
}

func TestTriggerNeedsPersistentStreak(t *testing.T) {
	ctx := context.Background()
	scorer := mock.Scores(0.9, 0.3, 0.9, 0.9)
	d := NewDetector(scorer, baseConfig())

	// High, low: the low frame resets the streak.
	if ev := d.Feed(ctx, quietFrame()); ev != None {
		t.Fatalf("frame 1 = %v, want None", ev)
	}
	if ev := d.Feed(ctx, quietFrame()); ev != None {
		t.Fatalf("frame 2 = %v, want None", ev)
	}
	if d.Streak() != 0 {
		t.Fatalf("streak after low frame = %d, want 0", d.Streak())
	}

	// Two consecutive high frames trigger.
	if ev := d.Feed(ctx, quietFrame()); ev != None {
		t.Fatalf("frame 3 = %v, want None", ev)
	}
	if ev := d.Feed(ctx, quietFrame()); ev != Triggered {
		t.Fatalf("frame 4 = %v, want Triggered", ev)
	}
	if scorer.Resets() != 1 {
		t.Fatalf("scorer resets = %d, want 1 after trigger", scorer.Resets())
	}
}

func TestCooldownSuppressesRetrigger(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	d := NewDetector(mock.Scores(0.9, 0.9, 0.9, 0.9, 0.9, 0.9), baseConfig(),
		WithClock(func() time.Time { return now }))

	d.Feed(ctx, quietFrame())
	if ev := d.Feed(ctx, quietFrame()); ev != Triggered {
		t.Fatal("no trigger on persistent streak")
	}

	// Inside the cooldown nothing triggers, regardless of score.
	now = now.Add(time.Second)
	d.Feed(ctx, quietFrame())
	if ev := d.Feed(ctx, quietFrame()); ev != None {
		t.Fatal("triggered during cooldown")
	}

	// After the cooldown the streak builds again.
	now = now.Add(2 * time.Second)
	d.Feed(ctx, quietFrame())
	if ev := d.Feed(ctx, quietFrame()); ev != Triggered {
		t.Fatal("no trigger after cooldown expired")
	}
}

func TestSpeakingForcesStreakToZero(t *testing.T) {
	ctx := context.Background()
	speaking := true
	scorer := mock.Scores(0.9, 0.9, 0.9, 0.9)
	d := NewDetector(scorer, baseConfig(),
		WithSpeakingFunc(func() bool { return speaking }))

	d.Feed(ctx, quietFrame())
	d.Feed(ctx, quietFrame())
	if len(scorer.Frames) != 0 {
		t.Fatalf("scored %d frames while speaking, want 0", len(scorer.Frames))
	}

	// Playback ends: a full fresh streak is required.
	speaking = false
	if ev := d.Feed(ctx, quietFrame()); ev != None {
		t.Fatal("triggered with a partial streak after playback")
	}
	if ev := d.Feed(ctx, quietFrame()); ev != Triggered {
		t.Fatal("no trigger after playback ended")
	}
}

func TestNoisyFramesUseStrictThreshold(t *testing.T) {
	ctx := context.Background()
	// 0.6 clears the base threshold but not the strict one.
	d := NewDetector(mock.Scores(0.6, 0.6, 0.6, 0.6), baseConfig())

	d.Feed(ctx, loudFrame())
	if ev := d.Feed(ctx, loudFrame()); ev == Triggered {
		t.Fatal("noisy frames triggered below the strict threshold")
	}

	// The same score on quiet frames triggers normally.
	if ev := d.Feed(ctx, quietFrame()); ev != None {
		t.Fatalf("quiet frame 1 = %v, want None", ev)
	}
	if ev := d.Feed(ctx, quietFrame()); ev != Triggered {
		t.Fatal("quiet frames with passing scores did not trigger")
	}
}

func TestScorerFailureCountsAsSilence(t *testing.T) {
	ctx := context.Background()
	scorer := &mock.Scorer{Steps: []mock.Step{
		{Score: 0.9},
		{Err: errors.New("sidecar down")},
		{Score: 0.9},
		{Score: 0.9},
	}}
	d := NewDetector(scorer, baseConfig())

	d.Feed(ctx, quietFrame())
	if ev := d.Feed(ctx, quietFrame()); ev != None {
		t.Fatal("scorer failure did not reset the streak")
	}
	d.Feed(ctx, quietFrame())
	if ev := d.Feed(ctx, quietFrame()); ev != Triggered {
		t.Fatal("detector did not recover after scorer failure")
	}
}

func TestQuietHours(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig()
	cfg.QuietHours = QuietHours{Enabled: true, Start: 23, End: 7}

	night := time.Date(2026, 8, 29, 2, 0, 0, 0, time.UTC)
	scorer := mock.Scores(0.9, 0.9, 0.9, 0.9)
	now := night
	d := NewDetector(scorer, cfg, WithClock(func() time.Time { return now }))

	d.Feed(ctx, quietFrame())
	if ev := d.Feed(ctx, quietFrame()); ev != None {
		t.Fatal("triggered inside quiet hours")
	}
	if len(scorer.Frames) != 0 {
		t.Fatalf("scored %d frames inside quiet hours, want 0", len(scorer.Frames))
	}

	now = time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	d.Feed(ctx, quietFrame())
	if ev := d.Feed(ctx, quietFrame()); ev != Triggered {
		t.Fatal("no trigger outside quiet hours")
	}
}

func TestQuietHoursWindow(t *testing.T) {
	q := QuietHours{Enabled: true, Start: 23, End: 7}
	tests := []struct {
		hour int
		want bool
	}{
		{23, true}, {0, true}, {6, true},
		{7, false}, {12, false}, {22, false},
	}
	for _, tt := range tests {
		ts := time.Date(2026, 8, 29, tt.hour, 30, 0, 0, time.UTC)
		if got := q.Contains(ts); got != tt.want {
			t.Errorf("Contains(hour %d) = %v, want %v", tt.hour, got, tt.want)
		}
	}

	sameDay := QuietHours{Enabled: true, Start: 13, End: 15}
	if !sameDay.Contains(time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)) {
		t.Error("same-day window excluded an inside hour")
	}
	if sameDay.Contains(time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)) {
		t.Error("same-day window included its end hour")
	}
}
