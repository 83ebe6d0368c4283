// Package wake implements the wake-word detection loop state machine. The
// neural scoring itself lives behind [wake.Scorer]; this package owns the
// trigger policy: persistence streaks, noise shielding, cooldown, quiet hours
// and the self-trigger guard while the assistant is speaking.
package wake

import (
	"context"
	"log/slog"
	"time"

	"github.com/fantasma-ai/fantasma/pkg/audio"
	wakeprov "github.com/fantasma-ai/fantasma/pkg/provider/wake"
)

// Event is the outcome of feeding one frame to the detector.
type Event int

const (
	// None means keep listening.
	None Event = iota

	// Triggered means the wake word was confirmed and an utterance follows.
	Triggered
)

// QuietHours is a daily window during which the detector never triggers.
// Start may be after End for windows that wrap midnight.
type QuietHours struct {
	Enabled bool
	Start   int
	End     int
}

// Contains reports whether t falls inside the window.
func (q QuietHours) Contains(t time.Time) bool {
	if !q.Enabled {
		return false
	}
	h := t.Hour()
	if q.Start <= q.End {
		return h >= q.Start && h < q.End
	}
	// Wrap-around window, e.g. 23..7.
	return h >= q.Start || h < q.End
}

// Config tunes the trigger policy.
type Config struct {
	// Threshold is the per-frame score needed to advance the streak.
	Threshold float64

	// StrictThreshold replaces Threshold for frames whose RMS exceeds
	// NoiseCeiling, so loud rooms need a more confident model before waking.
	StrictThreshold float64
	NoiseCeiling    float64

	// Persistence is how many consecutive frames must clear the threshold.
	Persistence int

	// Cooldown suppresses re-triggering after a trigger.
	Cooldown time.Duration

	// QuietHours optionally silences the detector on a daily schedule.
	QuietHours QuietHours
}

// Option configures a Detector.
type Option func(*Detector)

// WithSpeakingFunc installs the playback flag consulted before scoring. While
// it reports true the detector ignores frames entirely so the assistant's own
// voice cannot wake it.
func WithSpeakingFunc(fn func() bool) Option {
	return func(d *Detector) { d.speaking = fn }
}

// WithClock replaces the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithObserver installs a hook called once per scored frame.
func WithObserver(fn func(score float64, triggered bool)) Option {
	return func(d *Detector) { d.observe = fn }
}

// Detector is the wake-word trigger state machine. It is driven by a single
// goroutine; feeding frames concurrently is a caller bug.
type Detector struct {
	scorer   wakeprov.Scorer
	cfg      Config
	speaking func() bool
	now      func() time.Time
	observe  func(score float64, triggered bool)

	streak        int
	cooldownUntil time.Time
}

// NewDetector creates a detector over scorer.
func NewDetector(scorer wakeprov.Scorer, cfg Config, opts ...Option) *Detector {
	if cfg.Persistence < 1 {
		cfg.Persistence = 1
	}
	d := &Detector{
		scorer: scorer,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed advances the state machine with one frame.
//
// The streak is forced to zero, without scoring, whenever the assistant is
// speaking, the cooldown is running or quiet hours apply. A scorer failure
// counts as score zero: the listening loop must survive a crashed sidecar.
func (d *Detector) Feed(ctx context.Context, f audio.Frame) Event {
	now := d.now()

	if d.speaking != nil && d.speaking() {
		d.streak = 0
		return None
	}
	if now.Before(d.cooldownUntil) {
		d.streak = 0
		return None
	}
	if d.cfg.QuietHours.Contains(now) {
		d.streak = 0
		return None
	}

	score, err := d.scorer.Score(ctx, f)
	if err != nil {
		slog.Warn("wake: scorer failed, counting frame as silence", "err", err)
		score = 0
	}

	threshold := d.cfg.Threshold
	if d.cfg.NoiseCeiling > 0 && audio.RMS(f.PCM) > d.cfg.NoiseCeiling {
		threshold = d.cfg.StrictThreshold
	}

	triggered := false
	if score > threshold {
		d.streak++
		if d.streak >= d.cfg.Persistence {
			triggered = true
			d.streak = 0
			d.cooldownUntil = now.Add(d.cfg.Cooldown)
			if err := d.scorer.Reset(ctx); err != nil {
				slog.Warn("wake: scorer reset failed", "err", err)
			}
		}
	} else {
		d.streak = 0
	}

	if d.observe != nil {
		d.observe(score, triggered)
	}
	if triggered {
		return Triggered
	}
	return None
}

// Reset clears the streak and cooldown, e.g. after the capture stream was
// reacquired.
func (d *Detector) Reset(ctx context.Context) {
	d.streak = 0
	d.cooldownUntil = time.Time{}
	if err := d.scorer.Reset(ctx); err != nil {
		slog.Warn("wake: scorer reset failed", "err", err)
	}
}

// Streak exposes the current consecutive-frame count (tests, debug endpoint).
func (d *Detector) Streak() int { return d.streak }
