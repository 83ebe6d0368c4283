// Package vad defines the voice-activity-detection provider interface used by
// utterance capture to classify frames as speech or silence.
//
// A VAD engine is stateful per stream: each capture session creates its own
// [Session] so concurrent streams never share smoothing state.
package vad

import "github.com/fantasma-ai/fantasma/pkg/audio"

// Config configures a single VAD session.
type Config struct {
	// SampleRate of the frames that will be submitted, in Hz.
	SampleRate int

	// SpeechThreshold is the normalized level at which the session may enter
	// the speech state. Implementations that do not use energy levels may
	// ignore it.
	SpeechThreshold float64

	// SilenceThreshold is the normalized level below which the session may
	// leave the speech state. Must be at or below SpeechThreshold so the
	// detector has hysteresis.
	SilenceThreshold float64
}

// Event is the classification of a single frame.
type Event struct {
	// Speech is true while the session considers the stream to contain
	// speech. The flag already includes any smoothing or hysteresis the
	// implementation applies, so callers can consume it frame by frame.
	Speech bool

	// Level is the measured signal level for the frame, normalized to 0..1.
	// Implementations without a meaningful level report 0.
	Level float64
}

// Session is a per-stream detector instance. Sessions are not safe for
// concurrent use; each capture loop owns exactly one.
type Session interface {
	// ProcessFrame classifies one frame.
	ProcessFrame(f audio.Frame) (Event, error)

	// Reset clears smoothing state so the session can be reused for a new
	// utterance.
	Reset()

	// Close releases any resources held by the session.
	Close() error
}

// Engine creates VAD sessions.
type Engine interface {
	NewSession(cfg Config) (Session, error)
}
