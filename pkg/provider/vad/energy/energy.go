// Package energy implements a pure-Go voice activity detector based on RMS
// energy with hysteresis: a higher threshold (held for a few frames) is
// required to enter the speech state than to stay in it, which keeps the
// classification from flickering on breaths and keyboard noise.
package energy

import (
	"fmt"

	"github.com/fantasma-ai/fantasma/pkg/audio"
	"github.com/fantasma-ai/fantasma/pkg/provider/vad"
)

// Defaults tuned for 16 kHz mono 30 ms frames.
const (
	DefaultSpeechThreshold  = 0.015
	DefaultSilenceThreshold = 0.008

	// enterFrames is how many consecutive loud frames are needed to enter the
	// speech state (~90 ms), quietFrames how many quiet frames to leave it
	// (~240 ms). The long exit run keeps natural word gaps inside one
	// utterance.
	enterFrames = 3
	quietFrames = 8
)

// Engine implements vad.Engine.
type Engine struct{}

var _ vad.Engine = (*Engine)(nil)

// New creates an energy VAD engine. The engine itself is stateless; all
// per-stream state lives in the sessions it creates.
func New() *Engine { return &Engine{} }

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	if cfg.SpeechThreshold == 0 {
		cfg.SpeechThreshold = DefaultSpeechThreshold
	}
	if cfg.SilenceThreshold == 0 {
		cfg.SilenceThreshold = DefaultSilenceThreshold
	}
	if cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("energy vad: silence threshold %v above speech threshold %v",
			cfg.SilenceThreshold, cfg.SpeechThreshold)
	}
	return &session{cfg: cfg}, nil
}

type session struct {
	cfg vad.Config

	inSpeech   bool
	loudRun    int
	quietRun   int
}

var _ vad.Session = (*session)(nil)

// ProcessFrame implements [vad.Session].
func (s *session) ProcessFrame(f audio.Frame) (vad.Event, error) {
	level := audio.RMS(f.PCM)

	if s.inSpeech {
		if level < s.cfg.SilenceThreshold {
			s.quietRun++
			if s.quietRun >= quietFrames {
				s.inSpeech = false
				s.quietRun = 0
			}
		} else {
			s.quietRun = 0
		}
	} else {
		if level >= s.cfg.SpeechThreshold {
			s.loudRun++
			if s.loudRun >= enterFrames {
				s.inSpeech = true
				s.loudRun = 0
			}
		} else {
			s.loudRun = 0
		}
	}

	return vad.Event{Speech: s.inSpeech, Level: level}, nil
}

// Reset implements [vad.Session].
func (s *session) Reset() {
	s.inSpeech = false
	s.loudRun = 0
	s.quietRun = 0
}

// Close implements [vad.Session].
func (s *session) Close() error { return nil }
