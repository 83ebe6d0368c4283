// Package mock provides test doubles for the vad package interfaces.
//
// Use Session to script per-frame classifications and Engine to hand that
// session to code which creates its own.
package mock

import (
	"sync"

	"github.com/fantasma-ai/fantasma/pkg/audio"
	"github.com/fantasma-ai/fantasma/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is returned by NewSession. If nil, a fresh default Session is
	// returned instead.
	Session vad.Session

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// Configs records the Config of every NewSession call in order.
	Configs []vad.Config
}

var _ vad.Engine = (*Engine)(nil)

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Configs = append(e.Configs, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Session is a mock implementation of vad.Session that replays a scripted
// sequence of events.
type Session struct {
	mu sync.Mutex

	// Events are returned in order, one per ProcessFrame call. Once the
	// script is exhausted, Default is returned for every further call.
	Events []vad.Event

	// Default is the event returned after Events runs out.
	Default vad.Event

	// Err, if non-nil, is returned by every ProcessFrame call.
	Err error

	// Frames records every frame submitted for processing.
	Frames []audio.Frame

	// ResetCalls and CloseCalls count the respective invocations.
	ResetCalls int
	CloseCalls int

	next int
}

var _ vad.Session = (*Session)(nil)

// Speech builds a session script from a run-length pattern: speech[i] is the
// classification returned for frame i.
func Speech(pattern ...bool) *Session {
	s := &Session{}
	for _, sp := range pattern {
		s.Events = append(s.Events, vad.Event{Speech: sp})
	}
	return s
}

// ProcessFrame records the frame and returns the next scripted event.
func (s *Session) ProcessFrame(f audio.Frame) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Frames = append(s.Frames, f)
	if s.Err != nil {
		return vad.Event{}, s.Err
	}
	if s.next < len(s.Events) {
		ev := s.Events[s.next]
		s.next++
		return ev, nil
	}
	return s.Default, nil
}

// Reset records the call.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCalls++
}

// Close records the call.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return nil
}
