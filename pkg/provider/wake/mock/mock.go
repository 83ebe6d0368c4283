// Package mock provides a scripted test double for wake.Scorer.
package mock

import (
	"context"
	"sync"

	"github.com/fantasma-ai/fantasma/pkg/audio"
	"github.com/fantasma-ai/fantasma/pkg/provider/wake"
)

// Step is one scripted Score outcome.
type Step struct {
	Score float64
	Err   error
}

// Scorer is a mock implementation of wake.Scorer replaying a scripted score
// sequence.
type Scorer struct {
	mu sync.Mutex

	// Steps are consumed in order, one per Score call. After exhaustion every
	// call returns Default.
	Steps []Step

	// Default is returned once the script runs out.
	Default float64

	// Frames records every scored frame.
	Frames []audio.Frame

	// ResetCalls and CloseCalls count the respective invocations.
	ResetCalls int
	CloseCalls int

	// ResetErr, if non-nil, is returned by Reset.
	ResetErr error

	next int
}

var _ wake.Scorer = (*Scorer)(nil)

// Scores builds a Scorer whose script returns the given values in order.
func Scores(vals ...float64) *Scorer {
	s := &Scorer{}
	for _, v := range vals {
		s.Steps = append(s.Steps, Step{Score: v})
	}
	return s
}

// Score records the frame and returns the next scripted step.
func (s *Scorer) Score(_ context.Context, f audio.Frame) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Frames = append(s.Frames, f)
	if s.next < len(s.Steps) {
		step := s.Steps[s.next]
		s.next++
		return step.Score, step.Err
	}
	return s.Default, nil
}

// Reset records the call.
func (s *Scorer) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCalls++
	return s.ResetErr
}

// Close records the call.
func (s *Scorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return nil
}

// Resets returns how many times Reset was called.
func (s *Scorer) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ResetCalls
}
