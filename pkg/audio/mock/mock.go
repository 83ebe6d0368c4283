// Package mock provides test doubles for the audio package interfaces.
//
// Use Source to script a fixed sequence of frames (and injected errors)
// through code that consumes [audio.Source].
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/fantasma-ai/fantasma/pkg/audio"
)

// ErrExhausted is returned by Source.ReadFrame once the scripted sequence has
// been fully consumed, unless Block is set.
var ErrExhausted = errors.New("mock source: no more frames")

// Step is one scripted ReadFrame outcome.
type Step struct {
	// Frame is returned when Err is nil.
	Frame audio.Frame

	// Err, if non-nil, is returned instead of a frame.
	Err error
}

// Source is a mock implementation of audio.Source backed by a scripted
// sequence of steps.
type Source struct {
	mu sync.Mutex

	// Steps are consumed in order, one per ReadFrame call.
	Steps []Step

	// Block, if true, makes ReadFrame wait for ctx cancellation after the
	// script is exhausted instead of returning ErrExhausted.
	Block bool

	// CloseCalls counts calls to Close.
	CloseCalls int

	next int
}

var _ audio.Source = (*Source)(nil)

// FromPCM builds a Source whose script splits pcm into frames of frameSamples
// samples each.
func FromPCM(pcm []int16, sampleRate, frameSamples int) *Source {
	s := &Source{}
	for off := 0; off < len(pcm); off += frameSamples {
		end := min(off+frameSamples, len(pcm))
		s.Steps = append(s.Steps, Step{Frame: audio.Frame{
			PCM:        pcm[off:end],
			SampleRate: sampleRate,
		}})
	}
	return s
}

// ReadFrame returns the next scripted step.
func (s *Source) ReadFrame(ctx context.Context) (audio.Frame, error) {
	s.mu.Lock()
	if s.next < len(s.Steps) {
		step := s.Steps[s.next]
		s.next++
		s.mu.Unlock()
		if step.Err != nil {
			return audio.Frame{}, step.Err
		}
		return step.Frame, nil
	}
	block := s.Block
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return audio.Frame{}, ctx.Err()
	}
	return audio.Frame{}, ErrExhausted
}

// Close records the call.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return nil
}

// Remaining returns how many scripted steps have not been consumed yet.
func (s *Source) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Steps) - s.next
}
